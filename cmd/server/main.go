package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"credit-risk/backend/internal/api"
	"credit-risk/backend/internal/config"
	"credit-risk/backend/internal/model"
	"credit-risk/backend/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	configureLogging(cfg)

	logrus.Infof("loading model artifact from %s", cfg.ModelPath)
	pipeline, err := model.Load(cfg.ModelPath)
	if err != nil {
		logrus.Fatalf("load model: %v", err)
	}
	if names, err := pipeline.FeatureNames(); err != nil {
		logrus.WithError(err).Warn("could not determine encoded feature names")
	} else {
		logrus.WithField("features", len(names)).Infof("model %q loaded, feature names: %s", pipeline.Name(), strings.Join(names, ", "))
	}

	var db *store.Database
	if path := strings.TrimSpace(cfg.DBPath); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			logrus.Fatalf("create data directory: %v", err)
		}
		db, err = store.Open(path, cfg.SilentDB)
		if err != nil {
			logrus.Fatalf("open database: %v", err)
		}
		defer db.Close()
	}

	server, err := api.NewServer(api.Config{AllowedOrigins: cfg.AllowedOrigins}, pipeline, db)
	if err != nil {
		logrus.Fatalf("create server: %v", err)
	}
	router, err := server.Router()
	if err != nil {
		logrus.Fatalf("configure router: %v", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, httpServer, cfg.ShutdownTimeout); err != nil {
		logrus.Fatalf("server exited: %v", err)
	}
}

// serve runs srv until ctx is done or the listener fails. Listener failures
// are returned; a shutdown requested through ctx is not an error.
func serve(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		logrus.Infof("starting credit-risk backend on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logrus.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("graceful shutdown: %v", err)
	}
	return nil
}

func configureLogging(cfg config.Config) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logrus.Warnf("unknown log level %q, using info", cfg.LogLevel)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	if strings.EqualFold(cfg.LogFormat, "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if level < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
}
