package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"credit-risk/backend/internal/features"
	"credit-risk/backend/internal/model"
	"credit-risk/backend/internal/store"
)

// Predictor scores assembled records. Implementations must be safe for
// concurrent use; *model.Pipeline satisfies it.
type Predictor interface {
	PredictProba(records []features.Record) ([][]float64, error)
}

// describer is implemented by predictors that can report their layout.
type describer interface {
	Summary() model.Summary
}

// Config defines server dependencies.
type Config struct {
	AllowedOrigins []string
}

// Server wires HTTP handlers with the scoring pipeline and persistence.
type Server struct {
	predictor      Predictor
	db             *store.Database
	allowedOrigins []string
	metrics        *metrics
}

// NewServer constructs the API server around an already loaded predictor.
// db may be nil, in which case assessments are scored but not stored.
func NewServer(cfg Config, predictor Predictor, db *store.Database) (*Server, error) {
	if predictor == nil {
		return nil, errors.New("predictor required")
	}
	if db == nil {
		logrus.Info("assessment history disabled - no database configured")
	}
	return &Server{
		predictor:      predictor,
		db:             db,
		allowedOrigins: cfg.AllowedOrigins,
		metrics:        newMetrics(),
	}, nil
}

// Router configures gin routes.
func (s *Server) Router() (*gin.Engine, error) {
	r := gin.New()
	r.Use(requestID(), accessLog(), gin.Recovery())

	corsCfg := cors.DefaultConfig()
	if len(s.allowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowCredentials = true
		corsCfg.AllowOrigins = s.allowedOrigins
	}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", requestIDHeader}
	corsCfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	r.Use(cors.New(corsCfg))

	r.POST("/predict", s.handlePredict)
	r.GET("/metrics", gin.WrapH(s.metrics.handler()))

	api := r.Group("/api")
	{
		api.GET("/healthz", s.handleHealth)
		api.GET("/config", s.handleConfig)
		api.POST("/assess", s.handleAssess)
		api.GET("/assessments", s.handleListAssessments)
		api.GET("/assessments/:id", s.handleGetAssessment)
	}

	return r, nil
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.db != nil {
		if err := s.db.Ping(); err != nil {
			logrus.WithError(err).Warn("health check: database unavailable")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleConfig(c *gin.Context) {
	resp := ConfigResponse{
		InputColumns:      features.Columns(),
		HistoryEnabled:    s.db != nil,
		AssessmentRecords: -1,
	}
	if d, ok := s.predictor.(describer); ok {
		summary := d.Summary()
		resp.Model = &summary
	}
	if s.db != nil {
		count, err := s.db.CountAssessments()
		if err != nil {
			s.renderError(c, http.StatusInternalServerError, err)
			return
		}
		resp.AssessmentRecords = count
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListAssessments(c *gin.Context) {
	if s.db == nil {
		s.renderError(c, http.StatusServiceUnavailable, errHistoryDisabled)
		return
	}
	page, _ := strconv.Atoi(c.Query("page"))
	if page < 0 {
		page = 0
	}
	if page > maxPage {
		page = maxPage
	}
	pageSize, _ := strconv.Atoi(c.Query("pageSize"))
	if pageSize <= 0 {
		pageSize = 25
	}
	if pageSize > 500 {
		pageSize = 500
	}
	tier, _ := strconv.Atoi(c.Query("tier"))

	rows, total, err := s.db.ListAssessments(store.AssessmentQuery{
		ApplicantID: c.Query("applicant_id"),
		Tier:        tier,
		Offset:      page * pageSize,
		Limit:       pageSize,
	})
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	items := make([]AssessmentDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, AssessmentFromModel(row))
	}
	c.JSON(http.StatusOK, AssessmentsResponse{Items: items, Total: total})
}

func (s *Server) handleGetAssessment(c *gin.Context) {
	if s.db == nil {
		s.renderError(c, http.StatusServiceUnavailable, errHistoryDisabled)
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	if _, err := uuid.Parse(id); err != nil {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("invalid assessment id %q", id))
		return
	}
	row, err := s.db.GetAssessment(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.renderError(c, http.StatusNotFound, fmt.Errorf("assessment %s not found", id))
		} else {
			s.renderError(c, http.StatusInternalServerError, err)
		}
		return
	}
	c.JSON(http.StatusOK, AssessmentFromModel(*row))
}

var errHistoryDisabled = errors.New("assessment history is disabled")

// maxPage bounds page*pageSize well inside int range.
const maxPage = 1 << 20

func (s *Server) renderError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}
