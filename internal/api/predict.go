package api

import (
	"fmt"
	"math"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"credit-risk/backend/internal/features"
	"credit-risk/backend/internal/util"
)

const (
	msgInvalidInput     = "Invalid input format. 'features' object required."
	msgProcessingFailed = "Prediction processing failed"

	positiveClass = 1
)

type errorKind int

const (
	kindInput errorKind = iota + 1
	kindProcessing
)

// requestError is the outcome of a failed scoring attempt; the kind decides
// the HTTP status.
type requestError struct {
	kind errorKind
	err  error
}

func (e *requestError) Error() string { return e.err.Error() }

func (e *requestError) Unwrap() error { return e.err }

func inputError(err error) *requestError { return &requestError{kind: kindInput, err: err} }

func processingError(err error) *requestError {
	return &requestError{kind: kindProcessing, err: err}
}

// scoreResult is a successfully scored record.
type scoreResult struct {
	record  features.Record
	missing []string
	score   float64
}

func (s *Server) handlePredict(c *gin.Context) {
	timer := util.StartTimer()
	log := requestLogger(c)
	log.Debug("received prediction request")

	req, rerr := decodeScoreRequest(c)
	if rerr == nil {
		var res scoreResult
		res, rerr = s.score(log, req)
		if rerr == nil {
			s.metrics.observe(outcomeSuccess, timer.Elapsed())
			log.WithField("risk_score", res.score).Info("prediction successful")
			c.JSON(http.StatusOK, PredictResponse{RiskScore: res.score})
			return
		}
	}
	s.renderRequestError(c, log, rerr, timer)
}

func (s *Server) renderRequestError(c *gin.Context, log *logrus.Entry, rerr *requestError, timer util.Timer) {
	switch rerr.kind {
	case kindInput:
		s.metrics.observe(outcomeInvalid, timer.Elapsed())
		log.WithError(rerr.err).Warn("invalid input format")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: msgInvalidInput})
	default:
		s.metrics.observe(outcomeFailed, timer.Elapsed())
		log.WithError(rerr.err).Error("error during prediction")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   msgProcessingFailed,
			Details: rerr.err.Error(),
		})
	}
}

// decodeScoreRequest reads the body and extracts the "features" object.
func decodeScoreRequest(c *gin.Context) (features.Document, *requestError) {
	body, err := c.GetRawData()
	if err != nil {
		return features.Document{}, inputError(fmt.Errorf("read body: %w", err))
	}
	doc, err := features.ParseDocument(body)
	if err != nil {
		return features.Document{}, inputError(err)
	}
	return doc, nil
}

// score assembles the record and runs the predictor. Panics raised while
// scoring are reported as processing errors.
func (s *Server) score(log *logrus.Entry, doc features.Document) (res scoreResult, rerr *requestError) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("stack", string(debug.Stack())).Errorf("panic during prediction: %v", r)
			rerr = processingError(fmt.Errorf("%v", r))
		}
	}()

	rec, err := features.Assemble(doc.Features)
	if err != nil {
		return scoreResult{}, processingError(err)
	}
	log.WithField("record", rec.String()).Debug("record assembled for prediction")

	missing := rec.MissingColumns()
	if len(missing) > 0 {
		log.WithField("missing", missing).Warn("record contains missing values")
	}

	proba, err := s.predictor.PredictProba([]features.Record{rec})
	if err != nil {
		return scoreResult{}, processingError(err)
	}
	if len(proba) != 1 {
		return scoreResult{}, processingError(fmt.Errorf("predictor returned %d rows for 1 record", len(proba)))
	}
	if len(proba[0]) <= positiveClass {
		return scoreResult{}, processingError(fmt.Errorf("index %d is out of bounds for axis 1 with size %d", positiveClass, len(proba[0])))
	}
	score := proba[0][positiveClass]
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return scoreResult{}, processingError(fmt.Errorf("predictor returned non-finite score %v", score))
	}
	return scoreResult{record: rec, missing: missing, score: score}, nil
}
