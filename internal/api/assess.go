package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"credit-risk/backend/internal/features"
	"credit-risk/backend/internal/scoring"
	"credit-risk/backend/internal/store"
	"credit-risk/backend/internal/util"
)

// handleAssess scores the request like /predict, derives the credit offer and
// records the assessment when history is enabled.
func (s *Server) handleAssess(c *gin.Context) {
	timer := util.StartTimer()
	log := requestLogger(c)

	req, rerr := decodeScoreRequest(c)
	if rerr != nil {
		s.renderRequestError(c, log, rerr, timer)
		return
	}
	applicantID, err := applicantFrom(req.Fields)
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	res, rerr := s.score(log, req)
	if rerr != nil {
		s.renderRequestError(c, log, rerr, timer)
		return
	}
	s.metrics.observe(outcomeSuccess, timer.Elapsed())

	ent := scoring.Entitle(res.score, applicantFromRecord(res.record))
	resp := AssessResponse{
		RiskScore:    res.score,
		Entitlements: ent,
		Missing:      nonNil(res.missing),
	}

	if s.db != nil {
		row := &store.Assessment{
			RequestID:        c.GetString(requestIDKey),
			ApplicantID:      applicantID,
			ModelName:        s.modelName(),
			RiskScore:        res.score,
			Tier:             ent.Tier,
			BaseLimit:        ent.BaseLimit.StringFixed(2),
			CreditLimit:      ent.Limit.StringFixed(2),
			ProcessingTimeMs: timer.ElapsedMs(),
		}
		row.SetTerms(ent.Terms)
		row.SetAdjustments(ent.Adjustments)
		row.SetMissing(res.missing)
		if err := row.SetFeatures(res.record); err != nil {
			s.renderError(c, http.StatusInternalServerError, err)
			return
		}
		if err := s.db.SaveAssessment(row); err != nil {
			log.WithError(err).Error("failed to store assessment")
			s.renderError(c, http.StatusInternalServerError, err)
			return
		}
		resp.ID = row.PublicID
	}

	log.WithField("risk_score", res.score).WithField("tier", ent.Tier).Info("assessment complete")
	c.JSON(http.StatusOK, resp)
}

func applicantFrom(envelope map[string]json.RawMessage) (string, error) {
	raw, ok := envelope["applicant_id"]
	if !ok || string(raw) == "null" {
		return "", nil
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return "", errors.New("applicant_id must be a string")
	}
	return id, nil
}

func applicantFromRecord(rec features.Record) scoring.Applicant {
	var a scoring.Applicant
	if v, ok := rec.Get(features.DefaultOnFile); ok && v.Kind == features.Categorical {
		a.DefaultOnFile = v.Str
	}
	employment, _ := rec.Get(features.EmploymentStatus)
	a.EmploymentStatus = features.NormalizeEmployment(employment.Str)
	if v, ok := rec.Get(features.CreditUtilizationRatio); ok && v.Kind == features.Numeric {
		a.UtilizationRatio = v.Num
		a.UtilizationKnown = true
	}
	return a
}

func (s *Server) modelName() string {
	if d, ok := s.predictor.(describer); ok {
		return d.Summary().Name
	}
	return ""
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
