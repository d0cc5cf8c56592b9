package api

import (
	"time"

	"credit-risk/backend/internal/model"
	"credit-risk/backend/internal/scoring"
	"credit-risk/backend/internal/store"
)

// PredictResponse is the body of a successful /predict call.
type PredictResponse struct {
	RiskScore float64 `json:"risk_score"`
}

// ErrorResponse is returned for rejected or failed scoring requests.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// AssessResponse carries the score, the derived offer and the stored id.
type AssessResponse struct {
	ID           string               `json:"id,omitempty"`
	RiskScore    float64              `json:"risk_score"`
	Entitlements scoring.Entitlements `json:"entitlements"`
	Missing      []string             `json:"missing_features"`
}

// ConfigResponse exposes runtime metadata to clients.
type ConfigResponse struct {
	InputColumns      []string       `json:"input_columns"`
	HistoryEnabled    bool           `json:"history_enabled"`
	AssessmentRecords int64          `json:"assessment_records"`
	Model             *model.Summary `json:"model,omitempty"`
}

// AssessmentDTO is the API representation of a stored assessment.
type AssessmentDTO struct {
	ID               string         `json:"id"`
	RequestID        string         `json:"request_id,omitempty"`
	ApplicantID      string         `json:"applicant_id,omitempty"`
	ModelName        string         `json:"model_name,omitempty"`
	RiskScore        float64        `json:"risk_score"`
	Tier             int            `json:"tier"`
	BaseLimit        string         `json:"base_limit"`
	CreditLimit      string         `json:"credit_limit"`
	Terms            []int          `json:"terms"`
	Adjustments      []string       `json:"adjustments"`
	Missing          []string       `json:"missing_features"`
	Features         map[string]any `json:"features,omitempty"`
	ProcessingTimeMs int64          `json:"processing_time_ms"`
	CreatedAt        time.Time      `json:"created_at"`
}

// AssessmentsResponse is a page of stored assessments.
type AssessmentsResponse struct {
	Items []AssessmentDTO `json:"items"`
	Total int64           `json:"total"`
}

// AssessmentFromModel converts a store row into its DTO.
func AssessmentFromModel(a store.Assessment) AssessmentDTO {
	terms := a.Terms()
	if terms == nil {
		terms = []int{}
	}
	return AssessmentDTO{
		ID:               a.PublicID,
		RequestID:        a.RequestID,
		ApplicantID:      a.ApplicantID,
		ModelName:        a.ModelName,
		RiskScore:        a.RiskScore,
		Tier:             a.Tier,
		BaseLimit:        a.BaseLimit,
		CreditLimit:      a.CreditLimit,
		Terms:            terms,
		Adjustments:      nonNil(a.Adjustments()),
		Missing:          nonNil(a.Missing()),
		Features:         a.Features(),
		ProcessingTimeMs: a.ProcessingTimeMs,
		CreatedAt:        a.CreatedAt,
	}
}
