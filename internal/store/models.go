package store

import (
	"encoding/json"
	"strings"
	"time"
)

// Assessment is a scored applicant together with the credit offer derived
// from the score.
type Assessment struct {
	ID               uint    `gorm:"primaryKey"`
	PublicID         string  `gorm:"size:36;uniqueIndex"`
	RequestID        string  `gorm:"size:64"`
	ApplicantID      string  `gorm:"size:128;index"`
	ModelName        string  `gorm:"size:128"`
	RiskScore        float64 `gorm:"index"`
	Tier             int     `gorm:"index"`
	BaseLimit        string  `gorm:"size:32"`
	CreditLimit      string  `gorm:"size:32"`
	TermsJSON        string  `gorm:"type:text"`
	AdjustmentsJSON  string  `gorm:"type:text"`
	FeaturesJSON     string  `gorm:"type:text"`
	MissingJSON      string  `gorm:"type:text"`
	ProcessingTimeMs int64
	CreatedAt        time.Time `gorm:"autoCreateTime"`
}

// SetTerms stores the repayment terms (months) as JSON.
func (a *Assessment) SetTerms(terms []int) {
	if terms == nil {
		a.TermsJSON = "[]"
		return
	}
	payload, _ := json.Marshal(terms)
	a.TermsJSON = string(payload)
}

// Terms returns the decoded repayment terms.
func (a *Assessment) Terms() []int {
	if strings.TrimSpace(a.TermsJSON) == "" {
		return nil
	}
	var out []int
	if err := json.Unmarshal([]byte(a.TermsJSON), &out); err != nil {
		return nil
	}
	return out
}

// SetAdjustments stores the adjustment labels as JSON.
func (a *Assessment) SetAdjustments(labels []string) {
	a.AdjustmentsJSON = marshalStrings(labels)
}

// Adjustments returns the decoded adjustment labels.
func (a *Assessment) Adjustments() []string {
	return unmarshalStrings(a.AdjustmentsJSON)
}

// SetMissing stores the columns that were missing from the request.
func (a *Assessment) SetMissing(columns []string) {
	a.MissingJSON = marshalStrings(columns)
}

// Missing returns the columns that were missing from the request.
func (a *Assessment) Missing() []string {
	return unmarshalStrings(a.MissingJSON)
}

// SetFeatures stores the assembled feature record.
func (a *Assessment) SetFeatures(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	a.FeaturesJSON = string(payload)
	return nil
}

// Features returns the stored feature record as a generic map.
func (a *Assessment) Features() map[string]any {
	if strings.TrimSpace(a.FeaturesJSON) == "" {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(a.FeaturesJSON), &out); err != nil {
		return nil
	}
	return out
}

func marshalStrings(values []string) string {
	if values == nil {
		return "[]"
	}
	payload, _ := json.Marshal(values)
	return string(payload)
}

func unmarshalStrings(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}
