package scoring

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Tier boundaries: a score below tierBounds[i] lands in tier i+1.
var tierBounds = []float64{0.14, 0.28, 0.42, 0.56, 0.70, 0.84}

type tierTerms struct {
	limit int64
	terms []int
}

var tiers = []tierTerms{
	{2500, []int{3, 6, 12}},
	{1750, []int{3, 6, 12}},
	{1250, []int{3, 6}},
	{800, []int{3, 6}},
	{500, []int{3}},
	{300, []int{3}},
	{150, []int{3}},
}

const (
	highUtilization = 0.70
	highRiskTier    = 6
)

var (
	limitCap    = decimal.NewFromInt(3000)
	limitFloor  = decimal.NewFromInt(50)
	defaultCut  = decimal.RequireFromString("0.75")
	utilDefault = decimal.RequireFromString("0.85")
	utilBonus   = decimal.RequireFromString("1.20")
	employCut   = decimal.RequireFromString("0.20")
	highRiskCut = decimal.RequireFromString("0.10")
	hundred     = decimal.NewFromInt(100)
	decimalOne  = decimal.NewFromInt(1)
)

const (
	invalidScore = "invalid score"
	defaultFlag  = "Y"
)

// Applicant carries the non-model signals that adjust the base entitlement.
type Applicant struct {
	DefaultOnFile    string
	EmploymentStatus string
	UtilizationRatio float64
	UtilizationKnown bool
}

// Entitlements is the credit offer derived from a risk score.
type Entitlements struct {
	Tier        int             `json:"tier"`
	BaseLimit   decimal.Decimal `json:"base_limit"`
	Limit       decimal.Decimal `json:"limit"`
	Terms       []int           `json:"terms"`
	Adjustments []string        `json:"adjustments"`
	Error       string          `json:"error,omitempty"`
}

// MarshalJSON renders monetary amounts as numbers with two decimals, the
// same text the assessment store keeps.
func (e Entitlements) MarshalJSON() ([]byte, error) {
	type plain Entitlements
	return json.Marshal(struct {
		plain
		BaseLimit json.Number `json:"base_limit"`
		Limit     json.Number `json:"limit"`
	}{
		plain:     plain(e),
		BaseLimit: json.Number(e.BaseLimit.StringFixed(2)),
		Limit:     json.Number(e.Limit.StringFixed(2)),
	})
}

// TierFor maps a score in [0,1] to its tier (1 best, 7 worst).
func TierFor(score float64) int {
	for i, bound := range tierBounds {
		if score < bound {
			return i + 1
		}
	}
	return len(tiers)
}

// Entitle turns a risk score into a tier, limit and repayment terms, then
// applies the applicant adjustments. Invalid scores fall back to the worst
// tier without adjustments.
func Entitle(score float64, a Applicant) Entitlements {
	if math.IsNaN(score) || math.IsInf(score, 0) || score < 0 || score > 1 {
		worst := tiers[len(tiers)-1]
		return Entitlements{
			Tier:        len(tiers),
			BaseLimit:   decimal.NewFromInt(worst.limit),
			Limit:       decimal.NewFromInt(worst.limit),
			Terms:       append([]int(nil), worst.terms...),
			Adjustments: []string{},
			Error:       invalidScore,
		}
	}

	tier := TierFor(score)
	base := tiers[tier-1]
	limit := decimal.NewFromInt(base.limit)
	adjustments := []string{}

	hasDefault := a.DefaultOnFile == defaultFlag
	if hasDefault {
		limit = limit.Mul(defaultCut)
		adjustments = append(adjustments, "Default Flag (-25%)")
	}

	if !isEmployed(a.EmploymentStatus) {
		status := strings.ToUpper(strings.TrimSpace(a.EmploymentStatus))
		cut := employCut
		if tier >= highRiskTier {
			cut = cut.Add(highRiskCut)
			adjustments = append(adjustments, "Employment ("+status+") & High Risk Penalty (-"+cut.Mul(hundred).StringFixed(0)+"%)")
		} else {
			adjustments = append(adjustments, "Employment ("+status+") Penalty (-"+cut.Mul(hundred).StringFixed(0)+"%)")
		}
		limit = limit.Mul(decimalOne.Sub(cut))
	}

	if a.UtilizationKnown && a.UtilizationRatio > highUtilization {
		if hasDefault {
			limit = limit.Mul(utilDefault)
			adjustments = append(adjustments, "High Util & Default (-15%)")
		} else {
			limit = decimal.Min(limit.Mul(utilBonus), limitCap)
			if limit.Equal(limitCap) {
				adjustments = append(adjustments, "High Util Bonus (Hit Cap)")
			} else {
				adjustments = append(adjustments, "High Util Bonus (+20%)")
			}
		}
	}

	if limit.LessThan(limitFloor) {
		limit = limitFloor
		adjustments = append(adjustments, "Limit adjusted to Min ("+limitFloor.StringFixed(2)+")")
	}

	return Entitlements{
		Tier:        tier,
		BaseLimit:   decimal.NewFromInt(base.limit),
		Limit:       limit.Round(2),
		Terms:       append([]int(nil), base.terms...),
		Adjustments: adjustments,
	}
}

// isEmployed accepts both the stored statuses and the model categories.
func isEmployed(status string) bool {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "EMPLOYED", "SELF_EMPLOYED", "YES", "SELF-EMPLOYED":
		return true
	}
	return false
}
