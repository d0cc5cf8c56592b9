package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "assessments.db"), true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSaveAndGetAssessment(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Ping())

	a := &Assessment{
		ApplicantID: "  applicant-1 ",
		ModelName:   "credit_model_v2",
		RiskScore:   0.1234,
		Tier:        1,
		BaseLimit:   "2500",
		CreditLimit: "2500",
	}
	a.SetTerms([]int{3, 6, 12})
	a.SetAdjustments(nil)
	a.SetMissing([]string{"loan_term"})
	require.NoError(t, a.SetFeatures(map[string]any{"loan_term": nil, "employment_status": "Yes"}))
	require.NoError(t, db.SaveAssessment(a))

	require.NotZero(t, a.ID)
	require.Len(t, a.PublicID, 36)
	assert.Equal(t, "applicant-1", a.ApplicantID)

	got, err := db.GetAssessment(a.PublicID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.InDelta(t, 0.1234, got.RiskScore, 1e-12)
	assert.Equal(t, []int{3, 6, 12}, got.Terms())
	assert.Empty(t, got.Adjustments())
	assert.Equal(t, []string{"loan_term"}, got.Missing())
	assert.Equal(t, "Yes", got.Features()["employment_status"])
	assert.False(t, got.CreatedAt.IsZero())
}

func TestGetAssessmentNotFound(t *testing.T) {
	db := openTestDB(t)
	_, err := db.GetAssessment("00000000-0000-0000-0000-000000000000")
	require.Error(t, err)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestListAssessments(t *testing.T) {
	db := openTestDB(t)
	for i, applicant := range []string{"a", "b", "a", "a"} {
		a := &Assessment{ApplicantID: applicant, RiskScore: float64(i) / 10, Tier: i%2 + 1}
		require.NoError(t, db.SaveAssessment(a))
	}

	rows, total, err := db.ListAssessments(AssessmentQuery{Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	require.Len(t, rows, 2)
	assert.Greater(t, rows[0].ID, rows[1].ID)

	rows, total, err = db.ListAssessments(AssessmentQuery{ApplicantID: "a"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, rows, 3)

	rows, total, err = db.ListAssessments(AssessmentQuery{Tier: 2, Offset: 1, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, rows, 1)

	count, err := db.CountAssessments()
	require.NoError(t, err)
	assert.EqualValues(t, 4, count)
}

func TestSaveAssessmentNil(t *testing.T) {
	db := openTestDB(t)
	assert.Error(t, db.SaveAssessment(nil))
}
