package model

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credit-risk/backend/internal/features"
)

const fixturePath = "testdata/credit_model_v2.json"

func fixtureArtifact(t *testing.T) Artifact {
	t.Helper()
	data, err := os.ReadFile(fixturePath)
	require.NoError(t, err)
	var art Artifact
	require.NoError(t, json.Unmarshal(data, &art))
	return art
}

func scenarioInput() map[string]any {
	return map[string]any{
		"employment_status":          "Yes",
		"credit_utilization_ratio":   0.3,
		"payment_history":            1.0,
		"original_loan_amount":       5000.0,
		"loan_term":                  36.0,
		"person_income":              60000.0,
		"loan_amnt":                  5000.0,
		"loan_percent_income":        0.08,
		"cb_person_default_on_file":  "N",
		"cb_person_cred_hist_length": 4.0,
	}
}

func scenarioRecord(t *testing.T) features.Record {
	t.Helper()
	return scenarioWith(t, nil)
}

// scenarioWith assembles the scenario input with some fields replaced.
func scenarioWith(t *testing.T, overrides map[string]any) features.Record {
	t.Helper()
	input := scenarioInput()
	for k, v := range overrides {
		input[k] = v
	}
	rec, err := features.Assemble(input)
	require.NoError(t, err)
	return rec
}

func TestLoadFixture(t *testing.T) {
	p, err := Load(fixturePath)
	require.NoError(t, err)

	assert.Equal(t, "credit_model_v2", p.Name())
	assert.Equal(t, features.Columns(), p.InputColumns())
	assert.Equal(t, []int{0, 1}, p.Classes())
	assert.Equal(t, 3, p.TreeCount())

	names, err := p.FeatureNames()
	require.NoError(t, err)
	require.Len(t, names, 13)
	assert.Equal(t, "num__credit_utilization_ratio", names[0])
	assert.Equal(t, "num__cb_person_cred_hist_length", names[7])
	assert.Equal(t, "cat__employment_status_Yes", names[10])
	assert.Equal(t, "cat__cb_person_default_on_file_Y", names[12])

	summary := p.Summary()
	assert.Equal(t, names, summary.FeatureNames)
	assert.Equal(t, "merged_credit_data_v2.csv", summary.Metadata["trained_on"])
}

func TestPredictProbaScenario(t *testing.T) {
	p, err := Load(fixturePath)
	require.NoError(t, err)

	out, err := p.PredictProba([]features.Record{scenarioRecord(t)})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Len(t, out[0], 2)

	expected := (60.0/760 + 100.0/700 + 80.0/600) / 3
	assert.InDelta(t, expected, out[0][1], 1e-12)
	assert.InDelta(t, 1, out[0][0]+out[0][1], 1e-12)
}

func TestPredictProbaMissingValues(t *testing.T) {
	p, err := Load(fixturePath)
	require.NoError(t, err)

	var empty features.Record
	out, err := p.PredictProba([]features.Record{empty})
	require.NoError(t, err)

	// NaN routing: tree 0 follows the larger child (left), tree 1 the larger
	// child (right); one-hot emits zeros so tree 2 goes left.
	expected := (60.0/760 + 100.0/700 + 150.0/400) / 3
	assert.InDelta(t, expected, out[0][1], 1e-12)
}

func TestPredictProbaUnknownCategoryIgnored(t *testing.T) {
	p, err := Load(fixturePath)
	require.NoError(t, err)

	rec := scenarioWith(t, map[string]any{features.EmploymentStatus: "Retired"})

	x, err := p.Transform(rec)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, x[8:11])

	out, err := p.PredictProba([]features.Record{rec})
	require.NoError(t, err)
	expected := (60.0/760 + 100.0/700 + 150.0/400) / 3
	assert.InDelta(t, expected, out[0][1], 1e-12)
}

func TestTransformScaling(t *testing.T) {
	p, err := Load(fixturePath)
	require.NoError(t, err)

	x, err := p.Transform(scenarioRecord(t))
	require.NoError(t, err)
	require.Len(t, x, 13)
	assert.InDelta(t, 0.3, x[0], 1e-12)
	assert.InDelta(t, 0.5, x[3], 1e-12)
	assert.InDelta(t, 56000.0/596000, x[4], 1e-12)
	assert.Equal(t, []float64{0, 0, 1, 1, 0}, x[8:])
}

func TestMinMaxClipAndZeroSpan(t *testing.T) {
	art := fixtureArtifact(t)
	num := &art.Preprocessor.Transformers[0]
	num.Clip = true
	num.DataMin[3], num.DataMax[3] = 36, 36

	p, err := New(art)
	require.NoError(t, err)

	rec := scenarioWith(t, map[string]any{features.CreditUtilizationRatio: 4.0})
	x, err := p.Transform(rec)
	require.NoError(t, err)
	assert.Equal(t, 1.0, x[0])
	assert.Equal(t, 0.0, x[3])
}

func TestLoadGzip(t *testing.T) {
	data, err := os.ReadFile(fixturePath)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "model.json.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := gzip.NewWriter(f)
	_, err = zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, p.TreeCount())
}

func TestLoadFailures(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "absent.json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)

	corrupt := filepath.Join(dir, "corrupt.json")
	require.NoError(t, os.WriteFile(corrupt, []byte("{not json"), 0o600))
	_, err = Load(corrupt)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidArtifact)
}

func TestNewRejectsInvalidArtifacts(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(a *Artifact)
	}{
		{"format version", func(a *Artifact) { a.FormatVersion = 2 }},
		{"column order", func(a *Artifact) {
			a.InputColumns[0], a.InputColumns[1] = a.InputColumns[1], a.InputColumns[0]
		}},
		{"missing column", func(a *Artifact) { a.InputColumns = a.InputColumns[:9] }},
		{"no transformers", func(a *Artifact) { a.Preprocessor.Transformers = nil }},
		{"unknown transformer kind", func(a *Artifact) { a.Preprocessor.Transformers[0].Kind = "standard" }},
		{"unknown column", func(a *Artifact) { a.Preprocessor.Transformers[0].Columns[0] = "age" }},
		{"data_min length", func(a *Artifact) {
			a.Preprocessor.Transformers[0].DataMin = a.Preprocessor.Transformers[0].DataMin[:3]
		}},
		{"categorical scaled", func(a *Artifact) {
			a.Preprocessor.Transformers[0].Columns[0] = "employment_status"
			a.Preprocessor.Transformers[1].Columns[0] = "credit_utilization_ratio"
		}},
		{"duplicate category", func(a *Artifact) {
			a.Preprocessor.Transformers[1].Categories[1] = []string{"N", "N"}
		}},
		{"bad remainder", func(a *Artifact) { a.Preprocessor.Remainder = "scale" }},
		{"classifier kind", func(a *Artifact) { a.Classifier.Kind = "svm" }},
		{"classes", func(a *Artifact) { a.Classifier.Classes = []int{1, 0} }},
		{"width mismatch", func(a *Artifact) { a.Classifier.NFeatures = 12 }},
		{"no trees", func(a *Artifact) { a.Classifier.Trees = nil }},
		{"child out of range", func(a *Artifact) { a.Classifier.Trees[0].Nodes[0].Right = 9 }},
		{"child points back", func(a *Artifact) { a.Classifier.Trees[0].Nodes[1].Left = 0 }},
		{"feature out of range", func(a *Artifact) { a.Classifier.Trees[1].Nodes[0].Feature = 13 }},
		{"leaf value length", func(a *Artifact) { a.Classifier.Trees[2].Nodes[1].Value = []float64{1} }},
		{"leaf value zero", func(a *Artifact) { a.Classifier.Trees[2].Nodes[1].Value = []float64{0, 0} }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			art := fixtureArtifact(t)
			tc.mutate(&art)
			_, err := New(art)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidArtifact)
		})
	}
}

func TestPredictProbaConcurrent(t *testing.T) {
	p, err := Load(fixturePath)
	require.NoError(t, err)
	rec := scenarioRecord(t)

	first, err := p.PredictProba([]features.Record{rec})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := p.PredictProba([]features.Record{rec})
			assert.NoError(t, err)
			assert.Equal(t, first, out)
		}()
	}
	wg.Wait()
}
