package model

import (
	"errors"
	"fmt"

	"credit-risk/backend/internal/features"
)

// Pipeline is a loaded, immutable preprocessing + classification chain.
// It is safe for concurrent use.
type Pipeline struct {
	name     string
	columns  []string
	pre      *columnTransformer
	forest   *forest
	metadata map[string]string
}

// Summary describes a pipeline for diagnostics.
type Summary struct {
	Name         string            `json:"name" yaml:"name"`
	InputColumns []string          `json:"input_columns" yaml:"input_columns"`
	FeatureNames []string          `json:"feature_names" yaml:"feature_names"`
	Classes      []int             `json:"classes" yaml:"classes"`
	Trees        int               `json:"trees" yaml:"trees"`
	Metadata     map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Name returns the artifact name.
func (p *Pipeline) Name() string { return p.name }

// InputColumns returns the columns the pipeline was fitted on, in order.
func (p *Pipeline) InputColumns() []string {
	return append([]string(nil), p.columns...)
}

// Classes returns the class labels in probability-vector order.
func (p *Pipeline) Classes() []int {
	return append([]int(nil), p.forest.classes...)
}

// TreeCount returns the number of estimators in the ensemble.
func (p *Pipeline) TreeCount() int { return len(p.forest.trees) }

// FeatureNames returns the encoded feature names fed to the classifier.
func (p *Pipeline) FeatureNames() ([]string, error) {
	if p == nil || p.pre == nil {
		return nil, errors.New("pipeline has no preprocessor")
	}
	names := p.pre.featureNames()
	if len(names) != p.forest.width {
		return nil, fmt.Errorf("preprocessor yields %d names for %d features", len(names), p.forest.width)
	}
	return names, nil
}

// Summary reports the pipeline layout. Feature names are left empty when
// they cannot be determined.
func (p *Pipeline) Summary() Summary {
	names, _ := p.FeatureNames()
	var meta map[string]string
	if len(p.metadata) > 0 {
		meta = make(map[string]string, len(p.metadata))
		for k, v := range p.metadata {
			meta[k] = v
		}
	}
	return Summary{
		Name:         p.name,
		InputColumns: p.InputColumns(),
		FeatureNames: names,
		Classes:      p.Classes(),
		Trees:        p.TreeCount(),
		Metadata:     meta,
	}
}

// Transform runs the preprocessor over a single record.
func (p *Pipeline) Transform(rec features.Record) ([]float64, error) {
	return p.pre.transform(rec)
}

// PredictProba returns one class-probability vector per record, ordered as
// Classes().
func (p *Pipeline) PredictProba(records []features.Record) ([][]float64, error) {
	out := make([][]float64, len(records))
	for i, rec := range records {
		x, err := p.pre.transform(rec)
		if err != nil {
			return nil, fmt.Errorf("transform row %d: %w", i, err)
		}
		proba, err := p.forest.predictProba(x)
		if err != nil {
			return nil, fmt.Errorf("predict row %d: %w", i, err)
		}
		out[i] = proba
	}
	return out, nil
}
