package model

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"credit-risk/backend/internal/features"
)

// FormatVersion is the artifact layout this package understands.
const FormatVersion = 1

// ErrInvalidArtifact is returned when an artifact decodes but does not
// describe a usable pipeline.
var ErrInvalidArtifact = errors.New("invalid pipeline artifact")

// Artifact is the on-disk description of a fitted preprocessing + classifier
// pipeline, as exported by the training job.
type Artifact struct {
	FormatVersion int              `json:"format_version"`
	Name          string           `json:"name"`
	InputColumns  []string         `json:"input_columns"`
	Preprocessor  PreprocessorSpec `json:"preprocessor"`
	Classifier    ClassifierSpec   `json:"classifier"`
	// Metadata carries free-form training details (dataset, metrics).
	Metadata map[string]string `json:"metadata,omitempty"`
}

// PreprocessorSpec mirrors a fitted column transformer.
type PreprocessorSpec struct {
	Transformers []TransformerSpec `json:"transformers"`
	// Remainder is "passthrough" or "drop"; empty means drop.
	Remainder string `json:"remainder"`
}

// TransformerSpec is one named step of the column transformer.
type TransformerSpec struct {
	Name    string   `json:"name"`
	Kind    string   `json:"kind"`
	Columns []string `json:"columns"`

	// minmax
	DataMin      []float64  `json:"data_min,omitempty"`
	DataMax      []float64  `json:"data_max,omitempty"`
	FeatureRange [2]float64 `json:"feature_range,omitempty"`
	Clip         bool       `json:"clip,omitempty"`

	// onehot
	Categories    [][]string `json:"categories,omitempty"`
	HandleUnknown string     `json:"handle_unknown,omitempty"`
}

// ClassifierSpec describes a fitted tree ensemble.
type ClassifierSpec struct {
	Kind      string     `json:"kind"`
	Classes   []int      `json:"classes"`
	NFeatures int        `json:"n_features"`
	Trees     []TreeSpec `json:"trees"`
}

// TreeSpec is a flattened decision tree; node 0 is the root.
type TreeSpec struct {
	Nodes []NodeSpec `json:"nodes"`
}

// NodeSpec is one tree node. Leaves have Left == Right == -1.
type NodeSpec struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      int       `json:"left"`
	Right     int       `json:"right"`
	Samples   float64   `json:"n_node_samples"`
	Value     []float64 `json:"value,omitempty"`
	// MissingLeft routes NaN inputs; nil sends them to the child that saw
	// more training samples.
	MissingLeft *bool `json:"missing_go_to_left,omitempty"`
}

const (
	kindMinMax       = "minmax"
	kindOneHot       = "onehot"
	kindRandomForest = "random_forest"
	kindDecisionTree = "decision_tree"

	remainderPassthrough = "passthrough"
	remainderDrop        = "drop"

	unknownIgnore = "ignore"
	unknownError  = "error"

	leaf = -1
)

// Load reads and validates the artifact at path and returns a ready pipeline.
// Paths ending in .gz are decompressed.
func Load(path string) (*Pipeline, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("open gzip artifact: %w", err)
		}
		defer zr.Close()
		r = zr
	}
	return Decode(r)
}

// Decode parses an artifact from r and builds the pipeline.
func Decode(r io.Reader) (*Pipeline, error) {
	var art Artifact
	if err := json.NewDecoder(r).Decode(&art); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	return New(art)
}

// New validates art and compiles it into a Pipeline.
func New(art Artifact) (*Pipeline, error) {
	if art.FormatVersion != FormatVersion {
		return nil, invalidf("format_version %d not supported", art.FormatVersion)
	}
	if err := checkColumns(art.InputColumns); err != nil {
		return nil, err
	}
	pre, err := compilePreprocessor(art.InputColumns, art.Preprocessor)
	if err != nil {
		return nil, err
	}
	clf, err := compileForest(art.Classifier, pre.width)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(art.Name)
	if name == "" {
		name = "pipeline"
	}
	return &Pipeline{
		name:     name,
		columns:  append([]string(nil), art.InputColumns...),
		pre:      pre,
		forest:   clf,
		metadata: art.Metadata,
	}, nil
}

func checkColumns(cols []string) error {
	expected := features.Columns()
	if len(cols) != len(expected) {
		return invalidf("expected %d input columns, got %d", len(expected), len(cols))
	}
	for i := range expected {
		if cols[i] != expected[i] {
			return invalidf("input column %d is %q, expected %q", i, cols[i], expected[i])
		}
	}
	return nil
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArtifact, fmt.Sprintf(format, args...))
}
