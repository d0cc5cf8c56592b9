package model

import (
	"fmt"
	"math"
	"strings"

	"credit-risk/backend/internal/features"
)

type step interface {
	names() []string
	apply(rec features.Record, out []float64) error
}

type columnTransformer struct {
	steps []step
	width int
}

func (ct *columnTransformer) transform(rec features.Record) ([]float64, error) {
	out := make([]float64, ct.width)
	offset := 0
	for _, s := range ct.steps {
		n := len(s.names())
		if err := s.apply(rec, out[offset:offset+n]); err != nil {
			return nil, err
		}
		offset += n
	}
	return out, nil
}

func (ct *columnTransformer) featureNames() []string {
	out := make([]string, 0, ct.width)
	for _, s := range ct.steps {
		out = append(out, s.names()...)
	}
	return out
}

func compilePreprocessor(inputs []string, spec PreprocessorSpec) (*columnTransformer, error) {
	if len(spec.Transformers) == 0 {
		return nil, invalidf("preprocessor has no transformers")
	}
	position := make(map[string]int, len(inputs))
	for i, c := range inputs {
		position[c] = i
	}

	ct := &columnTransformer{}
	used := make(map[string]bool)
	seenNames := make(map[string]bool)
	for _, t := range spec.Transformers {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			return nil, invalidf("transformer without name")
		}
		if seenNames[name] {
			return nil, invalidf("duplicate transformer %q", name)
		}
		seenNames[name] = true
		if len(t.Columns) == 0 {
			return nil, invalidf("transformer %q has no columns", name)
		}
		idx := make([]int, len(t.Columns))
		for i, c := range t.Columns {
			p, ok := position[c]
			if !ok {
				return nil, invalidf("transformer %q references unknown column %q", name, c)
			}
			if used[c] {
				return nil, invalidf("column %q assigned to more than one transformer", c)
			}
			used[c] = true
			idx[i] = p
		}

		var (
			s   step
			err error
		)
		switch strings.ToLower(t.Kind) {
		case kindMinMax:
			s, err = newMinMax(name, t, idx)
		case kindOneHot:
			s, err = newOneHot(name, t, idx)
		default:
			err = invalidf("transformer %q has unsupported kind %q", name, t.Kind)
		}
		if err != nil {
			return nil, err
		}
		ct.steps = append(ct.steps, s)
	}

	switch strings.ToLower(strings.TrimSpace(spec.Remainder)) {
	case remainderPassthrough:
		var rest []int
		for i, c := range inputs {
			if !used[c] {
				rest = append(rest, i)
			}
		}
		if len(rest) > 0 {
			ct.steps = append(ct.steps, newPassthrough(rest, inputs))
		}
	case "", remainderDrop:
	default:
		return nil, invalidf("unsupported remainder %q", spec.Remainder)
	}

	for _, s := range ct.steps {
		ct.width += len(s.names())
	}
	return ct, nil
}

// minMax scales numeric columns into FeatureRange using the fitted extrema.
type minMax struct {
	cols      []int
	labels    []string
	scale     []float64
	min       []float64
	clipLo    float64
	clipHi    float64
	clip      bool
	inputName []string
}

func newMinMax(name string, t TransformerSpec, idx []int) (*minMax, error) {
	n := len(t.Columns)
	if len(t.DataMin) != n || len(t.DataMax) != n {
		return nil, invalidf("transformer %q: data_min/data_max must have %d entries", name, n)
	}
	lo, hi := t.FeatureRange[0], t.FeatureRange[1]
	if lo == 0 && hi == 0 {
		hi = 1
	}
	if lo >= hi {
		return nil, invalidf("transformer %q: feature_range minimum must be smaller than maximum", name)
	}
	m := &minMax{
		cols:      idx,
		labels:    make([]string, n),
		scale:     make([]float64, n),
		min:       make([]float64, n),
		clipLo:    lo,
		clipHi:    hi,
		clip:      t.Clip,
		inputName: t.Columns,
	}
	for i, c := range t.Columns {
		if features.IsCategorical(c) {
			return nil, invalidf("transformer %q: column %q is categorical", name, c)
		}
		span := t.DataMax[i] - t.DataMin[i]
		if span == 0 || math.IsNaN(span) {
			span = 1
		}
		m.scale[i] = (hi - lo) / span
		m.min[i] = lo - t.DataMin[i]*m.scale[i]
		m.labels[i] = name + "__" + c
	}
	return m, nil
}

func (m *minMax) names() []string { return m.labels }

func (m *minMax) apply(rec features.Record, out []float64) error {
	for i, col := range m.cols {
		v := rec.At(col)
		if v.Kind == features.Categorical {
			return fmt.Errorf("could not convert string to float: %q (column %s)", v.Str, m.inputName[i])
		}
		x := v.Float()
		if math.IsNaN(x) {
			out[i] = x
			continue
		}
		x = x*m.scale[i] + m.min[i]
		if m.clip {
			x = math.Max(m.clipLo, math.Min(m.clipHi, x))
		}
		out[i] = x
	}
	return nil
}

// oneHot expands categorical columns into indicator features.
type oneHot struct {
	cols       []int
	inputName  []string
	categories []map[string]int
	offsets    []int
	labels     []string
	ignore     bool
}

func newOneHot(name string, t TransformerSpec, idx []int) (*oneHot, error) {
	if len(t.Categories) != len(t.Columns) {
		return nil, invalidf("transformer %q: categories must have %d entries", name, len(t.Columns))
	}
	h := &oneHot{
		cols:      idx,
		inputName: t.Columns,
	}
	switch strings.ToLower(t.HandleUnknown) {
	case "", unknownError:
	case unknownIgnore:
		h.ignore = true
	default:
		return nil, invalidf("transformer %q: unsupported handle_unknown %q", name, t.HandleUnknown)
	}
	offset := 0
	for i, c := range t.Columns {
		if !features.IsCategorical(c) {
			return nil, invalidf("transformer %q: column %q is numeric", name, c)
		}
		cats := t.Categories[i]
		if len(cats) == 0 {
			return nil, invalidf("transformer %q: column %q has no categories", name, c)
		}
		lookup := make(map[string]int, len(cats))
		for j, cat := range cats {
			if _, dup := lookup[cat]; dup {
				return nil, invalidf("transformer %q: duplicate category %q for %q", name, cat, c)
			}
			lookup[cat] = j
			h.labels = append(h.labels, name+"__"+c+"_"+cat)
		}
		h.categories = append(h.categories, lookup)
		h.offsets = append(h.offsets, offset)
		offset += len(cats)
	}
	return h, nil
}

func (h *oneHot) names() []string { return h.labels }

func (h *oneHot) apply(rec features.Record, out []float64) error {
	for i, col := range h.cols {
		v := rec.At(col)
		j, ok := -1, false
		if v.Kind == features.Categorical {
			j, ok = h.categories[i][v.Str]
		}
		if !ok {
			if h.ignore {
				continue
			}
			return fmt.Errorf("found unknown category %s during transform (column %s)", v.String(), h.inputName[i])
		}
		out[h.offsets[i]+j] = 1
	}
	return nil
}

// passthrough forwards untouched numeric columns.
type passthrough struct {
	cols   []int
	inputs []string
	labels []string
}

func newPassthrough(cols []int, inputs []string) *passthrough {
	p := &passthrough{cols: cols, inputs: inputs, labels: make([]string, len(cols))}
	for i, c := range cols {
		p.labels[i] = "remainder__" + inputs[c]
	}
	return p
}

func (p *passthrough) names() []string { return p.labels }

func (p *passthrough) apply(rec features.Record, out []float64) error {
	for i, col := range p.cols {
		v := rec.At(col)
		if v.Kind == features.Categorical {
			return fmt.Errorf("could not convert string to float: %q (column %s)", v.Str, p.inputs[col])
		}
		out[i] = v.Float()
	}
	return nil
}
