package model

import (
	"fmt"
	"math"
	"strings"
)

type node struct {
	feature     int
	threshold   float64
	left, right int
	missingLeft bool
	proba       []float64
}

type tree struct {
	nodes []node
}

type forest struct {
	classes []int
	trees   []tree
	width   int
}

func compileForest(spec ClassifierSpec, width int) (*forest, error) {
	kind := strings.ToLower(strings.TrimSpace(spec.Kind))
	if kind != kindRandomForest && kind != kindDecisionTree {
		return nil, invalidf("unsupported classifier kind %q", spec.Kind)
	}
	if len(spec.Classes) != 2 || spec.Classes[0] != 0 || spec.Classes[1] != 1 {
		return nil, invalidf("classifier classes must be [0 1], got %v", spec.Classes)
	}
	if spec.NFeatures != width {
		return nil, invalidf("classifier expects %d features, preprocessor produces %d", spec.NFeatures, width)
	}
	if len(spec.Trees) == 0 {
		return nil, invalidf("classifier has no trees")
	}
	if kind == kindDecisionTree && len(spec.Trees) != 1 {
		return nil, invalidf("decision_tree must carry exactly one tree, got %d", len(spec.Trees))
	}

	f := &forest{
		classes: append([]int(nil), spec.Classes...),
		trees:   make([]tree, len(spec.Trees)),
		width:   width,
	}
	for i, ts := range spec.Trees {
		t, err := compileTree(ts, width, len(spec.Classes))
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		f.trees[i] = t
	}
	return f, nil
}

func compileTree(spec TreeSpec, width, nClasses int) (tree, error) {
	n := len(spec.Nodes)
	if n == 0 {
		return tree{}, invalidf("tree has no nodes")
	}
	t := tree{nodes: make([]node, n)}
	for i, ns := range spec.Nodes {
		if ns.Left == leaf || ns.Right == leaf {
			if ns.Left != ns.Right {
				return tree{}, invalidf("node %d has a single child", i)
			}
			proba, err := leafProba(ns.Value, nClasses)
			if err != nil {
				return tree{}, invalidf("node %d: %v", i, err)
			}
			t.nodes[i] = node{left: leaf, right: leaf, proba: proba}
			continue
		}
		// Children always follow their parent in depth-first order, which
		// also rules out cycles.
		if ns.Left <= i || ns.Left >= n || ns.Right <= i || ns.Right >= n {
			return tree{}, invalidf("node %d has out-of-range children %d/%d", i, ns.Left, ns.Right)
		}
		if ns.Feature < 0 || ns.Feature >= width {
			return tree{}, invalidf("node %d splits on feature %d outside [0,%d)", i, ns.Feature, width)
		}
		if math.IsNaN(ns.Threshold) {
			return tree{}, invalidf("node %d has NaN threshold", i)
		}
		missingLeft := spec.Nodes[ns.Left].Samples >= spec.Nodes[ns.Right].Samples
		if ns.MissingLeft != nil {
			missingLeft = *ns.MissingLeft
		}
		t.nodes[i] = node{
			feature:     ns.Feature,
			threshold:   ns.Threshold,
			left:        ns.Left,
			right:       ns.Right,
			missingLeft: missingLeft,
		}
	}
	return t, nil
}

func leafProba(value []float64, nClasses int) ([]float64, error) {
	if len(value) != nClasses {
		return nil, fmt.Errorf("leaf value has %d entries, want %d", len(value), nClasses)
	}
	total := 0.0
	for _, v := range value {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("leaf value %v is not a non-negative count", value)
		}
		total += v
	}
	if total == 0 {
		return nil, fmt.Errorf("leaf value sums to zero")
	}
	out := make([]float64, nClasses)
	for i, v := range value {
		out[i] = v / total
	}
	return out, nil
}

func (t tree) leaf(x []float64) []float64 {
	i := 0
	for {
		nd := &t.nodes[i]
		if nd.left == leaf {
			return nd.proba
		}
		v := x[nd.feature]
		switch {
		case math.IsNaN(v):
			if nd.missingLeft {
				i = nd.left
			} else {
				i = nd.right
			}
		case v <= nd.threshold:
			i = nd.left
		default:
			i = nd.right
		}
	}
}

// predictProba averages the per-tree class distributions.
func (f *forest) predictProba(x []float64) ([]float64, error) {
	if len(x) != f.width {
		return nil, fmt.Errorf("X has %d features, but classifier is expecting %d features as input", len(x), f.width)
	}
	out := make([]float64, len(f.classes))
	for _, t := range f.trees {
		for c, p := range t.leaf(x) {
			out[c] += p
		}
	}
	n := float64(len(f.trees))
	for c := range out {
		out[c] /= n
	}
	return out, nil
}
