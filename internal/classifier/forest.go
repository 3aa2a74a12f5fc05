package classifier

import (
	"fmt"
)

// leafNode marks a node without children.
const leafNode = -1

// Model maps a feature row to a class index.
type Model interface {
	Predict(features []float64) (int, error)
}

// Tree is one fitted decision tree in flat node-array form.
// Node i splits on Feature[i] at Threshold[i]; rows with a value at or
// below the threshold go to ChildrenLeft[i]. Value[i] holds per-class
// weights and is only read at leaves.
type Tree struct {
	ChildrenLeft  []int       `json:"children_left"`
	ChildrenRight []int       `json:"children_right"`
	Feature       []int       `json:"feature"`
	Threshold     []float64   `json:"threshold"`
	Value         [][]float64 `json:"value"`
}

// validate checks array lengths, child references and that every path ends in a leaf.
func (t *Tree) validate(nFeatures, nClasses int) error {
	n := len(t.ChildrenLeft)
	if n == 0 {
		return fmt.Errorf("tree has no nodes")
	}
	if len(t.ChildrenRight) != n || len(t.Feature) != n || len(t.Threshold) != n || len(t.Value) != n {
		return fmt.Errorf("node arrays differ in length")
	}

	for i := 0; i < n; i++ {
		left, right := t.ChildrenLeft[i], t.ChildrenRight[i]
		if left == leafNode || right == leafNode {
			if left != right {
				return fmt.Errorf("node %d has exactly one child", i)
			}
			if len(t.Value[i]) != nClasses {
				return fmt.Errorf("leaf %d has %d class weights, want %d", i, len(t.Value[i]), nClasses)
			}
			continue
		}
		// Children always follow their parent in a fitted tree, which also rules out cycles.
		if left <= i || left >= n || right <= i || right >= n {
			return fmt.Errorf("node %d has out of range children %d, %d", i, left, right)
		}
		if f := t.Feature[i]; f < 0 || f >= nFeatures {
			return fmt.Errorf("node %d splits on feature %d of %d", i, f, nFeatures)
		}
	}
	return nil
}

// leaf returns the class weights of the leaf that x falls into.
func (t *Tree) leaf(x []float64) []float64 {
	node := 0
	for t.ChildrenLeft[node] != leafNode {
		// Training stored features as float32; compare at that precision.
		if float64(float32(x[t.Feature[node]])) <= t.Threshold[node] {
			node = t.ChildrenLeft[node]
		} else {
			node = t.ChildrenRight[node]
		}
	}
	return t.Value[node]
}

// Forest is a random forest classifier. Its probability estimate is the mean
// of the per-tree normalized leaf weights; the prediction is the class with
// the highest mean, the first one on ties.
type Forest struct {
	trees     []Tree
	classes   []int
	nFeatures int
}

// NewForest builds a forest over trees predicting classes from nFeatures inputs.
func NewForest(trees []Tree, classes []int, nFeatures int) (*Forest, error) {
	if len(trees) == 0 {
		return nil, fmt.Errorf("%w: forest has no trees", ErrInvalidArtifact)
	}
	if len(classes) == 0 {
		return nil, fmt.Errorf("%w: forest has no classes", ErrInvalidArtifact)
	}
	if nFeatures <= 0 {
		return nil, fmt.Errorf("%w: forest has no features", ErrInvalidArtifact)
	}
	for i := range trees {
		if err := trees[i].validate(nFeatures, len(classes)); err != nil {
			return nil, fmt.Errorf("%w: tree %d: %v", ErrInvalidArtifact, i, err)
		}
	}

	return &Forest{trees: trees, classes: classes, nFeatures: nFeatures}, nil
}

// NumTrees returns the ensemble size.
func (f *Forest) NumTrees() int {
	return len(f.trees)
}

// Probabilities returns the mean class distribution for x, indexed like the class list.
func (f *Forest) Probabilities(x []float64) ([]float64, error) {
	if len(x) != f.nFeatures {
		return nil, fmt.Errorf("%w: got %d features, want %d", ErrFeatureMismatch, len(x), f.nFeatures)
	}

	proba := make([]float64, len(f.classes))
	for i := range f.trees {
		weights := f.trees[i].leaf(x)

		var total float64
		for _, w := range weights {
			total += w
		}
		if total == 0 {
			continue
		}
		for c, w := range weights {
			proba[c] += w / total
		}
	}

	n := float64(len(f.trees))
	for c := range proba {
		proba[c] /= n
	}
	return proba, nil
}

// Predict returns the class with the highest mean probability.
func (f *Forest) Predict(x []float64) (int, error) {
	proba, err := f.Probabilities(x)
	if err != nil {
		return 0, err
	}

	best := 0
	for c := 1; c < len(proba); c++ {
		if proba[c] > proba[best] {
			best = c
		}
	}
	return f.classes[best], nil
}

// Ensure Forest implements Model
var _ Model = (*Forest)(nil)
