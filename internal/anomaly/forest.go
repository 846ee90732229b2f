package anomaly

import (
	"math"
	"math/rand"
)

const eulerGamma = 0.5772156649

// node is one split (or leaf) of an isolation tree.
type node struct {
	feature int
	split   float64
	left    *node
	right   *node
	size    int
	leaf    bool
}

// Forest is an isolation forest over dense feature rows. Points that are
// separated from the rest in fewer random splits score closer to 1.
type Forest struct {
	trees      []*node
	numTrees   int
	sampleSize int
	psi        int
	maxDepth   int
	rng        *rand.Rand
}

// NewForest creates an untrained forest. The seed makes training reproducible.
func NewForest(numTrees, sampleSize int, seed int64) *Forest {
	if numTrees <= 0 {
		numTrees = DefaultTrees
	}
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	return &Forest{
		numTrees:   numTrees,
		sampleSize: sampleSize,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// Fit grows numTrees trees, each on a random sub-sample of data.
func (f *Forest) Fit(data [][]float64) {
	f.trees = f.trees[:0]
	if len(data) == 0 {
		return
	}

	f.psi = f.sampleSize
	if f.psi > len(data) {
		f.psi = len(data)
	}
	f.maxDepth = int(math.Ceil(math.Log2(float64(f.psi))))
	if f.maxDepth < 1 {
		f.maxDepth = 1
	}

	for i := 0; i < f.numTrees; i++ {
		f.trees = append(f.trees, f.grow(f.subsample(data), 0))
	}
}

// Trained reports whether Fit produced any trees.
func (f *Forest) Trained() bool {
	return len(f.trees) > 0
}

// Score returns the isolation score of point in (0, 1]. An untrained forest
// returns 0.5, the score of a point with average path length.
func (f *Forest) Score(point []float64) float64 {
	if !f.Trained() {
		return 0.5
	}
	var total float64
	for _, t := range f.trees {
		total += pathLength(t, point, 0)
	}
	avg := total / float64(len(f.trees))

	c := averagePathLength(f.psi)
	if c == 0 {
		return 0.5
	}
	return math.Pow(2, -avg/c)
}

// subsample draws psi rows without replacement (partial Fisher-Yates).
func (f *Forest) subsample(data [][]float64) [][]float64 {
	idx := make([]int, len(data))
	for i := range idx {
		idx[i] = i
	}
	out := make([][]float64, f.psi)
	for i := 0; i < f.psi; i++ {
		j := i + f.rng.Intn(len(idx)-i)
		idx[i], idx[j] = idx[j], idx[i]
		out[i] = data[idx[i]]
	}
	return out
}

func (f *Forest) grow(data [][]float64, depth int) *node {
	if len(data) <= 1 || depth >= f.maxDepth {
		return &node{size: len(data), leaf: true}
	}

	// Only split on features that still vary inside this partition.
	dims := len(data[0])
	candidates := make([]int, 0, dims)
	for d := 0; d < dims; d++ {
		lo, hi := featureRange(data, d)
		if hi > lo {
			candidates = append(candidates, d)
		}
	}
	if len(candidates) == 0 {
		return &node{size: len(data), leaf: true}
	}

	feature := candidates[f.rng.Intn(len(candidates))]
	lo, hi := featureRange(data, feature)
	split := lo + f.rng.Float64()*(hi-lo)

	var left, right [][]float64
	for _, row := range data {
		if row[feature] < split {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &node{size: len(data), leaf: true}
	}

	return &node{
		feature: feature,
		split:   split,
		left:    f.grow(left, depth+1),
		right:   f.grow(right, depth+1),
		size:    len(data),
	}
}

func featureRange(data [][]float64, feature int) (lo, hi float64) {
	lo, hi = data[0][feature], data[0][feature]
	for _, row := range data[1:] {
		v := row[feature]
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

func pathLength(n *node, point []float64, depth int) float64 {
	if n.leaf {
		return float64(depth) + averagePathLength(n.size)
	}
	if n.feature < len(point) && point[n.feature] < n.split {
		return pathLength(n.left, point, depth+1)
	}
	return pathLength(n.right, point, depth+1)
}

// averagePathLength is c(n), the mean path length of an unsuccessful
// binary search tree lookup over n points.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	default:
		h := math.Log(float64(n-1)) + eulerGamma
		return 2*h - 2*float64(n-1)/float64(n)
	}
}
