package services

import (
	"math"
	"sort"
)

// regressionTree is a CART regressor grown by greatest squared-error reduction.
type regressionTree struct {
	root *treeNode
}

type treeNode struct {
	feature   int
	threshold float64
	value     float64
	left      *treeNode
	right     *treeNode
}

func (n *treeNode) leaf() bool {
	return n.left == nil
}

// treeParams bounds tree growth.
type treeParams struct {
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
}

// fitRegressionTree grows a tree on the rows of x selected by idx.
// idx may contain repeats, which is how bootstrap samples are expressed.
func fitRegressionTree(x [][]float64, y []float64, idx []int, params treeParams) *regressionTree {
	if params.minSamplesSplit < 2 {
		params.minSamplesSplit = 2
	}
	if params.minSamplesLeaf < 1 {
		params.minSamplesLeaf = 1
	}
	return &regressionTree{root: growNode(x, y, idx, 0, params)}
}

func growNode(x [][]float64, y []float64, idx []int, depth int, params treeParams) *treeNode {
	node := &treeNode{value: meanAt(y, idx)}
	if depth >= params.maxDepth || len(idx) < params.minSamplesSplit {
		return node
	}

	feature, threshold, ok := bestSplit(x, y, idx, params.minSamplesLeaf)
	if !ok {
		return node
	}

	var left, right []int
	for _, i := range idx {
		if x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	node.feature = feature
	node.threshold = threshold
	node.left = growNode(x, y, left, depth+1, params)
	node.right = growNode(x, y, right, depth+1, params)
	return node
}

// bestSplit scans every feature for the midpoint threshold minimizing the
// summed squared error of the two children.
func bestSplit(x [][]float64, y []float64, idx []int, minLeaf int) (int, float64, bool) {
	n := len(idx)
	total, totalSq := 0.0, 0.0
	for _, i := range idx {
		total += y[i]
		totalSq += y[i] * y[i]
	}
	parentSSE := totalSq - total*total/float64(n)
	if parentSSE <= 1e-12 {
		return 0, 0, false
	}

	bestFeature, bestThreshold := -1, 0.0
	bestSSE := parentSSE - 1e-12
	order := make([]int, n)

	for f := 0; f < len(x[idx[0]]); f++ {
		copy(order, idx)
		sort.SliceStable(order, func(a, b int) bool { return x[order[a]][f] < x[order[b]][f] })

		leftSum, leftSq := 0.0, 0.0
		for k := 0; k < n-1; k++ {
			v := y[order[k]]
			leftSum += v
			leftSq += v * v

			cur, next := x[order[k]][f], x[order[k+1]][f]
			if cur == next {
				continue
			}
			leftN, rightN := k+1, n-k-1
			if leftN < minLeaf || rightN < minLeaf {
				continue
			}

			rightSum, rightSq := total-leftSum, totalSq-leftSq
			sse := (leftSq - leftSum*leftSum/float64(leftN)) + (rightSq - rightSum*rightSum/float64(rightN))
			if sse < bestSSE {
				bestSSE = sse
				bestFeature = f
				bestThreshold = cur + (next-cur)/2
			}
		}
	}

	if bestFeature < 0 {
		return 0, 0, false
	}
	return bestFeature, bestThreshold, true
}

func (t *regressionTree) predict(row []float64) float64 {
	node := t.root
	for !node.leaf() {
		if row[node.feature] <= node.threshold {
			node = node.left
		} else {
			node = node.right
		}
	}
	return node.value
}

func meanAt(y []float64, idx []int) float64 {
	if len(idx) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, i := range idx {
		sum += y[i]
	}
	return sum / float64(len(idx))
}

func indexRange(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}
