package services

import (
	"math/rand/v2"
	"sort"
)

// ForestConfig ランダムフォレスト回帰の設定
type ForestConfig struct {
	Trees          int
	MinSamplesLeaf int
	MaxDepth       int // 0 は無制限
	Seed           uint64
}

// RandomForestRegressor ブートストラップ標本で学習した回帰木の平均で予測する
type RandomForestRegressor struct {
	config      ForestConfig
	trees       []*regressionNode
	importances []float64
}

type regressionNode struct {
	feature   int
	threshold float64
	value     float64
	left      *regressionNode
	right     *regressionNode
}

func (n *regressionNode) isLeaf() bool {
	return n.left == nil
}

// NewRandomForestRegressor 新しいランダムフォレストを作成
func NewRandomForestRegressor(config ForestConfig) *RandomForestRegressor {
	if config.Trees <= 0 {
		config.Trees = 100
	}
	if config.MinSamplesLeaf <= 0 {
		config.MinSamplesLeaf = 1
	}
	return &RandomForestRegressor{config: config}
}

// Fit 特徴量行列 X（行 = 標本）と目的変数 y で学習する。
// 木 i は (Seed, i) から派生した乱数列を使うため、同じ入力とシードなら結果は常に同じ。
func (f *RandomForestRegressor) Fit(X [][]float64, y []float64) {
	n := len(y)
	f.trees = make([]*regressionNode, 0, f.config.Trees)
	if n == 0 {
		f.importances = nil
		return
	}
	features := len(X[0])
	f.importances = make([]float64, features)

	for t := 0; t < f.config.Trees; t++ {
		rng := rand.New(rand.NewPCG(f.config.Seed, uint64(t)))
		sample := make([]int, n)
		for i := range sample {
			sample[i] = rng.IntN(n)
		}

		treeImportance := make([]float64, features)
		root := f.grow(X, y, sample, 0, treeImportance)
		f.trees = append(f.trees, root)

		var total float64
		for _, v := range treeImportance {
			total += v
		}
		if total > 0 {
			for j, v := range treeImportance {
				f.importances[j] += v / total
			}
		}
	}

	var total float64
	for _, v := range f.importances {
		total += v
	}
	if total > 0 {
		for j := range f.importances {
			f.importances[j] /= total
		}
	}
}

// grow CART 方式で二乗誤差を最小化する分割を再帰的に探す
func (f *RandomForestRegressor) grow(X [][]float64, y []float64, idx []int, depth int, importance []float64) *regressionNode {
	mean, sse := meanAndSSE(y, idx)
	node := &regressionNode{value: mean}

	minLeaf := f.config.MinSamplesLeaf
	if len(idx) < 2*minLeaf || sse <= 1e-12 {
		return node
	}
	if f.config.MaxDepth > 0 && depth >= f.config.MaxDepth {
		return node
	}

	bestFeature := -1
	bestThreshold := 0.0
	bestSSE := sse
	features := len(X[idx[0]])

	order := make([]int, len(idx))
	for j := 0; j < features; j++ {
		copy(order, idx)
		sort.SliceStable(order, func(a, b int) bool { return X[order[a]][j] < X[order[b]][j] })

		var totalSum, totalSq float64
		for _, i := range order {
			totalSum += y[i]
			totalSq += y[i] * y[i]
		}

		var leftSum, leftSq float64
		for k := 0; k < len(order)-1; k++ {
			v := y[order[k]]
			leftSum += v
			leftSq += v * v

			cur := X[order[k]][j]
			next := X[order[k+1]][j]
			if cur == next {
				continue
			}
			nl := float64(k + 1)
			nr := float64(len(order) - k - 1)
			if int(nl) < minLeaf || int(nr) < minLeaf {
				continue
			}
			rightSum := totalSum - leftSum
			rightSq := totalSq - leftSq
			split := (leftSq - leftSum*leftSum/nl) + (rightSq - rightSum*rightSum/nr)
			if split < bestSSE-1e-12 {
				bestSSE = split
				bestFeature = j
				bestThreshold = (cur + next) / 2
			}
		}
	}

	if bestFeature < 0 {
		return node
	}

	var left, right []int
	for _, i := range idx {
		if X[i][bestFeature] <= bestThreshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	importance[bestFeature] += sse - bestSSE

	node.feature = bestFeature
	node.threshold = bestThreshold
	node.left = f.grow(X, y, left, depth+1, importance)
	node.right = f.grow(X, y, right, depth+1, importance)
	return node
}

func meanAndSSE(y []float64, idx []int) (float64, float64) {
	if len(idx) == 0 {
		return 0, 0
	}
	var sum float64
	for _, i := range idx {
		sum += y[i]
	}
	mean := sum / float64(len(idx))
	var sse float64
	for _, i := range idx {
		d := y[i] - mean
		sse += d * d
	}
	return mean, sse
}

// Predict 1標本の予測値（全木の平均）
func (f *RandomForestRegressor) Predict(x []float64) float64 {
	if len(f.trees) == 0 {
		return 0
	}
	var sum float64
	for _, root := range f.trees {
		node := root
		for !node.isLeaf() {
			if x[node.feature] <= node.threshold {
				node = node.left
			} else {
				node = node.right
			}
		}
		sum += node.value
	}
	return sum / float64(len(f.trees))
}

// FeatureImportances 不純度減少に基づく特徴量重要度（合計1。分割が一度も無ければすべて0）
func (f *RandomForestRegressor) FeatureImportances() []float64 {
	out := make([]float64, len(f.importances))
	copy(out, f.importances)
	return out
}
