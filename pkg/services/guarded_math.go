package services

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Guarded 割り算やクランプの結果。Degenerate が true の場合 Value は定義済みの代替値
type Guarded struct {
	Value      float64
	Degenerate bool
}

// safeRatio num/den を計算する。den が 0 または非有限なら 0 を代替値として返す
func safeRatio(num, den float64) Guarded {
	if den == 0 || math.IsNaN(den) || math.IsInf(den, 0) || math.IsNaN(num) || math.IsInf(num, 0) {
		return Guarded{Value: 0, Degenerate: true}
	}
	return Guarded{Value: num / den}
}

// safePercentChange (to-from)/from*100。from が 0 の場合は 0
func safePercentChange(from, to float64) Guarded {
	r := safeRatio(to-from, from)
	r.Value *= 100
	return r
}

// clampNonNegative 負の値を 0 にクランプする
func clampNonNegative(v float64) Guarded {
	if v < 0 || math.IsNaN(v) {
		return Guarded{Value: 0, Degenerate: true}
	}
	return Guarded{Value: v}
}

// percentile 順序統計量の間を線形補間してパーセンタイルを計算する（(n-1)·p 位置）。
// stat.Quantile は補間方式が異なるため使わない
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}
	frac := pos - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*frac
}

// calculateMean 平均値を計算。空の場合は 0
func calculateMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// distinctCount 異なる値の数
func distinctCount(values []float64) int {
	seen := make(map[float64]struct{}, len(values))
	for _, v := range values {
		seen[v] = struct{}{}
	}
	return len(seen)
}

// LinearFit 単回帰 y = Intercept + Slope*x の結果
type LinearFit struct {
	Slope     float64
	Intercept float64
}

// Predict x における予測値
func (f LinearFit) Predict(x float64) float64 {
	return f.Intercept + f.Slope*x
}

// fitLinear 最小二乗法で単回帰を行う。x が1種類しかない（分散 0）場合は ok=false
func fitLinear(x, y []float64) (LinearFit, bool) {
	if len(x) != len(y) || len(x) < 2 || distinctCount(x) < 2 {
		return LinearFit{}, false
	}
	intercept, slope := stat.LinearRegression(x, y, nil, false)
	if math.IsNaN(slope) || math.IsInf(slope, 0) || math.IsNaN(intercept) || math.IsInf(intercept, 0) {
		return LinearFit{}, false
	}
	return LinearFit{Slope: slope, Intercept: intercept}, true
}
