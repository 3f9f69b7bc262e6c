package services

import (
	"fmt"
	"math"
)

// OptimizerConfig 1変数の有界最大化の設定
type OptimizerConfig struct {
	MaxEvaluations    int
	InitialStepRatio  float64 // 初期ステップ = 開始点 × 比率
	ExpansionRatio    float64
	BacktrackingRatio float64
	Tolerance         float64 // 相対ステップがこれを下回れば収束
	LowerBound        float64
}

// DefaultOptimizerConfig 既定の最適化設定
func DefaultOptimizerConfig() OptimizerConfig {
	return OptimizerConfig{
		MaxEvaluations:    2000,
		InitialStepRatio:  0.1,
		ExpansionRatio:    2.0,
		BacktrackingRatio: 0.5,
		Tolerance:         1e-9,
		LowerBound:        0,
	}
}

// OptimizerResult 最大化の結果
type OptimizerResult struct {
	X           float64
	Value       float64
	Evaluations int
	Converged   bool
}

// BoundedMaximizer x >= LowerBound の範囲で1変数関数を最大化するパターン探索。
// 改善すればステップを広げ、改善しなければ縮める。
type BoundedMaximizer struct {
	config OptimizerConfig
}

// NewBoundedMaximizer 新しい最大化器を作成
func NewBoundedMaximizer(config OptimizerConfig) *BoundedMaximizer {
	def := DefaultOptimizerConfig()
	if config.MaxEvaluations <= 0 {
		config.MaxEvaluations = def.MaxEvaluations
	}
	if config.InitialStepRatio <= 0 {
		config.InitialStepRatio = def.InitialStepRatio
	}
	if config.ExpansionRatio <= 1 {
		config.ExpansionRatio = def.ExpansionRatio
	}
	if config.BacktrackingRatio <= 0 || config.BacktrackingRatio >= 1 {
		config.BacktrackingRatio = def.BacktrackingRatio
	}
	if config.Tolerance <= 0 {
		config.Tolerance = def.Tolerance
	}
	return &BoundedMaximizer{config: config}
}

// Maximize x0 から探索を開始する。評価回数の上限に達した場合や
// 目的関数が有限でない値を返した場合は ErrOptimizationFailed を返す。
func (m *BoundedMaximizer) Maximize(objective func(float64) float64, x0 float64) (OptimizerResult, error) {
	cfg := m.config
	x := math.Max(x0, cfg.LowerBound)
	best := objective(x)
	evaluations := 1
	if math.IsNaN(best) || math.IsInf(best, 0) {
		return OptimizerResult{X: x, Value: best, Evaluations: evaluations},
			fmt.Errorf("%w: 開始点 %g で目的関数が有限ではありません", ErrOptimizationFailed, x)
	}

	scale := math.Max(math.Abs(x), 1)
	step := scale * cfg.InitialStepRatio

	for evaluations < cfg.MaxEvaluations {
		if step < scale*cfg.Tolerance {
			return OptimizerResult{X: x, Value: best, Evaluations: evaluations, Converged: true}, nil
		}

		improved := false
		for _, dir := range []float64{1, -1} {
			candidate := math.Max(x+dir*step, cfg.LowerBound)
			if candidate == x {
				continue
			}
			v := objective(candidate)
			evaluations++
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return OptimizerResult{X: x, Value: best, Evaluations: evaluations},
					fmt.Errorf("%w: x=%g で目的関数が有限ではありません", ErrOptimizationFailed, candidate)
			}
			if v > best {
				x, best = candidate, v
				improved = true
				break
			}
			if evaluations >= cfg.MaxEvaluations {
				break
			}
		}

		if improved {
			step *= cfg.ExpansionRatio
			scale = math.Max(math.Abs(x), 1)
		} else {
			step *= cfg.BacktrackingRatio
		}
	}

	return OptimizerResult{X: x, Value: best, Evaluations: evaluations},
		fmt.Errorf("%w: %d 回の評価で収束しませんでした", ErrOptimizationFailed, evaluations)
}
