package services

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"strings"
	"time"

	"price-elasticity-api/pkg/models"

	"github.com/rs/zerolog/log"
)

// 特徴量名（この順序で特徴量行列を組み立てる）
var forecastFeatures = []string{"year", "month", "day", "day_of_week", "week_of_year", "price"}

const (
	testFraction       = 0.2
	priceIncreaseRatio = 1.05
	priceDecreaseRatio = 0.95
	scenarioPriceSpan  = priceIncreaseRatio - priceDecreaseRatio
	trendThresholdPct  = 5.0
)

// トレンド
const (
	TrendIncrease = "increase"
	TrendDecrease = "decrease"
	TrendStable   = "stable"
)

// DemandForecastService 需要予測サービス
type DemandForecastService struct{}

// NewDemandForecastService 新しい需要予測サービスを作成
func NewDemandForecastService() *DemandForecastService {
	return &DemandForecastService{}
}

// Forecast カレンダー特徴量と価格から数量を予測するモデルを製品ごとに学習し、
// 3つの価格シナリオで将来の数量を予測する
func (dfs *DemandForecastService) Forecast(ctx context.Context, table *models.Table, params models.AnalysisParams) (*models.ForecastResult, error) {
	params = params.WithDefaults()

	ds, err := ResolveDataset(table, params, RolePrice, RoleQuantity, RoleDate)
	if err != nil {
		return nil, err
	}

	dated := make([]Observation, 0, len(ds.Observations))
	for _, o := range ds.Observations {
		if o.HasDate {
			dated = append(dated, o)
		}
	}
	if len(dated) == 0 {
		return nil, &InvalidDataError{Column: params.DateColumn, Reason: "日付として解析できる行がありません"}
	}
	if ds.InvalidDates > 0 {
		log.Warn().Int("rows", ds.InvalidDates).Str("column", params.DateColumn).Msg("⚠️ 日付を解析できない行を予測から除外しました")
	}

	groups := groupObservations(dated)
	forecasts := make([]models.ProductForecast, len(groups))
	err = forEachGroup(ctx, groups, params.Workers, func(i int, g ProductGroup) error {
		forecasts[i] = dfs.trainAndForecast(g, params)
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &models.ForecastResult{
		Forecast:    make(map[string]models.ProductForecast, len(groups)),
		DroppedRows: ds.InvalidDates,
	}
	// 評価データがない製品は全体精度の平均から除く
	accuracies := make([]float64, 0, len(groups))
	for i, g := range groups {
		result.Forecast[g.Product] = forecasts[i]
		if !slices.Contains(forecasts[i].Degenerate, models.DegenerateAccuracy) {
			accuracies = append(accuracies, forecasts[i].Accuracy)
		}
	}
	result.ForecastAccuracy = calculateMean(accuracies)
	result.ForecastSummary = createForecastSummary(groups, forecasts)

	return result, nil
}

// trainAndForecast 1グループのモデル学習・評価・将来予測。
// 1件しかない製品は全件で学習し、評価は行わない（精度 0、Degenerate に accuracy）
func (dfs *DemandForecastService) trainAndForecast(g ProductGroup, params models.AnalysisParams) models.ProductForecast {
	n := len(g.Observations)

	X := make([][]float64, n)
	y := make([]float64, n)
	for i, o := range g.Observations {
		X[i] = calendarFeatures(o.Date, o.Price)
		y[i] = o.Quantity
	}

	var trainIdx, testIdx []int
	if n < 2 {
		trainIdx = []int{0}
	} else {
		trainIdx, testIdx = trainTestSplit(n, testFraction, params.RandomSeed)
	}
	trainX := make([][]float64, len(trainIdx))
	trainY := make([]float64, len(trainIdx))
	for k, i := range trainIdx {
		trainX[k] = X[i]
		trainY[k] = y[i]
	}

	model := NewRandomForestRegressor(ForestConfig{Trees: params.Trees, Seed: params.RandomSeed})
	model.Fit(trainX, trainY)

	var degenerate []string
	accuracy := 0.0
	if len(testIdx) > 0 {
		actual := make([]float64, len(testIdx))
		predicted := make([]float64, len(testIdx))
		for k, i := range testIdx {
			actual[k] = y[i]
			predicted[k] = model.Predict(X[i])
		}
		accuracy = 100 - meanAbsolutePercentageError(actual, predicted)*100
	} else {
		degenerate = append(degenerate, models.DegenerateAccuracy)
		log.Warn().Str("product", g.Product).Int("rows", n).Msg("⚠️ データが1件のため予測精度を評価できません")
	}

	importance := make(map[string]float64, len(forecastFeatures))
	for j, w := range model.FeatureImportances() {
		importance[forecastFeatures[j]] = w
	}

	last := lastObservation(g.Observations)
	periods := forecastPeriods(model, last.Date, last.Price, params.ForecastPeriods)

	pf := models.ProductForecast{
		Periods:           periods,
		Accuracy:          accuracy,
		FeatureImportance: importance,
		TrainSize:         len(trainIdx),
		TestSize:          len(testIdx),
	}

	trend, change := forecastTrend(periods)
	pf.Trend, pf.TrendChangePercent = trend, change.Value
	if change.Degenerate {
		degenerate = append(degenerate, models.DegenerateTrend)
	}

	elasticity := Guarded{Degenerate: true}
	if len(periods) > 0 {
		elasticity = scenarioElasticity(periods[len(periods)-1].Predictions)
	}
	pf.ScenarioElasticity = elasticity.Value
	pf.HighSensitivity = !elasticity.Degenerate && math.Abs(elasticity.Value) > 1
	if elasticity.Degenerate {
		degenerate = append(degenerate, models.DegenerateScenarioElasticity)
	}
	pf.Degenerate = degenerate

	log.Debug().
		Str("product", g.Product).
		Int("train", len(trainIdx)).
		Int("test", len(testIdx)).
		Float64("accuracy", accuracy).
		Msg("🌲 予測モデル学習完了")

	return pf
}

// calendarFeatures [year, month, day, day_of_week(月曜=0), ISO week, price]
func calendarFeatures(t time.Time, price float64) []float64 {
	_, week := t.ISOWeek()
	dow := (int(t.Weekday()) + 6) % 7
	return []float64{
		float64(t.Year()),
		float64(t.Month()),
		float64(t.Day()),
		float64(dow),
		float64(week),
		price,
	}
}

// trainTestSplit シード付きでシャッフルし、先頭 ceil(n*testFraction) 件を評価用にする
func trainTestSplit(n int, fraction float64, seed uint64) (train, test []int) {
	nTest := int(math.Ceil(float64(n) * fraction))
	if nTest >= n {
		nTest = n - 1
	}
	if nTest < 1 {
		nTest = 1
	}
	rng := rand.New(rand.NewPCG(seed, 0x5eed))
	perm := rng.Perm(n)
	return perm[nTest:], perm[:nTest]
}

// meanAbsolutePercentageError 実測値0の場合はマシンイプシロンで割る
func meanAbsolutePercentageError(actual, predicted []float64) float64 {
	if len(actual) == 0 {
		return 0
	}
	eps := math.Nextafter(1, 2) - 1
	var sum float64
	for i := range actual {
		sum += math.Abs(actual[i]-predicted[i]) / math.Max(math.Abs(actual[i]), eps)
	}
	return sum / float64(len(actual))
}

// lastObservation 日付が最も新しい観測値。同日の場合は後の行
func lastObservation(obs []Observation) Observation {
	last := obs[0]
	for _, o := range obs[1:] {
		if !o.Date.Before(last.Date) {
			last = o
		}
	}
	return last
}

// nextForecastDay 簡略化したカレンダーで1日進める（28日を超えたら翌月1日、12月を超えたら翌年1月）
func nextForecastDay(year, month, day int) (int, int, int) {
	day++
	if day > 28 {
		day = 1
		month++
	}
	if month > 12 {
		month = 1
		year++
	}
	return year, month, day
}

// forecastPeriods 最終観測日から periods 日分、3つの価格シナリオで数量を予測する
func forecastPeriods(model *RandomForestRegressor, lastDate time.Time, lastPrice float64, periods int) []models.ForecastPeriod {
	out := make([]models.ForecastPeriod, 0, periods)
	year, month, day := lastDate.Year(), int(lastDate.Month()), lastDate.Day()

	prices := models.ScenarioValues{
		CurrentPrice:   lastPrice,
		IncreasedPrice: lastPrice * priceIncreaseRatio,
		DecreasedPrice: lastPrice * priceDecreaseRatio,
	}

	for i := 1; i <= periods; i++ {
		year, month, day = nextForecastDay(year, month, day)
		date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)

		out = append(out, models.ForecastPeriod{
			Period: i,
			Date:   date.Format("2006-01-02"),
			Prices: prices,
			Predictions: models.ScenarioValues{
				CurrentPrice:   model.Predict(calendarFeatures(date, prices.CurrentPrice)),
				IncreasedPrice: model.Predict(calendarFeatures(date, prices.IncreasedPrice)),
				DecreasedPrice: model.Predict(calendarFeatures(date, prices.DecreasedPrice)),
			},
		})
	}
	return out
}

// forecastTrend 最初と最後の期間の現行価格予測を比較してトレンドを判定。
// 最初の予測が 0 で変化率を計算できない場合は stable（Degenerate）
func forecastTrend(periods []models.ForecastPeriod) (string, Guarded) {
	if len(periods) == 0 {
		return TrendStable, Guarded{Degenerate: true}
	}
	first := periods[0].Predictions.CurrentPrice
	last := periods[len(periods)-1].Predictions.CurrentPrice
	change := safePercentChange(first, last)
	if change.Degenerate {
		return TrendStable, change
	}

	switch {
	case change.Value > trendThresholdPct:
		return TrendIncrease, change
	case change.Value < -trendThresholdPct:
		return TrendDecrease, change
	default:
		return TrendStable, change
	}
}

// scenarioElasticity ((q_dec - q_inc) / q_cur) / 0.10。q_cur が 0 なら Degenerate
func scenarioElasticity(p models.ScenarioValues) Guarded {
	r := safeRatio(p.DecreasedPrice-p.IncreasedPrice, p.CurrentPrice)
	r.Value /= scenarioPriceSpan
	return r
}

// createForecastSummary 製品別の予測要約テキスト
func createForecastSummary(groups []ProductGroup, forecasts []models.ProductForecast) string {
	var b strings.Builder
	b.WriteString("販売予測の結果:\n\n")

	for i, g := range groups {
		f := forecasts[i]
		b.WriteString(fmt.Sprintf("製品: %s\n", g.Product))
		if slices.Contains(f.Degenerate, models.DegenerateAccuracy) {
			b.WriteString("予測精度: 評価用のデータが不足しているため算出できません\n")
		} else {
			b.WriteString(fmt.Sprintf("予測精度: %.2f%%\n", f.Accuracy))
		}
		b.WriteString(fmt.Sprintf("%d期間の予測では、現行価格を維持した場合に販売数は%.1f%%の%sとなる見込みです。\n",
			len(f.Periods), math.Abs(f.TrendChangePercent), trendLabel(f.Trend)))
		if f.HighSensitivity {
			b.WriteString("この製品は価格変更に対する感度が高いです。\n")
		} else {
			b.WriteString("この製品は価格変更に対する感度が低いです。\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func trendLabel(trend string) string {
	switch trend {
	case TrendIncrease:
		return "増加"
	case TrendDecrease:
		return "減少"
	default:
		return "安定"
	}
}
