package services

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"price-elasticity-api/pkg/models"
)

// Role 列の論理的な役割
type Role int

const (
	RolePrice Role = iota
	RoleQuantity
	RoleProduct
	RoleDate
	RoleCost
)

// Observation 型付けされた1行分の観測値
type Observation struct {
	Row      int // 1始まりのデータ行番号
	Product  string
	Price    float64
	Quantity float64
	Cost     float64
	Date     time.Time
	HasDate  bool
}

// Dataset 列名の解決が済んだ観測値の集合
type Dataset struct {
	Observations []Observation
	HasProduct   bool
	HasDate      bool
	HasCost      bool
	// 日付列があるが解析できなかった行数
	InvalidDates int
}

// ProductGroup 同じ製品IDを持つ観測値のまとまり
type ProductGroup struct {
	Product      string
	Observations []Observation
}

// Prices グループ内の価格
func (g ProductGroup) Prices() []float64 {
	out := make([]float64, len(g.Observations))
	for i, o := range g.Observations {
		out[i] = o.Price
	}
	return out
}

// Quantities グループ内の数量
func (g ProductGroup) Quantities() []float64 {
	out := make([]float64, len(g.Observations))
	for i, o := range g.Observations {
		out[i] = o.Quantity
	}
	return out
}

// Costs グループ内のコスト
func (g ProductGroup) Costs() []float64 {
	out := make([]float64, len(g.Observations))
	for i, o := range g.Observations {
		out[i] = o.Cost
	}
	return out
}

// DistinctPrices 異なる価格の数
func (g ProductGroup) DistinctPrices() int {
	return distinctCount(g.Prices())
}

// dateLayouts 受け付ける日付形式
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006-1-2",
	"2006/01/02",
	"2006/1/2",
	"01/02/2006",
	"20060102",
}

// parseDate 既知の形式を順に試して日付を解析する
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	// Excelのシリアル値（1900年起点）
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 59 && serial < 2958466 {
		base := time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
		return base.Add(time.Duration(serial * 24 * float64(time.Hour))).Truncate(24 * time.Hour), true
	}
	return time.Time{}, false
}

// 3桁ごとのカンマ区切り（例: 1,234,567.89）
var thousandsGrouped = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+(\.\d*)?$`)

// parseNumber 数値セルを解析する。正しい位置の桁区切りカンマと前後の空白は許容する。
// "1,5" のように桁区切りとして不正なカンマは数値として扱わない
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") {
		if !thousandsGrouped.MatchString(s) {
			return 0, false
		}
		s = strings.ReplaceAll(s, ",", "")
	}
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// ResolveDataset 列設定をテーブルの実際の列と照合し、型付けされた観測値に変換する。
// required に含まれる役割の列が無い場合は MissingColumnError を返す。
func ResolveDataset(table *models.Table, params models.AnalysisParams, required ...Role) (*Dataset, error) {
	if table == nil {
		return nil, &InvalidDataError{Reason: "テーブルが空です"}
	}
	params = params.WithDefaults()

	names := map[Role]string{
		RolePrice:    params.PriceColumn,
		RoleQuantity: params.QuantityColumn,
		RoleProduct:  params.ProductColumn,
		RoleDate:     params.DateColumn,
		RoleCost:     params.CostColumn,
	}

	var missing []string
	for _, role := range required {
		if !table.HasColumn(names[role]) {
			missing = append(missing, names[role])
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnError{Columns: missing}
	}

	priceIdx := table.ColumnIndex(params.PriceColumn)
	qtyIdx := table.ColumnIndex(params.QuantityColumn)
	productIdx := table.ColumnIndex(params.ProductColumn)
	dateIdx := table.ColumnIndex(params.DateColumn)
	costIdx := table.ColumnIndex(params.CostColumn)

	ds := &Dataset{
		HasProduct:   productIdx >= 0,
		HasDate:      dateIdx >= 0,
		HasCost:      costIdx >= 0,
		Observations: make([]Observation, 0, len(table.Rows)),
	}

	cell := func(row []string, idx int) string {
		if idx < 0 || idx >= len(row) {
			return ""
		}
		return row[idx]
	}

	for i, row := range table.Rows {
		rowNo := i + 1
		obs := Observation{Row: rowNo, Product: models.OverallProductKey}

		raw := cell(row, priceIdx)
		price, ok := parseNumber(raw)
		if !ok {
			return nil, &InvalidDataError{Column: params.PriceColumn, Row: rowNo, Value: raw, Reason: "数値ではありません"}
		}
		if price <= 0 {
			return nil, &InvalidDataError{Column: params.PriceColumn, Row: rowNo, Value: raw, Reason: "価格は正の値である必要があります"}
		}
		obs.Price = price

		raw = cell(row, qtyIdx)
		qty, ok := parseNumber(raw)
		if !ok {
			return nil, &InvalidDataError{Column: params.QuantityColumn, Row: rowNo, Value: raw, Reason: "数値ではありません"}
		}
		if qty < 0 {
			return nil, &InvalidDataError{Column: params.QuantityColumn, Row: rowNo, Value: raw, Reason: "数量は0以上である必要があります"}
		}
		obs.Quantity = qty

		if ds.HasProduct {
			obs.Product = strings.TrimSpace(cell(row, productIdx))
		}

		if ds.HasCost {
			raw = cell(row, costIdx)
			cost, ok := parseNumber(raw)
			if !ok {
				return nil, &InvalidDataError{Column: params.CostColumn, Row: rowNo, Value: raw, Reason: "数値ではありません"}
			}
			obs.Cost = cost
		}

		if ds.HasDate {
			if t, ok := parseDate(cell(row, dateIdx)); ok {
				obs.Date = t
				obs.HasDate = true
			} else {
				ds.InvalidDates++
			}
		}

		ds.Observations = append(ds.Observations, obs)
	}

	if len(ds.Observations) == 0 {
		return nil, &InvalidDataError{Reason: "データ行がありません"}
	}

	return ds, nil
}

// GroupByProduct 製品ごとに観測値をまとめる。製品列がなければ全体を1グループとする。
// グループは製品キーの昇順で、グループ内は元の行順を保つ。
func (d *Dataset) GroupByProduct() []ProductGroup {
	return groupObservations(d.Observations)
}

func groupObservations(observations []Observation) []ProductGroup {
	index := make(map[string]int)
	var groups []ProductGroup
	for _, o := range observations {
		i, ok := index[o.Product]
		if !ok {
			i = len(groups)
			index[o.Product] = i
			groups = append(groups, ProductGroup{Product: o.Product})
		}
		groups[i].Observations = append(groups[i].Observations, o)
	}
	sort.SliceStable(groups, func(a, b int) bool { return groups[a].Product < groups[b].Product })
	return groups
}

// DistinctMonths 日付が解析できた観測値に含まれる年月（YYYY-MM）の昇順リスト
func (d *Dataset) DistinctMonths() []string {
	seen := make(map[string]struct{})
	var months []string
	for _, o := range d.Observations {
		if !o.HasDate {
			continue
		}
		key := monthKey(o.Date)
		if _, ok := seen[key]; !ok {
			seen[key] = struct{}{}
			months = append(months, key)
		}
	}
	sort.Strings(months)
	return months
}

func monthKey(t time.Time) string {
	return t.Format("2006-01")
}
