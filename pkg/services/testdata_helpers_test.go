package services

import (
	"fmt"

	"price-elasticity-api/pkg/models"
)

// newTable テスト用の表を作る。値は fmt.Sprint で文字列化する
func newTable(columns []string, rows ...[]any) *models.Table {
	t := &models.Table{Columns: columns}
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = fmt.Sprint(v)
		}
		t.Rows = append(t.Rows, cells)
	}
	return t
}

func testParams() models.AnalysisParams {
	p := models.DefaultAnalysisParams()
	p.Trees = 10
	return p
}
