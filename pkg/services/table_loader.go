package services

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"price-elasticity-api/pkg/models"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat 読み込めないファイル形式
var ErrUnsupportedFormat = errors.New("unsupported file format")

// LoadTable CSV または Excel（.xlsx、最初のシート）を読み込み、ヘッダー行とデータ行に分ける
func LoadTable(r io.Reader, fileName string) (*models.Table, error) {
	var rows [][]string

	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".xlsx":
		f, err := excelize.OpenReader(r)
		if err != nil {
			return nil, fmt.Errorf("Excelファイルの読み込みに失敗しました: %w", err)
		}
		defer f.Close()
		rows, err = f.GetRows(f.GetSheetName(0))
		if err != nil {
			return nil, fmt.Errorf("Excelシートの行取得に失敗しました: %w", err)
		}
	case ".csv":
		reader := csv.NewReader(r)
		reader.FieldsPerRecord = -1
		reader.TrimLeadingSpace = true
		var err error
		rows, err = reader.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("CSVファイルの解析に失敗しました: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %s（.xlsx または .csv を指定してください）", ErrUnsupportedFormat, fileName)
	}

	return tableFromRows(rows)
}

// LoadTableFromFile ファイルパスから表を読み込む
func LoadTableFromFile(path string) (*models.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ファイルを開けません: %w", err)
	}
	defer f.Close()
	return LoadTable(f, path)
}

func tableFromRows(rows [][]string) (*models.Table, error) {
	// 末尾の空行を除く
	data := make([][]string, 0, len(rows))
	for _, row := range rows {
		if isBlankRow(row) {
			continue
		}
		data = append(data, row)
	}
	if len(data) < 2 {
		return nil, &InvalidDataError{Reason: "ファイルにはヘッダー行と少なくとも1行のデータが必要です"}
	}

	header := make([]string, len(data[0]))
	for i, h := range data[0] {
		h = strings.TrimPrefix(h, "\ufeff")
		header[i] = strings.TrimSpace(h)
	}

	return &models.Table{Columns: header, Rows: data[1:]}, nil
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// TableFromRecords JSONで受け取った列名と行（数値・文字列・null 混在）から表を作る
func TableFromRecords(columns []string, rows [][]any) (*models.Table, error) {
	if len(columns) == 0 {
		return nil, &InvalidDataError{Reason: "列名が指定されていません"}
	}
	if len(rows) == 0 {
		return nil, &InvalidDataError{Reason: "データ行がありません"}
	}

	table := &models.Table{
		Columns: make([]string, len(columns)),
		Rows:    make([][]string, len(rows)),
	}
	for i, c := range columns {
		table.Columns[i] = strings.TrimSpace(c)
	}

	for i, row := range rows {
		if len(row) > len(columns) {
			return nil, &InvalidDataError{
				Row:    i + 1,
				Reason: fmt.Sprintf("列数（%d）がヘッダー（%d）より多いです", len(row), len(columns)),
			}
		}
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = formatCell(v)
		}
		table.Rows[i] = cells
	}
	return table, nil
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
