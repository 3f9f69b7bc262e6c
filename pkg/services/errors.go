package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingColumn 必須列がデータに存在しない
	ErrMissingColumn = errors.New("missing column")
	// ErrInvalidData 数値でない・非正・日付解析不能などアルゴリズムが扱えない値
	ErrInvalidData = errors.New("invalid data")
	// ErrOptimizationFailed 数値最適化が収束しなかった
	ErrOptimizationFailed = errors.New("optimization failed")
	// ErrUnsupportedAnalysis 未対応の分析タイプ
	ErrUnsupportedAnalysis = errors.New("unsupported analysis type")
)

// MissingColumnError 不足している列名をすべて保持する
type MissingColumnError struct {
	Columns []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("データに必須の列がありません: %s", strings.Join(e.Columns, ", "))
}

// Is errors.Is(err, ErrMissingColumn) を満たす
func (e *MissingColumnError) Is(target error) bool {
	return target == ErrMissingColumn
}

// InvalidDataError 不正な値の位置と理由を保持する
type InvalidDataError struct {
	Column string
	Row    int // 1始まりのデータ行番号（ヘッダーを除く）。0は行を特定しない
	Value  string
	Reason string
}

func (e *InvalidDataError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("不正なデータ: 列 '%s' 行%d の値 '%s': %s", e.Column, e.Row, e.Value, e.Reason)
	}
	if e.Column != "" {
		return fmt.Sprintf("不正なデータ: 列 '%s': %s", e.Column, e.Reason)
	}
	return fmt.Sprintf("不正なデータ: %s", e.Reason)
}

// Is errors.Is(err, ErrInvalidData) を満たす
func (e *InvalidDataError) Is(target error) bool {
	return target == ErrInvalidData
}

// IsClientError 呼び出し側の入力に起因するエラーかどうか
func IsClientError(err error) bool {
	return errors.Is(err, ErrMissingColumn) || errors.Is(err, ErrInvalidData) || errors.Is(err, ErrUnsupportedAnalysis)
}
