package config

import (
	"fmt"
	"os"

	"price-elasticity-api/pkg/models"

	"gopkg.in/yaml.v3"
)

// LoadAnalysisParams YAMLファイルから分析パラメータ（列名の対応付けなど）を読み込む。
// ファイルで指定されなかった項目は base の値が使われる
func LoadAnalysisParams(path string, base models.AnalysisParams) (models.AnalysisParams, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("パラメータファイルを読み込めません: %w", err)
	}
	return ParseAnalysisParams(data, base)
}

// ParseAnalysisParams YAMLデータを base に上書きして分析パラメータを作る
func ParseAnalysisParams(data []byte, base models.AnalysisParams) (models.AnalysisParams, error) {
	params := base
	if err := yaml.Unmarshal(data, &params); err != nil {
		return base, fmt.Errorf("パラメータファイルの解析に失敗しました: %w", err)
	}
	return params.WithDefaults(), nil
}
