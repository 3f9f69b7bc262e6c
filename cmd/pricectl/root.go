package main

import (
	"encoding/json"
	"fmt"

	config "price-elasticity-api/configs"
	"price-elasticity-api/pkg/models"
	"price-elasticity-api/pkg/services"

	"github.com/spf13/cobra"
)

type cliOptions struct {
	file       string
	paramsFile string
	output     string
	seed       uint64
	periods    int
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	rootCmd := &cobra.Command{
		Use:   "pricectl",
		Short: "価格弾力性・需要予測・価格最適化をローカルファイルで実行します",
		Long: `pricectl は CSV / Excel の販売データを読み込み、価格分析を実行します。

  pricectl elasticity --file sales.csv
  pricectl forecast   --file sales.xlsx --params params.yaml --output json
  pricectl optimize   --file sales.csv --params params.yaml`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.file, "file", "f", "", "分析するCSV/Excelファイル（必須）")
	rootCmd.PersistentFlags().StringVarP(&opts.paramsFile, "params", "p", "", "列名などを指定するYAMLファイル")
	rootCmd.PersistentFlags().StringVarP(&opts.output, "output", "o", "text", "出力形式 (text|json)")
	rootCmd.PersistentFlags().Uint64Var(&opts.seed, "seed", 0, "乱数シード（未指定の場合は設定値を使用）")
	rootCmd.PersistentFlags().IntVar(&opts.periods, "periods", 0, "予測期間（日数、forecast のみ）")
	_ = rootCmd.MarkPersistentFlagRequired("file")

	subcommands := []struct {
		use, short, analysisType string
	}{
		{"elasticity", "製品ごとの価格弾力性を推定します", models.AnalysisTypeElasticity},
		{"forecast", "3つの価格シナリオで需要を予測します", models.AnalysisTypeForecast},
		{"optimize", "利益を最大化する価格を探索します", models.AnalysisTypeOptimization},
	}
	for _, sc := range subcommands {
		analysisType := sc.analysisType
		rootCmd.AddCommand(&cobra.Command{
			Use:   sc.use,
			Short: sc.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runAnalysis(cmd, opts, analysisType)
			},
		})
	}

	return rootCmd
}

func runAnalysis(cmd *cobra.Command, opts *cliOptions, analysisType string) error {
	if opts.output != "text" && opts.output != "json" {
		return fmt.Errorf("不明な出力形式です: %s（text または json）", opts.output)
	}

	cfg := config.LoadConfig()
	config.SetupLogger(cfg)

	params := cfg.DefaultParams()
	if opts.paramsFile != "" {
		var err error
		params, err = config.LoadAnalysisParams(opts.paramsFile, params)
		if err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("seed") {
		params.RandomSeed = opts.seed
	}
	if opts.periods > 0 {
		params.ForecastPeriods = opts.periods
	}

	table, err := services.LoadTableFromFile(opts.file)
	if err != nil {
		return err
	}

	run, err := services.NewAnalysisService(nil, nil).Run(cmd.Context(), analysisType, table, params)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.output == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	}
	_, err = fmt.Fprintln(out, run.Summary)
	return err
}
