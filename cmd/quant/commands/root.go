package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	strategyConfigPath string
	verbose            bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quant",
	Short: "B1 - A주 태그 평가 파이프라인",
	Long: `B1 Signal CLI

KDJ-J / MACD-DIF 1차 필터 후 plus/minus 태그로 종목을 평가합니다.
필터 → 상세 조회 → 재검증 → 태그 평가 → 저장.

Usage:
  go run ./cmd/quant [command]

Examples:
  go run ./cmd/quant signal run --date 20240115 --persist
  go run ./cmd/quant signal show --date 20240115 --strength strong
  go run ./cmd/quant tags list
  go run ./cmd/quant data check --date 20240115
  go run ./cmd/quant scheduler start
  go run ./cmd/quant test-db`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&strategyConfigPath, "strategy-config", "", "pipeline YAML (default: STRATEGY_CONFIG or built-in defaults)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
