package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/b1signal/backend/internal/contracts"
)

// dataCmd represents the data command
var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "시장 데이터 상태 확인",
}

var dataCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "거래일 데이터 준비 상태 확인",
	Long: `외부 ETL이 적재한 데이터가 B1 실행에 충분한지 확인합니다.

확인 항목 (활성 종목 대비):
- 시세 (data.daily_quotes)
- KDJ-J / MACD-DIF (data.technical_factors)
- MA5/10/20/30
- lookback 일수 이상의 이력

Example:
  go run ./cmd/quant data check --date 20240115`,
	RunE: runDataCheck,
}

var dataCheckDate string

func init() {
	rootCmd.AddCommand(dataCmd)
	dataCmd.AddCommand(dataCheckCmd)
	dataCheckCmd.Flags().StringVar(&dataCheckDate, "date", "", "trade date YYYYMMDD (default: latest)")
}

func runDataCheck(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	raw, err := resolveDate(ctx, a, dataCheckDate)
	if err != nil {
		return err
	}
	date, err := contracts.ParseTradeDate(raw)
	if err != nil {
		return err
	}

	report, err := a.gate.Check(ctx, date)
	if err != nil {
		return fmt.Errorf("data check: %w", err)
	}

	PrintDoubleSeparator()
	fmt.Printf("  Data readiness %s\n", raw)
	PrintSeparator()
	PrintKeyValue("Active", fmt.Sprint(report.ActiveStocks), 16)
	PrintKeyValue("Quotes", coverageLine(report.Quotes, report.Ratios["quotes"]), 16)
	PrintKeyValue("J / DIF", coverageLine(report.Factors, report.Ratios["factors"]), 16)
	PrintKeyValue("MA5-30", coverageLine(report.MovingAverages, report.Ratios["moving_averages"]), 16)
	PrintKeyValue(fmt.Sprintf("History >= %dd", a.strategy.Detail.LookbackDays), coverageLine(report.FullHistory, report.Ratios["full_history"]), 16)
	PrintKeyValue("Score", fmt.Sprintf("%.4f", report.Score), 16)
	PrintSeparator()

	if report.Ready {
		PrintSuccess("Ready for B1 run")
		return nil
	}

	PrintError("Not ready")
	PrintList(report.Issues)
	return nil
}

func coverageLine(n int, ratio float64) string {
	return fmt.Sprintf("%d (%.2f%%)", n, ratio*100)
}
