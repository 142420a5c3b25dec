package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wonny/b1signal/backend/internal/contracts"
)

// signalCmd represents the signal command
var signalCmd = &cobra.Command{
	Use:   "signal",
	Short: "B1 태그 평가 실행/조회",
	Long: `B1 태그 평가를 실행하거나 저장된 결과를 조회합니다.

Subcommands:
  run   - 필터 → 태그 평가 실행 (선택적으로 저장)
  show  - 저장된 결과 조회
  log   - 최근 실행 이력

Example:
  go run ./cmd/quant signal run --date 20240115 --persist
  go run ./cmd/quant signal run --stocks 600000.SH,000001.SZ --tags up1,up3,high_vol
  go run ./cmd/quant signal show --date 20240115 --strength strong --limit 20`,
}

var (
	signalDate         string
	signalTags         []string
	signalStocks       []string
	signalPersist      bool
	signalForceRefresh bool
	signalJ            float64
	signalMacdDif      float64
	signalUser         int64
	signalJSON         bool

	showStrength string
	showLimit    int

	logLimit int
)

var (
	signalRunCmd = &cobra.Command{
		Use:   "run",
		Short: "B1 태그 평가 실행",
		Long: `지정한 거래일(YYYYMMDD)에 대해 B1 파이프라인을 실행합니다.

--date 미지정 시 daily_quotes의 최신 거래일을 사용합니다.
--stocks 지정 시 1차 필터를 건너뛰고 해당 종목만 평가합니다.
--j / --macd-dif 는 설정 row의 threshold보다 우선합니다.`,
		RunE: runSignal,
	}

	signalShowCmd = &cobra.Command{
		Use:   "show",
		Short: "저장된 결과 조회",
		RunE:  showSignals,
	}

	signalLogCmd = &cobra.Command{
		Use:   "log",
		Short: "최근 실행 이력",
		RunE:  showRunLog,
	}
)

func init() {
	rootCmd.AddCommand(signalCmd)
	signalCmd.AddCommand(signalRunCmd)
	signalCmd.AddCommand(signalShowCmd)
	signalCmd.AddCommand(signalLogCmd)

	f := signalRunCmd.Flags()
	f.StringVar(&signalDate, "date", "", "trade date YYYYMMDD (default: latest)")
	f.StringSliceVar(&signalTags, "tags", nil, "rule codes to evaluate (default: all enabled)")
	f.StringSliceVar(&signalStocks, "stocks", nil, "ts_codes to evaluate, bypasses the quick filter")
	f.BoolVar(&signalPersist, "persist", false, "replace stored results of the date")
	f.BoolVar(&signalForceRefresh, "force-refresh", false, "refetch the active universe")
	f.Float64Var(&signalJ, "j", 0, "override the KDJ-J threshold")
	f.Float64Var(&signalMacdDif, "macd-dif", 0, "override the MACD-DIF threshold")
	f.Int64Var(&signalUser, "user", 0, "rule owner user id (default: every owner)")
	f.BoolVar(&signalJSON, "json", false, "print the full response as JSON")

	signalShowCmd.Flags().StringVar(&signalDate, "date", "", "trade date YYYYMMDD (default: latest)")
	signalShowCmd.Flags().StringVar(&showStrength, "strength", "", "strong|medium|weak")
	signalShowCmd.Flags().IntVar(&showLimit, "limit", 50, "max rows (0 = all)")
	signalShowCmd.Flags().BoolVar(&signalJSON, "json", false, "print rows as JSON")

	signalLogCmd.Flags().IntVar(&logLimit, "limit", 20, "max rows")
}

func runSignal(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	date, err := resolveDate(ctx, a, signalDate)
	if err != nil {
		return err
	}

	req := contracts.FilterRequest{
		TradeDate:    date,
		TagCodes:     signalTags,
		StockCodes:   signalStocks,
		Persist:      signalPersist,
		ForceRefresh: signalForceRefresh,
	}
	flags := cmd.Flags()
	if flags.Changed("j") {
		req.JThreshold = &signalJ
	}
	if flags.Changed("macd-dif") {
		req.MacdDifThreshold = &signalMacdDif
	}
	if flags.Changed("user") {
		req.UserID = &signalUser
	}

	resp, runErr := a.orchestrator.FilterAndTag(ctx, req)
	if resp == nil {
		return fmt.Errorf("filter and tag: %w", runErr)
	}

	if signalJSON {
		if err := printJSON(resp); err != nil {
			return err
		}
		return runErr
	}

	printResponse(resp)
	return runErr
}

func showSignals(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	strength := contracts.SignalStrength(showStrength)
	if strength != "" && !strength.IsValid() {
		return fmt.Errorf("invalid strength %q (strong|medium|weak)", showStrength)
	}

	raw, err := resolveDate(ctx, a, signalDate)
	if err != nil {
		return err
	}
	date, err := contracts.ParseTradeDate(raw)
	if err != nil {
		return err
	}

	rows, err := a.results.GetByDate(ctx, date, strength, showLimit)
	if err != nil {
		return fmt.Errorf("get results: %w", err)
	}

	if signalJSON {
		return printJSON(rows)
	}

	PrintDoubleSeparator()
	fmt.Printf("  B1 Results %s (%d rows)\n", raw, len(rows))
	PrintDoubleSeparator()
	printResultTable(rows)
	return nil
}

func showRunLog(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	entries, err := a.runLog.Recent(ctx, logLimit)
	if err != nil {
		return fmt.Errorf("read run log: %w", err)
	}

	widths := []int{36, 10, 8, 6, 6, 6, 19}
	PrintTableHeader([]string{"RUN ID", "DATE", "STATUS", "CAND", "EVAL", "SAVED", "STARTED"}, widths)
	for _, e := range entries {
		PrintTableRow([]string{
			e.RunID,
			contracts.FormatTradeDate(e.TradeDate),
			string(e.Status),
			fmt.Sprint(e.CandidateCount),
			fmt.Sprint(e.EvaluatedCount),
			fmt.Sprint(e.SavedCount),
			e.StartedAt.Local().Format("2006-01-02 15:04:05"),
		}, widths)
	}
	return nil
}

// resolveDate returns raw, or the latest trade date on record when raw is empty
func resolveDate(ctx context.Context, a *app, raw string) (string, error) {
	if raw != "" {
		return raw, nil
	}
	latest, err := a.market.LatestTradeDate(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve latest trade date: %w", err)
	}
	return contracts.FormatTradeDate(latest), nil
}

func printResponse(resp *contracts.FilterResponse) {
	PrintDoubleSeparator()
	fmt.Printf("  B1 Run %s\n", resp.TradeDate)
	PrintSeparator()
	PrintKeyValue("Run ID", resp.RunID, 10)
	PrintKeyValue("Success", fmt.Sprint(resp.Success), 10)
	if resp.Message != "" {
		PrintKeyValue("Message", resp.Message, 10)
	}
	PrintKeyValue("Evaluated", fmt.Sprint(resp.Total), 10)
	PrintKeyValue("Saved", fmt.Sprint(resp.Saved), 10)
	if len(resp.FilteredCodes) > 0 {
		PrintKeyValue("Candidates", fmt.Sprint(len(resp.FilteredCodes)), 10)
	}
	PrintSeparator()

	for _, st := range resp.Stages {
		line := stageLine(st)
		if st.Error != "" {
			PrintError(line + "  " + st.Error)
			continue
		}
		PrintSuccess(line)
	}

	if resp.PersistError != "" {
		PrintWarning("persist failed: " + resp.PersistError)
	}

	if len(resp.Data) > 0 {
		PrintDoubleSeparator()
		printResultTable(resp.Data)
	}
}

// stageLine renders one stage as "B1_QUICK_FILTER  팩터 1차 필터   5000 → 120      42ms"
func stageLine(st contracts.StageResult) string {
	return fmt.Sprintf("%-16s %-12s %5d → %-5d %6dms", st.Stage, st.Stage.Description(), st.InputCount, st.OutputCount, st.Duration)
}

func printResultTable(rows []contracts.SignalResult) {
	widths := []int{10, 12, 7, 6, 5, 5, 40}
	PrintTableHeader([]string{"TS_CODE", "NAME", "SIGNAL", "SCORE", "+", "-", "FACTORS"}, widths)
	for _, r := range rows {
		PrintTableRow([]string{
			r.TsCode,
			r.StockName,
			string(r.Strength),
			fmt.Sprint(r.TagScore),
			fmt.Sprint(r.PlusCount),
			fmt.Sprint(r.MinusCount),
			r.DisplayFactor,
		}, widths)
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}
