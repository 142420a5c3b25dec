package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wonny/b1signal/backend/internal/s2_signals"
	"github.com/wonny/b1signal/backend/internal/selection"
)

// tagsCmd represents the tags command
var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "태그 설정 조회",
}

var tagsUser int64

var tagsListCmd = &cobra.Command{
	Use:   "list",
	Short: "전략의 모든 태그 규칙 (비활성 포함)",
	Long: `config.strategy_config_tags 의 규칙을 is_filter desc, sort_order asc 순서로 출력합니다.

EVAL 컬럼이 "-" 인 규칙은 등록된 평가기가 없어 항상 미충족으로 처리됩니다.

Example:
  go run ./cmd/quant tags list --user 1`,
	RunE: listTags,
}

func init() {
	rootCmd.AddCommand(tagsCmd)
	tagsCmd.AddCommand(tagsListCmd)
	tagsListCmd.Flags().Int64Var(&tagsUser, "user", 0, "rule owner user id (default: every owner)")
}

func listTags(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var userID *int64
	if cmd.Flags().Changed("user") {
		userID = &tagsUser
	}

	rules, err := a.loader.ListAll(ctx, userID)
	if err != nil {
		return fmt.Errorf("list tags: %w", err)
	}

	registry := s2_signals.DefaultRegistry()

	PrintDoubleSeparator()
	fmt.Printf("  %s tag rules (%d)\n", a.strategy.Meta.StrategyType, len(rules))
	PrintDoubleSeparator()

	widths := []int{5, 6, 20, 18, 8, 7, 8, 10, 5}
	PrintTableHeader([]string{"ID", "USER", "CODE", "NAME", "CATEGORY", "FILTER", "ENABLED", "THRESHOLD", "EVAL"}, widths)
	for _, r := range rules {
		threshold := "-"
		if r.Threshold != nil {
			threshold = strconv.FormatFloat(*r.Threshold, 'f', -1, 64)
		}
		eval := "-"
		if registry.Has(r.Code) || selection.IsKnownFilter(r.Code) {
			eval = "yes"
		}
		PrintTableRow([]string{
			strconv.FormatInt(r.ID, 10),
			strconv.FormatInt(r.UserID, 10),
			r.Code,
			r.Name,
			string(r.Category),
			strconv.FormatBool(r.IsFilter),
			strconv.FormatBool(r.Enabled),
			threshold,
			eval,
		}, widths)
	}

	return nil
}
