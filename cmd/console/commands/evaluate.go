package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/careerforge/console/internal/abtest"
	"github.com/careerforge/console/internal/contracts"
)

// evaluateCmd represents the evaluate command
var evaluateCmd = &cobra.Command{
	Use:   "evaluate [test_name]",
	Short: "A/B 테스트 즉시 평가",
	Long: `A/B 테스트를 즉시 평가하고 승자를 선택합니다.

테스트 이름을 생략하면 모든 테스트를 평가합니다.
--dry-run 은 결정만 출력하고 DB/캐시/알림에는 아무것도 쓰지 않습니다.

Example:
  go run ./cmd/console evaluate
  go run ./cmd/console evaluate welcome-subject --dry-run`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEvaluate,
}

var evaluateDryRun bool

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().BoolVar(&evaluateDryRun, "dry-run", false, "결정만 출력 (쓰기 없음)")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	opts := abtest.Options{Trigger: contracts.TriggerCLI, DryRun: evaluateDryRun}

	if len(args) == 1 {
		record, err := a.runner.EvaluateTest(ctx, args[0], opts)
		if err != nil {
			return err
		}
		writeRecord(out, record)
		return nil
	}

	summary, err := a.runner.RunAll(ctx, opts)
	if err != nil {
		return err
	}
	writeSummary(out, summary)

	if len(summary.Failed) > 0 {
		return fmt.Errorf("%d of %d tests failed", len(summary.Failed), summary.Total)
	}
	return nil
}
