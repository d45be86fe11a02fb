package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/careerforge/console/internal/abtest"
	"github.com/careerforge/console/internal/contracts"
)

// significanceCmd represents the significance command
var significanceCmd = &cobra.Command{
	Use:   "significance",
	Short: "두 변형의 오픈율 유의성 계산",
	Long: `두 변형의 발송/오픈 수로 two-proportion z-test 를 계산합니다.
DB 연결 없이 동작합니다. p < 0.05 이면 유의합니다.

Example:
  go run ./cmd/console significance --a-sends 1000 --a-opens 200 --b-sends 1000 --b-opens 250`,
	RunE: runSignificance,
}

var (
	sigASends, sigAOpens int64
	sigBSends, sigBOpens int64
)

func init() {
	rootCmd.AddCommand(significanceCmd)

	significanceCmd.Flags().Int64Var(&sigASends, "a-sends", 0, "A 발송 수")
	significanceCmd.Flags().Int64Var(&sigAOpens, "a-opens", 0, "A 오픈 수")
	significanceCmd.Flags().Int64Var(&sigBSends, "b-sends", 0, "B 발송 수")
	significanceCmd.Flags().Int64Var(&sigBOpens, "b-opens", 0, "B 오픈 수")

	for _, name := range []string{"a-sends", "a-opens", "b-sends", "b-opens"} {
		_ = significanceCmd.MarkFlagRequired(name)
	}
}

func runSignificance(cmd *cobra.Command, args []string) error {
	a := contracts.VariantPerformance{VariantID: "A", SendsCount: sigASends, OpensCount: sigAOpens}
	b := contracts.VariantPerformance{VariantID: "B", SendsCount: sigBSends, OpensCount: sigBOpens}

	verdict, err := abtest.Evaluate(a, b)
	if err != nil {
		return err
	}

	writeSignificance(cmd.OutOrStdout(), a, b, verdict)
	return nil
}

func writeSignificance(w io.Writer, a, b contracts.VariantPerformance, v contracts.SignificanceVerdict) {
	rateA, _ := a.OpenRate()
	rateB, _ := b.OpenRate()

	writeHeader(w, "Two-proportion z-test (open rate)")
	writeKeyValue(w, "A", fmt.Sprintf("%d / %d opens (%.2f%%)", a.OpensCount, a.SendsCount, rateA))
	writeKeyValue(w, "B", fmt.Sprintf("%d / %d opens (%.2f%%)", b.OpensCount, b.SendsCount, rateB))
	fmt.Fprintln(w, separator)
	writeKeyValue(w, "z-score", fmt.Sprintf("%.3f", v.ZScore))
	writeKeyValue(w, "p-value", fmt.Sprintf("%.4f", v.PValue))

	if v.Significant {
		writeKeyValue(w, "Significant", fmt.Sprintf("yes (p < %.2f)", abtest.SignificanceLevel))
	} else {
		writeKeyValue(w, "Significant", "no, not yet significant")
	}
	fmt.Fprintln(w, doubleSeparator)
}
