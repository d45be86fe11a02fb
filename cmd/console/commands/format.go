package commands

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/careerforge/console/internal/abtest"
	"github.com/careerforge/console/internal/contracts"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

const (
	separator       = "───────────────────────────────────────────────────────────"
	doubleSeparator = "═══════════════════════════════════════════════════════════"
)

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("✅ %s\n", message)
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Printf("❌ %s\n", message)
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Printf("⚠️  %s\n", message)
}

// writeHeader prints a boxed title
func writeHeader(w io.Writer, title string) {
	fmt.Fprintln(w, doubleSeparator)
	fmt.Fprintf(w, "  %s\n", title)
	fmt.Fprintln(w, separator)
}

// writeKeyValue prints an aligned key-value pair
func writeKeyValue(w io.Writer, key string, value string) {
	fmt.Fprintf(w, "  %-16s : %s\n", key, value)
}

// writeTableRow prints one left-aligned row
func writeTableRow(w io.Writer, values []string, widths []int) {
	cells := make([]string, len(values))
	for i, val := range values {
		cells[i] = fmt.Sprintf("%-*s", widths[i], val)
	}
	fmt.Fprintln(w, strings.TrimRight(strings.Join(cells, "  "), " "))
}

// writeRecord prints one evaluation decision
func writeRecord(w io.Writer, rec *contracts.EvaluationRecord) {
	title := "Evaluation: " + rec.TestName
	if rec.DryRun {
		title += " (dry run, nothing written)"
	}
	writeHeader(w, title)

	writeKeyValue(w, "Result", rec.Status())
	writeKeyValue(w, "Reason", string(rec.Reason))
	if rec.LeaderID != "" {
		writeKeyValue(w, "Leader", rec.LeaderID)
	}
	if rec.RunnerUpID != "" {
		writeKeyValue(w, "Runner-up", rec.RunnerUpID)
	}
	if len(rec.Deactivated) > 0 {
		writeKeyValue(w, "Deactivated", strings.Join(rec.Deactivated, ", "))
	}
	if len(rec.SkippedOverride) > 0 {
		writeKeyValue(w, "Kept (override)", strings.Join(rec.SkippedOverride, ", "))
	}
	writeKeyValue(w, "Trigger", string(rec.Trigger))
	if rec.ID != "" {
		writeKeyValue(w, "Evaluation ID", rec.ID)
	}
	fmt.Fprintln(w, doubleSeparator)
}

// writeSummary prints a one-line-per-test table for a full run
func writeSummary(w io.Writer, s *abtest.RunSummary) {
	title := fmt.Sprintf("Evaluation run %s", s.RunID)
	if s.DryRun {
		title += " (dry run)"
	}
	writeHeader(w, title)

	widths := []int{28, 18, 10, 40}
	writeTableRow(w, []string{"TEST", "REASON", "WINNER", "DETAIL"}, widths)
	fmt.Fprintln(w, separator)

	for _, rec := range s.Records {
		winner := rec.WinnerID
		if winner == "" {
			winner = "-"
		}
		writeTableRow(w, []string{rec.TestName, string(rec.Reason), winner, rec.Status()}, widths)
	}

	failed := make([]string, 0, len(s.Failed))
	for name := range s.Failed {
		failed = append(failed, name)
	}
	sort.Strings(failed)
	for _, name := range failed {
		writeTableRow(w, []string{name, "failed", "-", s.Failed[name]}, widths)
	}

	fmt.Fprintln(w, separator)
	fmt.Fprintf(w, "  %d tests: %d winners, %d inconclusive, %d insufficient data, %d single variant, %d in progress, %d failed (%s)\n",
		s.Total, s.Winners, s.Inconclusive, s.InsufficientData, s.SingleVariant, s.InProgress, len(s.Failed),
		s.Duration.Round(time.Millisecond))
	fmt.Fprintln(w, doubleSeparator)
}
