package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/wonny/mizan/internal/brain"
	"github.com/wonny/mizan/internal/contracts"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

var (
	green  = color.New(color.FgGreen, color.Bold)
	yellow = color.New(color.FgYellow, color.Bold)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	faint  = color.New(color.Faint)
)

const (
	doubleRule = "═══════════════════════════════════════════════════════════"
	singleRule = "───────────────────────────────────────────────────────────"
)

// verdictColor maps a verdict to its display colour
func verdictColor(verdict string) *color.Color {
	switch verdict {
	case contracts.VerdictInvest:
		return green
	case contracts.VerdictWatch:
		return yellow
	default:
		return red
	}
}

func statusColor(s contracts.Status) *color.Color {
	switch s {
	case contracts.StatusOK:
		return green
	case contracts.StatusPartial, contracts.StatusSkipped:
		return yellow
	default:
		return red
	}
}

// PrintResponse renders one pipeline response for a terminal
func PrintResponse(w io.Writer, resp *contracts.PipelineResponse) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, doubleRule)
	fmt.Fprintf(w, "  %s\n", responseTitle(resp))
	fmt.Fprintln(w, singleRule)

	if resp.Status == contracts.StatusError {
		red.Fprintf(w, "  HALTED at %s", resp.FailedStage)
		if resp.Error != nil {
			fmt.Fprintf(w, ": %s (%s)", resp.Error.Message, resp.Error.Code)
		}
		fmt.Fprintln(w)
	} else if resp.Verdict != nil {
		v, _ := resp.Verdict.Data()
		verdictColor(v.Verdict).Fprintf(w, "  %s", v.Verdict)
		fmt.Fprintf(w, "  %s  (confidence %d)\n", v.SetupLabel, resp.Pipeline.Confidence)
		if v.MaxPositionSize != nil {
			fmt.Fprintf(w, "  Max position: %.1f%% NAV\n", *v.MaxPositionSize)
		}
		if v.Summary != "" {
			fmt.Fprintf(w, "\n  %s\n", v.Summary)
		}
		if v.RiskNotes != "" {
			faint.Fprintf(w, "  Risk: %s\n", v.RiskNotes)
		}
	}

	fmt.Fprintln(w, singleRule)
	for _, res := range resp.Results() {
		fmt.Fprintf(w, "  %-4s %-17s ", res.Gate().ShortName(), res.Gate())
		statusColor(res.Status()).Fprintf(w, "%-8s", res.Status())
		fmt.Fprintf(w, " %3d  %s\n", res.Confidence(), res.OneLiner())
	}

	if len(resp.Pipeline.Notes) > 0 {
		fmt.Fprintln(w, singleRule)
		for _, n := range resp.Pipeline.Notes {
			yellow.Fprintf(w, "  ! %s\n", n)
		}
	}

	fmt.Fprintln(w, singleRule)
	faint.Fprintf(w, "  run %s  policy %s (%s)\n",
		resp.Metadata.RunID, resp.Metadata.PolicyID, shortHash(resp.Metadata.PolicyHash))
	fmt.Fprintln(w, doubleRule)
}

func responseTitle(resp *contracts.PipelineResponse) string {
	if resp.Identity != nil {
		if id, ok := resp.Identity.Data(); ok {
			return fmt.Sprintf("%s (%s)", id.CompanyName, id.Ticker)
		}
	}
	return fmt.Sprintf("%q", resp.Metadata.Query)
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

// PrintBatchSummary renders one line per batch result
func PrintBatchSummary(w io.Writer, results []brain.BatchResult) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, doubleRule)
	fmt.Fprintf(w, "  Batch summary (%d)\n", len(results))
	fmt.Fprintln(w, singleRule)
	for _, r := range results {
		fmt.Fprintf(w, "  %-20s ", truncateLabel(r.Query, 20))
		switch {
		case r.Response == nil:
			red.Fprintf(w, "FAILED   %s\n", r.Error)
		case r.Response.Status == contracts.StatusError:
			red.Fprintf(w, "HALTED   %s\n", r.Response.FailedStage)
		default:
			v := r.Response.Metadata.Verdict
			verdictColor(v).Fprintf(w, "%-8s", v)
			fmt.Fprintf(w, " %3d\n", r.Response.Pipeline.Confidence)
		}
	}
	fmt.Fprintln(w, doubleRule)
}

func truncateLabel(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// PrintJSON writes v as indented JSON
func PrintJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// PrintSuccess prints a success message
func PrintSuccess(w io.Writer, message string) {
	green.Fprintf(w, "✅ %s\n", message)
}

// PrintWarning prints a warning message
func PrintWarning(w io.Writer, message string) {
	yellow.Fprintf(w, "⚠️  %s\n", strings.TrimSpace(message))
}
