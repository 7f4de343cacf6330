// Package reporting renders a colorized, styled terminal summary of a
// dispatcher run from the EvaluationResult stream it produced.
package reporting

import (
	"bufio"
	"encoding/json"
	"fmt"
	"image/color"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss/v2"
	"github.com/charmbracelet/lipgloss/v2/table"

	"github.com/agentv/agentv"
	"github.com/agentv/agentv/internal/help"
)

// PrintStyledReport renders results as a summary table plus overall
// statistics, and (when verbose) a per-case detailed breakdown.
func PrintStyledReport(results []agentv.EvaluationResult, verbose bool) error {
	styles := help.DefaultStyles()

	var content strings.Builder
	content.WriteString(captureReportHeader(styles))
	content.WriteString(captureSummaryTable(results, styles))
	content.WriteString(captureOverallStats(results, styles))

	if verbose {
		content.WriteString(captureDetailedBreakdown(results, styles))
	}

	marginStyle := lipgloss.NewStyle().
		MarginTop(1).
		MarginBottom(1)

	fmt.Println(marginStyle.Render(content.String()))

	return nil
}

func h1(styles help.Styles, text string) string { return styles.Heading.Render("# "+text) + "\n\n" }
func h2(styles help.Styles, text string) string { return styles.Heading.Render("## "+text) + "\n\n" }
func h3(styles help.Styles, text string) string { return styles.Heading.Render("### "+text) + "\n\n" }
func h4(styles help.Styles, text string) string {
	return styles.Heading.Render("#### "+text) + "\n\n"
}

func captureReportHeader(styles help.Styles) string {
	return h1(styles, "Evaluation Summary")
}

func captureSummaryTable(results []agentv.EvaluationResult, styles help.Styles) string {
	var output strings.Builder

	rows := make([][]string, 0, len(results))
	for _, result := range results {
		rows = append(rows, buildResultRow(result, styles))
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(styles.Heading).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().
					Bold(true).
					Foreground(styles.Heading.GetForeground()).
					Align(lipgloss.Left).Padding(0, 2)
			}
			return lipgloss.NewStyle().Align(lipgloss.Left).Padding(0, 2)
		}).
		Headers("Test", "Status", "Score", "Tools", "Errors", "Tokens (I→O)").
		Rows(rows...)

	output.WriteString(t.String() + "\n")
	output.WriteString("\n")
	return output.String()
}

func buildResultRow(result agentv.EvaluationResult, styles help.Styles) []string {
	name := result.TestID
	if len(name) > 25 {
		name = name[:22] + "..."
	}

	if result.Error != "" {
		return []string{name, styles.Error.Render("ERROR"), "-", "-", "-", "-"}
	}

	var status string
	switch result.Verdict {
	case agentv.VerdictPass:
		status = styles.Success.Render("PASS")
	case agentv.VerdictBorderline:
		status = styles.Muted.Render("BORDERLINE")
	case agentv.VerdictFail:
		status = styles.Error.Render("FAIL")
	default:
		status = styles.Muted.Render("NO GRADE")
	}

	scoreStr := fmt.Sprintf("%.2f", result.Score)

	toolsStr, errorsStr, tokenStr := "-", "-", "-"
	if result.TraceSummary != nil {
		total := 0
		for _, n := range result.TraceSummary.ToolCallsByName {
			total += n
		}
		toolsStr = fmt.Sprintf("%d", total)
		errorsStr = fmt.Sprintf("%d", result.TraceSummary.ErrorCount)
		if u := result.TraceSummary.TokenUsage; u != nil {
			tokenStr = fmt.Sprintf("%s → %s", formatTokens(u.Input), formatTokens(u.Output))
		}
	}

	return []string{name, status, scoreStr, toolsStr, errorsStr, tokenStr}
}

func captureOverallStats(results []agentv.EvaluationResult, styles help.Styles) string {
	var output strings.Builder

	total := len(results)
	var errorCount, passCount, failCount, borderlineCount int
	var totalDurationMs int64
	var totalInputTokens, totalOutputTokens, totalToolCalls int

	for _, result := range results {
		if result.Error != "" {
			errorCount++
			continue
		}
		switch result.Verdict {
		case agentv.VerdictPass:
			passCount++
		case agentv.VerdictBorderline:
			borderlineCount++
		case agentv.VerdictFail:
			failCount++
		}
		if result.TraceSummary != nil {
			totalDurationMs += result.TraceSummary.DurationMs
			for _, n := range result.TraceSummary.ToolCallsByName {
				totalToolCalls += n
			}
			if u := result.TraceSummary.TokenUsage; u != nil {
				totalInputTokens += u.Input
				totalOutputTokens += u.Output
			}
		}
	}

	output.WriteString(h2(styles, "Overall Statistics"))
	output.WriteString(fmt.Sprintf("Total Evaluations: %d\n", total))

	if total > 0 {
		if passCount > 0 {
			output.WriteString(fmt.Sprintf("  %s\n", styles.Success.Render(
				fmt.Sprintf("✓ Pass:       %d (%.0f%%)", passCount, pct(passCount, total)))))
		}
		if borderlineCount > 0 {
			output.WriteString(fmt.Sprintf("  %s\n", styles.Muted.Render(
				fmt.Sprintf("◐ Borderline: %d (%.0f%%)", borderlineCount, pct(borderlineCount, total)))))
		}
		if failCount > 0 {
			output.WriteString(fmt.Sprintf("  %s\n", styles.Error.Render(
				fmt.Sprintf("✗ Fail:       %d (%.0f%%)", failCount, pct(failCount, total)))))
		}
		if errorCount > 0 {
			output.WriteString(fmt.Sprintf("  %s\n", styles.Error.Render(
				fmt.Sprintf("⚠ Error:      %d (%.0f%%)", errorCount, pct(errorCount, total)))))
		}
	}
	output.WriteString("\n")

	if totalDurationMs > 0 || totalInputTokens > 0 {
		output.WriteString(h3(styles, "Performance Metrics"))
		if totalDurationMs > 0 {
			output.WriteString(fmt.Sprintf("Total Duration: %s\n", formatDurationMs(totalDurationMs)))
		}
		if totalInputTokens > 0 {
			output.WriteString(fmt.Sprintf("Total Tokens:   %s (I) → %s (O)\n",
				formatTokens(totalInputTokens), formatTokens(totalOutputTokens)))
		}
		output.WriteString("\n")
	}

	if totalToolCalls > 0 {
		output.WriteString(h3(styles, "Tool Execution"))
		output.WriteString(fmt.Sprintf("Total Tool Calls: %d\n", totalToolCalls))
		output.WriteString("\n")
	}

	return output.String()
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

func captureDetailedBreakdown(results []agentv.EvaluationResult, styles help.Styles) string {
	var output strings.Builder
	output.WriteString(h2(styles, "Detailed Breakdown"))

	for i, result := range results {
		output.WriteString(captureResultDetail(result, styles))
		if i < len(results)-1 {
			output.WriteString(strings.Repeat("─", 80) + "\n\n")
		}
	}
	return output.String()
}

func captureResultDetail(result agentv.EvaluationResult, styles help.Styles) string {
	var output strings.Builder

	output.WriteString(h3(styles, result.TestID))
	if result.Dataset != "" {
		output.WriteString(styles.Muted.Render("dataset: "+result.Dataset) + "\n\n")
	}

	switch {
	case result.Error != "":
		output.WriteString(fmt.Sprintf("Status: %s\n", styles.Error.Render("ERROR")))
		output.WriteString(fmt.Sprintf("Error: %s\n", result.Error))
	default:
		statusStyle := styles.Muted
		switch result.Verdict {
		case agentv.VerdictPass:
			statusStyle = styles.Success
		case agentv.VerdictFail:
			statusStyle = styles.Error
		}
		output.WriteString(fmt.Sprintf("Status: %s (%.2f)\n", statusStyle.Render(string(result.Verdict)), result.Score))
	}
	output.WriteString("\n")

	if result.TraceSummary != nil && len(result.TraceSummary.ToolNames) > 0 {
		output.WriteString(h4(styles, "Execution Trace"))
		output.WriteString(fmt.Sprintf("Duration: %s\n", formatDurationMs(result.TraceSummary.DurationMs)))
		for _, name := range result.TraceSummary.ToolNames {
			output.WriteString(fmt.Sprintf("  Tool: %s (%d calls)\n", name, result.TraceSummary.ToolCallsByName[name]))
		}
		output.WriteString("\n")
	}

	if len(result.EvaluatorScores) > 0 {
		output.WriteString(h4(styles, "Evaluator Breakdown"))
		for _, ns := range result.EvaluatorScores {
			scoreColor := getScoreColor(ns.Score.Score, styles)
			bar := lipgloss.NewStyle().Foreground(scoreColor).Render(makeScoreBar(ns.Score.Score))
			output.WriteString(fmt.Sprintf("%-20s %.2f  %s\n", ns.Name+":", ns.Score.Score, bar))
			for _, miss := range ns.Score.Misses {
				output.WriteString(styles.Muted.Render("    miss: "+miss) + "\n")
			}
		}
		output.WriteString("\n")
	}

	if result.Reasoning != "" {
		output.WriteString(h4(styles, "Reasoning"))
		output.WriteString(result.Reasoning + "\n\n")
	}

	return output.String()
}

// LoadResultsFile reads a jsonl stream of EvaluationResult records, the
// format internal/writer's jsonl writer produces, for offline reporting.
func LoadResultsFile(path string) ([]agentv.EvaluationResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var results []agentv.EvaluationResult
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var r agentv.EvaluationResult
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			return nil, fmt.Errorf("reporting: parsing %s: %w", path, err)
		}
		results = append(results, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func formatDurationMs(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	return fmt.Sprintf("%.1fs", float64(ms)/1000)
}

func formatTokens(count int) string {
	switch {
	case count >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(count)/1_000_000)
	case count >= 1_000:
		return fmt.Sprintf("%.1fk", float64(count)/1_000)
	default:
		return fmt.Sprintf("%d", count)
	}
}

func getScoreColor(score float64, styles help.Styles) color.Color {
	switch {
	case score >= agentv.PassThreshold:
		return styles.Success.GetForeground()
	case score >= agentv.BorderlineThreshold:
		return styles.Muted.GetForeground()
	default:
		return styles.Error.GetForeground()
	}
}

func makeScoreBar(score float64) string {
	const slots = 5
	filled := int(agentv.Clamp01(score)*slots + 0.5)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", slots-filled)
	return bar
}
