package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/platformbuilds/mirador-watchdog/internal/catalogue"
	"github.com/platformbuilds/mirador-watchdog/internal/evaluation"
	"github.com/platformbuilds/mirador-watchdog/internal/format"
	"github.com/platformbuilds/mirador-watchdog/internal/models"
)

var (
	inputPath    string
	outputFormat string
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate scopes from a JSON file and print the result",
	Long: `Evaluate one scope ({"account", "asset", "period", "slices" | "series"}) or a
batch ({"scopes": [...]}) read from --input ("-" for stdin).`,
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().StringVarP(&inputPath, "input", "i", "-", "Input JSON file, - for stdin")
	evaluateCmd.Flags().StringVarP(&outputFormat, "output", "o", "text", "Output format: text or json")
}

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00D4FF"))
	redStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	greenStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

func runEvaluate(cmd *cobra.Command, _ []string) error {
	if outputFormat != "text" && outputFormat != "json" {
		return fmt.Errorf("unknown output format %q", outputFormat)
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	data, err := readInput(cmd.InOrStdin(), inputPath)
	if err != nil {
		return err
	}
	scopes, err := decodeScopes(data)
	if err != nil {
		return err
	}

	cat, err := loadCatalogue(cfg)
	if err != nil {
		return err
	}
	engine, err := newEngine(cfg, catalogue.NewStore(cat), log)
	if err != nil {
		return err
	}

	results, err := engine.EvaluateAll(cmd.Context(), scopes)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if outputFormat == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if len(results) == 1 {
			return enc.Encode(results[0])
		}
		return enc.Encode(results)
	}

	var failed int
	for _, res := range results {
		if res.Failed() {
			failed++
		}
		if err := renderResult(out, res); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d scopes failed", failed, len(results))
	}
	return nil
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return data, nil
}

// decodeScopes accepts either a batch document or a single scope.
func decodeScopes(data []byte) ([]evaluation.Scope, error) {
	var batch struct {
		Scopes []evaluation.Scope `json:"scopes"`
	}
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("failed to parse input: %w", err)
	}
	if len(batch.Scopes) > 0 {
		return batch.Scopes, nil
	}

	var scope evaluation.Scope
	if err := json.Unmarshal(data, &scope); err != nil {
		return nil, fmt.Errorf("failed to parse input: %w", err)
	}
	if len(scope.Slices) == 0 && len(scope.Series) == 0 {
		return nil, errors.New("input has no scopes, slices or series")
	}
	return []evaluation.Scope{scope}, nil
}

// renderResult prints the headline, the pruned RCA tree and any per-slice problems.
func renderResult(w io.Writer, res *evaluation.Result) error {
	title := fmt.Sprintf("%s / %s (%s)", res.Account, res.Asset, res.Period)
	if _, err := fmt.Fprintln(w, headerStyle.Render(title)); err != nil {
		return err
	}
	if res.Failed() {
		_, err := fmt.Fprintln(w, redStyle.Render("failed: "+res.Failure))
		return err
	}

	sum := res.Summary
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("%d slices, %d highlights, %d negative warnings, %d negative criticals",
		len(res.Slices), sum.Total, sum.NegativeWarnings, sum.NegativeCriticals)))
	for _, k := range sum.Kpis {
		fmt.Fprintln(w, "  "+k.Comment)
	}
	for _, s := range sum.Negative {
		fmt.Fprintln(w, redStyle.Render("  - "+highlight(s)))
	}
	for _, s := range sum.Positive {
		fmt.Fprintln(w, greenStyle.Render("  + "+highlight(s)))
	}

	if res.RCAText != "" {
		fmt.Fprintln(w)
		fmt.Fprint(w, res.RCAText)
	}
	for _, e := range res.Errors {
		fmt.Fprintln(w, warningStyle.Render(fmt.Sprintf("error [%s] %s: %s", e.Stage, e.Key, e.Message)))
	}
	for _, msg := range res.Warnings {
		fmt.Fprintln(w, warningStyle.Render("warning: "+msg))
	}
	_, err := fmt.Fprintln(w)
	return err
}

func highlight(s models.Slice) string {
	line := format.Describe(s)
	if s.IsCritical {
		line += " [critical]"
	}
	return line
}
