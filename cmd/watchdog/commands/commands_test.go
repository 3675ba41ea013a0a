package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/mirador-watchdog/internal/evaluation"
	"github.com/platformbuilds/mirador-watchdog/internal/models"
)

const scopeJSON = `{
  "account": "acme", "asset": "shop", "period": "daily",
  "slices": [
    {"data_source": "Ecommerce", "metric": "Revenue", "y": 800, "yhat": 1000, "yhat_upper": 1100, "yhat_lower": 950},
    {"data_source": "Ecommerce", "metric": "Orders", "y": 40, "yhat": 50, "yhat_upper": 55, "yhat_lower": 48}
  ]
}`

// resetFlags puts every flag of cmd and its subcommands back to its default,
// since the command tree and its flag variables are package globals.
func resetFlags(t *testing.T, cmd *cobra.Command) {
	t.Helper()
	reset := func(f *pflag.Flag) {
		require.NoError(t, f.Value.Set(f.DefValue), f.Name)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(t, sub)
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	chdir(t, t.TempDir())
	resetFlags(t, rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDecodeScopes(t *testing.T) {
	scopes, err := decodeScopes([]byte(scopeJSON))
	require.NoError(t, err)
	require.Len(t, scopes, 1)
	assert.Equal(t, "acme", scopes[0].Account)
	assert.Len(t, scopes[0].Slices, 2)

	scopes, err = decodeScopes([]byte(`{"scopes": [` + scopeJSON + `,` + scopeJSON + `]}`))
	require.NoError(t, err)
	assert.Len(t, scopes, 2)

	_, err = decodeScopes([]byte(`{"account": "acme"}`))
	assert.Error(t, err)

	_, err = decodeScopes([]byte(`not json`))
	assert.Error(t, err)
}

func TestRenderResult(t *testing.T) {
	res := &evaluation.Result{
		Account: "acme", Asset: "shop", Period: models.PeriodDaily,
		RCAText: "Revenue $800 (▼20%)\n└── Orders 40 (▼20%)\n",
		Summary: evaluation.Summary{
			Total:            2,
			NegativeWarnings: 1,
			Negative: []models.Slice{{DataSource: "Ecommerce", Metric: "Revenue",
				Y: 800, Yhat: 1000, IsCritical: true}},
		},
		Errors:   []evaluation.SliceError{{Key: "Ecommerce|Orders", Stage: "impact", Message: "ambiguous"}},
		Warnings: []string{"skipped series"},
	}

	var b bytes.Buffer
	require.NoError(t, renderResult(&b, res))
	out := b.String()
	assert.Contains(t, out, "acme / shop (daily)")
	assert.Contains(t, out, "0 slices, 2 highlights, 1 negative warnings, 0 negative criticals")
	assert.Contains(t, out, "- Revenue $800 (▼20%) [critical]")
	assert.Contains(t, out, "└── Orders 40 (▼20%)")
	assert.Contains(t, out, "error [impact] Ecommerce|Orders: ambiguous")
	assert.Contains(t, out, "warning: skipped series")

	b.Reset()
	require.NoError(t, renderResult(&b, &evaluation.Result{Account: "acme", Asset: "shop", Failure: "unknown period"}))
	assert.Contains(t, b.String(), "failed: unknown period")
}

func TestEvaluateCommand(t *testing.T) {
	input := writeFile(t, "scope.json", scopeJSON)

	out, err := run(t, "evaluate", "--input", input, "--output", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"run_id"`)
	assert.Contains(t, out, `"account": "acme"`)

	out, err = run(t, "evaluate", "--input", input)
	require.NoError(t, err)
	assert.Contains(t, out, "acme / shop (daily)")
}

func TestRun_FlagsDoNotLeakBetweenCalls(t *testing.T) {
	input := writeFile(t, "scope.json", scopeJSON)

	_, err := run(t, "evaluate", "--input", input, "--output", "json")
	require.NoError(t, err)
	require.Equal(t, "json", outputFormat)

	_, err = run(t, "catalogue")
	require.NoError(t, err)
	assert.Equal(t, "text", outputFormat)
	assert.Equal(t, "-", inputPath)
	assert.False(t, evaluateCmd.Flags().Lookup("output").Changed)
}

func TestEvaluateCommand_Errors(t *testing.T) {
	input := writeFile(t, "scope.json", scopeJSON)

	_, err := run(t, "evaluate", "--input", input, "--output", "yaml")
	assert.Error(t, err)

	_, err = run(t, "evaluate", "--input", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	bad := writeFile(t, "bad.json", `{"scopes": [{"account": "acme", "period": "monthly", "slices": []}]}`)
	_, err = run(t, "evaluate", "--input", bad)
	assert.ErrorContains(t, err, "1 of 1 scopes failed")
}

func TestCatalogueCommand(t *testing.T) {
	out, err := run(t, "catalogue")
	require.NoError(t, err)
	assert.NotEmpty(t, out)

	file := writeFile(t, "catalogue.yaml", `roots:
  - id: rev
    data_source: Ecommerce
    metric: Revenue
    children:
      - id: orders
        data_source: Ecommerce
        metric: Orders
`)
	out, err = run(t, "catalogue", "--file", file)
	require.NoError(t, err)
	assert.Equal(t, "rev Ecommerce None None Revenue\n└── orders Ecommerce None None Orders\n", out)

	invalid := writeFile(t, "invalid.yaml", `roots:
  - id: rev
    data_source: same_as_parent
    metric: Revenue
`)
	_, err = run(t, "catalogue", "--file", invalid)
	assert.Error(t, err)
}

// chdir changes the working directory for the duration of the test,
// like testing.T.Chdir (Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { require.NoError(t, os.Chdir(wd)) })
}
