package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"

	serveradapter "github.com/hylla/cotiza/internal/adapters/server"
	"github.com/hylla/cotiza/internal/adapters/server/common"
	"github.com/hylla/cotiza/internal/config"
	"github.com/hylla/cotiza/internal/tui"
)

// TestMain sets deterministic environment defaults for CLI tests.
func TestMain(m *testing.M) {
	_ = os.Setenv(envDevMode, "false")
	os.Exit(m.Run())
}

// scriptedProgram represents program data used to exercise model flows inside run() tests.
type scriptedProgram struct {
	model tea.Model
	runFn func(tea.Model) (tea.Model, error)
}

// Run runs scripted model interactions and returns the final state.
func (p scriptedProgram) Run() (tea.Model, error) {
	if p.runFn == nil {
		return p.model, nil
	}
	return p.runFn(p.model)
}

// cliHarness runs commands against one temp database.
type cliHarness struct {
	t    *testing.T
	base []string
}

func newCLIHarness(t *testing.T) cliHarness {
	t.Helper()
	dir := t.TempDir()
	return cliHarness{t: t, base: []string{
		"--config", filepath.Join(dir, "cotiza.toml"),
		"--db", filepath.Join(dir, "cotiza.db"),
	}}
}

func (h cliHarness) run(args ...string) (string, error) {
	h.t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), append(append([]string{}, h.base...), args...), &stdout, &stderr)
	return stdout.String(), err
}

func (h cliHarness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	if err != nil {
		h.t.Fatalf("run(%v) error = %v", args, err)
	}
	return out
}

func decodeInto[T any](t *testing.T, raw string) T {
	t.Helper()
	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		t.Fatalf("decode %q: %v", raw, err)
	}
	return out
}

func TestRunPathsCommand(t *testing.T) {
	var stdout bytes.Buffer
	if err := run(context.Background(), []string{"--app", "cotiza-test", "paths"}, &stdout, nil); err != nil {
		t.Fatalf("run(paths) error = %v", err)
	}
	out := stdout.String()
	for _, want := range []string{"app: cotiza-test", "dev_mode: false", "config:", "db:"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in paths output:\n%s", want, out)
		}
	}
}

func TestRunUnknownCommand(t *testing.T) {
	if err := run(context.Background(), []string{"bogus"}, nil, nil); err == nil {
		t.Fatal("expected unknown command error")
	}
}

func TestRunQuoteWorkflow(t *testing.T) {
	h := newCLIHarness(t)
	h.mustRun("tenant", "create", "acme", "Acme Corp")
	if out := h.mustRun("tenant", "list"); !strings.Contains(out, "Acme Corp") {
		t.Fatalf("expected tenant in list:\n%s", out)
	}

	client := decodeInto[common.Client](t, h.mustRun("--tenant", "acme", "--json", "client", "add", "--name", "Ana", "--email", "ana@example.com"))
	product := decodeInto[common.Product](t, h.mustRun("--tenant", "acme", "--json", "product", "add", "--name", "Widget", "--price", "10.00"))

	quote := decodeInto[common.Quote](t, h.mustRun("--tenant", "acme", "--json", "quote", "create",
		"--client", client.ID, "--item", product.ID+":2", "--notes", "Net 30"))
	if quote.Number != "COT-0001" || quote.Status != "draft" || quote.Total != "23.20" {
		t.Fatalf("unexpected quote %#v", quote)
	}

	second := decodeInto[common.Quote](t, h.mustRun("--tenant", "acme", "--json", "quote", "create",
		"--client", client.ID, "--item", product.ID+":1:5.00", "--tax", "0"))
	if second.Number != "COT-0002" || second.Total != "5.00" {
		t.Fatalf("unexpected second quote %#v", second)
	}

	if out := h.mustRun("--tenant", "acme", "quote", "status", "cot-0001", "approved"); !strings.Contains(out, "COT-0001 is now approved") {
		t.Fatalf("unexpected status output %q", out)
	}
	if out := h.mustRun("--tenant", "acme", "quote", "show", "COT-0001"); !strings.Contains(out, "COT-0001  approved") || !strings.Contains(out, "Net 30") {
		t.Fatalf("unexpected show output:\n%s", out)
	}

	quotes := decodeInto[[]common.Quote](t, h.mustRun("--tenant", "acme", "--json", "quote", "list"))
	if len(quotes) != 2 {
		t.Fatalf("expected 2 quotes, got %d", len(quotes))
	}

	pdfPath := filepath.Join(t.TempDir(), "quote.pdf")
	h.mustRun("--tenant", "acme", "quote", "pdf", "COT-0001", "--out", pdfPath)
	doc, err := os.ReadFile(pdfPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !bytes.HasPrefix(doc, []byte("%PDF-")) {
		t.Fatalf("expected PDF header, got %q", doc[:min(len(doc), 8)])
	}

	insight := decodeInto[common.Insight](t, h.mustRun("--tenant", "acme", "--json", "insights"))
	if insight.QuoteCount != 2 || insight.TenantID != "acme" {
		t.Fatalf("unexpected insight %#v", insight)
	}

	expired := decodeInto[map[string]int](t, h.mustRun("--tenant", "acme", "--json", "quote", "expire"))
	if expired["expired"] != 0 {
		t.Fatalf("expected no expired quotes, got %v", expired)
	}
}

func TestRunQuoteErrors(t *testing.T) {
	h := newCLIHarness(t)
	if _, err := h.run("--tenant", "ghost", "client", "list"); err == nil || !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected not found for unknown tenant, got %v", err)
	}
	if _, err := h.run("quote", "create", "--client", "c1", "--item", "p1"); err == nil {
		t.Fatal("expected bad item error")
	}
	h.mustRun("tenant", "create", "acme")
	if _, err := h.run("--tenant", "acme", "quote", "status", "COT-0009", "approved"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected not found for unknown quote, got %v", err)
	}
}

func TestRunBoardStartsProgram(t *testing.T) {
	orig := programFactory
	t.Cleanup(func() { programFactory = orig })

	var started tea.Model
	programFactory = func(m tea.Model) program {
		return scriptedProgram{model: m, runFn: func(m tea.Model) (tea.Model, error) {
			started = m
			return m, nil
		}}
	}

	h := newCLIHarness(t)
	h.mustRun("--tenant", "shop")
	if _, ok := started.(tui.Model); !ok {
		t.Fatalf("expected tui.Model, got %T", started)
	}
	if out := h.mustRun("tenant", "list"); !strings.Contains(out, "shop") {
		t.Fatalf("expected board tenant to be provisioned:\n%s", out)
	}

	programFactory = func(m tea.Model) program {
		return scriptedProgram{model: m, runFn: func(tea.Model) (tea.Model, error) {
			return nil, errors.New("tty unavailable")
		}}
	}
	if _, err := h.run("board"); err == nil || !strings.Contains(err.Error(), "tty unavailable") {
		t.Fatalf("expected program error, got %v", err)
	}
}

func TestRunServeUsesConfig(t *testing.T) {
	orig := serveCommandRunner
	t.Cleanup(func() { serveCommandRunner = orig })

	var got serveradapter.Config
	var deps serveradapter.Dependencies
	var readyErr error
	serveCommandRunner = func(ctx context.Context, cfg serveradapter.Config, d serveradapter.Dependencies) error {
		got, deps = cfg, d
		readyErr = d.Ready(ctx)
		return nil
	}

	h := newCLIHarness(t)
	h.mustRun("--tenant", "acme", "serve", "--bind", "127.0.0.1:9999")
	if got.HTTPBind != "127.0.0.1:9999" || got.DefaultTenant != "acme" || got.APIEndpoint != "/api/v1" || got.MCPEndpoint != "/mcp" {
		t.Fatalf("unexpected serve config %#v", got)
	}
	if deps.Service == nil {
		t.Fatal("expected service dependency")
	}
	if readyErr != nil {
		t.Fatalf("expected storage readiness, got %v", readyErr)
	}
	if out := h.mustRun("tenant", "list"); !strings.Contains(out, "acme") {
		t.Fatalf("expected default tenant to be provisioned:\n%s", out)
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "cotiza.toml")
	if err := os.WriteFile(cfgPath, []byte("[logging]\nlevel = \"loud\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	err := run(context.Background(), []string{"--config", cfgPath, "--db", filepath.Join(dir, "c.db"), "tenant", "list"}, nil, nil)
	if err == nil || !strings.Contains(err.Error(), "load config") {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestRuntimeLoggerDevFileAndMute(t *testing.T) {
	var console bytes.Buffer
	dir := t.TempDir()
	now := func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	logger, err := newRuntimeLogger(&console, "cotiza", true, config.LoggingConfig{
		Level:   "info",
		DevFile: config.DevFileConfig{Enabled: true, Dir: dir},
	}, now)
	if err != nil {
		t.Fatalf("newRuntimeLogger() error = %v", err)
	}
	wantPath := filepath.Join(dir, "cotiza-20260301.log")
	if logger.DevLogPath() != wantPath {
		t.Fatalf("DevLogPath() = %q, want %q", logger.DevLogPath(), wantPath)
	}

	logger.Info("visible everywhere", "k", "v")
	logger.SetConsoleEnabled(false)
	logger.Info("file only")
	logger.Debug("below level")
	if logger.Sink() == nil {
		t.Fatal("expected file sink for the app layer")
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if !strings.Contains(console.String(), "visible everywhere") || strings.Contains(console.String(), "file only") {
		t.Fatalf("unexpected console output %q", console.String())
	}
	content, err := os.ReadFile(wantPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(content), "file only") || strings.Contains(string(content), "below level") {
		t.Fatalf("unexpected file output %q", content)
	}
}

func TestRuntimeLoggerConsoleOnly(t *testing.T) {
	var console bytes.Buffer
	logger, err := newRuntimeLogger(&console, "cotiza", false, config.LoggingConfig{Level: "warn"}, nil)
	if err != nil {
		t.Fatalf("newRuntimeLogger() error = %v", err)
	}
	logger.Info("quiet")
	logger.Warn("loud")
	if strings.Contains(console.String(), "quiet") || !strings.Contains(console.String(), "loud") {
		t.Fatalf("unexpected console output %q", console.String())
	}
	logger.SetConsoleEnabled(false)
	if logger.Sink() != nil {
		t.Fatal("expected no app sink with console muted and no dev file")
	}
	if _, err := newRuntimeLogger(nil, "cotiza", false, config.LoggingConfig{Level: "loud"}, nil); err == nil {
		t.Fatal("expected invalid level error")
	}
}

func TestWorkspaceRootFromUsesNearestMarker(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/x\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if got := workspaceRootFrom(nested); got != root {
		t.Fatalf("workspaceRootFrom() = %q, want %q", got, root)
	}
}

func TestSanitizeLogFileStem(t *testing.T) {
	cases := map[string]string{
		"cotiza":     "cotiza",
		" my app ":   "my-app",
		"a/b\\c:d":   "a-b-c-d",
		"":           "cotiza",
		"///":        "cotiza",
	}
	for in, want := range cases {
		if got := sanitizeLogFileStem(in); got != want {
			t.Fatalf("sanitizeLogFileStem(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseItemFlags(t *testing.T) {
	items, err := parseItemFlags([]string{"p1:2", " p2 : 1 : 9.50 "})
	if err != nil {
		t.Fatalf("parseItemFlags() error = %v", err)
	}
	if len(items) != 2 || items[0].ProductID != "p1" || items[0].Quantity != 2 || items[1].UnitPrice != "9.50" {
		t.Fatalf("unexpected items %#v", items)
	}
	for _, bad := range []string{"p1", "p1:0", "p1:x", ":2", "p1:1:2:3"} {
		if _, err := parseItemFlags([]string{bad}); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestParseBoolEnv(t *testing.T) {
	t.Setenv("COTIZA_TEST_BOOL", "true")
	if v, ok := parseBoolEnv("COTIZA_TEST_BOOL"); !ok || !v {
		t.Fatalf("parseBoolEnv(true) = %t, %t", v, ok)
	}
	t.Setenv("COTIZA_TEST_BOOL", "nope")
	if _, ok := parseBoolEnv("COTIZA_TEST_BOOL"); ok {
		t.Fatal("expected invalid bool to be ignored")
	}
}

func TestLoadUserEnvKeepsExistingValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := loadUserEnv(path); err != nil {
		t.Fatalf("missing env file should be ignored, got %v", err)
	}
	if err := os.WriteFile(path, []byte("COTIZA_TEST_FROM_FILE=file\nCOTIZA_TEST_PRESET=file\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv("COTIZA_TEST_PRESET", "shell")
	t.Cleanup(func() { _ = os.Unsetenv("COTIZA_TEST_FROM_FILE") })
	if err := loadUserEnv(path); err != nil {
		t.Fatalf("loadUserEnv() error = %v", err)
	}
	if got := os.Getenv("COTIZA_TEST_FROM_FILE"); got != "file" {
		t.Fatalf("expected value from env file, got %q", got)
	}
	if got := os.Getenv("COTIZA_TEST_PRESET"); got != "shell" {
		t.Fatalf("expected preset value to win, got %q", got)
	}
}
