package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"storyreel/internal/export"
	"storyreel/internal/logs"
	"storyreel/internal/testsupport"
)

type cliTestEnv struct {
	configPath   string
	timelinePath string
	spoolDir     string
	logDir       string
}

const testTimeline = `{
  "framesPerSecond": 30,
  "scenes": [
    {"sceneId": "s1", "orderIndex": 0, "script": "Hello there friend", "durationSeconds": 3,
     "overlay": {"text": "Hi", "font": "Missing Sans", "fontWeight": "700"}},
    {"sceneId": "s2", "orderIndex": 1, "script": "", "durationSeconds": 2,
     "transitionKind": "fade", "transitionDurationSeconds": 0.5}
  ]
}`

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	closed := httptest.NewServer(http.NotFoundHandler())
	closed.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithSpeechURL(closed.URL))
	cfg.Speech.APIKey = "speech-secret"
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	configPath := filepath.Join(homeDir, ".config", "storyreel", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	timelinePath := filepath.Join(base, "timeline.json")
	if err := os.WriteFile(timelinePath, []byte(testTimeline), 0o644); err != nil {
		t.Fatalf("write timeline: %v", err)
	}
	return &cliTestEnv{configPath: configPath, timelinePath: timelinePath, spoolDir: cfg.Paths.SpoolDir, logDir: cfg.Paths.LogDir}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substring string) {
	t.Helper()
	if !strings.Contains(output, substring) {
		t.Fatalf("expected output to contain %q\noutput:\n%s", substring, output)
	}
}

func TestConfigCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Config path: "+env.configPath)
	requireContains(t, out, "Configuration valid")

	out, _, err = runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "********")
	if strings.Contains(out, "speech-secret") {
		t.Fatalf("config show leaked the speech key:\n%s", out)
	}

	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
}

func TestTimelineCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"timeline", "show", env.timelinePath}, env.configPath)
	if err != nil {
		t.Fatalf("timeline show: %v", err)
	}
	requireContains(t, out, "2 scenes, 5.00s at 30fps")
	requireContains(t, out, "fade 0.50s")
	requireContains(t, out, "Missing Sans:700")

	out, _, err = runCLI(t, []string{"timeline", "show", "--json", env.timelinePath}, env.configPath)
	if err != nil {
		t.Fatalf("timeline show --json: %v", err)
	}
	if !json.Valid([]byte(out)) {
		t.Fatalf("expected JSON payload, got:\n%s", out)
	}

	out, _, err = runCLI(t, []string{"timeline", "markup", env.timelinePath}, env.configPath)
	if err != nil {
		t.Fatalf("timeline markup: %v", err)
	}
	requireContains(t, out, "Hello there friend")
	requireContains(t, out, "(silent)")

	out, _, err = runCLI(t, []string{"timeline", "validate", env.timelinePath}, env.configPath)
	if err != nil {
		t.Fatalf("timeline validate: %v", err)
	}
	requireContains(t, out, "[OK] 2 scenes, 5.00s")
	requireContains(t, out, "[WARN] Missing Sans:700: not found")

	if _, _, err := runCLI(t, []string{"timeline", "show"}, env.configPath); err == nil {
		t.Fatal("expected an error without a file or --draft")
	}
}

func TestTimelineValidateReportsInvalidDocument(t *testing.T) {
	env := setupCLITestEnv(t)
	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte(`{"scenes":[{"sceneId":"a","durationSeconds":0}]}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, _, err := runCLI(t, []string{"timeline", "validate", bad}, env.configPath)
	if err == nil {
		t.Fatal("expected validation error")
	}
	requireContains(t, out, "[ERROR]")
	requireContains(t, out, "durationSeconds must be positive")
}

func TestDraftCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"draft", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("draft list: %v", err)
	}
	requireContains(t, out, "No drafts saved")

	out, _, err = runCLI(t, []string{"draft", "import", env.timelinePath, "--name", "Demo", "--id", "d1"}, env.configPath)
	if err != nil {
		t.Fatalf("draft import: %v", err)
	}
	requireContains(t, out, "Saved draft d1 (Demo)")

	out, _, err = runCLI(t, []string{"draft", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("draft list: %v", err)
	}
	requireContains(t, out, "d1")
	requireContains(t, out, "Demo")

	out, _, err = runCLI(t, []string{"draft", "show", "d1"}, env.configPath)
	if err != nil {
		t.Fatalf("draft show: %v", err)
	}
	requireContains(t, out, `"sceneId": "s2"`)

	out, _, err = runCLI(t, []string{"timeline", "show", "--draft", "d1"}, env.configPath)
	if err != nil {
		t.Fatalf("timeline show --draft: %v", err)
	}
	requireContains(t, out, "2 scenes")

	out, _, err = runCLI(t, []string{"draft", "remove", "d1", "missing"}, env.configPath)
	if err != nil {
		t.Fatalf("draft remove: %v", err)
	}
	requireContains(t, out, "Removed draft d1")
	requireContains(t, out, "Draft missing not found")

	if _, _, err := runCLI(t, []string{"draft", "show", "d1"}, env.configPath); err == nil {
		t.Fatal("expected show of removed draft to fail")
	}
}

func TestPreviewOfflinePlaysToEnd(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"preview", "--offline", "--bgm", "lofi", env.timelinePath}, env.configPath)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	requireContains(t, out, "[OK] 1 parts ready")
	requireContains(t, out, "0 s1")
	requireContains(t, out, "1 s2")
	requireContains(t, out, "s1 part 0")
	requireContains(t, out, "start lofi")
	requireContains(t, out, "playing")
	requireContains(t, out, "played to 5.00s")
}

func TestPreviewRejectsUnknownScene(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"preview", "--offline", "--scene", "7", env.timelinePath}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "out of range") {
		t.Fatalf("expected out of range error, got %v", err)
	}
}

func TestExportCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"export", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("export list: %v", err)
	}
	requireContains(t, out, "No exports pending")

	out, _, err = runCLI(t, []string{"export", "--offline", "--name", "Launch", env.timelinePath}, env.configPath)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	requireContains(t, out, "with 1 narration clips")

	spool, err := export.NewSpool(env.spoolDir, nil)
	if err != nil {
		t.Fatalf("open spool: %v", err)
	}
	pending, err := spool.Pending(t.Context())
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 || pending[0].Name != "Launch" || len(pending[0].Timeline.Scenes) != 2 {
		t.Fatalf("unexpected spool contents: %+v", pending)
	}
	id := pending[0].ID

	out, _, err = runCLI(t, []string{"export", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("export list: %v", err)
	}
	requireContains(t, out, "Launch")

	out, _, err = runCLI(t, []string{"export", "remove", id}, env.configPath)
	if err != nil {
		t.Fatalf("export remove: %v", err)
	}
	requireContains(t, out, "Removed export "+id)
}

func TestDoctorReportsUnreachableSpeechService(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"doctor"}, env.configPath)
	if err == nil {
		t.Fatal("expected doctor to fail without a speech service")
	}
	requireContains(t, out, "State directory:")
	requireContains(t, out, "[OK]")
	requireContains(t, out, "Speech service:")
	requireContains(t, out, "[ERROR]")
	requireContains(t, out, "Notifications")
}

func TestLogsPrintsTrailingLines(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"logs"}, env.configPath)
	if err != nil {
		t.Fatalf("logs without a file: %v", err)
	}
	if strings.TrimSpace(out) != "" {
		t.Fatalf("expected no output, got %q", out)
	}

	if err := os.WriteFile(logs.Path(env.logDir), []byte("one\nwarn two\nthree\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	out, _, err = runCLI(t, []string{"logs", "-n", "2"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if out != "warn two\nthree\n" {
		t.Fatalf("unexpected output %q", out)
	}
	out, _, err = runCLI(t, []string{"logs", "--grep", "WARN"}, env.configPath)
	if err != nil {
		t.Fatalf("logs --grep: %v", err)
	}
	if out != "warn two\n" {
		t.Fatalf("unexpected filtered output %q", out)
	}
}
