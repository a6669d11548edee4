package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"storyreel/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFontDirectoryCountsFonts(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"Inter-700.ttf", "Inter.ttf", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	result := CheckFontDirectory(dir)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if want := dir + " (2 fonts)"; result.Detail != want {
		t.Fatalf("detail = %q, want %q", result.Detail, want)
	}
	if !CheckFontDirectory("").Passed {
		t.Fatal("expected unset font dir to pass")
	}
}

func TestCheckService(t *testing.T) {
	cases := []struct {
		name   string
		status int
		pass   bool
	}{
		{name: "ok", status: http.StatusOK, pass: true},
		{name: "post only", status: http.StatusMethodNotAllowed, pass: true},
		{name: "bad key", status: http.StatusUnauthorized},
		{name: "forbidden", status: http.StatusForbidden},
		{name: "server error", status: http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodHead {
					t.Errorf("method = %s, want HEAD", r.Method)
				}
				if got := r.Header.Get("Authorization"); got != "Bearer key" {
					t.Errorf("authorization = %q", got)
				}
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			result := CheckService(context.Background(), "Speech service", srv.URL, "key")
			if result.Passed != tc.pass {
				t.Fatalf("passed = %v, want %v (%s)", result.Passed, tc.pass, result.Detail)
			}
		})
	}
}

func TestCheckService_MissingURL(t *testing.T) {
	result := CheckService(context.Background(), "Speech service", "  ", "key")
	if result.Passed {
		t.Fatal("expected failure for missing URL")
	}
}

func TestCheckService_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	result := CheckService(context.Background(), "Speech service", url, "")
	if result.Passed {
		t.Fatal("expected failure for closed server")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_IncludesUploadWhenEnabled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Paths.StateDir = t.TempDir()
	cfg.Paths.SpoolDir = t.TempDir()
	cfg.Paths.FontDir = t.TempDir()
	cfg.Speech.BaseURL = srv.URL

	results := RunAll(context.Background(), &cfg)
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}

	cfg.Upload.Enabled = true
	cfg.Upload.BaseURL = ""
	results = RunAll(context.Background(), &cfg)
	failed := Failed(results)
	if len(failed) != 1 || failed[0].Name != "Upload service" {
		t.Fatalf("expected upload failure only, got %+v", failed)
	}
}
