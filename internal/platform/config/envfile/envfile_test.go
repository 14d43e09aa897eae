package envfile

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	perr "crimetrends/internal/platform/errors"
	"crimetrends/internal/platform/logger"
	kit "crimetrends/internal/platform/testkit"

	"github.com/rs/zerolog"
)

func unsetAfter(t *testing.T, keys ...string) {
	t.Helper()
	t.Cleanup(func() {
		for _, k := range keys {
			_ = os.Unsetenv(k)
		}
	})
}

func TestLoad_WithPath(t *testing.T) {
	p := filepath.Join(t.TempDir(), "test.env")
	body := "PROJECT_ID=\"test_project\"\nREGION=\"test_region\"\n"
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	unsetAfter(t, "PROJECT_ID", "REGION")

	if err := Load(p); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := os.Getenv("PROJECT_ID"); got != "test_project" {
		t.Fatalf("PROJECT_ID = %q", got)
	}
	if got := os.Getenv("REGION"); got != "test_region" {
		t.Fatalf("REGION = %q", got)
	}
}

func TestLoad_DefaultPath(t *testing.T) {
	var seen string
	kit.Swap(t, &load, func(fs ...string) error {
		seen = fs[0]
		return nil
	})
	if err := Load(""); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if seen != DefaultPath {
		t.Fatalf("path = %q, want %q", seen, DefaultPath)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	var buf bytes.Buffer
	t.Cleanup(logger.SetRoot(zerolog.New(&buf)))

	err := Load("non_existent_path.env")
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
	if !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("code = %v", perr.CodeOf(err))
	}
	kit.MustContain(t, buf.String(), "Error loading the file with environment variables.")
}
