package web

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	perr "crimetrends/internal/platform/errors"
	"crimetrends/internal/platform/logger"
	kit "crimetrends/internal/platform/testkit"

	"github.com/rs/zerolog"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	t.Cleanup(logger.SetRoot(zerolog.New(&buf)))
	return &buf
}

func TestDownload_OK(t *testing.T) {
	buf := captureLogs(t)
	body := strings.Repeat("a,b\n", 5000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	dir := t.TempDir()
	d := New(dir)
	path, err := d.Download(context.Background(), srv.URL, "aus_2003_2023.csv")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if want := filepath.Join(dir, "aus", "aus_2003_2023.csv"); path != want {
		t.Fatalf("path = %s, want %s", path, want)
	}
	got, err := os.ReadFile(path)
	if err != nil || string(got) != body {
		t.Fatalf("content mismatch (err=%v, len=%d)", err, len(got))
	}
	if _, err := os.Stat(path + ".part"); !os.IsNotExist(err) {
		t.Fatalf(".part left behind")
	}
	kit.MustContain(t, buf.String(), "File aus_2003_2023.csv downloaded successfully. Full size is 0.02 MB")
}

func TestDownload_Non200LeavesNoFile(t *testing.T) {
	buf := captureLogs(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	d := New(dir)
	path, err := d.Download(context.Background(), srv.URL, "sd_2015.csv")
	if err == nil {
		t.Fatalf("want error")
	}
	if path != "" {
		t.Fatalf("path = %q, want empty", path)
	}
	if !perr.IsCode(err, perr.ErrorCodeUpstream) || perr.Retryable(err) || !perr.IsRejected(err) {
		t.Fatalf("404 should be a non-retryable rejection, got %v", err)
	}
	if _, err := os.Stat(d.PathFor("sd_2015.csv")); !os.IsNotExist(err) {
		t.Fatalf("file exists after failed download")
	}
	if _, err := os.Stat(d.PathFor("sd_2015.csv") + ".part"); !os.IsNotExist(err) {
		t.Fatalf(".part exists after failed download")
	}
	kit.MustContain(t, buf.String(), "Error downloading the file.")
}

func TestDownload_ServerErrorIsRetryable(t *testing.T) {
	captureLogs(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := New(t.TempDir()).Download(context.Background(), srv.URL, "la_2010_2019.csv")
	if !perr.Retryable(err) {
		t.Fatalf("503 should be retryable, got %v", err)
	}
}

func TestDownload_ConnectionRefused(t *testing.T) {
	captureLogs(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(t.TempDir()).Download(context.Background(), url, "aus_2003_2023.csv")
	if !perr.IsCode(err, perr.ErrorCodeUnavailable) || !perr.Retryable(err) {
		t.Fatalf("refused connection should be retryable Unavailable, got %v", err)
	}
	if perr.IsRejected(err) {
		t.Fatalf("refused connection classified as a rejection: %v", err)
	}
}

func TestDownload_LocalWriteFailure(t *testing.T) {
	captureLogs(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("a,b\n"))
	}))
	defer srv.Close()

	d := New(t.TempDir())
	if err := os.MkdirAll(d.PathFor("sd_2016.csv")+".part", 0o755); err != nil {
		t.Fatal(err)
	}
	_, err := d.Download(context.Background(), srv.URL, "sd_2016.csv")
	if !perr.IsCode(err, perr.ErrorCodeUnknown) {
		t.Fatalf("local create failure should be Unknown, got %v", err)
	}
	if perr.Retryable(err) || perr.IsRejected(err) {
		t.Fatalf("local failure misclassified: %v", err)
	}
	if _, err := os.Stat(d.PathFor("sd_2016.csv")); !os.IsNotExist(err) {
		t.Fatalf("final file exists after failed write")
	}
}

func TestDownload_TimeoutCleansUp(t *testing.T) {
	captureLogs(t)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("partial,"))
		w.(http.Flusher).Flush()
		<-release
	}))
	defer srv.Close()
	defer close(release)

	dir := t.TempDir()
	d := New(dir, WithTimeout(200*time.Millisecond))
	_, err := d.Download(context.Background(), srv.URL, "la_2020_2023.csv")
	if err == nil {
		t.Fatalf("want timeout error")
	}
	if !perr.Retryable(err) {
		t.Fatalf("timeout should be retryable, got %v", err)
	}
	if _, err := os.Stat(d.PathFor("la_2020_2023.csv") + ".part"); !os.IsNotExist(err) {
		t.Fatalf(".part left behind after timeout")
	}
	if _, err := os.Stat(d.PathFor("la_2020_2023.csv")); !os.IsNotExist(err) {
		t.Fatalf("final file exists after timeout")
	}
}

func TestDownload_ContextCanceled(t *testing.T) {
	captureLogs(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(t.TempDir()).Download(ctx, srv.URL, "aus_x.csv"); err == nil {
		t.Fatalf("want error on canceled ctx")
	}
}

// sizedReader yields left bytes of zeros
type sizedReader struct{ left int64 }

func (r *sizedReader) Read(p []byte) (int, error) {
	if r.left <= 0 {
		return 0, io.EOF
	}
	n := int64(len(p))
	if n > r.left {
		n = r.left
	}
	r.left -= n
	return int(n), nil
}

func TestWriteAtomic_ProgressEveryFiveMB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.csv")
	var marks []int64
	n, err := writeAtomic(path, &sizedReader{left: 12 * mb}, func(total int64) { marks = append(marks, total/mb) })
	if err != nil {
		t.Fatalf("writeAtomic: %v", err)
	}
	if n != 12*mb {
		t.Fatalf("n = %d", n)
	}
	if len(marks) != 2 || marks[0] != 5 || marks[1] != 10 {
		t.Fatalf("marks = %v, want [5 10]", marks)
	}
}
