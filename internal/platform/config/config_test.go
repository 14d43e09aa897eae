package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	kit "crimetrends/internal/platform/testkit"
)

func TestPrefixAndKey(t *testing.T) {
	lake := New().Prefix("LAKE_")
	if got := lake.Key("BACKEND"); got != "LAKE_BACKEND" {
		t.Fatalf("Key() = %q, want %q", got, "LAKE_BACKEND")
	}
	if got := lake.Prefix("S3_").Key("ENDPOINT"); got != "LAKE_S3_ENDPOINT" {
		t.Fatalf("nested Key() = %q", got)
	}
}

func TestMustAccessors(t *testing.T) {
	c := New().Prefix("CT_")
	t.Setenv("CT_BUCKET", "  crime_lake ")
	t.Setenv("CT_WORKERS", " 4 ")
	t.Setenv("CT_ON", "true")
	t.Setenv("CT_TIMEOUT", "300s")
	t.Setenv("CT_URL", "https://data.lacity.org/api")
	t.Setenv("CT_PORT", "4000")

	if got := c.MustString("BUCKET"); got != "crime_lake" {
		t.Fatalf("MustString = %q", got)
	}
	if got := c.MustInt("WORKERS"); got != 4 {
		t.Fatalf("MustInt = %d", got)
	}
	if !c.MustBool("ON") {
		t.Fatalf("MustBool = false")
	}
	if got := c.MustDuration("TIMEOUT"); got != 300*time.Second {
		t.Fatalf("MustDuration = %v", got)
	}
	if u := c.MustURL("URL"); u.Host != "data.lacity.org" {
		t.Fatalf("MustURL host = %q", u.Host)
	}
	if got := c.MustPort("PORT"); got != ":4000" {
		t.Fatalf("MustPort = %q", got)
	}
}

func TestMustAccessors_Panic(t *testing.T) {
	c := New().Prefix("BAD_")
	t.Setenv("BAD_INT", "x")
	t.Setenv("BAD_BOOL", "maybe")
	t.Setenv("BAD_DUR", "soon")
	t.Setenv("BAD_URL", "/relative")
	t.Setenv("BAD_PORT", "70000")
	t.Setenv("BAD_FILE", filepath.Join(t.TempDir(), "nope.json"))

	cases := map[string]func(){
		"missing":  func() { _ = c.MustString("MISSING") },
		"int":      func() { _ = c.MustInt("INT") },
		"bool":     func() { _ = c.MustBool("BOOL") },
		"duration": func() { _ = c.MustDuration("DUR") },
		"url":      func() { _ = c.MustURL("URL") },
		"port":     func() { _ = c.MustPort("PORT") },
		"file":     func() { _ = c.MustFile("FILE") },
		"require":  func() { c.Require("INT", "ABSENT") },
	}
	for name, fn := range cases {
		t.Run(name, func(t *testing.T) { kit.MustPanic(t, fn) })
	}
}

func TestMustFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "creds.json")
	if err := os.WriteFile(p, []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", p)
	if got := New().MustFile("GOOGLE_APPLICATION_CREDENTIALS"); got != p {
		t.Fatalf("MustFile = %q, want %q", got, p)
	}
}

func TestMayAccessors(t *testing.T) {
	c := New().Prefix("OPT_")
	t.Setenv("OPT_NAME", " parent-flow ")
	t.Setenv("OPT_RETRIES", "5")
	t.Setenv("OPT_RETRIES_BAD", "five")
	t.Setenv("OPT_RATIO", "0.5")
	t.Setenv("OPT_DRY", "1")
	t.Setenv("OPT_DELAY", "1m")
	t.Setenv("OPT_DELAY_BAD", "later")

	if got := c.MayString("NAME", "x"); got != "parent-flow" {
		t.Fatalf("MayString = %q", got)
	}
	if got := c.MayString("ABSENT", "def"); got != "def" {
		t.Fatalf("MayString default = %q", got)
	}
	if got := c.MayInt("RETRIES", 3); got != 5 {
		t.Fatalf("MayInt = %d", got)
	}
	if got := c.MayInt("RETRIES_BAD", 3); got != 3 {
		t.Fatalf("MayInt invalid = %d, want default", got)
	}
	if got := c.MayFloat64("RATIO", 1); got != 0.5 {
		t.Fatalf("MayFloat64 = %v", got)
	}
	if !c.MayBool("DRY", false) {
		t.Fatalf("MayBool = false")
	}
	if got := c.MayDuration("DELAY", 0); got != time.Minute {
		t.Fatalf("MayDuration = %v", got)
	}
	if got := c.MayDuration("DELAY_BAD", time.Second); got != time.Second {
		t.Fatalf("MayDuration invalid = %v, want default", got)
	}
}

func TestMayCSV(t *testing.T) {
	c := New().Prefix("CSV_")
	t.Setenv("CSV_CITIES", " aus, ,la,sd ")
	t.Setenv("CSV_BLANK", " , ")
	if got := c.MayCSV("CITIES", nil); !reflect.DeepEqual(got, []string{"aus", "la", "sd"}) {
		t.Fatalf("MayCSV = %v", got)
	}
	def := []string{"aus"}
	if got := c.MayCSV("BLANK", def); !reflect.DeepEqual(got, def) {
		t.Fatalf("MayCSV blank = %v, want default", got)
	}
}

func TestMayEnum(t *testing.T) {
	c := New().Prefix("ENUM_")
	t.Setenv("ENUM_BACKEND", "GCS")
	if got := c.MayEnum("BACKEND", "s3", "gcs", "s3"); got != "gcs" {
		t.Fatalf("MayEnum = %q, want gcs", got)
	}
	if got := c.MayEnum("ABSENT", "s3", "gcs", "s3"); got != "s3" {
		t.Fatalf("MayEnum default = %q", got)
	}
	t.Setenv("ENUM_BAD", "azure")
	kit.MustPanic(t, func() { _ = c.MayEnum("BAD", "gcs", "gcs", "s3") })
}
