package pipeline

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"crimetrends/internal/core/crimes"
	"crimetrends/internal/core/sources"
	kit "crimetrends/internal/platform/testkit"

	"github.com/apache/beam/sdks/v2/go/pkg/beam"
	"github.com/apache/beam/sdks/v2/go/pkg/beam/testing/passert"
	"github.com/apache/beam/sdks/v2/go/pkg/beam/testing/ptest"
)

func TestMain(m *testing.M) {
	ptest.Main(m)
}

const (
	sdHeader = "incident_num,date_time,day_of_week,address_number_primary,address_dir_primary,address_road_primary,address_sfx_primary,address_dir_intersecting,address_road_intersecting,address_sfx_intersecting,call_type,disposition,beat,priority"
	sdRow1   = "E15010000001,2015-01-01 00:00:01,5,100,,MARKET,ST,,,,415,W,521.0,2.0"
	sdRow2   = "E16010000002,2016-03-02 13:45:00,4,,,BROADWAY,,,,,1151,K,122.0,1.0"
)

func TestOutputFile(t *testing.T) {
	if got := OutputFile("gs://lake/data/pq/aus/", sources.Austin); got != "gs://lake/data/pq/aus/aus.parquet" {
		t.Fatalf("OutputFile = %q", got)
	}
	if got := OutputFile("out", sources.SanDiego); got != "out/sd.parquet" {
		t.Fatalf("OutputFile no slash = %q", got)
	}
}

func TestInputs(t *testing.T) {
	la := Inputs(sources.LosAngeles, crimes.CityPaths{Input: "gs://lake/data/raw/la/*.csv"}, DefaultYears)
	if !reflect.DeepEqual(la, []string{"gs://lake/data/raw/la/*.csv"}) {
		t.Fatalf("la inputs = %v", la)
	}
	sd := Inputs(sources.SanDiego, crimes.CityPaths{Input: "gs://lake/data/raw/sd/"}, Years{From: 2021, To: 2023})
	want := []string{
		"gs://lake/data/raw/sd/sd_2021.csv",
		"gs://lake/data/raw/sd/sd_2022.csv",
		"gs://lake/data/raw/sd/sd_2023.csv",
	}
	if !reflect.DeepEqual(sd, want) {
		t.Fatalf("sd inputs = %v", sd)
	}
}

func TestIsHeader(t *testing.T) {
	cases := []struct {
		line string
		want bool
	}{
		{sdHeader, true},
		{"\ufeff" + sdHeader, true},
		{`"incident_num","date_time"`, true},
		{sdRow1, false},
		{"", false},
	}
	for _, tc := range cases {
		if got := IsHeader(crimes.SanDiegoSchema, tc.line); got != tc.want {
			t.Fatalf("IsHeader(%q) = %v, want %v", tc.line, got, tc.want)
		}
	}
	if !IsHeader(crimes.AustinSchema, "Incident Number,Highest Offense Description") {
		t.Fatalf("austin header not detected")
	}
}

func TestSanDiegoFnDropsHeadersAndBlanks(t *testing.T) {
	p, s := beam.NewPipelineWithRoot()
	lines := beam.Create(s, sdHeader, "", sdRow1, "  ", sdRow2, sdHeader)
	calls := beam.ParDo(s, &sanDiegoFn{}, lines)
	passert.Count(s, calls, "calls", 2)
	ptest.RunAndValidate(t, p)
}

func TestBuildWritesParquet(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "raw", "sd") + "/"
	kit.WriteFile(t, filepath.Join(dir, "raw", "sd"), "sd_2015.csv", sdHeader+"\n"+sdRow1+"\n")
	kit.WriteFile(t, filepath.Join(dir, "raw", "sd"), "sd_2016.csv", sdHeader+"\n"+sdRow2+"\n")
	outDir := filepath.Join(dir, "pq", "sd")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		t.Fatal(err)
	}

	args := crimes.JobArgs{Cities: map[sources.City]*crimes.CityPaths{
		sources.SanDiego: {Input: in, Output: outDir, Table: "crime.crimes_sd"},
	}}
	p, s := beam.NewPipelineWithRoot()
	out := Build(s, args, Years{From: 2015, To: 2016})
	if len(out) != 1 || out[sources.SanDiego] != filepath.Join(outDir, "sd.parquet") {
		t.Fatalf("outputs = %v", out)
	}
	ptest.RunAndValidate(t, p)

	st, err := os.Stat(out[sources.SanDiego])
	if err != nil {
		t.Fatalf("parquet not written: %v", err)
	}
	if st.Size() == 0 {
		t.Fatalf("parquet file is empty")
	}
}
