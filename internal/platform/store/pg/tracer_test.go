package pg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestCompact(t *testing.T) {
	cases := map[string]string{
		"select 1":                          "select 1",
		"  select   1  ":                    " select 1 ",
		"UPDATE\tflow_runs\nSET  state = $1": "UPDATE flow_runs SET state = $1",
		"":                                  "",
	}
	for in, want := range cases {
		if got := compact(in); got != want {
			t.Fatalf("compact(%q) = %q, want %q", in, got, want)
		}
	}
}

type traceLine struct {
	Level     string  `json:"level"`
	ElapsedMS float64 `json:"elapsed_ms"`
	Slow      bool    `json:"slow"`
	SQL       string  `json:"sql"`
	Error     string  `json:"error"`
	Component string  `json:"component"`
	Message   string  `json:"message"`
}

func decodeTrace(t *testing.T, buf *bytes.Buffer) traceLine {
	t.Helper()
	var l traceLine
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &l); err != nil {
		t.Fatalf("decode: %v raw=%s", err, buf.String())
	}
	buf.Reset()
	return l
}

func TestTracer_LevelsAndFields(t *testing.T) {
	var buf bytes.Buffer
	tr := Tracer(zerolog.New(&buf).Level(zerolog.ErrorLevel))

	ev := QueryEvent{
		SQL:       "SELECT id\n  FROM task_runs",
		Args:      []any{"download_file"},
		ElapsedUS: 2500,
		Err:       errors.New("boom"),
	}
	tr.OnQuery(context.Background(), ev)
	got := decodeTrace(t, &buf)
	if got.Level != "info" || got.Slow || got.Component != "pg" || got.Message != "pg query" {
		t.Fatalf("info line = %+v", got)
	}
	if got.SQL != "SELECT id FROM task_runs" || got.Error != "boom" || got.ElapsedMS != 2.5 {
		t.Fatalf("fields = %+v", got)
	}

	ev.Slow = true
	tr.OnQuery(context.Background(), ev)
	if got := decodeTrace(t, &buf); got.Level != "warn" || !got.Slow {
		t.Fatalf("slow line = %+v", got)
	}
}
