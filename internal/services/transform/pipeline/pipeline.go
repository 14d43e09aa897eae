// Package pipeline builds the Beam pipeline that turns the raw city CSV
// exports into normalized parquet files
package pipeline

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"crimetrends/internal/core/crimes"
	"crimetrends/internal/core/sources"

	"github.com/apache/beam/sdks/v2/go/pkg/beam"
	_ "github.com/apache/beam/sdks/v2/go/pkg/beam/io/filesystem/gcs"
	_ "github.com/apache/beam/sdks/v2/go/pkg/beam/io/filesystem/local"
	_ "github.com/apache/beam/sdks/v2/go/pkg/beam/io/filesystem/s3"
	"github.com/apache/beam/sdks/v2/go/pkg/beam/io/parquetio"
	"github.com/apache/beam/sdks/v2/go/pkg/beam/io/textio"
	"github.com/apache/beam/sdks/v2/go/pkg/beam/register"
)

// Counter namespace for the parse DoFns
const counterNS = "crimetrends"

func init() {
	register.DoFn3x0[context.Context, string, func(crimes.AustinCrime)](&austinFn{})
	register.DoFn3x0[context.Context, string, func(crimes.LosAngelesCrime)](&losAngelesFn{})
	register.DoFn3x0[context.Context, string, func(crimes.SanDiegoCall)](&sanDiegoFn{})
	register.Emitter1[crimes.AustinCrime]()
	register.Emitter1[crimes.LosAngelesCrime]()
	register.Emitter1[crimes.SanDiegoCall]()
	beam.RegisterType(reflect.TypeOf((*crimes.AustinCrime)(nil)).Elem())
	beam.RegisterType(reflect.TypeOf((*crimes.LosAngelesCrime)(nil)).Elem())
	beam.RegisterType(reflect.TypeOf((*crimes.SanDiegoCall)(nil)).Elem())
}

// Years is the San Diego year range read from the sd input prefix
type Years struct {
	From, To int
}

// DefaultYears is the published San Diego range
var DefaultYears = Years{From: sources.SDFromYear, To: sources.SDToYear}

// OutputFile returns the parquet file written for city under the output directory
func OutputFile(output string, c sources.City) string {
	return strings.TrimSuffix(output, "/") + "/" + string(c) + ".parquet"
}

// Inputs lists the text inputs of city. Austin and Los Angeles read one glob;
// San Diego reads {prefix}sd_{year}.csv for every year
func Inputs(c sources.City, p crimes.CityPaths, y Years) []string {
	if c != sources.SanDiego {
		return []string{p.Input}
	}
	var out []string
	for year := y.From; year <= y.To; year++ {
		out = append(out, fmt.Sprintf("%ssd_%d.csv", p.Input, year))
	}
	return out
}

// Build adds one branch per city to s: read, drop headers and blank lines,
// parse, normalize and write parquet. It returns the output file per city
func Build(s beam.Scope, args crimes.JobArgs, y Years) map[sources.City]string {
	out := map[sources.City]string{}
	for _, c := range sources.Cities {
		p := args.Cities[c]
		if p == nil {
			continue
		}
		cs := s.Scope(string(c))

		var lines []beam.PCollection
		for _, in := range Inputs(c, *p, y) {
			lines = append(lines, textio.Read(cs, in))
		}
		all := lines[0]
		if len(lines) > 1 {
			all = beam.Flatten(cs, lines...)
		}

		file := OutputFile(p.Output, c)
		parquetio.Write(cs, file, crimes.RecordType(c), beam.ParDo(cs, parseFnFor(c), all))
		out[c] = file
	}
	return out
}

func parseFnFor(c sources.City) any {
	switch c {
	case sources.Austin:
		return &austinFn{}
	case sources.LosAngeles:
		return &losAngelesFn{}
	default:
		return &sanDiegoFn{}
	}
}

// lineParser types CSV lines against a city schema and counts what it drops
type lineParser struct {
	schema  *crimes.Schema
	parsed  beam.Counter
	headers beam.Counter
	dropped beam.Counter
}

func newLineParser(c sources.City) *lineParser {
	return &lineParser{
		schema:  crimes.SchemaFor(c),
		parsed:  beam.NewCounter(counterNS, string(c)+"_parsed_lines"),
		headers: beam.NewCounter(counterNS, string(c)+"_header_lines"),
		dropped: beam.NewCounter(counterNS, string(c)+"_dropped_lines"),
	}
}

// IsHeader reports whether line is the header row of s
func IsHeader(s *crimes.Schema, line string) bool {
	first, _, _ := strings.Cut(strings.TrimPrefix(line, "\ufeff"), ",")
	return strings.Trim(strings.TrimSpace(first), `"`) == s.Columns[0].Name
}

func (p *lineParser) parse(ctx context.Context, line string) (crimes.Row, bool) {
	if strings.TrimSpace(line) == "" {
		return crimes.Row{}, false
	}
	if IsHeader(p.schema, line) {
		p.headers.Inc(ctx, 1)
		return crimes.Row{}, false
	}
	r, err := p.schema.ParseLine(line)
	if err != nil {
		p.dropped.Inc(ctx, 1)
		return crimes.Row{}, false
	}
	p.parsed.Inc(ctx, 1)
	return r, true
}

type austinFn struct{ p *lineParser }

func (f *austinFn) Setup() { f.p = newLineParser(sources.Austin) }

func (f *austinFn) ProcessElement(ctx context.Context, line string, emit func(crimes.AustinCrime)) {
	if r, ok := f.p.parse(ctx, line); ok {
		emit(crimes.NormalizeAustin(r))
	}
}

type losAngelesFn struct{ p *lineParser }

func (f *losAngelesFn) Setup() { f.p = newLineParser(sources.LosAngeles) }

func (f *losAngelesFn) ProcessElement(ctx context.Context, line string, emit func(crimes.LosAngelesCrime)) {
	if r, ok := f.p.parse(ctx, line); ok {
		emit(crimes.NormalizeLosAngeles(r))
	}
}

type sanDiegoFn struct{ p *lineParser }

func (f *sanDiegoFn) Setup() { f.p = newLineParser(sources.SanDiego) }

func (f *sanDiegoFn) ProcessElement(ctx context.Context, line string, emit func(crimes.SanDiegoCall)) {
	if r, ok := f.p.parse(ctx, line); ok {
		emit(crimes.NormalizeSanDiego(r))
	}
}
