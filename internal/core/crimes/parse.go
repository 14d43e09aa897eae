package crimes

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	perr "crimetrends/internal/platform/errors"
)

// Row is one CSV record typed against a Schema. Each value is nil or one of
// string, int32, int64, float64, time.Time per the column kind
type Row struct {
	s *Schema
	v []any
}

// Schema returns the schema r was parsed with
func (r Row) Schema() *Schema { return r.s }

// Values returns the typed values in column order
func (r Row) Values() []any { return r.v }

// Len returns the number of values, always the schema length
func (r Row) Len() int { return len(r.v) }

func (r Row) at(name string) any {
	i := r.s.Index(name)
	if i < 0 {
		panic("crimes: unknown column " + name)
	}
	return r.v[i]
}

// Str returns the named String column
func (r Row) Str(name string) *string {
	if s, ok := r.at(name).(string); ok {
		return &s
	}
	return nil
}

// Int returns the named Int column
func (r Row) Int(name string) *int32 {
	if n, ok := r.at(name).(int32); ok {
		return &n
	}
	return nil
}

// Long returns the named Long column
func (r Row) Long(name string) *int64 {
	if n, ok := r.at(name).(int64); ok {
		return &n
	}
	return nil
}

// Double returns the named Double column
func (r Row) Double(name string) *float64 {
	if f, ok := r.at(name).(float64); ok {
		return &f
	}
	return nil
}

// Time returns the named Timestamp column
func (r Row) Time(name string) *time.Time {
	if t, ok := r.at(name).(time.Time); ok {
		return &t
	}
	return nil
}

// Parse types fields against s by position. Missing trailing fields are
// null and extra fields are ignored. A value that is empty or does not
// parse as its kind is null
func (s *Schema) Parse(fields []string) Row {
	v := make([]any, len(s.Columns))
	for i, c := range s.Columns {
		if i >= len(fields) {
			break
		}
		v[i] = ParseValue(c.Kind, fields[i])
	}
	return Row{s: s, v: v}
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999",
	time.RFC3339Nano,
	"2006-01-02",
}

// ParseValue converts raw to kind k, returning nil for empty or invalid input
func ParseValue(k Kind, raw string) any {
	if raw == "" {
		return nil
	}
	switch k {
	case String:
		return cleanText(raw)
	case Int:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 32)
		if err != nil {
			return nil
		}
		return int32(n)
	case Long:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil
		}
		return n
	case Double:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil
		}
		return f
	case Timestamp:
		raw = strings.TrimSpace(raw)
		for _, layout := range timestampLayouts {
			if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
				return t.UTC()
			}
		}
		return nil
	}
	return nil
}

// ParseLine splits one CSV line and types it against s
func (s *Schema) ParseLine(line string) (Row, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	fields, err := r.Read()
	if err != nil {
		return Row{}, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "parse csv line")
	}
	return s.Parse(fields), nil
}

// ReadCSV reads every record of r, skipping the first one when header is
// set, and types each against s
func (s *Schema) ReadCSV(r io.Reader, header bool) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	var out []Row
	first := true
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "read csv")
		}
		if first && header {
			first = false
			continue
		}
		first = false
		if len(fields) == 1 && fields[0] == "" {
			continue
		}
		out = append(out, s.Parse(fields))
	}
}
