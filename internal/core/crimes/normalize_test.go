package crimes

import (
	"reflect"
	"testing"
	"time"
	"unicode/utf8"

	"crimetrends/internal/core/sources"
)

func fields(s *Schema, kv map[string]string) []string {
	out := make([]string, s.Len())
	for k, v := range kv {
		i := s.Index(k)
		if i < 0 {
			panic("no column " + k)
		}
		out[i] = v
	}
	return out
}

func TestSchemaLengths(t *testing.T) {
	if AustinSchema.Len() != 27 || LosAngelesSchema.Len() != 28 || SanDiegoSchema.Len() != 14 {
		t.Fatalf("lengths = %d/%d/%d", AustinSchema.Len(), LosAngelesSchema.Len(), SanDiegoSchema.Len())
	}
	for _, c := range sources.Cities {
		if SchemaFor(c) == nil || RecordType(c) == nil {
			t.Fatalf("missing schema or record for %s", c)
		}
	}
	if SchemaFor("nyc") != nil || RecordType("nyc") != nil {
		t.Fatalf("unknown city should have no schema")
	}
}

func TestNormalizeAustin(t *testing.T) {
	row := AustinSchema.Parse(fields(AustinSchema, map[string]string{
		"Incident Number":             "20035001234",
		"Highest Offense Description": "BURGLARY OF VEHICLE",
		"Highest Offense Code":        "601",
		"Family Violence":             "N",
		"Occurred Date Time":          "01/15/2020 01:30:00 PM",
		"Occurred Date":               "01/15/2020",
		"Report Date Time":            "01/16/2020 09:00:00 AM",
		"Report Date":                 "01/16/2020",
		"Zip Code":                    "78701",
		"Census Tract":                "11.0",
		"Clearance Status":            "C",
		"Clearance Date":              "02/01/2020",
	}))
	got := NormalizeAustin(row)

	if *got.IncidentNum != 20035001234 || *got.CrimeCode != 601 || *got.ZipCode != 78701 {
		t.Fatalf("numbers: %+v", got)
	}
	wantDT := time.Date(2020, 1, 15, 13, 30, 0, 0, time.UTC)
	if *got.CrimeDatetime != wantDT.UnixMicro() {
		t.Fatalf("crime_datetime = %v", time.UnixMicro(*got.CrimeDatetime).UTC())
	}
	if FromDays(*got.CrimeDate) != time.Date(2020, 1, 15, 0, 0, 0, 0, time.UTC) {
		t.Fatalf("crime_date = %v", FromDays(*got.CrimeDate))
	}
	if *got.ReportDatetime != time.Date(2020, 1, 16, 9, 0, 0, 0, time.UTC).UnixMicro() {
		t.Fatalf("report_datetime wrong")
	}
	if *got.ClearanceStatus != "Arrested" || FromDays(*got.ClearanceDate).Month() != time.February {
		t.Fatalf("clearance: %v %v", *got.ClearanceStatus, FromDays(*got.ClearanceDate))
	}
	if got.Address != nil || got.PRA != nil {
		t.Fatalf("empty columns should stay null")
	}
}

func TestClearanceStatus(t *testing.T) {
	s := func(v string) *string { return &v }
	cases := []struct {
		in   *string
		want any
	}{
		{s("C"), "Arrested"},
		{s("O"), "Exception"},
		{s("N"), "Not cleared"},
		{s("X"), nil},
		{nil, nil},
	}
	for _, tc := range cases {
		got := ClearanceStatus(tc.in)
		if tc.want == nil {
			if got != nil {
				t.Fatalf("ClearanceStatus(%v) = %q, want nil", tc.in, *got)
			}
			continue
		}
		if got == nil || *got != tc.want {
			t.Fatalf("ClearanceStatus(%q) = %v, want %v", *tc.in, got, tc.want)
		}
	}
}

func TestNormalizeLosAngeles(t *testing.T) {
	row := LosAngelesSchema.Parse(fields(LosAngelesSchema, map[string]string{
		"DR_NO":        "200100501",
		"Date Rptd":    "01/02/2020 12:00:00 AM",
		"DATE OCC":     "01/01/2020 12:00:00 AM",
		"TIME OCC":     "2130",
		"Vict Sex":     "F",
		"Vict Descent": "H",
		"LAT":          "34.0141",
		"LON":          "-118.2978",
		"Crm Cd 1":     "624",
	}))
	got := NormalizeLosAngeles(row)

	if *got.IncidentNum != 200100501 || *got.CrimeCode1 != 624 || got.CrimeCode2 != nil {
		t.Fatalf("numbers: %+v", got)
	}
	if FromDays(*got.CrimeDate) != time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC) {
		t.Fatalf("crime_date = %v", FromDays(*got.CrimeDate))
	}
	if FromDays(*got.ReportDate) != time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC) {
		t.Fatalf("report_date = %v", FromDays(*got.ReportDate))
	}
	if *got.CrimeDatetime != time.Date(2020, 1, 1, 21, 30, 0, 0, time.UTC).UnixMicro() {
		t.Fatalf("crime_datetime = %v", time.UnixMicro(*got.CrimeDatetime).UTC())
	}
	if *got.VictSex != "Female" || *got.VictDescent != "Hispanic/Latin/Mexican" {
		t.Fatalf("mappings: %s %s", *got.VictSex, *got.VictDescent)
	}
	if *got.Longtitude != -118.2978 {
		t.Fatalf("longtitude = %v", *got.Longtitude)
	}
}

func TestLACrimeTime(t *testing.T) {
	d := time.Date(2021, 6, 5, 0, 0, 0, 0, time.UTC)
	s := func(v string) *string { return &v }
	cases := map[string]*time.Time{
		"0045":  ptr(time.Date(2021, 6, 5, 0, 45, 0, 0, time.UTC)),
		"45":    ptr(time.Date(2021, 6, 5, 0, 45, 0, 0, time.UTC)),
		"5":     ptr(time.Date(2021, 6, 5, 0, 5, 0, 0, time.UTC)),
		"930":   ptr(time.Date(2021, 6, 5, 9, 30, 0, 0, time.UTC)),
		"0000":  ptr(time.Date(2021, 6, 5, 0, 0, 0, 0, time.UTC)),
		"1200":  ptr(time.Date(2021, 6, 5, 12, 0, 0, 0, time.UTC)),
		"2560":  nil,
		"12345": nil,
		"ab":    nil,
	}
	for in, want := range cases {
		got := laCrimeTime(&d, s(in))
		if (got == nil) != (want == nil) || (got != nil && !got.Equal(*want)) {
			t.Fatalf("laCrimeTime(%q) = %v, want %v", in, got, want)
		}
	}
	if laCrimeTime(nil, s("1200")) != nil {
		t.Fatalf("nil date should give nil")
	}
}

func TestNormalizeSanDiegoIncidentPrefix(t *testing.T) {
	cases := map[string]string{
		"E15010000001": "15010000001",
		"É15010000001": "15010000001",
		"€42":          "42",
		"E":            "",
		"":             "",
	}
	for in, want := range cases {
		row := SanDiegoSchema.Parse(fields(SanDiegoSchema, map[string]string{"incident_num": in}))
		got := NormalizeSanDiego(row).IncidentNum
		if in == "" {
			if got != nil && *got != "" {
				t.Fatalf("incident_num(%q) = %q, want empty", in, *got)
			}
			continue
		}
		if got == nil || *got != want {
			t.Fatalf("incident_num(%q) = %v, want %q", in, got, want)
		}
		if !utf8.ValidString(*got) {
			t.Fatalf("incident_num(%q) = %q is not valid UTF-8", in, *got)
		}
	}
}

func TestVictMappings(t *testing.T) {
	s := func(v string) *string { return &v }
	if VictSex(s("M")) != "Male" || VictSex(s("X")) != "Unknown" || VictSex(nil) != "Unknown" {
		t.Fatalf("VictSex mapping wrong")
	}
	if len(victDescent) != 19 {
		t.Fatalf("descent table has %d codes, want 19", len(victDescent))
	}
	if VictDescent(s("Z")) != "Asian Indian" || VictDescent(s("Q")) != "Unknown" || VictDescent(nil) != "Unknown" {
		t.Fatalf("VictDescent mapping wrong")
	}
}

func TestNormalizeSanDiego(t *testing.T) {
	row := SanDiegoSchema.Parse(fields(SanDiegoSchema, map[string]string{
		"incident_num":         "E15010000001",
		"date_time":            "2015-01-01 00:00:01",
		"day_of_week":          "5",
		"address_road_primary": "MARKET",
		"call_type":            "415",
		"beat":                 "521.0",
		"priority":             "2.7",
	}))
	got := NormalizeSanDiego(row)

	if *got.IncidentNum != "15010000001" {
		t.Fatalf("incident_num = %q", *got.IncidentNum)
	}
	if *got.CrimeDatetime != time.Date(2015, 1, 1, 0, 0, 1, 0, time.UTC).UnixMicro() {
		t.Fatalf("crime_datetime wrong")
	}
	if FromDays(*got.CrimeDate) != time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC) {
		t.Fatalf("crime_date = %v", FromDays(*got.CrimeDate))
	}
	if *got.Beat != 521 || *got.Priority != 2 || *got.DayOfWeek != 5 {
		t.Fatalf("ints: beat=%d priority=%d dow=%d", *got.Beat, *got.Priority, *got.DayOfWeek)
	}
	if got.AddressDirPrimary != nil || *got.AddressRoadPrimary != "MARKET" {
		t.Fatalf("pass-through columns wrong")
	}
}

func TestNormalize_Dispatch(t *testing.T) {
	for _, c := range sources.Cities {
		s := SchemaFor(c)
		rec, err := Normalize(c, s.Parse(make([]string, s.Len())))
		if err != nil {
			t.Fatalf("%s: %v", c, err)
		}
		if reflect.TypeOf(rec) != RecordType(c) {
			t.Fatalf("%s: record type %T", c, rec)
		}
	}
	if _, err := Normalize("nyc", Row{}); err == nil {
		t.Fatalf("want error for unknown city")
	}
}

func TestDays_PreEpoch(t *testing.T) {
	d := time.Date(1969, 12, 31, 23, 0, 0, 0, time.UTC)
	if Days(d) != -1 || !FromDays(-1).Equal(time.Date(1969, 12, 31, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("Days(1969-12-31) = %d", Days(d))
	}
}
