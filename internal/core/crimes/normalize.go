package crimes

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"
	"unicode/utf8"

	"crimetrends/internal/core/sources"
	perr "crimetrends/internal/platform/errors"
)

// Date and timestamp layouts of the city exports
const (
	LayoutDateTime12 = "01/02/2006 03:04:05 PM"
	LayoutDate       = "01/02/2006"
	LayoutDateTime24 = "2006-01-02 15:04:05"
)

// PartitionField is the column every warehouse table is partitioned and
// clustered on
const PartitionField = "crime_date"

// Micros returns t as unix microseconds
func Micros(t time.Time) int64 { return t.UnixMicro() }

// Days returns the calendar date of t as days since 1970-01-01
func Days(t time.Time) int32 {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return int32(d.Unix() / 86400)
}

// FromDays is the inverse of Days
func FromDays(d int32) time.Time { return time.Unix(int64(d)*86400, 0).UTC() }

func parseTime(layout string, s *string) *time.Time {
	if s == nil {
		return nil
	}
	t, err := time.ParseInLocation(layout, strings.TrimSpace(*s), time.UTC)
	if err != nil {
		return nil
	}
	return &t
}

func micros(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	v := Micros(*t)
	return &v
}

func days(t *time.Time) *int32 {
	if t == nil {
		return nil
	}
	v := Days(*t)
	return &v
}

func ptr[T any](v T) *T { return &v }

// ClearanceStatus maps the Austin clearance code, nil when unmapped
func ClearanceStatus(code *string) *string {
	if code == nil {
		return nil
	}
	switch *code {
	case "C":
		return ptr("Arrested")
	case "O":
		return ptr("Exception")
	case "N":
		return ptr("Not cleared")
	}
	return nil
}

// VictSex maps the Los Angeles victim sex code
func VictSex(code *string) string {
	if code != nil {
		switch *code {
		case "F":
			return "Female"
		case "M":
			return "Male"
		}
	}
	return "Unknown"
}

var victDescent = map[string]string{
	"A": "Other Asian",
	"B": "Black",
	"C": "Chinese",
	"D": "Cambodian",
	"F": "Filipino",
	"G": "Guamanian",
	"H": "Hispanic/Latin/Mexican",
	"I": "American Indian/Alaskan Native",
	"J": "Japanese",
	"K": "Korean",
	"L": "Laotian",
	"O": "Other",
	"P": "Pacific Islander",
	"S": "Samoan",
	"U": "Hawaiian",
	"V": "Vietnamese",
	"W": "White",
	"X": "Unknown",
	"Z": "Asian Indian",
}

// VictDescent maps the Los Angeles victim descent code
func VictDescent(code *string) string {
	if code != nil {
		if v, ok := victDescent[*code]; ok {
			return v
		}
	}
	return "Unknown"
}

// NormalizeAustin derives the Austin warehouse record
func NormalizeAustin(r Row) AustinCrime {
	return AustinCrime{
		IncidentNum:         r.Long("Incident Number"),
		CrimeDatetime:       micros(parseTime(LayoutDateTime12, r.Str("Occurred Date Time"))),
		CrimeDate:           days(parseTime(LayoutDate, r.Str("Occurred Date"))),
		ReportDatetime:      micros(parseTime(LayoutDateTime12, r.Str("Report Date Time"))),
		ReportDate:          days(parseTime(LayoutDate, r.Str("Report Date"))),
		CrimeCode:           r.Int("Highest Offense Code"),
		CrimeDescription:    r.Str("Highest Offense Description"),
		FamilyViolence:      r.Str("Family Violence"),
		LocationType:        r.Str("Location Type"),
		Address:             r.Str("Address"),
		ZipCode:             r.Int("Zip Code"),
		CouncilDistrict:     r.Int("Council District"),
		APDSector:           r.Str("APD Sector"),
		APDDistrict:         r.Str("APD District"),
		PRA:                 r.Int("PRA"),
		CensusTract:         r.Double("Census Tract"),
		ClearanceStatus:     ClearanceStatus(r.Str("Clearance Status")),
		ClearanceDate:       days(parseTime(LayoutDate, r.Str("Clearance Date"))),
		UCRCategory:         r.Str("UCR Category"),
		CategoryDescription: r.Str("Category Description"),
	}
}

// laCrimeTime combines the occurrence date with TIME OCC (HHMM, zero padded
// to four digits). Out of range clock values give nil
func laCrimeTime(date *time.Time, hhmm *string) *time.Time {
	if date == nil || hhmm == nil {
		return nil
	}
	s := strings.TrimSpace(*hhmm)
	if s == "" || len(s) > 4 {
		return nil
	}
	s = strings.Repeat("0", 4-len(s)) + s
	t, err := time.ParseInLocation(LayoutDateTime24, fmt.Sprintf("%s %s:%s:00", date.Format("2006-01-02"), s[:2], s[2:]), time.UTC)
	if err != nil {
		return nil
	}
	return &t
}

// NormalizeLosAngeles derives the Los Angeles warehouse record
func NormalizeLosAngeles(r Row) LosAngelesCrime {
	occurred := parseTime(LayoutDateTime12, r.Str("DATE OCC"))
	var crimeDate *time.Time
	if occurred != nil {
		d := FromDays(Days(*occurred))
		crimeDate = &d
	}
	return LosAngelesCrime{
		IncidentNum:       r.Int("DR_NO"),
		CrimeDatetime:     micros(laCrimeTime(crimeDate, r.Str("TIME OCC"))),
		CrimeDate:         days(crimeDate),
		ReportDate:        days(parseTime(LayoutDateTime12, r.Str("Date Rptd"))),
		CrimeCode:         r.Int("Crm Cd"),
		CrimeDescription:  r.Str("Crm Cd Desc"),
		AreaCode:          r.Int("AREA"),
		AreaName:          r.Str("AREA NAME"),
		RptDistNum:        r.Int("Rpt Dist No"),
		Part12:            r.Int("Part 1-2"),
		Mocodes:           r.Str("Mocodes"),
		VictAge:           r.Int("Vict Age"),
		VictSex:           ptr(VictSex(r.Str("Vict Sex"))),
		VictDescent:       ptr(VictDescent(r.Str("Vict Descent"))),
		PremisCode:        r.Int("Premis Cd"),
		PremisDescription: r.Str("Premis Desc"),
		WeaponUsedCode:    r.Int("Weapon Used Cd"),
		WeaponDescription: r.Str("Weapon Desc"),
		Status:            r.Str("Status"),
		StatusDescription: r.Str("Status Desc"),
		CrimeCode1:        r.Int("Crm Cd 1"),
		CrimeCode2:        r.Int("Crm Cd 2"),
		CrimeCode3:        r.Int("Crm Cd 3"),
		CrimeCode4:        r.Int("Crm Cd 4"),
		Location:          r.Str("LOCATION"),
		CrossStreet:       r.Str("Cross Street"),
		Latitude:          r.Double("LAT"),
		Longtitude:        r.Double("LON"),
	}
}

// doubleToInt truncates toward zero like a SQL cast; NaN and out of range
// values give nil
func doubleToInt(f *float64) *int32 {
	if f == nil || math.IsNaN(*f) || *f >= math.MaxInt32+1 || *f <= math.MinInt32-1 {
		return nil
	}
	return ptr(int32(*f))
}

// NormalizeSanDiego derives the San Diego warehouse record
func NormalizeSanDiego(r Row) SanDiegoCall {
	at := r.Time("date_time")
	var inc *string
	if s := r.Str("incident_num"); s != nil {
		// the export prefixes every id with a one letter source code
		if len(*s) > 0 {
			_, n := utf8.DecodeRuneInString(*s)
			inc = ptr((*s)[n:])
		} else {
			inc = s
		}
	}
	return SanDiegoCall{
		IncidentNum:             inc,
		CrimeDatetime:           micros(at),
		CrimeDate:               days(at),
		DayOfWeek:               r.Int("day_of_week"),
		AddressNumberPrimary:    r.Int("address_number_primary"),
		AddressDirPrimary:       r.Str("address_dir_primary"),
		AddressRoadPrimary:      r.Str("address_road_primary"),
		AddressSfxPrimary:       r.Str("address_sfx_primary"),
		AddressDirIntersecting:  r.Str("address_dir_intersecting"),
		AddressRoadIntersecting: r.Str("address_road_intersecting"),
		AddressSfxIntersecting:  r.Str("address_sfx_intersecting"),
		CallType:                r.Str("call_type"),
		Disposition:             r.Str("disposition"),
		Beat:                    doubleToInt(r.Double("beat")),
		Priority:                doubleToInt(r.Double("priority")),
	}
}

// Normalize dispatches on city and returns one of the record types
func Normalize(c sources.City, r Row) (any, error) {
	switch c {
	case sources.Austin:
		return NormalizeAustin(r), nil
	case sources.LosAngeles:
		return NormalizeLosAngeles(r), nil
	case sources.SanDiego:
		return NormalizeSanDiego(r), nil
	}
	return nil, perr.InvalidArgf("no normalizer for city %q", c)
}

// RecordType returns the warehouse record type of city
func RecordType(c sources.City) reflect.Type {
	switch c {
	case sources.Austin:
		return reflect.TypeOf(AustinCrime{})
	case sources.LosAngeles:
		return reflect.TypeOf(LosAngelesCrime{})
	case sources.SanDiego:
		return reflect.TypeOf(SanDiegoCall{})
	}
	return nil
}
