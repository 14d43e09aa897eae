// Package crimes declares the per-city CSV schemas and the rules that turn
// a typed CSV row into a normalized warehouse record
package crimes

import (
	"crimetrends/internal/core/sources"
)

// Kind is the declared type of a CSV column
type Kind uint8

// Column kinds; every column is nullable
const (
	String Kind = iota
	Int
	Long
	Double
	Timestamp
)

func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Int:
		return "int"
	case Long:
		return "long"
	case Double:
		return "double"
	case Timestamp:
		return "timestamp"
	}
	return "unknown"
}

// Column is one positional field of a schema
type Column struct {
	Name string
	Kind Kind
}

// Schema is an ordered list of columns; CSV values are matched by position
type Schema struct {
	Columns []Column
	index   map[string]int
}

// NewSchema builds a schema and its name index
func NewSchema(cols ...Column) *Schema {
	s := &Schema{Columns: cols, index: make(map[string]int, len(cols))}
	for i, c := range cols {
		s.index[c.Name] = i
	}
	return s
}

// Len returns the column count
func (s *Schema) Len() int { return len(s.Columns) }

// Index returns the position of name, or -1
func (s *Schema) Index(name string) int {
	if i, ok := s.index[name]; ok {
		return i
	}
	return -1
}

func col(name string, k Kind) Column { return Column{Name: name, Kind: k} }

// AustinSchema is the export of data.austintexas.gov fdj4-gpfu
var AustinSchema = NewSchema(
	col("Incident Number", Long),
	col("Highest Offense Description", String),
	col("Highest Offense Code", Int),
	col("Family Violence", String),
	col("Occurred Date Time", String),
	col("Occurred Date", String),
	col("Occurred Time", String),
	col("Report Date Time", String),
	col("Report Date", String),
	col("Report Time", String),
	col("Location Type", String),
	col("Address", String),
	col("Zip Code", Int),
	col("Council District", Int),
	col("APD Sector", String),
	col("APD District", String),
	col("PRA", Int),
	col("Census Tract", Double),
	col("Clearance Status", String),
	col("Clearance Date", String),
	col("UCR Category", String),
	col("Category Description", String),
	col("X-coordinate", Int),
	col("Y-coordinate", Int),
	col("Latitude", Double),
	col("Longitude", Double),
	col("Location", String),
)

// LosAngelesSchema is the export of data.lacity.org 63jg-8b9z and 2nrs-mtv8
var LosAngelesSchema = NewSchema(
	col("DR_NO", Int),
	col("Date Rptd", String),
	col("DATE OCC", String),
	col("TIME OCC", String),
	col("AREA", Int),
	col("AREA NAME", String),
	col("Rpt Dist No", Int),
	col("Part 1-2", Int),
	col("Crm Cd", Int),
	col("Crm Cd Desc", String),
	col("Mocodes", String),
	col("Vict Age", Int),
	col("Vict Sex", String),
	col("Vict Descent", String),
	col("Premis Cd", Int),
	col("Premis Desc", String),
	col("Weapon Used Cd", Int),
	col("Weapon Desc", String),
	col("Status", String),
	col("Status Desc", String),
	col("Crm Cd 1", Int),
	col("Crm Cd 2", Int),
	col("Crm Cd 3", Int),
	col("Crm Cd 4", Int),
	col("LOCATION", String),
	col("Cross Street", String),
	col("LAT", Double),
	col("LON", Double),
)

// SanDiegoSchema is the seshat.datasd.org calls-for-service export
var SanDiegoSchema = NewSchema(
	col("incident_num", String),
	col("date_time", Timestamp),
	col("day_of_week", Int),
	col("address_number_primary", Int),
	col("address_dir_primary", String),
	col("address_road_primary", String),
	col("address_sfx_primary", String),
	col("address_dir_intersecting", String),
	col("address_road_intersecting", String),
	col("address_sfx_intersecting", String),
	col("call_type", String),
	col("disposition", String),
	col("beat", Double),
	col("priority", Double),
)

// SchemaFor returns the input schema of city, nil when unknown
func SchemaFor(c sources.City) *Schema {
	switch c {
	case sources.Austin:
		return AustinSchema
	case sources.LosAngeles:
		return LosAngelesSchema
	case sources.SanDiego:
		return SanDiegoSchema
	}
	return nil
}
