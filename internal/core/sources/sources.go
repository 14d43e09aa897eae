// Package sources lists the open data exports the pipeline downloads
package sources

import (
	"fmt"
	"slices"
	"strings"

	perr "crimetrends/internal/platform/errors"
)

// City is the short code used as CSV name prefix and lake directory
type City string

// Known cities
const (
	Austin     City = "aus"
	LosAngeles City = "la"
	SanDiego   City = "sd"
)

// Cities is the processing order used by the flows and the transform
var Cities = []City{Austin, LosAngeles, SanDiego}

// Valid reports whether c is one of the known cities
func (c City) Valid() bool { return slices.Contains(Cities, c) }

// Name returns the display name used in log lines
func (c City) Name() string {
	switch c {
	case Austin:
		return "AUSTIN"
	case LosAngeles:
		return "LOS ANGELES"
	case SanDiego:
		return "SAN DIEGO"
	}
	return strings.ToUpper(string(c))
}

// Default San Diego year range
const (
	SDFromYear = 2015
	SDToYear   = 2023
)

// Source is one downloadable CSV export
type Source struct {
	City    City   `json:"city"`
	URL     string `json:"url"`
	CSVName string `json:"csv_name"`
}

// CityOf returns the prefix of csvName before the first underscore
func CityOf(csvName string) City {
	if i := strings.IndexByte(csvName, '_'); i >= 0 {
		return City(csvName[:i])
	}
	return City(csvName)
}

// SanDiegoURL returns the calls-for-service export for year; files before
// 2018 carry a _v1 suffix
func SanDiegoURL(year int) string {
	if year < 2018 {
		return fmt.Sprintf("https://seshat.datasd.org/pd/pd_calls_for_service_%d_datasd_v1.csv", year)
	}
	return fmt.Sprintf("https://seshat.datasd.org/pd/pd_calls_for_service_%d_datasd.csv", year)
}

// Selection picks cities and the San Diego year range
type Selection struct {
	Cities []City `json:"cities"`
	SDFrom int    `json:"sd_from"`
	SDTo   int    `json:"sd_to"`
}

// DefaultSelection selects every city and the full San Diego range
func DefaultSelection() Selection {
	return Selection{Cities: slices.Clone(Cities), SDFrom: SDFromYear, SDTo: SDToYear}
}

// Validate checks city codes and the year range
func (s Selection) Validate() error {
	for _, c := range s.Cities {
		if !c.Valid() {
			return perr.WithField(perr.InvalidArgf("unknown city %q", c), "cities")
		}
	}
	if s.SDFrom > s.SDTo {
		return perr.WithField(perr.InvalidArgf("sd_from %d is after sd_to %d", s.SDFrom, s.SDTo), "sd_from")
	}
	return nil
}

// List expands the selection into sources in processing order
func (s Selection) List() []Source {
	cities := s.Cities
	if len(cities) == 0 {
		cities = Cities
	}
	var out []Source
	for _, c := range Cities {
		if !slices.Contains(cities, c) {
			continue
		}
		switch c {
		case Austin:
			out = append(out, Source{City: c, URL: "https://data.austintexas.gov/api/views/fdj4-gpfu/rows.csv", CSVName: "aus_2003_2023.csv"})
		case LosAngeles:
			out = append(out,
				Source{City: c, URL: "https://data.lacity.org/api/views/63jg-8b9z/rows.csv", CSVName: "la_2010_2019.csv"},
				Source{City: c, URL: "https://data.lacity.org/api/views/2nrs-mtv8/rows.csv", CSVName: "la_2020_2023.csv"},
			)
		case SanDiego:
			from, to := s.SDFrom, s.SDTo
			if from == 0 && to == 0 {
				from, to = SDFromYear, SDToYear
			}
			for y := from; y <= to; y++ {
				out = append(out, Source{City: c, URL: SanDiegoURL(y), CSVName: fmt.Sprintf("sd_%d.csv", y)})
			}
		}
	}
	return out
}

// ParseCities reads a comma separated list of city codes
func ParseCities(csv string) ([]City, error) {
	var out []City
	for _, p := range strings.Split(csv, ",") {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		c := City(p)
		if !c.Valid() {
			return nil, perr.InvalidArgf("unknown city %q", p)
		}
		if !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out, nil
}
