package crimes

import (
	"flag"
	"fmt"
	"strings"

	"crimetrends/internal/core/sources"
	perr "crimetrends/internal/platform/errors"
)

// CityPaths are the transform locations of one city
type CityPaths struct {
	// Input is a CSV glob for aus and la, a directory prefix for sd
	Input string
	// Output is the directory the parquet output is written under
	Output string
	// Table is the warehouse table as dataset.table
	Table string
}

// JobArgs are the arguments of the transform job, shared by the cluster
// submission and the in-process pipeline
type JobArgs struct {
	TempBucket string
	Cities     map[sources.City]*CityPaths
	// SDFrom and SDTo narrow the San Diego years the in-process pipeline
	// reads; zero keeps its configured range. The cluster job ignores them
	SDFrom, SDTo int
}

// DefaultJobArgs lays out the lake the way the ingest flow stages it.
// uri turns an object path into a lake URI
func DefaultJobArgs(uri func(string) string, tempBucket, dataset string) JobArgs {
	a := JobArgs{TempBucket: tempBucket, Cities: map[sources.City]*CityPaths{}}
	for _, c := range sources.Cities {
		in := uri(fmt.Sprintf("data/raw/%s/*.csv", c))
		if c == sources.SanDiego {
			in = uri("data/raw/sd/")
		}
		a.Cities[c] = &CityPaths{
			Input:  in,
			Output: uri(fmt.Sprintf("data/pq/%s/", c)),
			Table:  fmt.Sprintf("%s.crimes_%s", dataset, c),
		}
	}
	return a
}

// Flags renders the arguments in the job's command line form
func (a JobArgs) Flags() []string {
	out := []string{"--temp_gcs_bucket=" + a.TempBucket}
	for _, c := range sources.Cities {
		p := a.Cities[c]
		if p == nil {
			p = &CityPaths{}
		}
		out = append(out,
			fmt.Sprintf("--input_path_%s=%s", c, p.Input),
			fmt.Sprintf("--output_path_%s=%s", c, p.Output),
			fmt.Sprintf("--output_bq_%s=%s", c, p.Table),
		)
	}
	return out
}

// Register binds every argument to fs
func (a *JobArgs) Register(fs *flag.FlagSet) {
	if a.Cities == nil {
		a.Cities = map[sources.City]*CityPaths{}
	}
	fs.StringVar(&a.TempBucket, "temp_gcs_bucket", a.TempBucket, "Temp bucket for saving to the warehouse")
	fs.IntVar(&a.SDFrom, "sd_from", a.SDFrom, "First San Diego year to read (0 keeps the configured range)")
	fs.IntVar(&a.SDTo, "sd_to", a.SDTo, "Last San Diego year to read (0 keeps the configured range)")
	for _, c := range sources.Cities {
		p := a.Cities[c]
		if p == nil {
			p = &CityPaths{}
			a.Cities[c] = p
		}
		name := c.Name()
		fs.StringVar(&p.Input, "input_path_"+string(c), p.Input, "Path to raw CSV data for "+name)
		fs.StringVar(&p.Output, "output_path_"+string(c), p.Output, "Output path to parquet data for "+name)
		fs.StringVar(&p.Table, "output_bq_"+string(c), p.Table, "Warehouse table for "+name)
	}
}

// Validate requires every path and table to be set
func (a JobArgs) Validate() error {
	var missing []string
	for _, c := range sources.Cities {
		p := a.Cities[c]
		if p == nil {
			missing = append(missing, "input_path_"+string(c), "output_path_"+string(c), "output_bq_"+string(c))
			continue
		}
		if p.Input == "" {
			missing = append(missing, "input_path_"+string(c))
		}
		if p.Output == "" {
			missing = append(missing, "output_path_"+string(c))
		}
		if p.Table == "" {
			missing = append(missing, "output_bq_"+string(c))
		}
	}
	if len(missing) > 0 {
		return perr.InvalidArgf("missing job arguments: %s", strings.Join(missing, ", "))
	}
	return nil
}
