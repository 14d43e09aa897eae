// Package version reports the build of the running command
package version

// BuildInfo is the build stamp served by the ops API
type BuildInfo struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// Info returns the build stamp of service. Version, commit and date are set
// at link time:
//
//	-ldflags "-X crimetrends/internal/core/version.version=v0.1.0 -X crimetrends/internal/core/version.commit=abcd"
func Info(service string) BuildInfo {
	return BuildInfo{
		Service: service,
		Version: version,
		Commit:  commit,
		Date:    date,
	}
}

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)
