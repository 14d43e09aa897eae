package module

import (
	"crimetrends/internal/adapters/warehouse"
	"crimetrends/internal/core/sources"
	"crimetrends/internal/platform/config"
	"crimetrends/internal/services/transform/pipeline"
)

// Options controls the transform job
type Options struct {
	Years     pipeline.Years
	Warehouse warehouse.Config
	// SkipLoad leaves the parquet output in the lake without a table load
	SkipLoad bool
}

// FromConfig reads CORE_TRANSFORM_SD_FROM, CORE_TRANSFORM_SD_TO,
// CORE_TRANSFORM_SKIP_LOAD and the warehouse settings
func FromConfig(cfg config.Conf) Options {
	c := cfg.Prefix("CORE_TRANSFORM_")
	return Options{
		Years: pipeline.Years{
			From: c.MayInt("SD_FROM", sources.SDFromYear),
			To:   c.MayInt("SD_TO", sources.SDToYear),
		},
		Warehouse: warehouse.FromConfig(cfg),
		SkipLoad:  c.MayBool("SKIP_LOAD", false),
	}
}
