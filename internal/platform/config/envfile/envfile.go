// Package envfile loads dotenv files into the process environment
package envfile

import (
	"github.com/joho/godotenv"

	perr "crimetrends/internal/platform/errors"
	"crimetrends/internal/platform/logger"
)

// DefaultPath is used when Load is called with an empty path
const DefaultPath = "../.env"

var load = godotenv.Load // seam

// Load reads path (or DefaultPath) into the environment without overriding
// variables that are already set
func Load(path string) error {
	if path == "" {
		path = DefaultPath
	}
	log := logger.Named("envfile")
	if err := load(path); err != nil {
		log.Error().Err(err).Str("path", path).Msg("Error loading the file with environment variables.")
		return perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "load env file %s", path)
	}
	log.Info().Str("path", path).Msg("File with environment variables was successfully loaded.")
	return nil
}
