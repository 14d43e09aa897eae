// Package module defines the contract between commands and service modules
package module

import (
	phttp "crimetrends/internal/platform/net/http"
)

// Module is implemented by every service module. Modules without an HTTP
// surface mount nothing
type Module interface {
	MountRoutes(r phttp.Router)
	Ports() any
	Name() string
}
