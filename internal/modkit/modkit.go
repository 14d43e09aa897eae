package modkit

import (
	"crimetrends/internal/modkit/module"
)

// Module is the surface every service module exposes to the commands
type Module = module.Module

// Builder constructs a Module from shared deps and options
type Builder func(Deps, ...Option) Module
