package modkit

import (
	"net/http"

	phttp "crimetrends/internal/platform/net/http"
)

// Built is the resolved option set a module keeps after New
type Built struct {
	Name   string
	Prefix string
	Mw     []func(http.Handler) http.Handler
	Ports  any
}

// Build applies opts in order
func Build(opts ...Option) Built {
	var c buildCfg
	for _, o := range opts {
		if o != nil {
			o(&c)
		}
	}
	return Built{
		Name:   c.name,
		Prefix: c.prefix,
		Mw:     append([]func(http.Handler) http.Handler(nil), c.mw...),
		Ports:  c.ports,
	}
}

// Mount attaches register under b.Prefix with b.Mw applied to that subtree only
func (b Built) Mount(r phttp.Router, register func(phttp.Router)) {
	attach := func(sub phttp.Router) {
		if len(b.Mw) > 0 {
			sub.Use(b.Mw...)
		}
		register(sub)
	}
	if b.Prefix == "" || b.Prefix == "/" {
		r.Group(attach)
		return
	}
	r.Route(b.Prefix, attach)
}
