// Package modkit holds the wiring shared by service modules
package modkit

import (
	"crimetrends/internal/modkit/repokit"
	"crimetrends/internal/platform/config"
	"crimetrends/internal/platform/logger"
	"crimetrends/internal/platform/store"
)

// Deps holds the process-wide dependencies handed to every module.
// PG is required by the ledger-backed modules; CH and KV may be nil
type Deps struct {
	Log logger.Logger
	Cfg config.Conf
	PG  repokit.TxRunner
	CH  store.Clickhouse
	KV  store.KV
}

// FromStore copies the opened backends of st into a Deps
func FromStore(cfg config.Conf, st *store.Store) Deps {
	d := Deps{Cfg: cfg}
	if st == nil {
		return d
	}
	d.Log = st.Log
	d.PG = st.PG
	d.CH = st.CH
	d.KV = st.KV
	return d
}

// HasCache reports whether a key/value backend is wired
func (d Deps) HasCache() bool { return d.KV != nil }
