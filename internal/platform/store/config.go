package store

import (
	"time"

	"crimetrends/internal/platform/config"
)

// Config aggregates per backend configuration
type Config struct {
	AppName string

	PG  PGConfig
	CH  CHConfig
	RDS RedisConfig
}

// PGConfig configures postgres connectivity and tracing
type PGConfig struct {
	Enabled     bool
	URL         string
	MaxConns    int32
	LogSQL      bool
	SlowQueryMs int

	// boot knobs; zero means the opener defaults
	ConnectRetries int
	PingTimeout    time.Duration
}

// CHConfig configures clickhouse connectivity
type CHConfig struct {
	Enabled    bool
	URL        string
	LogSQL     bool
	ClientName string
	ClientTag  string
}

// RedisConfig configures redis connectivity
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// FromEnv reads SERVICE_PGSQL_*, SERVICE_CLICKHOUSE_* and SERVICE_REDIS_*
// A backend is enabled when its DBURL or ADDR is set
func FromEnv(appName string) Config {
	root := config.New()
	pgc := root.Prefix("SERVICE_PGSQL_")
	chc := root.Prefix("SERVICE_CLICKHOUSE_")
	rdc := root.Prefix("SERVICE_REDIS_")

	out := Config{AppName: appName}

	out.PG.URL = pgc.MayString("DBURL", "")
	out.PG.Enabled = out.PG.URL != ""
	out.PG.MaxConns = int32(pgc.MayInt("MAX_CONNS", 8))
	out.PG.LogSQL = pgc.MayBool("LOG_SQL", false)
	out.PG.SlowQueryMs = pgc.MayInt("SLOW_MS", 500)
	out.PG.ConnectRetries = pgc.MayInt("CONNECT_RETRIES", 0)
	out.PG.PingTimeout = pgc.MayDuration("PING_TIMEOUT", 0)

	out.CH.URL = chc.MayString("DBURL", "")
	out.CH.Enabled = out.CH.URL != ""
	out.CH.LogSQL = chc.MayBool("LOG_SQL", false)
	out.CH.ClientName = chc.MayString("CLIENT_NAME", appName)
	out.CH.ClientTag = chc.MayString("CLIENT_TAG", "")

	out.RDS.Addr = rdc.MayString("ADDR", "")
	out.RDS.Enabled = out.RDS.Addr != ""
	out.RDS.Password = rdc.MayString("PASSWORD", "")
	out.RDS.DB = rdc.MayInt("DB", 0)
	out.RDS.Prefix = rdc.MayString("PREFIX", "crimetrends:")

	return out
}
