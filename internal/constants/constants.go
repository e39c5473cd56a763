package constants

import "time"

const (
	StatsCacheTTL  = 5 * time.Minute
	StatsCacheSize = 256
)

const (
	NavigationTimeout   = 30 * time.Second
	ElementTimeout      = 15 * time.Second
	RangeControlTimeout = 10 * time.Second
	TitleTimeout        = 5 * time.Second
	DevToolsTimeout     = 5 * time.Second
	DatabaseTimeout     = 5 * time.Second
	RequestTimeout      = 90 * time.Second
)

// The source re-renders its tables after a range control fires and emits
// no event once it is done, so these fixed delays are the only sync point.
const (
	DailyRangeSettle   = 2 * time.Second
	MonthlyRangeSettle = 3 * time.Second
	TableSettle        = 1 * time.Second
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
	DBBatchSize       = 100
)

const (
	ShutdownTimeout   = 5 * time.Second
	ReadHeaderTimeout = 10 * time.Second
)

const (
	MaxBrowserSessions  = 2
	ScrapeRatePerMinute = 20
	StoredSeriesLimit   = 60
	StoredMonthsLimit   = 24
	PersistWorkers      = 4
)

const (
	BreakerName        = "island-source"
	BreakerMaxRequests = 1
	BreakerInterval    = time.Minute
	BreakerTimeout     = 2 * time.Minute
	BreakerMinRequests = 5
	BreakerTripRatio   = 0.6
)
