package vecsim

import (
	"log/slog"

	"github.com/hupe1980/vecsim/blobstore"
	"github.com/hupe1980/vecsim/persistence"
)

type options struct {
	m              int
	efConstruction int
	ef             int
	seed           int64
	store          blobstore.Store
	compression    persistence.Compression
	logger         *Logger
	metrics        MetricsCollector
}

func defaultOptions() options {
	return options{
		m:              16,
		efConstruction: 200,
		ef:             10,
		store:          blobstore.NewLocalStore(""),
		compression:    persistence.CompressionNone,
		logger:         NoopLogger(),
		metrics:        NoopMetricsCollector{},
	}
}

// Option configures an Index at construction or load time.
type Option func(*options)

// WithM configures the graph connectivity (neighbours per node).
// Higher values improve recall at the cost of memory and build time.
func WithM(m int) Option {
	return func(o *options) {
		o.m = m
	}
}

// WithEFConstruction configures the candidate list size used while
// building the graph.
func WithEFConstruction(efConstruction int) Option {
	return func(o *options) {
		o.efConstruction = efConstruction
	}
}

// WithEF configures the default query-time exploration factor.
// The effective value for a query is never below k.
func WithEF(ef int) Option {
	return func(o *options) {
		o.ef = ef
	}
}

// WithSeed fixes the level-generation seed for reproducible graphs.
func WithSeed(seed int64) Option {
	return func(o *options) {
		o.seed = seed
	}
}

// WithBlobStore configures the store used by Save and Open.
// Defaults to the local filesystem with snapshot names taken as paths.
func WithBlobStore(store blobstore.Store) Option {
	return func(o *options) {
		if store != nil {
			o.store = store
		}
	}
}

// WithCompression selects the snapshot payload codec.
func WithCompression(c persistence.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithLogger configures structured logging. Pass nil to disable.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel enables text logging to stderr at the given level.
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metrics = mc
	}
}

func applyOptions(optFns ...Option) options {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return opts
}
