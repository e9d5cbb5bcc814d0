package adlayers

import (
	"go.uber.org/zap"

	"github.com/comalice/adlayers/internal/core"
	"github.com/comalice/adlayers/internal/primitives"
)

type (
	Kernel       = core.Kernel
	Config       = core.Config
	EngineOption = core.Option
)

// Engine options re-exported for callers outside this module.
var (
	WithMetrics        = core.WithMetrics
	WithTracerProvider = core.WithTracerProvider
	WithPublisher      = core.WithPublisher
	WithTransformLayer = core.WithTransformLayer
	WithAliasFacts     = core.WithAliasFacts
	WithAlwaysWrap     = core.WithAlwaysWrap
	NewMetrics         = core.NewMetrics
	DefaultConfig      = core.DefaultConfig
	LoadConfig         = core.LoadConfig
)

type options struct {
	kernel   core.Kernel
	catalogs []*primitives.Catalog
	config   core.Config
	logger   *zap.Logger
	engine   []core.Option
}

// Option configures a Session.
type Option func(*options)

// WithKernel replaces the base execution layer.
func WithKernel(k Kernel) Option {
	return func(o *options) { o.kernel = k }
}

// WithCatalogs registers the operators of catalogs instead of the reference catalog.
func WithCatalogs(catalogs ...*primitives.Catalog) Option {
	return func(o *options) { o.catalogs = append(o.catalogs, catalogs...) }
}

// WithConfig applies a configuration document.
func WithConfig(c Config) Option {
	return func(o *options) { o.config = c }
}

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithEngineOptions passes options through to the dispatcher engine: metrics,
// tracing, publishers, transform layers and alias facts.
func WithEngineOptions(opts ...EngineOption) Option {
	return func(o *options) { o.engine = append(o.engine, opts...) }
}
