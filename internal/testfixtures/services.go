package testfixtures

import (
	"io"
	"log/slog"
	"time"

	"github.com/example/autoecole-scheduler/internal/application"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Logger      *slog.Logger
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults. Logs are discarded unless
// WithLogger is given.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// WithLogger overrides the logger handed to services.
func WithLogger(logger *slog.Logger) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Logger = logger
	}
}

// ServicesDeps captures what NewServices needs beyond the factory defaults.
type ServicesDeps struct {
	Stores                application.Stores
	Weights               application.ProgressionWeights
	DefaultTheoryCapacity int
	Location              *time.Location
	ProgressionCacheTTL   time.Duration
}

// NewServices builds the full service set over the given stores.
func (f *ServiceFactory) NewServices(deps ServicesDeps) *application.Services {
	location := deps.Location
	if location == nil {
		location = time.UTC
	}
	return application.NewServices(deps.Stores, application.Options{
		IDGenerator:           f.IDGenerator.NextFunc(),
		Now:                   f.Clock.NowFunc(),
		Logger:                f.Logger,
		Location:              location,
		DefaultTheoryCapacity: deps.DefaultTheoryCapacity,
		Weights:               deps.Weights,
		ProgressionCacheTTL:   deps.ProgressionCacheTTL,
	})
}
