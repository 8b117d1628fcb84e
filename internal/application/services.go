package application

import (
	"log/slog"
	"time"

	"github.com/example/autoecole-scheduler/internal/recurrence"
)

// Options tunes the services built by NewServices. Zero values fall back to defaults.
type Options struct {
	IDGenerator           func() string
	Now                   func() time.Time
	Logger                *slog.Logger
	Location              *time.Location
	DefaultTheoryCapacity int
	Weights               ProgressionWeights
	ProgressionCacheTTL   time.Duration
	ProgressionCacheSize  int
}

// Services bundles the core services sharing one lock table and one progression cache.
type Services struct {
	Availability *AvailabilityRegister
	Sessions     *SessionService
	Enrollment   *EnrollmentManager
	Presence     *PresenceLedger
	Progression  *ProgressionAggregator
	Directory    *DirectoryService
}

// NewServices wires every core service over the given stores.
func NewServices(stores Stores, opts Options) *Services {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := defaultLogger(opts.Logger)
	locks := newResourceLocks()
	cache := newProgressionCache(opts.ProgressionCacheTTL, opts.ProgressionCacheSize, now)

	register := newAvailabilityRegister(stores.Sessions, stores.Directory, locks, opts.IDGenerator, now, logger)

	sessions := NewSessionServiceWithLogger(register, recurrence.NewEngine(opts.Location), opts.IDGenerator, now, logger)
	sessions.progression = cache
	if opts.DefaultTheoryCapacity > 0 {
		sessions.defaultCapacity = opts.DefaultTheoryCapacity
	}

	enrollment := NewEnrollmentManagerWithLogger(register, now, logger)
	enrollment.progression = cache

	presence := NewPresenceLedgerWithLogger(stores.Sessions, stores.Presence, stores.Directory, now, logger)
	presence.progression = cache

	progression := NewProgressionAggregatorWithLogger(stores.Sessions, stores.Presence, stores.Exams, stores.Directory, opts.Weights, now, logger)
	progression.cache = cache

	directory := NewDirectoryServiceWithLogger(stores.Directory, stores.Exams, opts.IDGenerator, now, logger)
	directory.locks = locks
	directory.progression = cache

	return &Services{
		Availability: register,
		Sessions:     sessions,
		Enrollment:   enrollment,
		Presence:     presence,
		Progression:  progression,
		Directory:    directory,
	}
}
