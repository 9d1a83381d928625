package kronicler

import "github.com/rs/zerolog"

// Config contains configurable parameters for a Database. Use
// DefaultConfig to get sensible defaults, then override the fields you
// need — mirrors the CollectorConfig/DefaultCollectorConfig shape this
// project's configuration style is grounded on.
type Config struct {
	// Directory is where the four column files live. Defaults to
	// DefaultDirectory, overridable via KRONICLER_DIRECTORY.
	Directory string

	// SyncConsume selects synchronous (true) or asynchronous (false,
	// the default) capture. Overridable via KRONICLER_SYNC.
	SyncConsume bool

	// QueueCapacity bounds the async capture queue.
	QueueCapacity int

	// FsyncEvery fsyncs the column files every N appends, in addition
	// to always fsyncing on Close.
	FsyncEvery uint64

	// Logger receives structured lifecycle and error events. Defaults
	// to a no-op logger when left zero.
	Logger zerolog.Logger
}

// DefaultConfig returns a Config with sensible defaults: async
// consume, directory ".kronicler_data", queue capacity 65536, fsync
// every 256 appends.
func DefaultConfig() Config {
	return Config{
		Directory:     DefaultDirectory,
		SyncConsume:   false,
		QueueCapacity: 65536,
		FsyncEvery:    256,
		Logger:        zerolog.Nop(),
	}
}

// WithDirectory returns a copy of cfg with Directory set.
func (cfg Config) WithDirectory(dir string) Config {
	cfg.Directory = dir
	return cfg
}

// WithSyncConsume returns a copy of cfg with SyncConsume set.
func (cfg Config) WithSyncConsume(sync bool) Config {
	cfg.SyncConsume = sync
	return cfg
}

// WithQueueCapacity returns a copy of cfg with QueueCapacity set.
func (cfg Config) WithQueueCapacity(n int) Config {
	cfg.QueueCapacity = n
	return cfg
}

// WithLogger returns a copy of cfg with Logger set.
func (cfg Config) WithLogger(logger zerolog.Logger) Config {
	cfg.Logger = logger
	return cfg
}

// resolveEnv applies KRONICLER_DIRECTORY / KRONICLER_SYNC overrides on
// top of an already-constructed Config, the way the singleton
// constructor is expected to.
func (cfg Config) resolveEnv() Config {
	cfg.Directory = directoryFromEnv(cfg.Directory)
	cfg.SyncConsume = syncFromEnv(cfg.SyncConsume)
	return cfg
}
