package storage

import (
	"github.com/dgraph-io/badger/v3"

	"github.com/janelia-flyem/tsdf/core"
)

// DefaultCacheSize is the size in bytes of the block cache.
const DefaultCacheSize = 64 * core.Mega

// Config describes how to open a store.
type Config struct {
	// Path is the database directory.  It is ignored for in-memory stores.
	Path string

	// InMemory keeps all data in memory, e.g., for tests.
	InMemory bool

	ReadOnly bool

	// SyncWrites syncs every write to disk.  Otherwise writes are synced periodically.
	SyncWrites bool

	// ValueThreshold is the size in bytes above which values are kept in the value
	// log instead of the LSM tree.  Zero uses the badger default.
	ValueThreshold int64

	// CacheSize is the block cache size in bytes.  Zero uses DefaultCacheSize.
	CacheSize int

	// Compression of stored blocks.
	Compression core.Compression
}

// badgerLogger sends badger messages to our logs.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{})   { core.Errorf("badger: "+format, args...) }
func (badgerLogger) Warningf(format string, args ...interface{}) { core.Warningf("badger: "+format, args...) }
func (badgerLogger) Infof(format string, args ...interface{})    { core.Debugf("badger: "+format, args...) }
func (badgerLogger) Debugf(format string, args ...interface{})   { core.Debugf("badger: "+format, args...) }

func getOptions(config Config) badger.Options {
	var opts badger.Options
	if config.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(config.Path)
	}
	opts = opts.WithLogger(badgerLogger{}).
		WithNumVersionsToKeep(1).
		WithSyncWrites(config.SyncWrites).
		WithReadOnly(config.ReadOnly)
	if config.ValueThreshold > 0 {
		opts = opts.WithValueThreshold(config.ValueThreshold)
	}
	return opts
}
