/*
	Package storage persists fused volumes in a badger key-value database.  Each
	volume is stored as one metadata record and one record per block, with a
	name record mapping a user-chosen name onto the volume's UUID.
*/
package storage

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/blang/semver"
	"github.com/coocood/freecache"
	"github.com/dgraph-io/badger/v3"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/janelia-flyem/tsdf/core"
	"github.com/janelia-flyem/tsdf/volume"
)

// FormatVersion is the version of the stored key and value formats.  Stores
// written with a different major version cannot be read.
var FormatVersion = semver.MustParse("1.0.0")

// ErrNotFound is returned when a named volume does not exist.
var ErrNotFound = errors.New("volume not found")

// batchSize is the number of writes per badger write batch flush.
const batchSize = 10000

// Store is a badger-backed volume store with a write-through block cache.
type Store struct {
	config Config
	bdp    *badger.DB
	cache  *freecache.Cache

	// stopSyncCh is used to signal the sync goroutine to stop.
	stopSyncCh chan struct{}
}

// Open opens or creates a store.
func Open(config Config) (*Store, error) {
	if !config.InMemory {
		if config.Path == "" {
			return nil, fmt.Errorf("store path must be specified")
		}
		if _, err := os.Stat(config.Path); os.IsNotExist(err) {
			if config.ReadOnly {
				return nil, fmt.Errorf("no store at %s to open read-only", config.Path)
			}
			core.Infof("Store not already at path (%s). Creating directory...\n", config.Path)
			if err := os.MkdirAll(config.Path, 0755); err != nil {
				return nil, fmt.Errorf("can't make directory at %s: %v", config.Path, err)
			}
		}
	}
	cacheSize := config.CacheSize
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}

	bdp, err := badger.Open(getOptions(config))
	if err != nil {
		return nil, err
	}
	s := &Store{
		config:     config,
		bdp:        bdp,
		cache:      freecache.NewCache(cacheSize),
		stopSyncCh: make(chan struct{}),
	}
	if err := s.checkFormat(); err != nil {
		bdp.Close()
		return nil, err
	}
	if !config.InMemory && !config.SyncWrites && !config.ReadOnly {
		go s.syncPeriodically()
	}
	core.Infof("Opened %s\n", s)
	return s, nil
}

func (s *Store) String() string {
	if s.config.InMemory {
		return "in-memory badger store"
	}
	return fmt.Sprintf("badger store @ %s", s.config.Path)
}

// Periodically sync to prevent too many writes from being buffered
// if the process crashes.
func (s *Store) syncPeriodically() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopSyncCh:
			return
		case <-ticker.C:
			if err := s.bdp.Sync(); err != nil {
				core.Errorf("Unable to sync %s: %v\n", s, err)
			}
		}
	}
}

// checkFormat records the format version in a new store or verifies the
// version of an existing one.
func (s *Store) checkFormat() error {
	var stored []byte
	err := s.bdp.View(func(txn *badger.Txn) error {
		item, err := txn.Get(formatKey())
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		stored, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return err
	}
	if stored == nil {
		if s.config.ReadOnly {
			return nil
		}
		return s.bdp.Update(func(txn *badger.Txn) error {
			return txn.Set(formatKey(), []byte(FormatVersion.String()))
		})
	}
	ver, err := semver.Parse(string(stored))
	if err != nil {
		return fmt.Errorf("bad format version %q in %s: %v", stored, s, err)
	}
	if ver.Major != FormatVersion.Major {
		return fmt.Errorf("%s has format %s, incompatible with %s", s, ver, FormatVersion)
	}
	return nil
}

// Close closes the store.
func (s *Store) Close() error {
	if s == nil || s.bdp == nil {
		return nil
	}
	if !s.config.InMemory && !s.config.SyncWrites && !s.config.ReadOnly {
		close(s.stopSyncCh)
	}
	err := s.bdp.Close()
	s.bdp = nil
	core.Infof("Closed %s\n", s)
	return err
}

func (s *Store) get(key []byte) ([]byte, error) {
	var value []byte
	err := s.bdp.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	return value, err
}

// VolumeID returns the UUID of a named volume.
func (s *Store) VolumeID(name string) (uuid.UUID, error) {
	v, err := s.get(nameKey(name))
	if err != nil {
		return uuid.Nil, err
	}
	if v == nil {
		return uuid.Nil, fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	return uuid.FromBytes(v)
}

// Metadata returns the description of a named volume.
func (s *Store) Metadata(name string) (volume.Metadata, error) {
	var m volume.Metadata
	id, err := s.VolumeID(name)
	if err != nil {
		return m, err
	}
	v, err := s.get(metadataKey(id))
	if err != nil {
		return m, err
	}
	if v == nil {
		return m, fmt.Errorf("volume %q (%s) has no metadata", name, id)
	}
	_, err = m.UnmarshalMsg(v)
	return m, err
}

// VolumeInfo describes a stored volume.
type VolumeInfo struct {
	Name     string
	Metadata volume.Metadata
}

// ListVolumes returns the stored volumes sorted by name.
func (s *Store) ListVolumes() ([]VolumeInfo, error) {
	var names []string
	err := s.bdp.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := namePrefix()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			names = append(names, string(it.Item().Key()[1:]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	infos := make([]VolumeInfo, 0, len(names))
	for _, name := range names {
		m, err := s.Metadata(name)
		if err != nil {
			return nil, err
		}
		infos = append(infos, VolumeInfo{Name: name, Metadata: m})
	}
	return infos, nil
}

// SaveVolume writes the volume under the given name.  Blocks whose encoding
// matches the cached copy of the last write are skipped, so repeated saves of
// a growing volume only write changed blocks.  Saving a different volume under
// an existing name replaces it.
func (s *Store) SaveVolume(name string, vol *volume.Volume) error {
	if name == "" {
		return fmt.Errorf("volume name must be specified")
	}
	timedLog := core.NewTimeLog()
	id := vol.ID()
	if oldID, err := s.VolumeID(name); err == nil && oldID != id {
		core.Infof("Replacing volume %q (%s) with %s\n", name, oldID, id)
		if err := s.deleteVolume(oldID); err != nil {
			return err
		}
	} else if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	m := vol.Metadata()
	mdata, err := m.MarshalMsg(nil)
	if err != nil {
		return err
	}

	wb := s.bdp.NewWriteBatch()
	defer func() { wb.Cancel() }()
	if err := wb.Set(nameKey(name), id[:]); err != nil {
		return err
	}
	if err := wb.Set(metadataKey(id), mdata); err != nil {
		return err
	}

	var written, skipped int
	var bytesWritten uint64
	for b := 0; b < vol.NumBlocks(); b++ {
		data, err := vol.EncodeBlock(b, s.config.Compression)
		if err != nil {
			return err
		}
		k := blockKey(id, vol.Key(b))
		if cached, err := s.cache.Get(k); err == nil && bytes.Equal(cached, data) {
			skipped++
			continue
		}
		if err := wb.Set(k, data); err != nil {
			return err
		}
		if err := s.cache.Set(k, data, 0); err != nil {
			s.cache.Del(k)
		}
		written++
		bytesWritten += uint64(len(data))
		if written%batchSize == 0 {
			if err := wb.Flush(); err != nil {
				return fmt.Errorf("error on flush of volume %q at block %d: %v", name, b, err)
			}
			wb = s.bdp.NewWriteBatch()
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("error on last flush of volume %q: %v", name, err)
	}
	timedLog.Infof("Saved volume %q: wrote %d blocks (%s), %d unchanged", name, written, humanize.Bytes(bytesWritten), skipped)
	return nil
}

// LoadVolume reads a named volume.
func (s *Store) LoadVolume(name string) (*volume.Volume, error) {
	timedLog := core.NewTimeLog()
	m, err := s.Metadata(name)
	if err != nil {
		return nil, err
	}
	vol, err := volume.NewFromMetadata(m)
	if err != nil {
		return nil, err
	}
	err = s.bdp.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := blockPrefix(m.ID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			k := item.KeyCopy(nil)
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			key, err := vol.RestoreBlock(data)
			if err != nil {
				return err
			}
			if stored, err := blockFromKey(k); err != nil || stored != key {
				return fmt.Errorf("block %s stored under key %x", key, k)
			}
			if err := s.cache.Set(k, data, 0); err != nil {
				s.cache.Del(k)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if vol.NumBlocks() != m.NumBlocks {
		return nil, fmt.Errorf("volume %q metadata lists %d blocks, found %d", name, m.NumBlocks, vol.NumBlocks())
	}
	timedLog.Infof("Loaded volume %q with %d blocks", name, vol.NumBlocks())
	return vol, nil
}

// LoadBlocks restores the given blocks of a stored volume into vol, reading
// through the block cache.  Blocks not in the store are skipped.  It returns
// the number of blocks restored.
func (s *Store) LoadBlocks(id uuid.UUID, vol *volume.Volume, keys ...core.ChunkPoint3d) (int, error) {
	var restored int
	for _, key := range keys {
		k := blockKey(id, key)
		data, err := s.cache.Get(k)
		if err == freecache.ErrNotFound {
			if data, err = s.get(k); err != nil {
				return restored, err
			}
			if data == nil {
				continue
			}
			if err := s.cache.Set(k, data, 0); err != nil {
				s.cache.Del(k)
			}
		} else if err != nil {
			return restored, err
		}
		if _, err := vol.RestoreBlock(data); err != nil {
			return restored, err
		}
		restored++
	}
	return restored, nil
}

// DeleteVolume removes a named volume and its blocks.
func (s *Store) DeleteVolume(name string) error {
	id, err := s.VolumeID(name)
	if err != nil {
		return err
	}
	if err := s.deleteVolume(id); err != nil {
		return err
	}
	return s.bdp.Update(func(txn *badger.Txn) error {
		return txn.Delete(nameKey(name))
	})
}

func (s *Store) deleteVolume(id uuid.UUID) error {
	wb := s.bdp.NewWriteBatch()
	defer func() { wb.Cancel() }()
	if err := wb.Delete(metadataKey(id)); err != nil {
		return err
	}
	var numKV int
	err := s.bdp.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := blockPrefix(id)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			k := it.Item().KeyCopy(nil)
			s.cache.Del(k)
			if err := wb.Delete(k); err != nil {
				return err
			}
			numKV++
			if numKV%batchSize == 0 {
				if err := wb.Flush(); err != nil {
					return fmt.Errorf("error on flush of delete at block %d: %v", numKV, err)
				}
				wb = s.bdp.NewWriteBatch()
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := wb.Flush(); err != nil {
		return err
	}
	core.Debugf("Deleted %d blocks of volume %s\n", numKV, id)
	return nil
}

// Size returns the on-disk size of the LSM tree and value log.
func (s *Store) Size() (lsm, vlog int64) {
	return s.bdp.Size()
}

// LogStats writes store and cache statistics at info level.
func (s *Store) LogStats() {
	lsm, vlog := s.Size()
	core.Infof("%s: LSM %s, value log %s, cache hit rate %.2f (%d entries)\n", s,
		humanize.Bytes(uint64(lsm)), humanize.Bytes(uint64(vlog)), s.cache.HitRate(), s.cache.EntryCount())
}
