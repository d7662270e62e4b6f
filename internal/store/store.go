// Package store persists the notification journal in BoltDB.
package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/mmcdole/tuner/internal/domain"
)

// Bucket names
var bucketNotifications = []byte("notifications")

const defaultRetain = 1000

// Journal implements domain.NotificationJournal using BoltDB.
// The newest records are mirrored in memory so Recent never touches disk.
type Journal struct {
	db     *bolt.DB
	retain int

	mu     sync.RWMutex
	recent []domain.NotificationRecord // Oldest first, at most retain entries
	count  int                         // Records stored in BoltDB
}

// OpenJournal opens (or creates) the journal at path. An empty path keeps
// records in memory only.
func OpenJournal(path string, retain int) (*Journal, error) {
	if retain <= 0 {
		retain = defaultRetain
	}
	if path == "" {
		// Memory-only mode (no persistence)
		return &Journal{retain: retain}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	j := &Journal{db: db, retain: retain}
	err = db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketNotifications)
		if err != nil {
			return err
		}
		if err := j.trim(b); err != nil {
			return err
		}
		return j.load(b)
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

// load fills the memory mirror from the bucket
func (j *Journal) load(b *bolt.Bucket) error {
	j.recent = j.recent[:0]
	j.count = 0
	return b.ForEach(func(_, v []byte) error {
		var rec domain.NotificationRecord
		if err := json.Unmarshal(v, &rec); err != nil {
			return fmt.Errorf("corrupt journal record: %w", err)
		}
		j.recent = append(j.recent, rec)
		j.count++
		return nil
	})
}

// trim deletes the oldest keys until at most retain remain
func (j *Journal) trim(b *bolt.Bucket) error {
	n := b.Stats().KeyN
	if n <= j.retain {
		return nil
	}
	// Collect first: deleting while the cursor advances skips keys
	stale := make([][]byte, 0, n-j.retain)
	c := b.Cursor()
	for k, _ := c.First(); k != nil && len(stale) < n-j.retain; k, _ = c.Next() {
		stale = append(stale, append([]byte(nil), k...))
	}
	for _, k := range stale {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// Append stores rec, dropping the oldest record once retain is exceeded
func (j *Journal) Append(rec domain.NotificationRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.db != nil {
		err = j.db.Update(func(tx *bolt.Tx) error {
			b := tx.Bucket(bucketNotifications)
			seq, err := b.NextSequence()
			if err != nil {
				return err
			}
			if err := b.Put(itob(seq), data); err != nil {
				return err
			}
			if j.count+1 > j.retain {
				c := b.Cursor()
				if k, _ := c.First(); k != nil {
					if err := c.Delete(); err != nil {
						return err
					}
					return nil
				}
			}
			j.count++
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to append journal record: %w", err)
		}
	}

	j.recent = append(j.recent, rec)
	if len(j.recent) > j.retain {
		j.recent = append(j.recent[:0], j.recent[len(j.recent)-j.retain:]...)
	}
	return nil
}

// Recent returns up to n records, newest first
func (j *Journal) Recent(n int) ([]domain.NotificationRecord, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if n <= 0 || n > len(j.recent) {
		n = len(j.recent)
	}
	out := make([]domain.NotificationRecord, 0, n)
	for i := len(j.recent) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, j.recent[i])
	}
	return out, nil
}

// Close releases the database
func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

var _ domain.NotificationJournal = (*Journal)(nil)
