// Package checkpoint stores progress of a region scan in a bolt
// database, so an interrupted scan can be resumed.
package checkpoint

import (
	"encoding/json"
	"time"

	"github.com/op/go-logging"
	"github.com/pkg/errors"

	bolt "go.etcd.io/bbolt"
)

// log is the global logging variable.
var log = logging.MustGetLogger("checkpoint")

// SCAN is the bucket name for scan progress.
var SCAN = []byte("scan")

// Data is the scan state after a processed window.
type Data struct {
	// Region is the scanned region.
	Region string
	// LastPos is the first position (zero-based) not yet processed.
	LastPos int
	// NSites is the number of processed sites.
	NSites int
	// LogLikelihood is the sum of site log-likelihoods so far.
	LogLikelihood float64
	// NCalls is the number of reported sites.
	NCalls int
	// Final is true if the region is finished.
	Final bool
}

// Store reads and writes checkpoints of one scan.
type Store struct {
	db      *bolt.DB
	key     []byte
	last    time.Time
	seconds float64
}

// Open opens or creates a checkpoint database.
func Open(path string) (*bolt.DB, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening checkpoint database %s", path)
	}
	return db, nil
}

// Key creates a checkpoint key from the command name and the region.
func Key(command, region string) []byte {
	return []byte(command + "\t" + region)
}

// New creates a new Store. Checkpoints are saved at most once in
// seconds (see Old). A nil db disables checkpointing.
func New(db *bolt.DB, key []byte, seconds float64) *Store {
	return &Store{
		db:      db,
		key:     key,
		seconds: seconds,
	}
}

// Save saves a checkpoint.
func (s *Store) Save(data *Data) error {
	// a failing save is not retried immediately
	s.SetNow()
	b, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "serializing checkpoint")
	}
	if err = SaveData(s.db, s.key, b); err != nil {
		log.Error("Error saving checkpoint:", err)
		return err
	}
	log.Debugf("checkpoint saved: %s, last position %d", data.Region, data.LastPos)
	return nil
}

// Load returns the saved state or nil if there is none.
func (s *Store) Load() (*Data, error) {
	b, err := LoadData(s.db, s.key)
	if err != nil || b == nil {
		return nil, err
	}
	var data *Data
	if err = json.Unmarshal(b, &data); err != nil {
		return nil, errors.Wrap(err, "reading checkpoint")
	}
	if data == nil {
		return nil, nil
	}
	if data.Final {
		log.Noticef("Found finished scan checkpoint (%s, sites=%v, lnL=%v)", data.Region, data.NSites, data.LogLikelihood)
	} else {
		log.Noticef("Found unfinished scan checkpoint (%s, last position=%v, sites=%v)", data.Region, data.LastPos+1, data.NSites)
	}
	return data, nil
}

// Old returns true if the last checkpoint was saved too long ago.
func (s *Store) Old() bool {
	return time.Since(s.last).Seconds() > s.seconds
}

// SetNow sets last checkpoint time to now.
func (s *Store) SetNow() {
	s.last = time.Now()
}

// SaveData saves values in bolt database.
func SaveData(db *bolt.DB, key []byte, data []byte) error {
	if db == nil {
		return nil
	}
	return db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(SCAN)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}

// LoadData loads data from bolt database.
func LoadData(db *bolt.DB, key []byte) ([]byte, error) {
	var data []byte
	if db == nil {
		return nil, nil
	}
	err := db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(SCAN)
		if b == nil {
			return nil
		}
		// values are only valid inside the transaction
		if v := b.Get(key); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}
