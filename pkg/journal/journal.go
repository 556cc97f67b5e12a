// Package journal keeps an audit trail of verified copies in a bbolt file,
// one entry per destination holding the outcome of the latest copy to it.
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketCopies = []byte("copies")

type Status string

const (
	StatusVerified Status = "verified"
	StatusFailed   Status = "failed"
)

type Entry struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	Destination string    `json:"destination"`
	Algorithm   string    `json:"algorithm"`
	Checksum    string    `json:"checksum,omitempty"`
	Attempts    int       `json:"attempts"`
	Status      Status    `json:"status"`
	Error       string    `json:"error,omitempty"`
	Finished    time.Time `json:"finished"`
}

func (e *Entry) String() string {
	bin, _ := json.Marshal(e)
	return string(bin)
}

type Journal struct {
	db *bolt.DB
}

func Open(path string) (*Journal, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCopies)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init journal %s: %w", path, err)
	}
	return &Journal{db: db}, nil
}

// Record stores e under its destination, replacing any earlier entry.
func (j *Journal) Record(e Entry) error {
	if e.Destination == "" {
		return errors.New("journal entry without destination")
	}
	if e.Finished.IsZero() {
		e.Finished = time.Now().UTC()
	}
	value, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return j.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCopies).Put([]byte(e.Destination), value)
	})
}

func (j *Journal) Get(destination string) (Entry, bool, error) {
	var e Entry
	var found bool
	err := j.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketCopies).Get([]byte(destination))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &e)
	})
	return e, found, err
}

func (j *Journal) Close() error {
	return j.db.Close()
}
