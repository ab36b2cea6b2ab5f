// Package journal records completed transfers, so an interrupted run can be repeated without fetching finished
// files again.
package journal

import (
	"encoding/json"
	"errors"
	"time"

	"go.etcd.io/bbolt"
)

var Buckets = struct {
	Metadata  []byte
	Transfers []byte
}{
	Metadata:  []byte("__metadata__"),
	Transfers: []byte("transfers"),
}

var MetadataKeys = struct {
	Version []byte
}{
	Version: []byte("version"),
}

const currentVersion = 1

var ErrUnsupportedVersion = errors.New("journal was written by a newer version")

// An Entry records one completed transfer.
type Entry struct {
	LessonID    string
	Filename    string
	URL         string
	Path        string
	RunID       string
	CompletedAt time.Time
}

func (e *Entry) key() []byte {
	return Key(e.LessonID, e.Filename)
}

func Key(lessonID string, filename string) []byte {
	return []byte(lessonID + "/" + filename)
}

type Journal interface {
	// Get returns the entry for a lesson's file, or nil if there is none.
	Get(lessonID string, filename string) (*Entry, error)
	Put(entry *Entry) error
	Delete(lessonID string, filename string) error
	Close() error
}

type journal struct {
	*bbolt.DB
}

func Open(path string) (_ Journal, err error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) (err error) {
		// Ensure buckets exist
		var metadata *bbolt.Bucket
		if metadata, err = tx.CreateBucketIfNotExists(Buckets.Metadata); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(Buckets.Transfers); err != nil {
			return err
		}

		var version int
		if versionBytes := metadata.Get(MetadataKeys.Version); versionBytes == nil {
			version = 0
		} else if err = json.Unmarshal(versionBytes, &version); err != nil {
			return err
		}
		if version > currentVersion {
			return ErrUnsupportedVersion
		}

		if versionBytes, err := json.Marshal(currentVersion); err != nil {
			return err
		} else if err = metadata.Put(MetadataKeys.Version, versionBytes); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &journal{db}, nil
}

func (j *journal) Get(lessonID string, filename string) (entry *Entry, err error) {
	err = j.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(Buckets.Transfers).Get(Key(lessonID, filename))
		if data == nil {
			return nil
		}
		entry = &Entry{}
		return json.Unmarshal(data, entry)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (j *journal) Put(entry *Entry) error {
	if data, err := json.Marshal(entry); err != nil {
		return err
	} else {
		return j.Update(func(tx *bbolt.Tx) error {
			return tx.Bucket(Buckets.Transfers).Put(entry.key(), data)
		})
	}
}

func (j *journal) Delete(lessonID string, filename string) error {
	return j.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(Buckets.Transfers).Delete(Key(lessonID, filename))
	})
}

// Nil is a Journal that remembers nothing.
type Nil struct{}

func (Nil) Get(string, string) (*Entry, error) {
	return nil, nil
}

func (Nil) Put(*Entry) error {
	return nil
}

func (Nil) Delete(string, string) error {
	return nil
}

func (Nil) Close() error {
	return nil
}
