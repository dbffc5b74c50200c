package db

import (
	"encoding/binary"

	"github.com/boltdb/bolt"
)

// Still-open posts have their bodies mirrored in the embedded database to
// reduce write load on Postgres. The read path injects these at assembly.

func bodyBucket(tx *bolt.Tx) *bolt.Bucket {
	return tx.Bucket([]byte("open_bodies"))
}

func formatPostID(id uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, id)
	return buf
}

// SetOpenBody sets the open body of a post
func (s *Store) SetOpenBody(id uint64, body []byte) error {
	return s.boltDB.Batch(func(tx *bolt.Tx) error {
		return bodyBucket(tx).Put(formatPostID(id), body)
	})
}

// GetOpenBody retrieves an open body of a post
func (s *Store) GetOpenBody(id uint64) (body string, err error) {
	err = s.boltDB.View(func(tx *bolt.Tx) error {
		body = string(bodyBucket(tx).Get(formatPostID(id)))
		return nil
	})
	return
}

// DeleteOpenBody removes a post's open body after closure
func (s *Store) DeleteOpenBody(id uint64) error {
	return s.boltDB.Batch(func(tx *bolt.Tx) error {
		return bodyBucket(tx).Delete(formatPostID(id))
	})
}
