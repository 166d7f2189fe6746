// Package statedb implements the persistent key-value backend that
// anchors the state-delta tree: an ordered store with range iteration
// and metadata slots, backed by go.etcd.io/bbolt so each space maps to
// a bucket and range queries use bbolt's native cursor ordering.
package statedb

import (
	"bytes"

	"go.etcd.io/bbolt"

	"github.com/koinos-go/chain/internal/chainerr"
)

// Space is the opaque address-space tag of a state key. System spaces
// use short fixed names; contract-private spaces are the 20-byte
// address of the owning contract.
type Space []byte

var (
	SpaceMetadata           = Space("metadata")
	SpaceSystemCallDispatch = Space("syscall-dispatch")
	SpaceContractBytecode   = Space("contract-bytecode")
	SpaceAccountRC          = Space("account-rc")
	SpaceAccountNonce       = Space("account-nonce")
)

// Direction controls range-iteration order.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

// Backend is the ordered key-value contract the state-delta tree
// overlays. Absent keys and zero-length values are distinct: Get
// reports found=false for an absent key and found=true, value=[]byte{}
// for a stored empty value.
type Backend interface {
	Get(space Space, key []byte) (value []byte, found bool, err error)
	Put(space Space, key, value []byte) error
	Delete(space Space, key []byte) error
	// Iterate walks [from, ...) in dir, calling fn for each entry until
	// fn returns false or the space is exhausted.
	Iterate(space Space, from []byte, dir Direction, fn func(key, value []byte) bool) error
	Close() error
}

// BoltBackend is the production Backend, one bbolt bucket per space.
type BoltBackend struct {
	db *bbolt.DB
}

func OpenBolt(path string) (*BoltBackend, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.CodeInternalError, "open bbolt backend", err)
	}
	return &BoltBackend{db: db}, nil
}

func (b *BoltBackend) Close() error { return b.db.Close() }

func (b *BoltBackend) Get(space Space, key []byte) ([]byte, bool, error) {
	var value []byte
	var found bool
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(space)
		if bucket == nil {
			return nil
		}
		v := bucket.Get(key)
		if v == nil {
			return nil
		}
		found = true
		value = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, false, chainerr.Wrap(chainerr.CodeInternalError, "bolt get", err)
	}
	return value, found, nil
}

func (b *BoltBackend) Put(space Space, key, value []byte) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(space)
		if err != nil {
			return err
		}
		return bucket.Put(key, value)
	})
	if err != nil {
		return chainerr.Wrap(chainerr.CodeInternalError, "bolt put", err)
	}
	return nil
}

func (b *BoltBackend) Delete(space Space, key []byte) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(space)
		if bucket == nil {
			return nil
		}
		return bucket.Delete(key)
	})
	if err != nil {
		return chainerr.Wrap(chainerr.CodeInternalError, "bolt delete", err)
	}
	return nil
}

func (b *BoltBackend) Iterate(space Space, from []byte, dir Direction, fn func(key, value []byte) bool) error {
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(space)
		if bucket == nil {
			return nil
		}
		c := bucket.Cursor()
		var k, v []byte
		if dir == Ascending {
			if len(from) == 0 {
				k, v = c.First()
			} else {
				k, v = c.Seek(from)
			}
			for ; k != nil; k, v = c.Next() {
				if !fn(k, v) {
					return nil
				}
			}
			return nil
		}
		// Descending: seek to the first key >= from, then step back if
		// we overshot, else start from the last key in the bucket.
		if len(from) == 0 {
			k, v = c.Last()
		} else {
			k, v = c.Seek(from)
			if k == nil {
				k, v = c.Last()
			} else if bytes.Compare(k, from) > 0 {
				k, v = c.Prev()
			}
		}
		for ; k != nil; k, v = c.Prev() {
			if !fn(k, v) {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return chainerr.Wrap(chainerr.CodeInternalError, "bolt iterate", err)
	}
	return nil
}
