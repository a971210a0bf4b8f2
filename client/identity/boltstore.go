// SPDX-FileCopyrightText: Copyright (C) 2026  Katzenpost contributors
// SPDX-License-Identifier: AGPL-3.0-only

package identity

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"
)

const (
	metadataBucket = "metadata"
	identityBucket = "identity"
	versionKey     = "version"
	recordKey      = "current"

	dbVersion = 0
)

type record struct {
	Name       string
	UID        string
	PrivateKey []byte
}

// BoltStore keeps the identity in a bbolt database as a CBOR record.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates (or loads) an identity database with the given file
// name f.
func NewBoltStore(f string) (*BoltStore, error) {
	db, err := bolt.Open(f, 0600, nil)
	if err != nil {
		return nil, err
	}

	if err = db.Update(func(tx *bolt.Tx) error {
		// Ensure that all the buckets exists, and grab the metadata bucket.
		bkt, err := tx.CreateBucketIfNotExists([]byte(metadataBucket))
		if err != nil {
			return err
		}
		if _, err = tx.CreateBucketIfNotExists([]byte(identityBucket)); err != nil {
			return err
		}

		if b := bkt.Get([]byte(versionKey)); b != nil {
			// Well it looks like we loaded as opposed to created.
			if len(b) != 1 || b[0] != dbVersion {
				return fmt.Errorf("identity: incompatible database version: %v", b)
			}
			return nil
		}

		// We created a new database, so populate the new `metadata` bucket.
		return bkt.Put([]byte(versionKey), []byte{dbVersion})
	}); err != nil {
		// The struct isn't getting returned so clean up the database.
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Load implements Store.
func (s *BoltStore) Load() (*Identity, error) {
	var raw []byte
	if err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket([]byte(identityBucket)).Get([]byte(recordKey)); v != nil {
			raw = make([]byte, len(v))
			copy(raw, v)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, ErrNoIdentity
	}

	var r record
	if err := cbor.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	id := &Identity{
		Name:       r.Name,
		PrivateKey: r.PrivateKey,
	}
	var err error
	if id.UID, err = uidFromHex(r.UID); err != nil {
		return nil, err
	}
	if err = id.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return id, nil
}

// Save implements Store.
func (s *BoltStore) Save(id *Identity) error {
	if err := id.validate(); err != nil {
		return err
	}
	raw, err := cbor.Marshal(&record{
		Name:       id.Name,
		UID:        id.UIDHex(),
		PrivateKey: id.PrivateKey,
	})
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(identityBucket)).Put([]byte(recordKey), raw)
	})
}

// Close implements Store.
func (s *BoltStore) Close() error {
	if err := s.db.Sync(); err != nil {
		s.db.Close()
		return err
	}
	return s.db.Close()
}
