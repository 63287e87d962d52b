package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
)

// LevelDB stores records as JSON values in a goleveldb database.
type LevelDB struct {
	db *leveldb.DB
}

func NewLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open store at %s: %w", path, err)
	}
	return &LevelDB{db: db}, nil
}

func (s *LevelDB) Put(ctx context.Context, r *Record) error {
	if err := validateRecord(r); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	if err := s.db.Put(r.Key().bytes(), value, nil); err != nil {
		return fmt.Errorf("failed to store record %s: %w", r.Key(), err)
	}
	return nil
}

func (s *LevelDB) Get(ctx context.Context, k Key) (*Record, error) {
	if err := k.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	value, err := s.db.Get(k.bytes(), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read record %s: %w", k, err)
	}

	var r Record
	if err := json.Unmarshal(value, &r); err != nil {
		return nil, fmt.Errorf("failed to decode record %s: %w", k, err)
	}
	return &r, nil
}

// Delete removes the record for k and reports whether one existed. The
// existence check and the delete run in one transaction.
func (s *LevelDB) Delete(ctx context.Context, k Key) (bool, error) {
	if err := k.Validate(); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	tx, err := s.db.OpenTransaction()
	if err != nil {
		return false, fmt.Errorf("failed to open transaction: %w", err)
	}

	found, err := tx.Has(k.bytes(), nil)
	if err != nil {
		tx.Discard()
		return false, fmt.Errorf("failed to read record %s: %w", k, err)
	}
	if !found {
		tx.Discard()
		return false, nil
	}
	if err := tx.Delete(k.bytes(), nil); err != nil {
		tx.Discard()
		return false, fmt.Errorf("failed to delete record %s: %w", k, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to delete record %s: %w", k, err)
	}
	return true, nil
}

func (s *LevelDB) Close() error {
	return s.db.Close()
}
