package persistence

import (
	"encoding/json"
	"errors"

	"sleepswap-engine/internal/models"

	"github.com/dgraph-io/badger/v3"
)

// badgerRepository is the BadgerDB implementation of the StateRepository.
type badgerRepository struct {
	db       *badger.DB
	stateKey []byte
}

// NewBadgerRepository creates and returns a new repository instance connected to a BadgerDB database.
func NewBadgerRepository(dbPath string) (StateRepository, error) {
	opts := badger.DefaultOptions(dbPath)
	// Badger's own logging is disabled to keep the engine's logs clean.
	// Errors are still returned from DB operations.
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &badgerRepository{
		db:       db,
		stateKey: []byte("engine_state"),
	}, nil
}

// SaveState marshals the engine state into JSON and saves it under a single key.
func (r *badgerRepository) SaveState(state *models.EngineState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}

	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(r.stateKey, data)
	})
}

// LoadState loads the engine state from storage.
// A missing state key is not an error; it returns (nil, nil) for a fresh start.
func (r *badgerRepository) LoadState() (*models.EngineState, error) {
	var state models.EngineState

	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(r.stateKey)
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			if len(val) == 0 {
				return errors.New("state value is empty in database")
			}
			return json.Unmarshal(val, &state)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &state, nil
}

// Close gracefully closes the connection to the database.
func (r *badgerRepository) Close() error {
	return r.db.Close()
}
