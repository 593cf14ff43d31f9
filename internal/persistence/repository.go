package persistence

import "sleepswap-engine/internal/models"

// StateRepository defines the interface for engine state persistence.
// It abstracts the underlying storage mechanism (e.g., BadgerDB, in-memory)
// from the rest of the application.
type StateRepository interface {
	// SaveState atomically saves the entire engine state.
	SaveState(state *models.EngineState) error

	// LoadState loads the engine state from storage.
	// If no state is found, it should return (nil, nil).
	LoadState() (*models.EngineState, error)

	// Close gracefully closes the connection to the database.
	Close() error
}
