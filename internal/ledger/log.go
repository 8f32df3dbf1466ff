package ledger

import (
	"encoding/json"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/hankai/housecup/internal/models"
	"github.com/hankai/housecup/internal/store"
)

const (
	updatesKey = "updates"

	// DefaultHistoryLimit caps the update log at the 20 most recent
	// entries, matching the public board's feed.
	DefaultHistoryLimit = 20
)

// UpdateLog is the append-only, capacity-bounded history of applied point
// changes, ordered newest first.
type UpdateLog struct {
	store store.KVStore
	limit int
}

func NewUpdateLog(kv store.KVStore, limit int) *UpdateLog {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &UpdateLog{
		store: kv,
		limit: limit,
	}
}

// Record prepends the entry and truncates the history to the newest
// `limit` entries, evicting the oldest beyond the cap.
func (ul *UpdateLog) Record(entry models.UpdateEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	updates := append([]models.UpdateEntry{entry}, ul.load()...)
	if len(updates) > ul.limit {
		updates = updates[:ul.limit]
	}
	return ul.save(updates)
}

// UndoLast removes and returns the newest entry. It returns (nil, nil)
// when there is nothing to undo; reversing the paired ledger mutation is
// the caller's job.
func (ul *UpdateLog) UndoLast() (*models.UpdateEntry, error) {
	updates := ul.load()
	if len(updates) == 0 {
		return nil, nil
	}

	last := updates[0]
	if err := ul.save(updates[1:]); err != nil {
		return nil, err
	}
	return &last, nil
}

func (ul *UpdateLog) Clear() error {
	return ul.save([]models.UpdateEntry{})
}

// List returns a newest-first snapshot of the history.
func (ul *UpdateLog) List() ([]models.UpdateEntry, error) {
	return ul.load(), nil
}

func (ul *UpdateLog) load() []models.UpdateEntry {
	raw, found, err := ul.store.Read(updatesKey)
	if err != nil {
		logger.Debug.Printf("Failed to read update log, treating as empty: %v", err)
		return []models.UpdateEntry{}
	}
	if !found {
		return []models.UpdateEntry{}
	}

	var updates []models.UpdateEntry
	if err := json.Unmarshal(raw, &updates); err != nil {
		logger.Debug.Printf("Corrupted update log, treating as empty: %v", err)
		return []models.UpdateEntry{}
	}
	return updates
}

func (ul *UpdateLog) save(updates []models.UpdateEntry) error {
	raw, err := json.Marshal(updates)
	if err != nil {
		return err
	}
	return ul.store.Write(updatesKey, raw)
}
