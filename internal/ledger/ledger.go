// Package ledger owns the house point table and the bounded update log.
// Both live as JSON blobs behind the key/value store; an absent or
// unparseable blob falls back to the configured defaults so a fresh or
// corrupted store never takes the board down.
package ledger

import (
	"encoding/json"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/hankai/housecup/internal/models"
	"github.com/hankai/housecup/internal/store"
)

const housesKey = "housesData"

type Ledger struct {
	store    store.KVStore
	defaults map[string]models.House
}

func NewLedger(kv store.KVStore, defaults map[string]models.House) *Ledger {
	return &Ledger{
		store:    kv,
		defaults: defaults,
	}
}

// Init writes the default house table unless one already exists. It never
// overwrites existing data.
func (l *Ledger) Init() error {
	_, found, err := l.store.Read(housesKey)
	if err != nil {
		return err
	}
	if found {
		return nil
	}
	return l.save(cloneHouses(l.defaults))
}

// Houses returns the current house table. The result is a snapshot;
// mutating it does not touch the store.
func (l *Ledger) Houses() (map[string]models.House, error) {
	return l.load(), nil
}

// ApplyDelta adds delta to the named house's total and persists. It
// returns false without mutation when the house is not recognized. Totals
// are signed and never clamped.
func (l *Ledger) ApplyDelta(houseName string, delta int) (bool, error) {
	houses := l.load()
	house, ok := houses[houseName]
	if !ok {
		logger.Debug.Printf("Attempted to update unknown house: %s", houseName)
		return false, nil
	}

	house.Points += delta
	houses[houseName] = house
	if err := l.save(houses); err != nil {
		return false, err
	}
	return true, nil
}

// ResetDefaults sets every known house's points back to its configured
// default. Colour and image metadata stay untouched, and no house is
// added or removed.
func (l *Ledger) ResetDefaults() error {
	houses := l.load()
	for name, house := range houses {
		def, ok := l.defaults[name]
		if !ok {
			continue
		}
		house.Points = def.Points
		houses[name] = house
	}
	return l.save(houses)
}

func (l *Ledger) load() map[string]models.House {
	raw, found, err := l.store.Read(housesKey)
	if err != nil {
		logger.Debug.Printf("Failed to read house table, falling back to defaults: %v", err)
		return cloneHouses(l.defaults)
	}
	if !found {
		return cloneHouses(l.defaults)
	}

	var houses map[string]models.House
	if err := json.Unmarshal(raw, &houses); err != nil {
		logger.Debug.Printf("Corrupted house table, falling back to defaults: %v", err)
		return cloneHouses(l.defaults)
	}
	return houses
}

func (l *Ledger) save(houses map[string]models.House) error {
	raw, err := json.Marshal(houses)
	if err != nil {
		return err
	}
	return l.store.Write(housesKey, raw)
}

func cloneHouses(houses map[string]models.House) map[string]models.House {
	out := make(map[string]models.House, len(houses))
	for name, house := range houses {
		out[name] = house
	}
	return out
}
