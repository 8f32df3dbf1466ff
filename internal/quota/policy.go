// Package quota gates how much a non-admin actor may change in a calendar
// day. Counters are keyed by normalized actor + date + direction, so the
// allowance resets implicitly at day rollover and stale keys are simply
// never read again.
package quota

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/hankai/housecup/internal/models"
	"github.com/hankai/housecup/internal/store"
)

type Mode string

const (
	// ModePoints caps cumulative points added and points deducted
	// independently per actor per day.
	ModePoints Mode = "points"
	// ModeActions is the legacy policy: a flat cap on actions per day.
	ModeActions Mode = "actions"
)

const (
	DefaultPointsCap  = 200
	DefaultActionsCap = 5

	dayFormat     = "2006-01-02"
	counterKeyTpl = "quota:%s:%s:%s" // quota:${actor}:${date}:${direction}
)

var (
	ErrAddCapExceeded    = errors.New("daily cap on points added exceeded")
	ErrDeductCapExceeded = errors.New("daily cap on points deducted exceeded")
	ErrActionCapExceeded = errors.New("daily action cap exceeded")
)

type Policy struct {
	store      store.KVStore
	mode       Mode
	pointsCap  int
	actionsCap int
	now        func() time.Time
}

func NewPolicy(kv store.KVStore, mode Mode, pointsCap, actionsCap int) *Policy {
	if mode != ModeActions {
		mode = ModePoints
	}
	if pointsCap <= 0 {
		pointsCap = DefaultPointsCap
	}
	if actionsCap <= 0 {
		actionsCap = DefaultActionsCap
	}
	return &Policy{
		store:      kv,
		mode:       mode,
		pointsCap:  pointsCap,
		actionsCap: actionsCap,
		now:        time.Now,
	}
}

// TryRecord approves or rejects a proposed delta for the actor today. An
// empty actor denotes an administrator: always allowed, no bookkeeping.
// A rejection leaves every counter untouched. Zero deltas are rejected
// upstream and never reach this engine.
func (p *Policy) TryRecord(actor string, delta int) error {
	if actor == "" {
		return nil
	}

	id := models.NormalizeActor(actor)
	day := p.now().Format(dayFormat)

	if p.mode == ModeActions {
		key := fmt.Sprintf(counterKeyTpl, id, day, "actions")
		count, err := p.counter(key)
		if err != nil {
			return err
		}
		if count+1 > p.actionsCap {
			return ErrActionCapExceeded
		}
		return p.setCounter(key, count+1)
	}

	direction := "added"
	capErr := ErrAddCapExceeded
	amount := delta
	if delta < 0 {
		direction = "deducted"
		capErr = ErrDeductCapExceeded
		amount = -delta
	}

	key := fmt.Sprintf(counterKeyTpl, id, day, direction)
	total, err := p.counter(key)
	if err != nil {
		return err
	}
	if total+amount > p.pointsCap {
		return capErr
	}
	return p.setCounter(key, total+amount)
}

func (p *Policy) counter(key string) (int, error) {
	raw, found, err := p.store.Read(key)
	if err != nil {
		return 0, fmt.Errorf("failed to read quota counter %s: %w", key, err)
	}
	if !found {
		return 0, nil
	}

	value, err := strconv.Atoi(string(raw))
	if err != nil {
		logger.Debug.Printf("Corrupted quota counter %s, treating as zero: %v", key, err)
		return 0, nil
	}
	return value, nil
}

func (p *Policy) setCounter(key string, value int) error {
	if err := p.store.Write(key, []byte(strconv.Itoa(value))); err != nil {
		return fmt.Errorf("failed to persist quota counter %s: %w", key, err)
	}
	return nil
}
