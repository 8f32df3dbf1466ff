package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hankai/housecup/internal/ledger"
	"github.com/hankai/housecup/internal/models"
	"github.com/hankai/housecup/internal/quota"
	"github.com/hankai/housecup/internal/store"
)

var (
	ErrZeroDelta          = errors.New("delta must be a non-zero integer")
	ErrEmptyReason        = errors.New("reason must not be empty")
	ErrUnknownHouse       = errors.New("unknown house")
	ErrOwnHouse           = errors.New("teachers cannot adjust their own house")
	ErrNothingToUndo      = errors.New("nothing to undo")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

type Service struct {
	Config   *Config
	Store    store.KVStore
	Sessions *Sessions
	Ledger   *ledger.Ledger
	Updates  *ledger.UpdateLog
	Quota    *quota.Policy

	now func() time.Time
}

func NewService(configPath string) (*Service, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	kv, err := NewStore(config.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to init store: %w", err)
	}

	migrationsDir := config.Database.MigrationsDir
	if migrationsDir == "" {
		migrationsDir = "./migrations"
	}
	if err := kv.ApplyMigrations(migrationsDir); err != nil {
		kv.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	sessions, err := NewSessions(config)
	if err != nil {
		kv.Close()
		return nil, fmt.Errorf("failed to init sessions: %w", err)
	}

	houseLedger := ledger.NewLedger(kv, config.DefaultHouses())
	if err := houseLedger.Init(); err != nil {
		kv.Close()
		sessions.Close()
		return nil, fmt.Errorf("failed to init house ledger: %w", err)
	}

	return &Service{
		Config:   config,
		Store:    kv,
		Sessions: sessions,
		Ledger:   houseLedger,
		Updates:  ledger.NewUpdateLog(kv, config.Display.HistoryLimit),
		Quota: quota.NewPolicy(
			kv,
			quota.Mode(config.Quota.Mode),
			config.Quota.DailyPointsCap,
			config.Quota.DailyActionsCap,
		),
		now: time.Now,
	}, nil
}

// Login checks the admin credential first, then the teacher roster. The
// returned token is empty when sessions are disabled.
func (s *Service) Login(ctx context.Context, username, password string) (string, *models.Session, error) {
	normalized := models.NormalizeActor(username)

	var session models.Session
	switch {
	case normalized == models.NormalizeActor(s.Config.Auth.AdminUsername) &&
		password == s.Config.Auth.AdminPassword:
		session = models.Session{
			Role:     models.RoleAdmin,
			Username: s.Config.Auth.AdminUsername,
		}
	default:
		house, ok := s.Config.HomeHouse(normalized)
		if !ok || password != s.Config.Auth.TeacherPassword {
			return "", nil, ErrInvalidCredentials
		}
		// keep the raw name for display, trimmed of incidental whitespace
		session = models.Session{
			Role:     models.RoleTeacher,
			Username: strings.TrimSpace(username),
			House:    house,
		}
	}

	if !s.Sessions.Enabled() {
		return "", &session, nil
	}

	token, err := s.Sessions.Create(ctx, session)
	if err != nil {
		return "", nil, err
	}
	return token, &session, nil
}

// SubmitAdjustment is the single mutation entry point: validate, consult
// the quota policy for teachers, apply the delta and record the update as
// one logical unit. The first failing check wins and nothing is mutated.
func (s *Service) SubmitAdjustment(req models.AdjustmentRequest, actor models.Session) (*models.UpdateEntry, error) {
	if req.Delta == 0 {
		return nil, ErrZeroDelta
	}

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, ErrEmptyReason
	}

	// House existence and the home-house rule are checked read-only before
	// the quota engine so a rejected submission never consumes allowance.
	houses, err := s.Ledger.Houses()
	if err != nil {
		return nil, err
	}
	if _, ok := houses[req.House]; !ok {
		return nil, ErrUnknownHouse
	}

	var teacher *string
	if !actor.IsAdmin() {
		if s.Config.Quota.RestrictOwnHouse && actor.House == req.House {
			return nil, ErrOwnHouse
		}
		if err := s.Quota.TryRecord(actor.Username, req.Delta); err != nil {
			return nil, err
		}
		name := actor.Username
		teacher = &name
	}

	applied, err := s.Ledger.ApplyDelta(req.House, req.Delta)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, ErrUnknownHouse
	}

	entry := models.UpdateEntry{
		House:     req.House,
		Delta:     req.Delta,
		Reason:    reason,
		Teacher:   teacher,
		Timestamp: s.now().UnixMilli(),
	}
	if err := s.Updates.Record(entry); err != nil {
		return nil, err
	}

	return &entry, nil
}

// Undo removes the newest update and reverses its point change. Quota
// counters are not refunded.
func (s *Service) Undo() (*models.UpdateEntry, error) {
	entry, err := s.Updates.UndoLast()
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrNothingToUndo
	}

	if _, err := s.Ledger.ApplyDelta(entry.House, -entry.Delta); err != nil {
		return nil, err
	}
	return entry, nil
}

// Reset puts every house back to its default total and clears the update
// history. Meant for the start of a new academic year.
func (s *Service) Reset() error {
	if err := s.Ledger.ResetDefaults(); err != nil {
		return err
	}
	return s.Updates.Clear()
}

// Scoreboard returns houses sorted by points descending, with each row's
// share relative to the leader.
func (s *Service) Scoreboard() ([]models.ScoreboardRow, error) {
	houses, err := s.Ledger.Houses()
	if err != nil {
		return nil, err
	}

	rows := make([]models.ScoreboardRow, 0, len(houses))
	for name, house := range houses {
		rows = append(rows, models.ScoreboardRow{
			Name:   name,
			Points: house.Points,
			Colour: house.Colour,
			Img:    house.Img,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Points != rows[j].Points {
			return rows[i].Points > rows[j].Points
		}
		return rows[i].Name < rows[j].Name
	})

	if len(rows) > 0 && rows[0].Points > 0 {
		max := float64(rows[0].Points)
		for i := range rows {
			if rows[i].Points > 0 {
				rows[i].Share = float64(rows[i].Points) / max
			}
		}
	}

	return rows, nil
}

// UpdatesFeed returns the newest-first activity feed.
func (s *Service) UpdatesFeed() ([]models.UpdateEntry, error) {
	return s.Updates.List()
}

func (s *Service) Close() error {
	var errs []error

	if err := s.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	if err := s.Sessions.Close(); err != nil {
		errs = append(errs, fmt.Errorf("sessions: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors while closing: %v", errs)
	}
	return nil
}
