package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hankai/housecup/internal/ledger"
	"github.com/hankai/housecup/internal/models"
	"github.com/hankai/housecup/internal/quota"
)

type fakeKV struct {
	data map[string][]byte
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string][]byte)}
}

func (f *fakeKV) Close() error                     { return nil }
func (f *fakeKV) ApplyMigrations(dir string) error { return nil }

func (f *fakeKV) Read(key string) ([]byte, bool, error) {
	value, found := f.data[key]
	return value, found, nil
}

func (f *fakeKV) Write(key string, value []byte) error {
	f.data[key] = value
	return nil
}

func testConfig() *Config {
	cfg := &Config{}
	cfg.Server.Port = ":0"
	cfg.Auth.AdminUsername = "admin"
	cfg.Auth.AdminPassword = "admin123"
	cfg.Auth.TeacherPassword = "teacher123"
	cfg.Quota.Mode = "points"
	cfg.Quota.DailyPointsCap = 200
	cfg.Quota.DailyActionsCap = 5
	cfg.Quota.RestrictOwnHouse = true
	cfg.Display.HistoryLimit = 20
	cfg.Houses = []HouseConfig{
		{Name: "Odin", Points: 4500, Colour: "--colour-odin", Img: "odin.jpeg"},
		{Name: "Athena", Points: 3800, Colour: "--colour-athena", Img: "athena.jpeg"},
		{Name: "Ra", Points: 3200, Colour: "--colour-ra", Img: "ra.jpg"},
		{Name: "Awilix", Points: 2990, Colour: "--colour-awilix", Img: "awilix.jpg"},
	}
	cfg.Roster = []RosterConfig{
		{House: "Ra", Teachers: []string{"colin", "linna"}},
		{House: "Athena", Teachers: []string{"shel", "sunnyyang"}},
	}
	return cfg
}

func newTestService(t *testing.T) *Service {
	cfg := testConfig()
	kv := newFakeKV()

	houseLedger := ledger.NewLedger(kv, cfg.DefaultHouses())
	require.NoError(t, houseLedger.Init())

	return &Service{
		Config:   cfg,
		Store:    kv,
		Sessions: &Sessions{},
		Ledger:   houseLedger,
		Updates:  ledger.NewUpdateLog(kv, cfg.Display.HistoryLimit),
		Quota: quota.NewPolicy(
			kv,
			quota.Mode(cfg.Quota.Mode),
			cfg.Quota.DailyPointsCap,
			cfg.Quota.DailyActionsCap,
		),
		now: func() time.Time {
			return time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
		},
	}
}

func adminSession() models.Session {
	return models.Session{Role: models.RoleAdmin, Username: "admin"}
}

func teacherSession(name, house string) models.Session {
	return models.Session{Role: models.RoleTeacher, Username: name, House: house}
}

func housePoints(t *testing.T, s *Service, name string) int {
	houses, err := s.Ledger.Houses()
	require.NoError(t, err)
	house, ok := houses[name]
	require.True(t, ok, "house %s must exist", name)
	return house.Points
}

func TestAdminPenaltyZeroesHouse(t *testing.T) {
	s := newTestService(t)

	entry, err := s.SubmitAdjustment(models.AdjustmentRequest{
		House:  "Odin",
		Delta:  -4500,
		Reason: "Penalty",
	}, adminSession())
	require.NoError(t, err)

	assert.Equal(t, 0, housePoints(t, s, "Odin"))
	assert.Nil(t, entry.Teacher)

	updates, err := s.UpdatesFeed()
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, "Odin", updates[0].House)
	assert.Equal(t, -4500, updates[0].Delta)
	assert.Equal(t, "Penalty", updates[0].Reason)
	assert.Nil(t, updates[0].Teacher)
}

func TestTeacherHitsDailyAddCap(t *testing.T) {
	s := newTestService(t)
	colin := teacherSession("Colin", "Ra")

	entry, err := s.SubmitAdjustment(models.AdjustmentRequest{
		House:  "Athena",
		Delta:  150,
		Reason: "Great participation",
	}, colin)
	require.NoError(t, err)
	require.NotNil(t, entry.Teacher)
	assert.Equal(t, "Colin", *entry.Teacher)

	_, err = s.SubmitAdjustment(models.AdjustmentRequest{
		House:  "Athena",
		Delta:  100,
		Reason: "More",
	}, colin)
	assert.ErrorIs(t, err, quota.ErrAddCapExceeded)

	assert.Equal(t, 3800+150, housePoints(t, s, "Athena"))

	updates, err := s.UpdatesFeed()
	require.NoError(t, err)
	assert.Len(t, updates, 1)
}

func TestUndoOnEmptyLog(t *testing.T) {
	s := newTestService(t)

	entry, err := s.Undo()
	assert.ErrorIs(t, err, ErrNothingToUndo)
	assert.Nil(t, entry)

	assert.Equal(t, 4500, housePoints(t, s, "Odin"))
}

func TestUndoRestoresLedgerAndLog(t *testing.T) {
	s := newTestService(t)

	_, err := s.SubmitAdjustment(models.AdjustmentRequest{
		House:  "Ra",
		Delta:  75,
		Reason: "Science fair",
	}, adminSession())
	require.NoError(t, err)

	beforeHouses, err := s.Ledger.Houses()
	require.NoError(t, err)
	beforeUpdates, err := s.UpdatesFeed()
	require.NoError(t, err)

	_, err = s.SubmitAdjustment(models.AdjustmentRequest{
		House:  "Awilix",
		Delta:  -30,
		Reason: "Lost library book",
	}, adminSession())
	require.NoError(t, err)

	undone, err := s.Undo()
	require.NoError(t, err)
	assert.Equal(t, "Awilix", undone.House)
	assert.Equal(t, -30, undone.Delta)

	afterHouses, err := s.Ledger.Houses()
	require.NoError(t, err)
	afterUpdates, err := s.UpdatesFeed()
	require.NoError(t, err)

	assert.Equal(t, beforeHouses, afterHouses)
	assert.Equal(t, beforeUpdates, afterUpdates)
}

func TestValidationOrder(t *testing.T) {
	s := newTestService(t)
	colin := teacherSession("Colin", "Ra")

	t.Run("zero delta wins over empty reason", func(t *testing.T) {
		_, err := s.SubmitAdjustment(models.AdjustmentRequest{
			House: "Odin",
		}, colin)
		assert.ErrorIs(t, err, ErrZeroDelta)
	})

	t.Run("whitespace reason rejected", func(t *testing.T) {
		_, err := s.SubmitAdjustment(models.AdjustmentRequest{
			House:  "Odin",
			Delta:  10,
			Reason: "   ",
		}, colin)
		assert.ErrorIs(t, err, ErrEmptyReason)
	})

	t.Run("unknown house rejected before quota", func(t *testing.T) {
		_, err := s.SubmitAdjustment(models.AdjustmentRequest{
			House:  "Valhalla",
			Delta:  200,
			Reason: "typo",
		}, colin)
		assert.ErrorIs(t, err, ErrUnknownHouse)

		// the failed attempt must not have consumed any allowance
		_, err = s.SubmitAdjustment(models.AdjustmentRequest{
			House:  "Athena",
			Delta:  200,
			Reason: "full allowance still available",
		}, colin)
		assert.NoError(t, err)
	})
}

func TestTeacherCannotAdjustOwnHouse(t *testing.T) {
	s := newTestService(t)
	colin := teacherSession("Colin", "Ra")

	_, err := s.SubmitAdjustment(models.AdjustmentRequest{
		House:  "Ra",
		Delta:  50,
		Reason: "House spirit",
	}, colin)
	assert.ErrorIs(t, err, ErrOwnHouse)
	assert.Equal(t, 3200, housePoints(t, s, "Ra"))

	// admins are not restricted
	_, err = s.SubmitAdjustment(models.AdjustmentRequest{
		House:  "Ra",
		Delta:  50,
		Reason: "House spirit",
	}, adminSession())
	assert.NoError(t, err)
}

func TestResetRestoresDefaultsAndClearsLog(t *testing.T) {
	s := newTestService(t)

	_, err := s.SubmitAdjustment(models.AdjustmentRequest{
		House:  "Odin",
		Delta:  -1000,
		Reason: "Penalty",
	}, adminSession())
	require.NoError(t, err)
	_, err = s.SubmitAdjustment(models.AdjustmentRequest{
		House:  "Athena",
		Delta:  300,
		Reason: "Debate win",
	}, adminSession())
	require.NoError(t, err)

	require.NoError(t, s.Reset())

	assert.Equal(t, 4500, housePoints(t, s, "Odin"))
	assert.Equal(t, 3800, housePoints(t, s, "Athena"))

	updates, err := s.UpdatesFeed()
	require.NoError(t, err)
	assert.Empty(t, updates)
}

func TestSubmitKeepsLogBounded(t *testing.T) {
	s := newTestService(t)

	for i := 0; i < 25; i++ {
		_, err := s.SubmitAdjustment(models.AdjustmentRequest{
			House:  "Odin",
			Delta:  1,
			Reason: "drip",
		}, adminSession())
		require.NoError(t, err)
	}

	updates, err := s.UpdatesFeed()
	require.NoError(t, err)
	assert.Len(t, updates, 20)
	assert.Equal(t, 4525, housePoints(t, s, "Odin"))
}

func TestScoreboardSortedWithShares(t *testing.T) {
	s := newTestService(t)

	rows, err := s.Scoreboard()
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, "Odin", rows[0].Name)
	assert.Equal(t, "Awilix", rows[3].Name)
	assert.InDelta(t, 1.0, rows[0].Share, 0.0001)
	assert.InDelta(t, 3800.0/4500.0, rows[1].Share, 0.0001)
}

func TestLogin(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	t.Run("admin", func(t *testing.T) {
		token, session, err := s.Login(ctx, "admin", "admin123")
		require.NoError(t, err)
		assert.Empty(t, token, "no token when sessions are disabled")
		assert.True(t, session.IsAdmin())
		assert.Empty(t, session.House)
	})

	t.Run("teacher keeps display name", func(t *testing.T) {
		_, session, err := s.Login(ctx, " Colin ", "teacher123")
		require.NoError(t, err)
		assert.Equal(t, models.RoleTeacher, session.Role)
		assert.Equal(t, "Colin", session.Username)
		assert.Equal(t, "Ra", session.House)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, _, err := s.Login(ctx, "colin", "nope")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, _, err := s.Login(ctx, "stranger", "teacher123")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}
