package ledger

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hankai/housecup/internal/models"
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

func defaultHouses() map[string]models.House {
	return map[string]models.House{
		"Odin":   {Points: 4500, Colour: "--colour-odin", Img: "odin.jpeg"},
		"Athena": {Points: 3800, Colour: "--colour-athena", Img: "athena.jpeg"},
		"Ra":     {Points: 3200, Colour: "--colour-ra", Img: "ra.jpg"},
		"Awilix": {Points: 2990, Colour: "--colour-awilix", Img: "awilix.jpg"},
	}
}

func strPtr(s string) *string {
	return &s
}

func TestInitIsIdempotent(t *testing.T) {
	kv := newFakeKV()
	l := NewLedger(kv, defaultHouses())

	require.NoError(t, l.Init())

	applied, err := l.ApplyDelta("Odin", 100)
	require.NoError(t, err)
	require.True(t, applied)

	// a second Init must not overwrite existing data
	require.NoError(t, l.Init())

	houses, err := l.Houses()
	require.NoError(t, err)
	assert.Equal(t, 4600, houses["Odin"].Points)
}

func TestApplyDeltaUnknownHouse(t *testing.T) {
	kv := newFakeKV()
	l := NewLedger(kv, defaultHouses())
	require.NoError(t, l.Init())

	applied, err := l.ApplyDelta("Valhalla", 50)
	require.NoError(t, err)
	assert.False(t, applied)

	houses, err := l.Houses()
	require.NoError(t, err)
	assert.Len(t, houses, 4)
}

func TestApplyDeltaAdditiveInverse(t *testing.T) {
	kv := newFakeKV()
	l := NewLedger(kv, defaultHouses())
	require.NoError(t, l.Init())

	for _, delta := range []int{1, -17, 250, -4500} {
		t.Run(fmt.Sprintf("delta %d", delta), func(t *testing.T) {
			before, err := l.Houses()
			require.NoError(t, err)

			applied, err := l.ApplyDelta("Ra", delta)
			require.NoError(t, err)
			require.True(t, applied)

			applied, err = l.ApplyDelta("Ra", -delta)
			require.NoError(t, err)
			require.True(t, applied)

			after, err := l.Houses()
			require.NoError(t, err)
			assert.Equal(t, before["Ra"].Points, after["Ra"].Points)
		})
	}
}

func TestApplyDeltaAllowsNegativeTotals(t *testing.T) {
	kv := newFakeKV()
	l := NewLedger(kv, defaultHouses())
	require.NoError(t, l.Init())

	applied, err := l.ApplyDelta("Awilix", -5000)
	require.NoError(t, err)
	require.True(t, applied)

	houses, err := l.Houses()
	require.NoError(t, err)
	assert.Equal(t, -2010, houses["Awilix"].Points)
}

func TestResetDefaultsKeepsMetadata(t *testing.T) {
	kv := newFakeKV()
	l := NewLedger(kv, defaultHouses())
	require.NoError(t, l.Init())

	_, err := l.ApplyDelta("Odin", -4500)
	require.NoError(t, err)
	_, err = l.ApplyDelta("Athena", 777)
	require.NoError(t, err)

	require.NoError(t, l.ResetDefaults())

	houses, err := l.Houses()
	require.NoError(t, err)
	for name, def := range defaultHouses() {
		assert.Equal(t, def.Points, houses[name].Points, name)
		assert.Equal(t, def.Colour, houses[name].Colour, name)
		assert.Equal(t, def.Img, houses[name].Img, name)
	}
}

func TestCorruptHousesFallBackToDefaults(t *testing.T) {
	kv := newFakeKV()
	kv.data["housesData"] = []byte("{not json")
	l := NewLedger(kv, defaultHouses())

	houses, err := l.Houses()
	require.NoError(t, err)
	assert.Equal(t, defaultHouses(), houses)
}

func TestRecordKeepsNewestFirst(t *testing.T) {
	kv := newFakeKV()
	ul := NewUpdateLog(kv, 20)

	for i := 1; i <= 3; i++ {
		err := ul.Record(models.UpdateEntry{
			House:     "Odin",
			Delta:     i,
			Reason:    "test",
			Timestamp: int64(i),
		})
		require.NoError(t, err)
	}

	updates, err := ul.List()
	require.NoError(t, err)
	require.Len(t, updates, 3)
	assert.Equal(t, 3, updates[0].Delta)
	assert.Equal(t, 1, updates[2].Delta)
}

func TestRecordEvictsOldestBeyondCap(t *testing.T) {
	kv := newFakeKV()
	ul := NewUpdateLog(kv, 20)

	for i := 1; i <= 25; i++ {
		err := ul.Record(models.UpdateEntry{
			House:     "Ra",
			Delta:     i,
			Reason:    "test",
			Teacher:   strPtr("colin"),
			Timestamp: int64(i),
		})
		require.NoError(t, err)
	}

	updates, err := ul.List()
	require.NoError(t, err)
	require.Len(t, updates, 20)
	assert.Equal(t, 25, updates[0].Delta)
	assert.Equal(t, 6, updates[19].Delta)
}

func TestRecordRejectsInvalidEntry(t *testing.T) {
	kv := newFakeKV()
	ul := NewUpdateLog(kv, 20)

	err := ul.Record(models.UpdateEntry{House: "Odin", Delta: 10})
	assert.Error(t, err)

	updates, err := ul.List()
	require.NoError(t, err)
	assert.Empty(t, updates)
}

func TestUndoLastOnEmptyLog(t *testing.T) {
	kv := newFakeKV()
	ul := NewUpdateLog(kv, 20)

	entry, err := ul.UndoLast()
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestUndoLastRemovesNewest(t *testing.T) {
	kv := newFakeKV()
	ul := NewUpdateLog(kv, 20)

	require.NoError(t, ul.Record(models.UpdateEntry{House: "Odin", Delta: 10, Reason: "first", Timestamp: 1}))
	require.NoError(t, ul.Record(models.UpdateEntry{House: "Athena", Delta: -5, Reason: "second", Timestamp: 2}))

	entry, err := ul.UndoLast()
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "Athena", entry.House)
	assert.Equal(t, -5, entry.Delta)

	updates, err := ul.List()
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, "Odin", updates[0].House)
}

func TestClearEmptiesHistory(t *testing.T) {
	kv := newFakeKV()
	ul := NewUpdateLog(kv, 20)

	require.NoError(t, ul.Record(models.UpdateEntry{House: "Ra", Delta: 3, Reason: "test", Timestamp: 1}))
	require.NoError(t, ul.Clear())

	updates, err := ul.List()
	require.NoError(t, err)
	assert.Empty(t, updates)
}

func TestCorruptUpdatesTreatedAsEmpty(t *testing.T) {
	kv := newFakeKV()
	kv.data["updates"] = []byte("][")
	ul := NewUpdateLog(kv, 20)

	updates, err := ul.List()
	require.NoError(t, err)
	assert.Empty(t, updates)
}
