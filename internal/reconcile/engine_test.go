package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgoulah/punchsync/internal/memstore"
	"github.com/jgoulah/punchsync/internal/period"
	"github.com/jgoulah/punchsync/internal/store"
	"github.com/jgoulah/punchsync/pkg/models"
)

const employee = "Jesus"

var june = period.MonthOf(time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC))

func punch(id int64, day int, status models.Status) models.Punch {
	date := time.Date(2025, time.June, day, 0, 0, 0, 0, time.UTC)
	return models.Punch{
		ID:           id,
		EmployeeName: employee,
		ServiceDate:  date,
		StartTime:    date.Add(9 * time.Hour),
		EndTime:      date.Add(11 * time.Hour),
		Amount:       2 * time.Hour,
		ServiceCode:  "331",
		Status:       status,
	}
}

type stubRetractor struct {
	calls map[int64]int
	err   error
}

func newStubRetractor() *stubRetractor {
	return &stubRetractor{calls: make(map[int64]int)}
}

func (r *stubRetractor) Retract(_ context.Context, p models.Punch) error {
	r.calls[p.ID]++
	return r.err
}

type failingStore struct {
	*memstore.Store
	findErr   error
	insertErr error
	deleteErr error
}

func (s *failingStore) FindByMonth(ctx context.Context, employee string, w period.Window) ([]models.Punch, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.Store.FindByMonth(ctx, employee, w)
}

func (s *failingStore) InsertMany(ctx context.Context, punches []models.Punch) (int, error) {
	if s.insertErr != nil {
		return 0, s.insertErr
	}
	return s.Store.InsertMany(ctx, punches)
}

func (s *failingStore) DeleteMany(ctx context.Context, ids []int64) (int, error) {
	if s.deleteErr != nil {
		return 0, s.deleteErr
	}
	return s.Store.DeleteMany(ctx, ids)
}

func ids(punches []models.Punch) []int64 {
	out := make([]int64, 0, len(punches))
	for _, p := range punches {
		out = append(out, p.ID)
	}
	return out
}

func TestReconcileEmptyStoreKeepsValidFresh(t *testing.T) {
	st := memstore.New()
	engine := NewEngine(st, newStubRetractor())

	fresh := []models.Punch{punch(1, 3, models.StatusApproved), punch(2, 4, models.StatusOpen)}
	res, err := engine.Reconcile(context.Background(), employee, june, fresh)
	require.NoError(t, err)

	assert.Equal(t, []int64{1}, ids(res.Records))
	assert.Equal(t, []int64{1}, res.InsertedIDs)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, res.Discarded)
	assert.Equal(t, 1, st.Len())
}

func TestReconcileEmptyStoreDropsRejectedAndUnvalidated(t *testing.T) {
	st := memstore.New()
	retractor := newStubRetractor()
	engine := NewEngine(st, retractor)

	fresh := []models.Punch{
		punch(1, 3, models.StatusRejected),
		punch(2, 4, models.StatusUnvalidated),
		punch(3, 5, models.Status("Billed")),
	}
	res, err := engine.Reconcile(context.Background(), employee, june, fresh)
	require.NoError(t, err)

	assert.Equal(t, []int64{3}, ids(res.Records))
	assert.Empty(t, retractor.calls)
	assert.Equal(t, 1, st.Len())
}

func TestReconcileRejectionRetracts(t *testing.T) {
	stored := punch(5, 10, models.StatusApproved)
	stored.CalendarEventID = "evt-5"
	st := memstore.New(stored)
	retractor := newStubRetractor()
	engine := NewEngine(st, retractor)

	res, err := engine.Reconcile(context.Background(), employee, june, []models.Punch{punch(5, 10, models.StatusRejected)})
	require.NoError(t, err)

	assert.Empty(t, res.Records)
	assert.Equal(t, []int64{5}, res.Retracted)
	assert.Equal(t, 1, retractor.calls[5])
	assert.Equal(t, 0, st.Len())
	assert.Equal(t, 0, st.Inserts)
}

func TestReconcileRetractsOncePerID(t *testing.T) {
	st := memstore.New(punch(5, 10, models.StatusApproved))
	retractor := newStubRetractor()
	engine := NewEngine(st, retractor)

	fresh := []models.Punch{punch(5, 10, models.StatusRejected), punch(5, 10, models.StatusRejected)}
	_, err := engine.Reconcile(context.Background(), employee, june, fresh)
	require.NoError(t, err)

	assert.Equal(t, 1, retractor.calls[5])
	assert.Equal(t, 1, st.Deletes)
}

func TestReconcileRetractionFailureIsNotFatal(t *testing.T) {
	stored := punch(5, 10, models.StatusApproved)
	stored.CalendarEventID = "evt-5"
	st := memstore.New(stored, punch(6, 11, models.StatusApproved))
	retractor := newStubRetractor()
	retractor.err = errors.New("calendar down")
	engine := NewEngine(st, retractor)

	fresh := []models.Punch{punch(5, 10, models.StatusRejected), punch(7, 12, models.StatusApproved)}
	res, err := engine.Reconcile(context.Background(), employee, june, fresh)
	require.NoError(t, err)

	require.Len(t, res.RetractionFailures, 1)
	assert.Equal(t, int64(5), res.RetractionFailures[0].ID)
	assert.Equal(t, "evt-5", res.RetractionFailures[0].EventID)
	assert.ElementsMatch(t, []int64{6, 7}, ids(res.Records))
	_, stillStored := st.Get(5)
	assert.False(t, stillStored)
}

func TestReconcileWithoutRetractorKeepsRejectedStored(t *testing.T) {
	stored := punch(5, 10, models.StatusApproved)
	stored.CalendarEventID = "evt-5"
	st := memstore.New(stored, punch(6, 11, models.StatusApproved))
	fresh := []models.Punch{punch(5, 10, models.StatusRejected), punch(6, 11, models.StatusApproved)}

	res, err := NewEngine(st, nil).Reconcile(context.Background(), employee, june, fresh)
	require.NoError(t, err)

	assert.Equal(t, []int64{6}, ids(res.Records))
	assert.Equal(t, []int64{5}, res.Deferred)
	assert.Empty(t, res.Retracted)
	assert.Equal(t, 0, st.Deletes)
	kept, ok := st.Get(5)
	require.True(t, ok)
	assert.Equal(t, "evt-5", kept.CalendarEventID)

	// The next run with a calendar retracts the event and deletes the row
	retractor := newStubRetractor()
	res, err = NewEngine(st, retractor).Reconcile(context.Background(), employee, june, fresh)
	require.NoError(t, err)

	assert.Equal(t, 1, retractor.calls[5])
	assert.Equal(t, []int64{5}, res.Retracted)
	assert.Empty(t, res.Deferred)
	_, ok = st.Get(5)
	assert.False(t, ok)
}

func TestReconcileExistingRecordIsNotReinserted(t *testing.T) {
	st := memstore.New(punch(7, 3, models.StatusApproved))
	retractor := newStubRetractor()
	engine := NewEngine(st, retractor)

	res, err := engine.Reconcile(context.Background(), employee, june, []models.Punch{punch(7, 3, models.StatusApproved)})
	require.NoError(t, err)

	assert.Equal(t, []int64{7}, ids(res.Records))
	assert.Empty(t, res.InsertedIDs)
	assert.Equal(t, 0, st.Inserts)
	assert.Equal(t, 0, st.Deletes)
	assert.Empty(t, retractor.calls)
}

func TestReconcileFreshWins(t *testing.T) {
	stored := punch(8, 3, models.StatusApproved)
	stored.Amount = time.Hour
	stored.ServiceCode = "320"
	st := memstore.New(stored)
	engine := NewEngine(st, nil)

	fresh := punch(8, 3, models.Status("Billed"))
	res, err := engine.Reconcile(context.Background(), employee, june, []models.Punch{fresh})
	require.NoError(t, err)

	require.Len(t, res.Records, 1)
	assert.Equal(t, fresh, res.Records[0])

	// No field-level updates of stored rows
	kept, ok := st.Get(8)
	require.True(t, ok)
	assert.Equal(t, "320", kept.ServiceCode)
}

func TestReconcileFreshUnvalidatedHidesStoredButKeepsRow(t *testing.T) {
	st := memstore.New(punch(9, 3, models.StatusApproved))
	engine := NewEngine(st, newStubRetractor())

	res, err := engine.Reconcile(context.Background(), employee, june, []models.Punch{punch(9, 3, models.StatusUnvalidated)})
	require.NoError(t, err)

	assert.Empty(t, res.Records)
	assert.Equal(t, 1, st.Len())
}

func TestReconcileEmptyFreshIsNoOp(t *testing.T) {
	st := memstore.New(punch(1, 3, models.StatusApproved), punch(2, 20, models.StatusApproved))
	retractor := newStubRetractor()
	engine := NewEngine(st, retractor)

	// July punch is outside the window and does not count as fresh data
	july := punch(3, 1, models.StatusRejected)
	july.ServiceDate = time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)

	res, err := engine.Reconcile(context.Background(), employee, june, []models.Punch{july})
	require.NoError(t, err)

	assert.True(t, res.NoOp)
	assert.Equal(t, []int64{1, 2}, ids(res.Records))
	assert.Equal(t, 0, st.Inserts)
	assert.Equal(t, 0, st.Deletes)
}

func TestReconcileNoDuplicatesAndStatusFilter(t *testing.T) {
	st := memstore.New(punch(1, 3, models.StatusApproved), punch(2, 4, models.StatusApproved))
	engine := NewEngine(st, newStubRetractor())

	fresh := []models.Punch{
		punch(2, 4, models.StatusApproved),
		punch(3, 5, models.StatusApproved),
		punch(3, 5, models.StatusApproved),
		punch(4, 6, models.StatusOpen),
		punch(5, 7, models.StatusUnvalidated),
		punch(6, 8, models.StatusRejected),
	}
	res, err := engine.Reconcile(context.Background(), employee, june, fresh)
	require.NoError(t, err)

	seen := make(map[int64]bool)
	for _, p := range res.Records {
		assert.False(t, seen[p.ID], "duplicate id %d", p.ID)
		seen[p.ID] = true
		assert.True(t, p.Status.Valid(), "invalid status %s for %d", p.Status, p.ID)
	}
	assert.ElementsMatch(t, []int64{1, 2, 3}, ids(res.Records))
	assert.Equal(t, []int64{3}, res.InsertedIDs)
}

func TestReconcileIsIdempotent(t *testing.T) {
	stored := []models.Punch{punch(1, 3, models.StatusApproved), punch(2, 17, models.StatusApproved), punch(5, 9, models.StatusApproved)}
	fresh := []models.Punch{
		punch(2, 17, models.Status("Billed")),
		punch(3, 18, models.StatusApproved),
		punch(4, 19, models.StatusOpen),
		punch(5, 9, models.StatusRejected),
	}

	first, err := NewEngine(memstore.New(stored...), newStubRetractor()).Reconcile(context.Background(), employee, june, fresh)
	require.NoError(t, err)

	retractor := newStubRetractor()
	second, err := NewEngine(memstore.New(first.Records...), retractor).Reconcile(context.Background(), employee, june, fresh)
	require.NoError(t, err)

	assert.Equal(t, first.Records, second.Records)
	assert.Empty(t, second.InsertedIDs)
	assert.Empty(t, retractor.calls)
}

func TestReconcileConvergesAcrossRuns(t *testing.T) {
	st := memstore.New(punch(1, 3, models.StatusApproved), punch(5, 9, models.StatusApproved))
	engine := NewEngine(st, newStubRetractor())
	fresh := []models.Punch{punch(5, 9, models.StatusRejected), punch(6, 20, models.StatusApproved)}

	for i := 0; i < 3; i++ {
		_, err := engine.Reconcile(context.Background(), employee, june, fresh)
		require.NoError(t, err)
	}

	stored, err := st.FindByMonth(context.Background(), employee, june)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 6}, ids(stored))
	assert.Equal(t, 1, st.Inserts)
	assert.Equal(t, 1, st.Deletes)
}

func TestReconcileStoreFailuresAreFatal(t *testing.T) {
	unavailable := errors.Join(store.ErrUnavailable, errors.New("connection refused"))

	t.Run("find", func(t *testing.T) {
		st := &failingStore{Store: memstore.New(), findErr: unavailable}
		_, err := NewEngine(st, nil).Reconcile(context.Background(), employee, june, []models.Punch{punch(1, 3, models.StatusApproved)})
		assert.ErrorIs(t, err, store.ErrUnavailable)
	})

	t.Run("insert", func(t *testing.T) {
		st := &failingStore{Store: memstore.New(), insertErr: unavailable}
		_, err := NewEngine(st, nil).Reconcile(context.Background(), employee, june, []models.Punch{punch(1, 3, models.StatusApproved)})
		assert.ErrorIs(t, err, store.ErrUnavailable)
	})

	t.Run("delete keeps the punch for the next run", func(t *testing.T) {
		st := &failingStore{Store: memstore.New(punch(5, 9, models.StatusApproved)), deleteErr: unavailable}
		retractor := newStubRetractor()
		_, err := NewEngine(st, retractor).Reconcile(context.Background(), employee, june, []models.Punch{punch(5, 9, models.StatusRejected)})
		assert.ErrorIs(t, err, store.ErrUnavailable)
		assert.Equal(t, 1, retractor.calls[5])
		assert.Equal(t, 1, st.Len())
	})
}
