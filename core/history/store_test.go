package history

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"utility-bill/adapters/storage"
	"utility-bill/core/types"
	billerrors "utility-bill/internal/errors"
)

// flakyKV fails whichever operations are switched on.
type flakyKV struct {
	*storage.MemoryKV
	failGet, failSet, failRemove bool
}

var errBackendDown = errors.New("backend unreachable")

func (f *flakyKV) Get(ctx context.Context, key string) (string, error) {
	if f.failGet {
		return "", errBackendDown
	}
	return f.MemoryKV.Get(ctx, key)
}

func (f *flakyKV) Set(ctx context.Context, key, value string) error {
	if f.failSet {
		return errBackendDown
	}
	return f.MemoryKV.Set(ctx, key, value)
}

func (f *flakyKV) Remove(ctx context.Context, key string) error {
	if f.failRemove {
		return errBackendDown
	}
	return f.MemoryKV.Remove(ctx, key)
}

// sharedKV stands in for a backend used by several processes at once:
// writes are only accepted through Update, which holds the backend's lock.
type sharedKV struct {
	*storage.MemoryKV
	mu        sync.Mutex
	updates   int
	updateErr error
}

func (k *sharedKV) Set(context.Context, string, string) error {
	return errors.New("unguarded write")
}

func (k *sharedKV) Update(ctx context.Context, key string, fn func(string, bool) (string, error)) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.updates++
	if k.updateErr != nil {
		return k.updateErr
	}

	current, err := k.MemoryKV.Get(ctx, key)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	next, err := fn(current, err == nil)
	if err != nil {
		return err
	}
	return k.MemoryKV.Set(ctx, key, next)
}

type recordingObserver struct {
	mu     sync.Mutex
	ok     map[string]int
	failed map[string]int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{ok: map[string]int{}, failed: map[string]int{}}
}

func (o *recordingObserver) ObserveStorage(op string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.failed[op]++
	} else {
		o.ok[op]++
	}
}

func record(utility types.UtilityType, amount float64, at time.Time) types.BillRecord {
	location := types.LocationNationwide
	if utility == types.UtilityWater {
		location = "central"
	}
	return types.NewBillRecord(utility, 100, amount, location, at)
}

func TestAppendListClearRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewStore(storage.NewMemoryKV())

	assert.Empty(t, store.ListAll(ctx))

	r := record(types.UtilityElectricity, 23.47, time.Now())
	res := store.Append(ctx, r)
	require.True(t, res.OK)
	require.NoError(t, res.Err)

	all := store.ListAll(ctx)
	require.Len(t, all, 1)
	assert.Equal(t, r, all[0])

	require.True(t, store.ClearAll(ctx).OK)
	assert.Empty(t, store.ListAll(ctx))
	assert.NotNil(t, store.ListAll(ctx))
}

func TestAppendPreservesOrder(t *testing.T) {
	ctx := context.Background()
	store := NewStore(storage.NewMemoryKV())

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 5; i++ {
		r := record(types.UtilityWater, float64(i), base.Add(time.Duration(i)*time.Hour))
		ids = append(ids, r.ID)
		require.True(t, store.Append(ctx, r).OK)
	}

	var got []string
	for _, r := range store.ListAll(ctx) {
		got = append(got, r.ID)
	}
	assert.Equal(t, ids, got)
}

func TestPersistedFormatUsesWireFieldNames(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	store := NewStore(kv)

	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	r := types.BillRecord{ID: "1717243200000", Timestamp: at.Format(types.TimestampLayout), Type: types.UtilityWater, Usage: 20000, Amount: 13.9, Location: "central"}
	require.True(t, store.Append(ctx, r).OK)

	raw, err := kv.Get(ctx, Key)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"1717243200000","date":"2024-06-01T12:00:00.000Z","type":"water","usage":20000,"amount":13.9,"location":"central"}]`, raw)
}

func TestListAllReadsExistingHistory(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	require.NoError(t, kv.Set(ctx, Key, `[{"id":"1","date":"2024-02-10T03:00:00.000Z","type":"electricity","usage":120,"amount":28.2,"location":"all"}]`))

	all := NewStore(kv).ListAll(ctx)
	require.Len(t, all, 1)
	assert.Equal(t, types.UtilityElectricity, all[0].Type)
	assert.Equal(t, 28.2, all[0].Amount)
}

func TestListAllDegradesToEmpty(t *testing.T) {
	ctx := context.Background()

	t.Run("corrupt payload", func(t *testing.T) {
		kv := storage.NewMemoryKV()
		require.NoError(t, kv.Set(ctx, Key, `{not json`))
		assert.Empty(t, NewStore(kv).ListAll(ctx))
	})

	t.Run("null payload", func(t *testing.T) {
		kv := storage.NewMemoryKV()
		require.NoError(t, kv.Set(ctx, Key, `null`))
		assert.Empty(t, NewStore(kv).ListAll(ctx))
	})

	t.Run("backend down", func(t *testing.T) {
		kv := &flakyKV{MemoryKV: storage.NewMemoryKV(), failGet: true}
		assert.Empty(t, NewStore(kv).ListAll(ctx))
	})
}

func TestAppendFailureIsReportedNotRaised(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.ErrorLevel)
	obs := newRecordingObserver()

	kv := &flakyKV{MemoryKV: storage.NewMemoryKV(), failSet: true}
	store := NewStore(kv, WithLogger(zap.New(core)), WithObserver(obs))

	res := store.Append(ctx, record(types.UtilityWater, 5, time.Now()))
	assert.False(t, res.OK)
	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, errBackendDown)
	assert.True(t, billerrors.IsType(res.Err, billerrors.TypeStorage))

	assert.Equal(t, 1, logs.FilterMessage("bill history operation failed").Len())
	assert.Equal(t, 1, obs.failed[OpAppend])
	assert.Empty(t, store.ListAll(ctx))
}

func TestAppendDoesNotOverwriteUnreadableHistory(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	require.NoError(t, kv.Set(ctx, Key, `{not json`))

	res := NewStore(kv).Append(ctx, record(types.UtilityElectricity, 1, time.Now()))
	assert.False(t, res.OK)

	raw, err := kv.Get(ctx, Key)
	require.NoError(t, err)
	assert.Equal(t, `{not json`, raw)
}

func TestAppendRejectsInvalidRecord(t *testing.T) {
	ctx := context.Background()
	store := NewStore(storage.NewMemoryKV())

	bad := record(types.UtilityWater, 5, time.Now())
	bad.Usage = -10

	res := store.Append(ctx, bad)
	assert.False(t, res.OK)
	assert.True(t, billerrors.IsType(res.Err, billerrors.TypeInput))
	assert.Empty(t, store.ListAll(ctx))
}

func TestClearAllFailure(t *testing.T) {
	ctx := context.Background()
	kv := &flakyKV{MemoryKV: storage.NewMemoryKV()}
	store := NewStore(kv)
	require.True(t, store.Append(ctx, record(types.UtilityWater, 5, time.Now())).OK)

	kv.failRemove = true
	res := store.ClearAll(ctx)
	assert.False(t, res.OK)
	assert.ErrorIs(t, res.Err, errBackendDown)
	assert.Len(t, store.ListAll(ctx), 1)
}

func TestConcurrentAppendsAreNotLost(t *testing.T) {
	ctx := context.Background()
	store := NewStore(storage.NewMemoryKV())

	const writers = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			store.Append(ctx, record(types.UtilityElectricity, float64(i), time.Now()))
		}(i)
	}
	wg.Wait()

	assert.Len(t, store.ListAll(ctx), writers)
}

func TestAppendsFromSeparateStoresShareBackendTransaction(t *testing.T) {
	ctx := context.Background()
	kv := &sharedKV{MemoryKV: storage.NewMemoryKV()}

	// one store per process; their mutexes do not see each other
	stores := []*Store{NewStore(kv), NewStore(kv)}

	const perStore = 25
	var wg sync.WaitGroup
	for _, store := range stores {
		for i := 0; i < perStore; i++ {
			wg.Add(1)
			go func(store *Store, i int) {
				defer wg.Done()
				assert.True(t, store.Append(ctx, record(types.UtilityWater, float64(i), time.Now())).OK)
			}(store, i)
		}
	}
	wg.Wait()

	assert.Len(t, stores[0].ListAll(ctx), 2*perStore)
	assert.Equal(t, 2*perStore, kv.updates)
}

func TestAppendThroughUpdaterFailures(t *testing.T) {
	ctx := context.Background()

	kv := &sharedKV{MemoryKV: storage.NewMemoryKV(), updateErr: errBackendDown}
	res := NewStore(kv).Append(ctx, record(types.UtilityWater, 5, time.Now()))
	assert.False(t, res.OK)
	assert.ErrorIs(t, res.Err, errBackendDown)
	assert.True(t, billerrors.IsType(res.Err, billerrors.TypeStorage))

	kv = &sharedKV{MemoryKV: storage.NewMemoryKV()}
	require.NoError(t, kv.MemoryKV.Set(ctx, Key, `{not json`))
	res = NewStore(kv).Append(ctx, record(types.UtilityWater, 5, time.Now()))
	assert.False(t, res.OK)
	assert.True(t, billerrors.IsType(res.Err, billerrors.TypeStorage))

	raw, err := kv.Get(ctx, Key)
	require.NoError(t, err)
	assert.Equal(t, `{not json`, raw)
}

func TestRecentFiltersAndSortsNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewStore(storage.NewMemoryKV())

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	oldWater := record(types.UtilityWater, 1, base)
	elec := record(types.UtilityElectricity, 2, base.Add(24*time.Hour))
	newWater := record(types.UtilityWater, 3, base.Add(48*time.Hour))
	for _, r := range []types.BillRecord{oldWater, elec, newWater} {
		require.True(t, store.Append(ctx, r).OK)
	}

	all := store.Recent(ctx, types.FilterAll)
	require.Len(t, all, 3)
	assert.Equal(t, []string{newWater.ID, elec.ID, oldWater.ID}, []string{all[0].ID, all[1].ID, all[2].ID})

	water := store.Recent(ctx, types.FilterWater)
	require.Len(t, water, 2)
	assert.Equal(t, newWater.ID, water[0].ID)
}
