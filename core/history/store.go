// Package history keeps the append-only record of past bill calculations.
//
// The whole collection lives under one well-known key of a storage.KV as a
// JSON array. Storage failures never panic and never abort a calculation:
// reads degrade to an empty history, writes report a failed Result that the
// caller may retry or surface.
package history

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"utility-bill/adapters/storage"
	"utility-bill/core/types"
	billerrors "utility-bill/internal/errors"
)

// Key is the storage key holding the bill history collection
const Key = "utility_bill_history"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Operation names reported to observers
const (
	OpAppend = "append"
	OpList   = "list"
	OpClear  = "clear"
)

// Result is the outcome of a mutating history operation
type Result struct {
	OK  bool
	Err error
}

func succeeded() Result { return Result{OK: true} }

func failed(err error) Result { return Result{Err: err} }

// Observer is notified of every storage operation outcome
type Observer interface {
	ObserveStorage(op string, err error)
}

// Store appends, lists and clears bill records
type Store struct {
	kv       storage.KV
	logger   *zap.Logger
	observer Observer

	// mu serializes read-modify-write sequences against kv
	mu sync.Mutex
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger failures are reported to
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithObserver reports operation outcomes, e.g. to metrics
func WithObserver(o Observer) Option {
	return func(s *Store) {
		s.observer = o
	}
}

// NewStore creates a history store over kv
func NewStore(kv storage.KV, opts ...Option) *Store {
	s := &Store{
		kv:     kv,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append adds record to the end of the history. A record that fails
// validation, or a history that cannot be read back intact, is not written.
func (s *Store) Append(ctx context.Context, record types.BillRecord) Result {
	if err := record.Validate(); err != nil {
		return s.fail(OpAppend, billerrors.Wrap(billerrors.TypeInput, "invalid bill record", err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	err := s.update(ctx, func(records []types.BillRecord) []types.BillRecord {
		count = len(records) + 1
		return append(records, record)
	})
	if err != nil {
		return s.fail(OpAppend, err)
	}

	s.observe(OpAppend, nil)
	s.logger.Debug("bill appended",
		zap.String("id", record.ID),
		zap.String("type", record.Type.String()),
		zap.Int("records", count))
	return succeeded()
}

// ListAll returns every record in append order. Absence or any read or
// parse failure yields an empty slice.
func (s *Store) ListAll(ctx context.Context) []types.BillRecord {
	records, err := s.load(ctx)
	if err != nil {
		s.fail(OpList, err)
		return []types.BillRecord{}
	}
	s.observe(OpList, nil)
	return records
}

// Recent returns the records matching filter, newest first
func (s *Store) Recent(ctx context.Context, filter types.UtilityFilter) []types.BillRecord {
	all := s.ListAll(ctx)

	matched := make([]types.BillRecord, 0, len(all))
	for _, r := range all {
		if filter.Matches(r.Type) {
			matched = append(matched, r)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return recordTime(matched[i]).After(recordTime(matched[j]))
	})
	return matched
}

// ClearAll deletes the entire history
func (s *Store) ClearAll(ctx context.Context) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Remove(ctx, Key); err != nil {
		return s.fail(OpClear, billerrors.Storage("failed to clear bill history", err))
	}
	s.observe(OpClear, nil)
	s.logger.Info("bill history cleared")
	return succeeded()
}

// update rewrites the stored collection with fn. Backends implementing
// storage.Updater run the whole sequence in one transaction, so stores in
// other processes sharing the backend cannot interleave with it.
func (s *Store) update(ctx context.Context, fn func([]types.BillRecord) []types.BillRecord) error {
	if u, ok := s.kv.(storage.Updater); ok {
		err := u.Update(ctx, Key, func(current string, found bool) (string, error) {
			records, err := decode(current, found)
			if err != nil {
				return "", err
			}
			return encode(fn(records))
		})
		if err != nil && !billerrors.IsType(err, billerrors.TypeStorage) {
			return billerrors.Storage("failed to save bill to history", err)
		}
		return err
	}

	records, err := s.load(ctx)
	if err != nil {
		return err
	}
	data, err := encode(fn(records))
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, Key, data); err != nil {
		return billerrors.Storage("failed to save bill to history", err)
	}
	return nil
}

func (s *Store) load(ctx context.Context) ([]types.BillRecord, error) {
	raw, err := s.kv.Get(ctx, Key)
	if errors.Is(err, storage.ErrNotFound) {
		return decode("", false)
	}
	if err != nil {
		return nil, billerrors.Storage("failed to read bill history", err)
	}
	return decode(raw, true)
}

func decode(raw string, found bool) ([]types.BillRecord, error) {
	if !found || raw == "" {
		return []types.BillRecord{}, nil
	}

	var records []types.BillRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, billerrors.Storage("failed to parse bill history", err)
	}
	if records == nil {
		records = []types.BillRecord{}
	}
	return records, nil
}

func encode(records []types.BillRecord) (string, error) {
	data, err := json.Marshal(records)
	if err != nil {
		return "", billerrors.Storage("failed to encode bill history", err)
	}
	return string(data), nil
}

func (s *Store) fail(op string, err error) Result {
	s.observe(op, err)
	s.logger.Error("bill history operation failed", zap.String("op", op), zap.Error(err))
	return failed(err)
}

func (s *Store) observe(op string, err error) {
	if s.observer != nil {
		s.observer.ObserveStorage(op, err)
	}
}

// recordTime orders unparseable timestamps last
func recordTime(r types.BillRecord) time.Time {
	t, err := r.Time()
	if err != nil {
		return time.Time{}
	}
	return t
}
