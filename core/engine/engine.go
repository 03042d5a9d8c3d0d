// Package engine provides the calculation engine behind every interface.
// CLI and HTTP are thin wrappers around this engine.
package engine

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"utility-bill/core/billing"
	"utility-bill/core/history"
	"utility-bill/core/summary"
	"utility-bill/core/tariff"
	"utility-bill/core/types"
	"utility-bill/internal/errors"
)

// Recorder receives one call per priced bill
type Recorder interface {
	RecordBill(utility, selector string, amount float64)
}

// Request asks for one bill
type Request struct {
	Utility types.UtilityType

	// Usage is kWh for electricity, liters for water
	Usage float64

	// Region is required for water and ignored for electricity
	Region string
}

// Result is a priced, recorded bill
type Result struct {
	Record    types.BillRecord
	Breakdown *billing.Breakdown

	// Saved reports whether the record reached the history store.
	// A failed save never invalidates the computed amount.
	Saved history.Result
}

// Summary is the history overview
type Summary struct {
	Totals  summary.Totals           `json:"totals"`
	Monthly []summary.MonthlySummary `json:"monthly"`
	Records int                      `json:"records"`
}

// Engine prices bills and keeps their history
type Engine struct {
	calc     *billing.Calculator
	history  *history.Store
	recorder Recorder
	logger   *zap.Logger
	now      func() time.Time
	calendar summary.Calendar
}

// Option configures an Engine
type Option func(*Engine)

// WithRecorder reports every priced bill, e.g. to metrics
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithLogger sets the engine logger
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock overrides the time source used to stamp records
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLocation sets the time zone monthly summaries are grouped in.
// Defaults to local time.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) { e.calendar = summary.In(loc) }
}

// New creates an engine
func New(calc *billing.Calculator, store *history.Store, opts ...Option) *Engine {
	e := &Engine{
		calc:    calc,
		history: store,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ParseUsage validates user-entered usage: it must be a finite,
// non-negative number.
func ParseUsage(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.Input("please enter a valid usage amount")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.Wrap(errors.TypeInput, "please enter a valid usage amount", err)
	}
	if err := ValidateUsage(v); err != nil {
		return 0, err
	}
	return v, nil
}

// ValidateUsage rejects negative, NaN and infinite usage
func ValidateUsage(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return errors.Input("usage must be a finite number")
	}
	if v < 0 {
		return errors.Input("usage must not be negative").WithContext("usage", v)
	}
	return nil
}

// normalizeRegion folds a region name to its tariff key
func normalizeRegion(region string) string {
	return strings.ToLower(strings.TrimSpace(region))
}

// Calculate validates the request, prices it, and appends the record to
// history. Errors are only returned for invalid requests; storage failures
// are reported in Result.Saved.
func (e *Engine) Calculate(ctx context.Context, req Request) (*Result, error) {
	if err := ValidateUsage(req.Usage); err != nil {
		return nil, err
	}

	var (
		selector string
		location string
	)
	switch req.Utility {
	case types.UtilityElectricity:
		location = types.LocationNationwide
	case types.UtilityWater:
		region := normalizeRegion(req.Region)
		if region == "" {
			return nil, errors.Input("water bills require a region")
		}
		selector = region
		location = region
	default:
		return nil, errors.Input("unknown utility type " + strconv.Quote(string(req.Utility)))
	}

	breakdown, err := e.calc.Quote(req.Utility, selector, req.Usage)
	if err != nil {
		return nil, err
	}

	record := types.NewBillRecord(req.Utility, req.Usage, breakdown.Total, location, e.now())
	saved := e.history.Append(ctx, record)

	if e.recorder != nil {
		e.recorder.RecordBill(string(req.Utility), breakdown.Selector, breakdown.Total)
	}
	e.logger.Info("bill calculated",
		zap.String("id", record.ID),
		zap.String("utility", string(req.Utility)),
		zap.String("selector", breakdown.Selector),
		zap.Float64("usage", req.Usage),
		zap.Float64("amount", breakdown.Total),
		zap.Bool("saved", saved.OK))

	return &Result{Record: record, Breakdown: breakdown, Saved: saved}, nil
}

// History returns records matching filter, newest first
func (e *Engine) History(ctx context.Context, filter types.UtilityFilter) []types.BillRecord {
	return e.history.Recent(ctx, filter)
}

// ClearHistory deletes every record
func (e *Engine) ClearHistory(ctx context.Context) history.Result {
	return e.history.ClearAll(ctx)
}

// Summary aggregates the full history
func (e *Engine) Summary(ctx context.Context) Summary {
	records := e.history.ListAll(ctx)
	return Summary{
		Totals:  e.calendar.CurrentTotals(records),
		Monthly: e.calendar.Monthly(records),
		Records: len(records),
	}
}

// Tariffs returns the tables bills are priced with
func (e *Engine) Tariffs() tariff.Tables {
	return e.calc.Tables()
}
