package types

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// TimestampLayout is the ISO-8601 form records are stamped with
// (millisecond precision, UTC, "Z" suffix).
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// LocationNationwide is recorded for bills whose tariff has no region selector.
const LocationNationwide = "all"

// BillRecord is one past calculation. Records are immutable once created;
// the JSON field names are the persisted wire format.
type BillRecord struct {
	// ID uniquely identifies the record
	ID string `json:"id"`

	// Timestamp is the ISO-8601 calculation time
	Timestamp string `json:"date"`

	// Type is the billed utility
	Type UtilityType `json:"type"`

	// Usage is the quantity as entered (kWh or liters)
	Usage float64 `json:"usage"`

	// Amount is the computed charge, unrounded
	Amount float64 `json:"amount"`

	// Location is the water region, or "all" for electricity
	Location string `json:"location"`
}

// NewBillRecord stamps a record with a fresh ID and the given time
func NewBillRecord(utility UtilityType, usage, amount float64, location string, at time.Time) BillRecord {
	return BillRecord{
		ID:        uuid.New().String(),
		Timestamp: at.UTC().Format(TimestampLayout),
		Type:      utility,
		Usage:     usage,
		Amount:    amount,
		Location:  location,
	}
}

// Time parses the record timestamp
func (r BillRecord) Time() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, r.Timestamp)
}

// Validate checks the record invariants
func (r BillRecord) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("record id is empty")
	}
	if !r.Type.IsValid() {
		return fmt.Errorf("record %s: unknown utility type %q", r.ID, r.Type)
	}
	if math.IsNaN(r.Usage) || r.Usage < 0 {
		return fmt.Errorf("record %s: usage must be a non-negative number", r.ID)
	}
	if math.IsNaN(r.Amount) || math.IsInf(r.Amount, 0) || r.Amount < 0 {
		return fmt.Errorf("record %s: amount must be a non-negative number", r.ID)
	}
	if _, err := r.Time(); err != nil {
		return fmt.Errorf("record %s: invalid timestamp %q: %w", r.ID, r.Timestamp, err)
	}
	return nil
}
