// Package types defines core domain types shared across all layers.
// This package contains NO business logic - only type definitions and
// their invariants.
package types

import (
	"fmt"
	"strings"
)

// UtilityType identifies the metered utility a bill is for
type UtilityType string

const (
	UtilityElectricity UtilityType = "electricity"
	UtilityWater       UtilityType = "water"
)

// String returns the string representation of the utility
func (u UtilityType) String() string {
	return string(u)
}

// IsValid checks if the utility is a known utility
func (u UtilityType) IsValid() bool {
	switch u {
	case UtilityElectricity, UtilityWater:
		return true
	default:
		return false
	}
}

// ParseUtilityType accepts the utility name case-insensitively
func ParseUtilityType(s string) (UtilityType, error) {
	u := UtilityType(strings.ToLower(strings.TrimSpace(s)))
	if !u.IsValid() {
		return "", fmt.Errorf("unknown utility type %q (use electricity or water)", s)
	}
	return u, nil
}

// UtilityFilter selects records by utility. The zero value and FilterAll
// match every record.
type UtilityFilter string

const (
	FilterAll         UtilityFilter = "all"
	FilterElectricity UtilityFilter = UtilityFilter(UtilityElectricity)
	FilterWater       UtilityFilter = UtilityFilter(UtilityWater)
)

// ParseUtilityFilter accepts "all", "electricity", "water" or the empty string
func ParseUtilityFilter(s string) (UtilityFilter, error) {
	switch f := UtilityFilter(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FilterAll:
		return FilterAll, nil
	case FilterElectricity, FilterWater:
		return f, nil
	default:
		return "", fmt.Errorf("unknown filter %q (use all, electricity or water)", s)
	}
}

// Matches reports whether u passes the filter
func (f UtilityFilter) Matches(u UtilityType) bool {
	if f == "" || f == FilterAll {
		return true
	}
	return UtilityType(f) == u
}
