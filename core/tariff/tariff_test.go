package tariff

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"utility-bill/core/types"
	"utility-bill/internal/errors"
)

func TestBuiltinTablesSatisfyInvariants(t *testing.T) {
	tables := Builtin()
	require.NoError(t, tables.Validate())

	assert.Equal(t, []string{"sesb", "sesco", "tnb"}, tables.Electricity.Keys())
	assert.Equal(t, []string{"central", "eastern", "northern", "sabah", "sarawak", "southern"}, tables.Water.Keys())
}

func TestBuiltinReturnsIndependentCopies(t *testing.T) {
	a := Builtin()
	b := Builtin()

	p := a.Water.Providers[RegionCentral]
	p.FixedCharge = 99
	a.Water.Providers[RegionCentral] = p

	assert.Equal(t, 2.50, b.Water.Providers[RegionCentral].FixedCharge)
}

func TestScheduleValidate(t *testing.T) {
	cases := map[string]Schedule{
		"empty":             {},
		"not from zero":     {{10, math.Inf(1), 0.5}},
		"gap":               {{0, 10, 0.5}, {11, math.Inf(1), 0.7}},
		"bounded last tier": {{0, 10, 0.5}, {10, 20, 0.7}},
		"unbounded middle":  {{0, math.Inf(1), 0.5}, {10, math.Inf(1), 0.7}},
		"negative rate":     {{0, math.Inf(1), -1}},
		"inverted tier":     {{0, 10, 0.5}, {10, 5, 0.6}, {5, math.Inf(1), 0.7}},
	}
	for name, s := range cases {
		t.Run(name, func(t *testing.T) {
			err := s.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.TypeTariff))
		})
	}
}

func TestTierLabels(t *testing.T) {
	tnb := Builtin().Electricity.Providers[ProviderTNB]

	labels := make([]string, 0, len(tnb.Domestic))
	for _, tier := range tnb.Domestic {
		labels = append(labels, tier.Label("kWh"))
	}
	assert.Equal(t, []string{"0 - 200 kWh", "201 - 300 kWh", "301 - 600 kWh", "601 - 900 kWh", "> 900 kWh"}, labels)

	central := Builtin().Water.Providers[RegionCentral]
	assert.Equal(t, "All usage", central.Commercial[0].Label("m³"))
}

func TestTableLookups(t *testing.T) {
	tables := Builtin()

	water, ok := tables.For(types.UtilityWater)
	require.True(t, ok)
	assert.Equal(t, 40.0, water.Quantity(40000))

	elec, ok := tables.For(types.UtilityElectricity)
	require.True(t, ok)
	assert.Equal(t, 350.0, elec.Quantity(350))

	_, ok = water.Provider("atlantis")
	assert.False(t, ok)

	_, ok = tables.For("gas")
	assert.False(t, ok)

	sabah, _ := water.Provider(RegionSabah)
	commercial, ok := sabah.Schedule(Commercial)
	require.True(t, ok)
	assert.Equal(t, 2.75, commercial[0].Rate)
}

func TestTableValidateRejectsUnknownNationwide(t *testing.T) {
	tables := Builtin()
	tables.Electricity.Nationwide = "ghost"

	err := tables.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestTierJSONEncodesUnboundedAsNull(t *testing.T) {
	data, err := json.Marshal(Schedule{{0, 20, 0.57}, {20, math.Inf(1), 1.03}})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"lower_bound":0,"upper_bound":20,"rate":0.57},{"lower_bound":20,"upper_bound":null,"rate":1.03}]`, string(data))

	var back Schedule
	require.NoError(t, json.Unmarshal(data, &back))
	require.NoError(t, back.Validate())
	assert.True(t, back[1].IsUnbounded())
}
