package tariff

import (
	"utility-bill/core/pricing/primitives"
	"utility-bill/core/types"
)

// Electricity provider keys
const (
	ProviderTNB   = "tnb"
	ProviderSESB  = "sesb"
	ProviderSESCO = "sesco"
)

// Water region keys
const (
	RegionCentral  = "central"
	RegionNorthern = "northern"
	RegionSouthern = "southern"
	RegionEastern  = "eastern"
	RegionSabah    = "sabah"
	RegionSarawak  = "sarawak"
)

// Surcharges levied on electricity, in application order
var (
	ServiceTax = primitives.Surcharge{Name: "service_tax", Rate: 0.06}
	KWTBB      = primitives.Surcharge{Name: "kwtbb", Rate: 0.016}
)

var inf = primitives.Unbounded

// Builtin returns a fresh copy of the current Malaysian tariff tables.
func Builtin() Tables {
	return Tables{
		Electricity: builtinElectricity(),
		Water:       builtinWater(),
	}
}

func builtinElectricity() Table {
	return Table{
		Utility:      types.UtilityElectricity,
		Unit:         "kWh",
		UsageDivisor: 1,
		Surcharges:   []primitives.Surcharge{ServiceTax, KWTBB},
		Nationwide:   ProviderTNB,
		Providers: map[string]Provider{
			ProviderTNB: {
				Key:  ProviderTNB,
				Name: "Tenaga Nasional Berhad",
				Domestic: Schedule{
					{0, 200, 0.218},
					{200, 300, 0.334},
					{300, 600, 0.516},
					{600, 900, 0.546},
					{900, inf, 0.571},
				},
				Commercial: Schedule{
					{0, 200, 0.435},
					{200, inf, 0.509},
				},
			},
			ProviderSESB: {
				Key:  ProviderSESB,
				Name: "Sabah Electricity Sdn Bhd",
				Domestic: Schedule{
					{0, 100, 0.175},
					{100, 200, 0.224},
					{200, 300, 0.335},
					{300, 500, 0.450},
					{500, inf, 0.470},
				},
				Commercial: Schedule{
					{0, 200, 0.416},
					{200, inf, 0.490},
				},
			},
			ProviderSESCO: {
				Key:  ProviderSESCO,
				Name: "Syarikat SESCO Berhad",
				Domestic: Schedule{
					{0, 100, 0.170},
					{100, 200, 0.230},
					{200, 400, 0.340},
					{400, 600, 0.430},
					{600, inf, 0.460},
				},
				Commercial: Schedule{
					{0, 200, 0.420},
					{200, inf, 0.480},
				},
			},
		},
	}
}

func builtinWater() Table {
	return Table{
		Utility:      types.UtilityWater,
		Unit:         "m³",
		UsageDivisor: 1000,
		Providers: map[string]Provider{
			RegionCentral: {
				Key:         RegionCentral,
				Name:        "Air Selangor",
				Domestic:    Schedule{{0, 20, 0.57}, {20, 35, 1.03}, {35, inf, 2.00}},
				Commercial:  Schedule{{0, inf, 3.20}},
				FixedCharge: 2.50,
			},
			RegionNorthern: {
				Key:         RegionNorthern,
				Name:        "PBA / LAP",
				Domestic:    Schedule{{0, 20, 0.59}, {20, 40, 0.89}, {40, inf, 1.60}},
				Commercial:  Schedule{{0, inf, 3.00}},
				FixedCharge: 2.50,
			},
			RegionSouthern: {
				Key:         RegionSouthern,
				Name:        "SAJ Holdings",
				Domestic:    Schedule{{0, 20, 0.60}, {20, 35, 1.10}, {35, inf, 1.90}},
				Commercial:  Schedule{{0, inf, 3.30}},
				FixedCharge: 3.00,
			},
			RegionEastern: {
				Key:         RegionEastern,
				Name:        "PAIP",
				Domestic:    Schedule{{0, 20, 0.55}, {20, 40, 0.90}, {40, inf, 1.45}},
				Commercial:  Schedule{{0, inf, 2.90}},
				FixedCharge: 2.00,
			},
			RegionSabah: {
				Key:         RegionSabah,
				Name:        "JANS",
				Domestic:    Schedule{{0, 15, 0.44}, {15, 30, 0.85}, {30, inf, 1.35}},
				Commercial:  Schedule{{0, inf, 2.75}},
				FixedCharge: 1.50,
			},
			RegionSarawak: {
				Key:         RegionSarawak,
				Name:        "LAKU / KWB",
				Domestic:    Schedule{{0, 15, 0.42}, {15, 30, 0.75}, {30, inf, 1.25}},
				Commercial:  Schedule{{0, inf, 2.50}},
				FixedCharge: 1.50,
			},
		},
	}
}
