// Package tariffile loads tariff overrides from HCL, HCL-JSON or YAML files.
//
// A file only has to name what it changes. Each utility block may set the
// unit, usage divisor, nationwide provider and surcharges, and may declare
// providers; a declared provider replaces the built-in provider with the same
// key wholesale and any other key adds a new provider.
//
//	electricity {
//	  surcharge "service_tax" {
//	    rate = 0.08
//	  }
//	  provider "tnb" {
//	    name = "Tenaga Nasional Berhad"
//	    tier "domestic" {
//	      from = 0
//	      to   = 200
//	      rate = 0.218
//	    }
//	    tier "domestic" {
//	      from = 200
//	      rate = 0.334
//	    }
//	  }
//	}
//
// A tier without "to" is unbounded.
package tariffile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"utility-bill/core/pricing/primitives"
	"utility-bill/core/tariff"
	"utility-bill/internal/errors"
	"utility-bill/internal/logging"
)

// Format is a tariff file syntax
type Format string

const (
	FormatHCL  Format = "hcl"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatOf picks the syntax from the file extension
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hcl":
		return FormatHCL, nil
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", errors.Tariff(fmt.Sprintf("unsupported tariff file extension %q (use .hcl, .json, .yaml or .yml)", filepath.Ext(path)))
	}
}

type document struct {
	Electricity *tableDoc `hcl:"electricity,block" yaml:"electricity"`
	Water       *tableDoc `hcl:"water,block" yaml:"water"`
}

type tableDoc struct {
	Unit         *string        `hcl:"unit,optional" yaml:"unit"`
	UsageDivisor *float64       `hcl:"usage_divisor,optional" yaml:"usage_divisor"`
	Nationwide   *string        `hcl:"nationwide,optional" yaml:"nationwide"`
	Surcharges   []surchargeDoc `hcl:"surcharge,block" yaml:"surcharges"`
	Providers    []providerDoc  `hcl:"provider,block" yaml:"providers"`
}

type surchargeDoc struct {
	Name string  `hcl:"name,label" yaml:"name"`
	Rate float64 `hcl:"rate" yaml:"rate"`
}

type providerDoc struct {
	Key         string    `hcl:"key,label" yaml:"key"`
	Name        string    `hcl:"name,optional" yaml:"name"`
	FixedCharge float64   `hcl:"fixed_charge,optional" yaml:"fixed_charge"`
	Tiers       []tierDoc `hcl:"tier,block" yaml:"tiers"`
}

type tierDoc struct {
	Category string   `hcl:"category,label" yaml:"category"`
	From     float64  `hcl:"from" yaml:"from"`
	To       *float64 `hcl:"to,optional" yaml:"to"`
	Rate     float64  `hcl:"rate" yaml:"rate"`
}

// Load reads path and overlays it on the built-in tables
func Load(path string) (tariff.Tables, error) {
	return LoadOver(path, tariff.Builtin())
}

// LoadOver reads path and overlays it on base. The result is validated.
func LoadOver(path string, base tariff.Tables) (tariff.Tables, error) {
	format, err := FormatOf(path)
	if err != nil {
		return tariff.Tables{}, err
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return tariff.Tables{}, errors.Wrap(errors.TypeTariff, "failed to read tariff file", err).
			WithContext("path", path)
	}

	tables, err := Parse(src, path, format, base)
	if err != nil {
		return tariff.Tables{}, err
	}

	logging.Named("tariffile").Info("loaded tariff file",
		zap.String("path", path),
		zap.String("format", string(format)))
	return tables, nil
}

// Parse decodes src in the given format and overlays it on base
func Parse(src []byte, filename string, format Format, base tariff.Tables) (tariff.Tables, error) {
	var doc document
	switch format {
	case FormatHCL, FormatJSON:
		if err := decodeHCL(src, filename, format, &doc); err != nil {
			return tariff.Tables{}, err
		}
	case FormatYAML:
		if err := yaml.Unmarshal(src, &doc); err != nil {
			return tariff.Tables{}, errors.Wrap(errors.TypeTariff, "failed to parse tariff file", err).
				WithContext("path", filename)
		}
	default:
		return tariff.Tables{}, errors.Tariff(fmt.Sprintf("unsupported tariff format %q", format))
	}

	if err := overlay(&base.Electricity, doc.Electricity); err != nil {
		return tariff.Tables{}, err
	}
	if err := overlay(&base.Water, doc.Water); err != nil {
		return tariff.Tables{}, err
	}

	if err := base.Validate(); err != nil {
		return tariff.Tables{}, errors.Wrap(errors.TypeTariff, "invalid tariff file", err).
			WithContext("path", filename)
	}
	return base, nil
}

func decodeHCL(src []byte, filename string, format Format, doc *document) error {
	parser := hclparse.NewParser()

	var (
		file  *hcl.File
		diags hcl.Diagnostics
	)
	if format == FormatJSON {
		file, diags = parser.ParseJSON(src, filename)
	} else {
		file, diags = parser.ParseHCL(src, filename)
	}
	if diags.HasErrors() {
		return diagnosticsError(diags, filename)
	}

	if diags := gohcl.DecodeBody(file.Body, nil, doc); diags.HasErrors() {
		return diagnosticsError(diags, filename)
	}
	return nil
}

func diagnosticsError(diags hcl.Diagnostics, filename string) error {
	for _, diag := range diags {
		if diag.Severity != hcl.DiagError {
			continue
		}
		err := errors.Tariff(fmt.Sprintf("%s: %s", diag.Summary, diag.Detail)).WithContext("path", filename)
		if diag.Subject != nil {
			err = err.WithContext("line", diag.Subject.Start.Line)
		}
		return err
	}
	return errors.Tariff(diags.Error()).WithContext("path", filename)
}

func overlay(table *tariff.Table, doc *tableDoc) error {
	if doc == nil {
		return nil
	}

	if doc.Unit != nil {
		table.Unit = *doc.Unit
	}
	if doc.UsageDivisor != nil {
		table.UsageDivisor = *doc.UsageDivisor
	}
	if doc.Nationwide != nil {
		table.Nationwide = *doc.Nationwide
	}
	if doc.Surcharges != nil {
		table.Surcharges = make([]primitives.Surcharge, len(doc.Surcharges))
		for i, s := range doc.Surcharges {
			table.Surcharges[i] = primitives.Surcharge{Name: s.Name, Rate: s.Rate}
		}
	}

	if len(doc.Providers) == 0 {
		return nil
	}

	// base may be shared with the caller
	providers := make(map[string]tariff.Provider, len(table.Providers)+len(doc.Providers))
	for k, p := range table.Providers {
		providers[k] = p
	}
	for _, pd := range doc.Providers {
		p, err := pd.provider()
		if err != nil {
			return errors.Wrapf(errors.TypeTariff, err, "%s/%s", table.Utility, pd.Key)
		}
		providers[p.Key] = p
	}
	table.Providers = providers
	return nil
}

func (pd providerDoc) provider() (tariff.Provider, error) {
	if pd.Key == "" {
		return tariff.Provider{}, errors.Tariff("provider key is required")
	}

	p := tariff.Provider{
		Key:         pd.Key,
		Name:        pd.Name,
		FixedCharge: pd.FixedCharge,
	}
	if p.Name == "" {
		p.Name = pd.Key
	}

	for _, td := range pd.Tiers {
		tier := tariff.Tier{LowerBound: td.From, UpperBound: primitives.Unbounded, Rate: td.Rate}
		if td.To != nil {
			tier.UpperBound = *td.To
		}

		switch tariff.Category(td.Category) {
		case tariff.Domestic:
			p.Domestic = append(p.Domestic, tier)
		case tariff.Commercial:
			p.Commercial = append(p.Commercial, tier)
		default:
			return tariff.Provider{}, errors.Tariff(fmt.Sprintf("unknown tier category %q (use domestic or commercial)", td.Category))
		}
	}
	return p, nil
}
