package plan

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// yamlPlan is the on-disk plan shape. Prices are strings so the catalog can
// write exact decimal values ("49.00") without float round-tripping.
type yamlPlan struct {
	Name         string            `yaml:"name"`
	Description  string            `yaml:"description"`
	PriceMonthly string            `yaml:"price_monthly"`
	PriceYearly  string            `yaml:"price_yearly"`
	Features     map[Feature]Value `yaml:"features"`
	Limits       map[string]int64  `yaml:"limits"`
}

type yamlCatalog struct {
	Plans map[string]yamlPlan `yaml:"plans"`
}

// Load parses a YAML plan catalog from r.
func Load(r io.Reader) (map[string]Plan, error) {
	var catalog yamlCatalog
	if err := yaml.NewDecoder(r).Decode(&catalog); err != nil {
		return nil, errors.Join(ErrInvalidCatalog, err)
	}
	if len(catalog.Plans) == 0 {
		return nil, fmt.Errorf("%w: no plans defined", ErrInvalidCatalog)
	}

	plans := make(map[string]Plan, len(catalog.Plans))
	for id, yp := range catalog.Plans {
		monthly, err := parsePrice(yp.PriceMonthly)
		if err != nil {
			return nil, fmt.Errorf("%w: plan %q monthly price: %w", ErrInvalidCatalog, id, err)
		}
		yearly, err := parsePrice(yp.PriceYearly)
		if err != nil {
			return nil, fmt.Errorf("%w: plan %q yearly price: %w", ErrInvalidCatalog, id, err)
		}
		plans[id] = Plan{
			ID:           id,
			Name:         yp.Name,
			Description:  yp.Description,
			PriceMonthly: monthly,
			PriceYearly:  yearly,
			Features:     yp.Features,
			Limits:       yp.Limits,
		}
	}
	return plans, nil
}

// LoadFile parses a YAML plan catalog from path.
func LoadFile(path string) (map[string]Plan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Join(ErrInvalidCatalog, err)
	}
	defer f.Close()
	return Load(f)
}

func parsePrice(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
