package marketfeeds

import (
	"context"
	"fmt"
	"strings"

	"github.com/Aidin1998/pincex_mockfeed/pkg/models"
	"github.com/shopspring/decimal"
)

// VolatilityDefaults are the statically configured coefficients. AssetClass
// may carry an ALL key that applies to every asset class.
type VolatilityDefaults struct {
	Exchange   map[string]float64
	AssetClass map[string]float64
}

type overrideKey struct {
	exchange   string
	assetClass string
}

// VolatilityResolver answers volatility lookups against a loaded override
// table and the static defaults. It is immutable once built.
type VolatilityResolver struct {
	overrides  map[overrideKey]float64
	exchange   map[string]float64
	assetClass map[string]float64
	chain      []volatilityLookup
}

type volatilityLookup func(exchange, assetClass string) (float64, bool)

// VolatilityConfigLoader builds resolvers from the override source
type VolatilityConfigLoader struct {
	source   VolatilityOverrideSource
	defaults VolatilityDefaults
}

func NewVolatilityConfigLoader(source VolatilityOverrideSource, defaults VolatilityDefaults) *VolatilityConfigLoader {
	return &VolatilityConfigLoader{source: source, defaults: defaults}
}

// Load reads the override table and returns a resolver over a copy of it.
// A nil source yields a resolver backed by the static defaults only.
func (l *VolatilityConfigLoader) Load(ctx context.Context) (*VolatilityResolver, error) {
	var rows []models.VolatilityOverride
	if l.source != nil {
		var err error
		rows, err = l.source.ListVolatilityOverrides(ctx)
		if err != nil {
			return nil, fmt.Errorf("load volatility overrides: %w", err)
		}
	}
	return NewVolatilityResolver(rows, l.defaults), nil
}

// NewVolatilityResolver normalises rows and defaults into a resolver
func NewVolatilityResolver(rows []models.VolatilityOverride, defaults VolatilityDefaults) *VolatilityResolver {
	r := &VolatilityResolver{
		overrides:  make(map[overrideKey]float64, len(rows)),
		exchange:   normaliseMap(defaults.Exchange),
		assetClass: normaliseMap(defaults.AssetClass),
	}
	for _, row := range rows {
		r.overrides[overrideKey{normaliseKey(row.ExchangeCode), normaliseKey(row.AssetClass)}] = row.VolatilityPercent
	}
	r.chain = []volatilityLookup{
		r.exactOverride,
		r.exchangeWildcardOverride,
		r.exchangeDefault,
		r.assetClassDefault,
		r.wildcardDefault,
	}
	return r
}

// Resolve returns the first match of: exact override, (exchange, ALL)
// override, exchange default, asset class default, ALL default, fallback.
func (r *VolatilityResolver) Resolve(exchange, assetClass string, fallback float64) float64 {
	exchange, assetClass = normaliseKey(exchange), normaliseKey(assetClass)
	for _, lookup := range r.chain {
		if v, ok := lookup(exchange, assetClass); ok {
			return v
		}
	}
	return fallback
}

func (r *VolatilityResolver) exactOverride(exchange, assetClass string) (float64, bool) {
	v, ok := r.overrides[overrideKey{exchange, assetClass}]
	return v, ok
}

func (r *VolatilityResolver) exchangeWildcardOverride(exchange, _ string) (float64, bool) {
	v, ok := r.overrides[overrideKey{exchange, models.AssetClassAll}]
	return v, ok
}

func (r *VolatilityResolver) exchangeDefault(exchange, _ string) (float64, bool) {
	v, ok := r.exchange[exchange]
	return v, ok
}

func (r *VolatilityResolver) assetClassDefault(_, assetClass string) (float64, bool) {
	v, ok := r.assetClass[assetClass]
	return v, ok
}

func (r *VolatilityResolver) wildcardDefault(_, _ string) (float64, bool) {
	v, ok := r.assetClass[models.AssetClassAll]
	return v, ok
}

func normaliseKey(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func normaliseMap(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[normaliseKey(k)] = v
	}
	return out
}

// ValidatePriceBounds checks min < max and min <= defaultPrice <= max
func ValidatePriceBounds(minPrice, maxPrice, defaultPrice decimal.Decimal) error {
	if !minPrice.LessThan(maxPrice) {
		return fmt.Errorf("min price %s must be below max price %s: %w", minPrice, maxPrice, ErrInvalidConfiguration)
	}
	if defaultPrice.LessThan(minPrice) || defaultPrice.GreaterThan(maxPrice) {
		return fmt.Errorf("default price %s outside [%s, %s]: %w", defaultPrice, minPrice, maxPrice, ErrInvalidConfiguration)
	}
	return nil
}
