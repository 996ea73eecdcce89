package marketfeeds

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

const (
	// walkPrecision is the number of significant digits carried between walk steps
	walkPrecision = 16
	pricePlaces   = 2
)

var (
	defaultMinPrice = decimal.NewFromInt(1)
	defaultMaxPrice = decimal.NewFromInt(10000)
	halfFactor      = decimal.RequireFromString("0.5")
	oneAndAHalf     = decimal.RequireFromString("1.5")
	hundred         = decimal.NewFromInt(100)
)

// PriceGeneratorOptions bounds and shapes the random walk
type PriceGeneratorOptions struct {
	MinPrice decimal.Decimal
	MaxPrice decimal.Decimal
	// Steps is the number of normal draws compounded per call
	Steps int
}

// DefaultPriceGeneratorOptions returns the [1, 10000] single-step walk
func DefaultPriceGeneratorOptions() PriceGeneratorOptions {
	return PriceGeneratorOptions{MinPrice: defaultMinPrice, MaxPrice: defaultMaxPrice, Steps: 1}
}

// BoundsAround returns options clamping prices into [0.5*open, 1.5*open]
func BoundsAround(open decimal.Decimal, steps int) PriceGeneratorOptions {
	return PriceGeneratorOptions{
		MinPrice: open.Mul(halfFactor).Round(pricePlaces),
		MaxPrice: open.Mul(oneAndAHalf).Round(pricePlaces),
		Steps:    steps,
	}
}

// PriceGenerator computes the next price of a geometric random walk.
// It holds no per-call state; the random source is not safe for concurrent
// use, so a generator must only be driven from one goroutine at a time.
type PriceGenerator struct {
	rnd  RandomSource
	opts PriceGeneratorOptions
}

// NewPriceGenerator creates a generator drawing from rnd
func NewPriceGenerator(rnd RandomSource, opts PriceGeneratorOptions) *PriceGenerator {
	if opts.Steps < 1 {
		opts.Steps = 1
	}
	if opts.MinPrice.IsZero() && opts.MaxPrice.IsZero() {
		opts.MinPrice, opts.MaxPrice = defaultMinPrice, defaultMaxPrice
	}
	opts.MinPrice = opts.MinPrice.Round(pricePlaces)
	opts.MaxPrice = opts.MaxPrice.Round(pricePlaces)
	return &PriceGenerator{rnd: rnd, opts: opts}
}

// Bounds returns the closed interval generated prices are clamped into
func (g *PriceGenerator) Bounds() (decimal.Decimal, decimal.Decimal) {
	return g.opts.MinPrice, g.opts.MaxPrice
}

// Next returns the clamped, 2-decimal successor of last. A zero last price
// starts the walk from open.
func (g *PriceGenerator) Next(last, open decimal.Decimal, volatility float64) (decimal.Decimal, error) {
	if g.rnd == nil {
		return decimal.Zero, fmt.Errorf("price generator has no random source: %w", ErrInvalidArgument)
	}
	if last.IsNegative() {
		return decimal.Zero, fmt.Errorf("last price %s is negative: %w", last, ErrInvalidArgument)
	}
	if !open.IsPositive() {
		return decimal.Zero, fmt.Errorf("open price %s must be positive: %w", open, ErrInvalidArgument)
	}
	if volatility < 0 || math.IsNaN(volatility) || math.IsInf(volatility, 0) {
		return decimal.Zero, fmt.Errorf("volatility %v: %w", volatility, ErrInvalidArgument)
	}

	candidate := last
	if candidate.IsZero() {
		candidate = open
	}
	for i := 0; i < g.opts.Steps; i++ {
		factor := expDecimal(volatility * g.rnd.NormFloat64())
		candidate = roundSignificant(candidate.Mul(factor), walkPrecision)
	}

	if candidate.LessThan(g.opts.MinPrice) {
		candidate = g.opts.MinPrice
	} else if candidate.GreaterThan(g.opts.MaxPrice) {
		candidate = g.opts.MaxPrice
	}
	return candidate.Round(pricePlaces), nil
}

func expDecimal(x float64) decimal.Decimal {
	if x == 0 {
		return decimal.NewFromInt(1)
	}
	v, err := decimal.NewFromFloat(x).ExpHullAbrham(walkPrecision)
	if err != nil {
		return decimal.NewFromFloat(math.Exp(x))
	}
	return v
}

// roundSignificant rounds d to the given number of significant digits
func roundSignificant(d decimal.Decimal, digits int32) decimal.Decimal {
	if d.IsZero() {
		return d
	}
	magnitude := int32(d.NumDigits()) + d.Exponent()
	return d.Round(digits - magnitude)
}
