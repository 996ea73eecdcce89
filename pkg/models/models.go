package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Instrument status values
const (
	InstrumentStatusActive    = "ACTIVE"
	InstrumentStatusInactive  = "INACTIVE"
	InstrumentStatusSuspended = "SUSPENDED"
)

// Asset classes known to the catalog. AssetClassAll is the wildcard used by
// volatility overrides and defaults.
const (
	AssetClassEquity     = "EQUITY"
	AssetClassDerivative = "DERIVATIVE"
	AssetClassCommodity  = "COMMODITY"
	AssetClassCurrency   = "CURRENCY"
	AssetClassAll        = "ALL"
)

// Instrument represents a tradable symbol in the instrument catalog
type Instrument struct {
	ID           uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	Symbol       string    `json:"symbol" gorm:"uniqueIndex;size:32" validate:"required,max=32"`
	Name         string    `json:"name" gorm:"size:128"`
	ExchangeCode string    `json:"exchange_code" gorm:"index;size:16" validate:"required,max=16"`
	AssetClass   string    `json:"asset_class" gorm:"size:32" validate:"required"`
	Status       string    `json:"status" gorm:"index;size:16" validate:"required,oneof=ACTIVE INACTIVE SUSPENDED"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// BeforeCreate assigns an ID when the caller did not
func (i *Instrument) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// ExchangeHoliday marks an exchange closed for a calendar day
type ExchangeHoliday struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	ExchangeCode string    `json:"exchange_code" gorm:"uniqueIndex:idx_exchange_holiday;size:16" validate:"required"`
	HolidayDate  time.Time `json:"holiday_date" gorm:"uniqueIndex:idx_exchange_holiday;type:date" validate:"required"`
	Description  string    `json:"description" gorm:"size:128"`
	CreatedAt    time.Time `json:"created_at"`
}

// VolatilityOverride is a per exchange / asset class volatility coefficient.
// AssetClass may be AssetClassAll to cover every asset class of the exchange.
type VolatilityOverride struct {
	ID                uint      `json:"id" gorm:"primaryKey"`
	ExchangeCode      string    `json:"exchange_code" gorm:"uniqueIndex:idx_volatility_override;size:16" validate:"required"`
	AssetClass        string    `json:"asset_class" gorm:"uniqueIndex:idx_volatility_override;size:32" validate:"required"`
	VolatilityPercent float64   `json:"volatility_percent" validate:"gte=0"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Quote is an immutable snapshot of an instrument's session at a point in time
type Quote struct {
	Symbol        string          `json:"symbol"`
	ExchangeCode  string          `json:"exchange_code"`
	LastPrice     decimal.Decimal `json:"last_price"`
	Open          decimal.Decimal `json:"open"`
	High          decimal.Decimal `json:"high"`
	Low           decimal.Decimal `json:"low"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	Volume        int64           `json:"volume"`
	Timestamp     time.Time       `json:"timestamp"`
}

// Bar is an OHLCV snapshot of an instrument's session, stamped with the
// start of the minute it was last updated in
type Bar struct {
	Symbol       string          `json:"symbol"`
	ExchangeCode string          `json:"exchange_code"`
	Open         decimal.Decimal `json:"open"`
	High         decimal.Decimal `json:"high"`
	Low          decimal.Decimal `json:"low"`
	Close        decimal.Decimal `json:"close"`
	Volume       int64           `json:"volume"`
	Timestamp    time.Time       `json:"timestamp"`
}
