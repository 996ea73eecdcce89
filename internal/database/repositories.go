package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Aidin1998/pincex_mockfeed/pkg/models"
	"gorm.io/gorm"
)

// InstrumentRepository reads the instrument catalog
type InstrumentRepository struct {
	db *gorm.DB
}

func NewInstrumentRepository(db *gorm.DB) *InstrumentRepository {
	return &InstrumentRepository{db: db}
}

// FindAllInstruments returns every catalog entry regardless of status
func (r *InstrumentRepository) FindAllInstruments(ctx context.Context) ([]models.Instrument, error) {
	var instruments []models.Instrument
	if err := r.db.WithContext(ctx).Order("symbol").Find(&instruments).Error; err != nil {
		return nil, fmt.Errorf("failed to load instruments: %w", err)
	}
	return instruments, nil
}

// CalendarRepository answers exchange closure questions from the holiday table
type CalendarRepository struct {
	db *gorm.DB
}

func NewCalendarRepository(db *gorm.DB) *CalendarRepository {
	return &CalendarRepository{db: db}
}

// IsExchangeClosed reports whether a holiday is recorded for the exchange on
// the calendar day of date
func (r *CalendarRepository) IsExchangeClosed(ctx context.Context, exchangeCode string, date time.Time) (bool, error) {
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ExchangeHoliday{}).
		Where("exchange_code = ? AND holiday_date >= ? AND holiday_date < ?",
			strings.ToUpper(strings.TrimSpace(exchangeCode)), start, end).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to query holidays for %s: %w", exchangeCode, err)
	}
	return count > 0, nil
}

// AddHoliday records a closure for the calendar day of date
func (r *CalendarRepository) AddHoliday(ctx context.Context, exchangeCode string, date time.Time, description string) error {
	holiday := models.ExchangeHoliday{
		ExchangeCode: strings.ToUpper(strings.TrimSpace(exchangeCode)),
		HolidayDate:  time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC),
		Description:  description,
	}
	if err := r.db.WithContext(ctx).Create(&holiday).Error; err != nil {
		return fmt.Errorf("failed to add holiday: %w", err)
	}
	return nil
}

// VolatilityOverrideRepository reads the stored volatility overrides
type VolatilityOverrideRepository struct {
	db *gorm.DB
}

func NewVolatilityOverrideRepository(db *gorm.DB) *VolatilityOverrideRepository {
	return &VolatilityOverrideRepository{db: db}
}

func (r *VolatilityOverrideRepository) ListVolatilityOverrides(ctx context.Context) ([]models.VolatilityOverride, error) {
	var overrides []models.VolatilityOverride
	if err := r.db.WithContext(ctx).Find(&overrides).Error; err != nil {
		return nil, fmt.Errorf("failed to load volatility overrides: %w", err)
	}
	return overrides, nil
}
