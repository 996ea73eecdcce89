package database

import (
	"context"
	"testing"
	"time"

	"github.com/Aidin1998/pincex_mockfeed/internal/config"
	"github.com/Aidin1998/pincex_mockfeed/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		AutoMigrate:  true,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })
	return db
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "oracle", DSN: "x"}, nil)
	assert.Error(t, err)
}

func TestInstrumentRepository_FindAll(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Create(&models.Instrument{Symbol: "TCS", ExchangeCode: "NSE", AssetClass: "EQUITY", Status: "ACTIVE"}).Error)
	require.NoError(t, db.Create(&models.Instrument{Symbol: "IBM", ExchangeCode: "NYSE", AssetClass: "EQUITY", Status: "INACTIVE"}).Error)

	instruments, err := NewInstrumentRepository(db).FindAllInstruments(context.Background())
	require.NoError(t, err)
	require.Len(t, instruments, 2)
	assert.Equal(t, "IBM", instruments[0].Symbol)
	assert.Equal(t, "TCS", instruments[1].Symbol)
	assert.NotEqual(t, instruments[0].ID, instruments[1].ID)
}

func TestCalendarRepository_IsExchangeClosed(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCalendarRepository(db)
	ctx := context.Background()
	holiday := time.Date(2026, 1, 26, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.AddHoliday(ctx, "nse", holiday, "Republic Day"))

	closed, err := repo.IsExchangeClosed(ctx, "NSE", holiday)
	require.NoError(t, err)
	assert.True(t, closed)

	closed, err = repo.IsExchangeClosed(ctx, " nse ", holiday.Add(15*time.Hour))
	require.NoError(t, err)
	assert.True(t, closed, "any time on the day matches")

	closed, err = repo.IsExchangeClosed(ctx, "NSE", holiday.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.False(t, closed)

	closed, err = repo.IsExchangeClosed(ctx, "NYSE", holiday)
	require.NoError(t, err)
	assert.False(t, closed)
}

func TestVolatilityOverrideRepository_List(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Create(&models.VolatilityOverride{ExchangeCode: "NSE", AssetClass: "EQUITY", VolatilityPercent: 0.02}).Error)

	overrides, err := NewVolatilityOverrideRepository(db).ListVolatilityOverrides(context.Background())
	require.NoError(t, err)
	require.Len(t, overrides, 1)
	assert.Equal(t, 0.02, overrides[0].VolatilityPercent)
}

func TestSeedDemoData_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, SeedDemoData(ctx, db))
	require.NoError(t, SeedDemoData(ctx, db))

	var instruments, overrides int64
	require.NoError(t, db.Model(&models.Instrument{}).Count(&instruments).Error)
	require.NoError(t, db.Model(&models.VolatilityOverride{}).Count(&overrides).Error)
	assert.Equal(t, int64(len(demoInstruments)), instruments)
	assert.Equal(t, int64(len(demoOverrides)), overrides)
}
