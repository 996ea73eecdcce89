package database

import (
	"context"
	"fmt"

	"github.com/Aidin1998/pincex_mockfeed/pkg/models"
	"gorm.io/gorm"
)

var demoInstruments = []models.Instrument{
	{Symbol: "INFY", Name: "Infosys Ltd", ExchangeCode: "NSE", AssetClass: models.AssetClassEquity, Status: models.InstrumentStatusActive},
	{Symbol: "TCS", Name: "Tata Consultancy Services", ExchangeCode: "NSE", AssetClass: models.AssetClassEquity, Status: models.InstrumentStatusActive},
	{Symbol: "NIFTYFUT", Name: "Nifty 50 Future", ExchangeCode: "NSE", AssetClass: models.AssetClassDerivative, Status: models.InstrumentStatusActive},
	{Symbol: "RELIANCE", Name: "Reliance Industries", ExchangeCode: "BSE", AssetClass: models.AssetClassEquity, Status: models.InstrumentStatusActive},
	{Symbol: "IBM", Name: "International Business Machines", ExchangeCode: "NYSE", AssetClass: models.AssetClassEquity, Status: models.InstrumentStatusActive},
	{Symbol: "KO", Name: "Coca-Cola Co", ExchangeCode: "NYSE", AssetClass: models.AssetClassEquity, Status: models.InstrumentStatusActive},
	{Symbol: "DELISTED", Name: "Delisted Corp", ExchangeCode: "NYSE", AssetClass: models.AssetClassEquity, Status: models.InstrumentStatusInactive},
}

var demoOverrides = []models.VolatilityOverride{
	{ExchangeCode: "NSE", AssetClass: models.AssetClassEquity, VolatilityPercent: 0.02},
	{ExchangeCode: "NSE", AssetClass: models.AssetClassDerivative, VolatilityPercent: 0.04},
	{ExchangeCode: "BSE", AssetClass: models.AssetClassAll, VolatilityPercent: 0.03},
}

// SeedDemoData inserts a small demo catalog. Existing rows are left untouched.
func SeedDemoData(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, inst := range demoInstruments {
			if err := tx.Where(models.Instrument{Symbol: inst.Symbol}).FirstOrCreate(&inst).Error; err != nil {
				return fmt.Errorf("failed to seed instrument %s: %w", inst.Symbol, err)
			}
		}
		for _, o := range demoOverrides {
			err := tx.Where(models.VolatilityOverride{ExchangeCode: o.ExchangeCode, AssetClass: o.AssetClass}).
				FirstOrCreate(&o).Error
			if err != nil {
				return fmt.Errorf("failed to seed volatility override %s/%s: %w", o.ExchangeCode, o.AssetClass, err)
			}
		}
		return nil
	})
}
