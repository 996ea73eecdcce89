package marketfeeds

import (
	"fmt"

	"github.com/Aidin1998/pincex_mockfeed/pkg/models"
)

// AggregateBar snapshots state into an OHLCV bar stamped with the minute of
// its last update
func AggregateBar(state *InstrumentState) (models.Bar, error) {
	if state == nil {
		return models.Bar{}, fmt.Errorf("aggregate bar: nil instrument state: %w", ErrInvalidArgument)
	}
	return state.bar(), nil
}
