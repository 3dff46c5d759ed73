package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-monitor/simulation/internal/domain"
)

func TestHistoryRowMatchesColumnOrder(t *testing.T) {
	ts := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	e := &domain.HistoryEntry{
		ID:        "entry-1",
		VehicleID: "veh-1",
		FleetID:   "fleet-1",
		Timestamp: ts,
		Sample: domain.TelemetrySample{
			Timestamp: ts,
			Location:  domain.Location{Lat: 53.35, Lon: -6.26},
			SpeedKmh:  42,
			Weather:   domain.WeatherRain,
			Traffic:   domain.TrafficHeavy,
			Events:    []domain.EventType{domain.EventTripStart},
		},
	}

	row, err := historyRow(e)
	require.NoError(t, err)
	require.Len(t, row, len(historyColumns))

	assert.Equal(t, "entry-1", row[0])
	assert.Equal(t, "veh-1", row[1])
	// baseline entry carries NULL trigger columns
	assert.Nil(t, row[3])
	assert.Nil(t, row[4])
	assert.Equal(t, ts, row[5])
	assert.Equal(t, "rain", row[12])
	assert.Equal(t, "heavy", row[13])
	assert.Equal(t, `["trip_start"]`, row[23])
}

func TestHistoryRowTaggedEntryCarriesTrigger(t *testing.T) {
	e := &domain.HistoryEntry{
		ID:          "entry-2",
		VehicleID:   "veh-1",
		FleetID:     "fleet-1",
		TriggerID:   "trg-1",
		TriggerType: domain.TriggerSpeedBased,
		Timestamp:   time.Now(),
	}

	row, err := historyRow(e)
	require.NoError(t, err)
	assert.Equal(t, "trg-1", row[3])
	assert.Equal(t, "speed_based", row[4])
}
