package stations

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Metric is an optional numeric reading. Absence is an explicit state,
// distinct from zero, so a missing humidity value can never render as "0%".
type Metric struct {
	value float64
	valid bool
}

// SomeMetric wraps a finite reading. Non-finite input yields an absent metric.
func SomeMetric(v float64) Metric {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Metric{}
	}
	return Metric{value: v, valid: true}
}

// AbsentMetric returns the absent sentinel.
func AbsentMetric() Metric {
	return Metric{}
}

// Value returns the reading and whether it is present.
func (m Metric) Value() (float64, bool) {
	return m.value, m.valid
}

// IsAbsent reports whether no reading is available.
func (m Metric) IsAbsent() bool {
	return !m.valid
}

// Format renders the metric for display with the given number of decimals
// and unit suffix; absent metrics render as "N/A".
func (m Metric) Format(decimals int, unit string) string {
	if !m.valid {
		return "N/A"
	}
	return strconv.FormatFloat(m.value, 'f', decimals, 64) + unit
}

// MarshalJSON encodes an absent metric as null and a present one as a number.
func (m Metric) MarshalJSON() ([]byte, error) {
	if !m.valid {
		return []byte("null"), nil
	}
	return json.Marshal(m.value)
}

// UnmarshalJSON accepts a number or null.
func (m *Metric) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = Metric{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*m = SomeMetric(v)
	return nil
}

// Locatable is the capability shared by every entity that can be placed on
// the map. StationRecord and CityGridRecord implement it independently; one
// is never reused to stand in for the other.
type Locatable interface {
	ID() string
	DisplayName() string
	Coordinates() (lat, lon float64)
}

// StationRecord is one weather station with its latest readings. Records are
// immutable values owned by the directory; a reload produces entirely new
// instances, identified across generations by StationID.
type StationRecord struct {
	StationID string  `json:"station_id"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`

	// ObservationTimestamp is the raw date token from the source,
	// YYYYMMDD for daily data and YYYYMMDDHHMM for intraday data.
	ObservationTimestamp string `json:"observation_timestamp"`

	MeanTemperature Metric `json:"mean_temperature"`
	MinTemperature  Metric `json:"min_temperature"`
	MaxTemperature  Metric `json:"max_temperature"`
	Humidity        Metric `json:"humidity_percent"`

	// Subtitle is display text derived from the timestamps at parse time.
	Subtitle string `json:"subtitle"`
}

func (r StationRecord) ID() string          { return r.StationID }
func (r StationRecord) DisplayName() string { return r.Name }

func (r StationRecord) Coordinates() (float64, float64) {
	return r.Latitude, r.Longitude
}

// CityGridRecord is static city metadata with its assigned analysis grid
// cell. Loaded once at startup, never re-resolved against dates.
type CityGridRecord struct {
	CityID    string  `json:"city_id"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`

	GridRow int `json:"grid_row"`
	GridCol int `json:"grid_col"`

	// Bounding rectangle of the grid cell.
	GridLat1 float64 `json:"grid_lat1"`
	GridLon1 float64 `json:"grid_lon1"`
	GridLat2 float64 `json:"grid_lat2"`
	GridLon2 float64 `json:"grid_lon2"`
}

func (c CityGridRecord) ID() string          { return c.CityID }
func (c CityGridRecord) DisplayName() string { return c.Name }

func (c CityGridRecord) Coordinates() (float64, float64) {
	return c.Latitude, c.Longitude
}

// ReadingsSummary renders the record's metrics the way the info panel shows
// them: temperatures with one decimal, humidity without.
func (r StationRecord) ReadingsSummary() string {
	return fmt.Sprintf("mean %s min %s max %s humidity %s",
		r.MeanTemperature.Format(1, "°C"),
		r.MinTemperature.Format(1, "°C"),
		r.MaxTemperature.Format(1, "°C"),
		r.Humidity.Format(0, "%"),
	)
}
