package stations

import (
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
)

// Column counts per schema. Mapping is fixed by position; the header line is
// discarded and never consulted for field names.
const (
	cityColumns     = 10
	dailyColumns    = 14
	intradayColumns = 9
)

// ParseDailyStations converts the daily station CSV into records, in input
// order. Malformed lines are skipped, never failed: blank lines, lines with
// too few columns, and lines whose latitude or longitude does not parse to a
// finite number are dropped silently. Optional metrics that fail to parse
// become absent rather than zero.
//
// Daily schema: station_id, city_name, from_date, to_date, lat, lon,
// mean_temp_date, mean_temp, min_temp_date, min_temp, max_temp_date,
// max_temp, humidity_date, humidity.
func ParseDailyStations(text string) []StationRecord {
	records := make([]StationRecord, 0)

	for _, cols := range dataLines(text, dailyColumns) {
		id := strings.TrimSpace(cols[0])
		if id == "" {
			continue
		}

		lat, lon, ok := parseCoordinates(cols[4], cols[5])
		if !ok {
			log.Printf("DEBUG: skipping daily row for %q: bad coordinates", id)
			continue
		}

		fromDate := strings.TrimSpace(cols[2])
		toDate := strings.TrimSpace(cols[3])

		records = append(records, StationRecord{
			StationID:            id,
			Name:                 strings.TrimSpace(cols[1]),
			Latitude:             lat,
			Longitude:            lon,
			ObservationTimestamp: toDate,
			MeanTemperature:      parseMetric(cols[7]),
			MinTemperature:       parseMetric(cols[9]),
			MaxTemperature:       parseMetric(cols[11]),
			Humidity:             parseMetric(cols[13]),
			Subtitle:             fmt.Sprintf("Data from %s to %s", formatDateToken(fromDate), formatDateToken(toDate)),
		})
	}

	return records
}

// ParseIntradayStations converts the latest-snapshot CSV into records, with
// the same tolerance rules as ParseDailyStations.
//
// Intraday schema: station_id, station_name, data_date, lat, lon, humidity,
// max_temp, mean_temp, min_temp.
func ParseIntradayStations(text string) []StationRecord {
	records := make([]StationRecord, 0)

	for _, cols := range dataLines(text, intradayColumns) {
		id := strings.TrimSpace(cols[0])
		if id == "" {
			continue
		}

		lat, lon, ok := parseCoordinates(cols[3], cols[4])
		if !ok {
			log.Printf("DEBUG: skipping intraday row for %q: bad coordinates", id)
			continue
		}

		dataDate := strings.TrimSpace(cols[2])

		records = append(records, StationRecord{
			StationID:            id,
			Name:                 strings.TrimSpace(cols[1]),
			Latitude:             lat,
			Longitude:            lon,
			ObservationTimestamp: dataDate,
			Humidity:             parseMetric(cols[5]),
			MaxTemperature:       parseMetric(cols[6]),
			MeanTemperature:      parseMetric(cols[7]),
			MinTemperature:       parseMetric(cols[8]),
			Subtitle:             formatDateToken(dataDate),
		})
	}

	return records
}

// ParseCities converts the static city metadata CSV into records.
//
// City schema: id, name, lat, lon, grid_row, grid_col, grid_lat1, grid_lon1,
// grid_lat2, grid_lon2.
func ParseCities(text string) []CityGridRecord {
	cities := make([]CityGridRecord, 0)

	for _, cols := range dataLines(text, cityColumns) {
		id := strings.TrimSpace(cols[0])
		if id == "" {
			continue
		}

		lat, lon, ok := parseCoordinates(cols[2], cols[3])
		if !ok {
			log.Printf("DEBUG: skipping city row for %q: bad coordinates", id)
			continue
		}

		gridRow, err := strconv.Atoi(strings.TrimSpace(cols[4]))
		if err != nil {
			continue
		}
		gridCol, err := strconv.Atoi(strings.TrimSpace(cols[5]))
		if err != nil {
			continue
		}

		gridLat1, lat1OK := parseFinite(cols[6])
		gridLon1, lon1OK := parseFinite(cols[7])
		gridLat2, lat2OK := parseFinite(cols[8])
		gridLon2, lon2OK := parseFinite(cols[9])
		if !lat1OK || !lon1OK || !lat2OK || !lon2OK {
			continue
		}

		cities = append(cities, CityGridRecord{
			CityID:    id,
			Name:      strings.TrimSpace(cols[1]),
			Latitude:  lat,
			Longitude: lon,
			GridRow:   gridRow,
			GridCol:   gridCol,
			GridLat1:  gridLat1,
			GridLon1:  gridLon1,
			GridLat2:  gridLat2,
			GridLon2:  gridLon2,
		})
	}

	return cities
}

// dataLines splits raw text into comma-separated columns, dropping the
// header line, blank lines, and lines with fewer than minColumns fields.
func dataLines(text string, minColumns int) [][]string {
	lines := strings.Split(text, "\n")
	if len(lines) > 0 {
		// Header line is present but unused.
		lines = lines[1:]
	}

	rows := make([][]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		cols := strings.Split(line, ",")
		if len(cols) < minColumns {
			continue
		}
		rows = append(rows, cols)
	}

	return rows
}

// parseCoordinates parses a lat/lon pair; both must be finite.
func parseCoordinates(latStr, lonStr string) (float64, float64, bool) {
	lat, latOK := parseFinite(latStr)
	lon, lonOK := parseFinite(lonStr)
	if !latOK || !lonOK {
		return 0, 0, false
	}
	return lat, lon, true
}

func parseFinite(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// parseMetric parses an optional reading; anything unparseable is absent.
func parseMetric(s string) Metric {
	v, ok := parseFinite(s)
	if !ok {
		return AbsentMetric()
	}
	return SomeMetric(v)
}

// formatDateToken turns a raw YYYYMMDD or YYYYMMDDHHMM token into display
// form (YYYY-MM-DD or YYYY-MM-DD HH:MM). Unrecognized tokens pass through.
func formatDateToken(token string) string {
	switch len(token) {
	case 8:
		return token[0:4] + "-" + token[4:6] + "-" + token[6:8]
	case 12:
		return token[0:4] + "-" + token[4:6] + "-" + token[6:8] + " " + token[8:10] + ":" + token[10:12]
	default:
		return token
	}
}
