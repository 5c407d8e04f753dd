package stations

import (
	"fmt"
	"time"
)

// Mode selects between the dated production snapshot and a fixed debug
// fixture.
type Mode string

const (
	ModeProduction Mode = "production"
	ModeDebug      Mode = "debug"
)

// Schema identifies which positional CSV layout a resource uses.
type Schema int

const (
	SchemaDaily Schema = iota
	SchemaIntraday
)

// Snapshot is a resolved station-data resource: where to fetch it and how to
// parse it.
type Snapshot struct {
	Locator string
	Schema  Schema
}

// SnapshotResolver computes which dated resource to request. The clock is
// injected so date-boundary behavior (zero padding, UTC vs. local) is
// deterministically testable.
type SnapshotResolver struct {
	mode      Mode
	debugPath string
	now       func() time.Time
}

// NewSnapshotResolver creates a resolver. A nil clock defaults to time.Now.
func NewSnapshotResolver(mode Mode, debugPath string, now func() time.Time) *SnapshotResolver {
	if now == nil {
		now = time.Now
	}
	return &SnapshotResolver{
		mode:      mode,
		debugPath: debugPath,
		now:       now,
	}
}

// Resolve returns the resource to load. In production the locator is derived
// from the current UTC date; the upstream file is generated once per UTC
// day. In debug mode it is the fixed configured fixture, which uses the
// daily schema.
func (r *SnapshotResolver) Resolve() Snapshot {
	if r.mode == ModeDebug {
		return Snapshot{Locator: r.debugPath, Schema: SchemaDaily}
	}

	utc := r.now().UTC()
	return Snapshot{
		Locator: fmt.Sprintf("10min_station_data_%04d%02d%02d.csv", utc.Year(), int(utc.Month()), utc.Day()),
		Schema:  SchemaIntraday,
	}
}

// snapshotUnavailable explains a missing dated snapshot. The file appears
// once per UTC day, so a caller whose local date lags UTC (west of Greenwich
// near midnight UTC) can request a file that does not exist yet. The message
// is user-facing, not just a log line.
func snapshotUnavailable(locator string, err error) error {
	return fmt.Errorf(
		"station snapshot %q is not available: snapshots are generated once per UTC day, "+
			"so shortly after midnight UTC (or from a timezone west of UTC) today's file may not exist yet; "+
			"try again later or check that your clock agrees with UTC: %w", locator, err)
}
