package stations

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/klimakarte/station-map/internal/stations/source"
)

// Fetcher abstracts the transport that retrieves a raw CSV resource.
type Fetcher interface {
	FetchResource(ctx context.Context, path string) (string, error)
}

// Directory is the contract the in-memory station directory must satisfy.
type Directory interface {
	Replace(records []StationRecord)
	Len() int
}

// SelectionNotifier receives the post-load callback that reconciles the
// current selection with a new directory generation.
type SelectionNotifier interface {
	OnDirectoryLoaded()
}

// Service orchestrates one load: resolve the snapshot locator, fetch, parse,
// replace the directory generation, and notify the selection coordinator.
//
// Every load carries a monotonically increasing generation number; a load
// result is applied only if its generation is still the latest issued. Two
// overlapping loads therefore resolve last-issued-wins, not
// last-completed-wins.
type Service struct {
	fetcher    Fetcher
	resolver   *SnapshotResolver
	dir        Directory
	coord      SelectionNotifier
	citiesPath string

	mu      sync.Mutex
	issued  uint64
	cities  []CityGridRecord
	lastErr error
}

// NewService creates a Service.
func NewService(fetcher Fetcher, resolver *SnapshotResolver, dir Directory, coord SelectionNotifier, citiesPath string) *Service {
	return &Service{
		fetcher:    fetcher,
		resolver:   resolver,
		dir:        dir,
		coord:      coord,
		citiesPath: citiesPath,
	}
}

// LoadSnapshot performs a full station-data load. Parse-level anomalies
// degrade by omission; only a transport failure fails the load, in which
// case the directory keeps its prior generation and the error is retained
// for the status surface.
func (s *Service) LoadSnapshot(ctx context.Context) error {
	s.mu.Lock()
	s.issued++
	gen := s.issued
	s.mu.Unlock()

	snapshot := s.resolver.Resolve()

	text, err := s.fetcher.FetchResource(ctx, snapshot.Locator)
	if err != nil {
		if snapshot.Schema == SchemaIntraday && errors.Is(err, source.ErrNotFound) {
			err = snapshotUnavailable(snapshot.Locator, err)
		} else {
			err = fmt.Errorf("loading station data from %q: %w", snapshot.Locator, err)
		}
		s.recordOutcome(gen, err)
		return err
	}

	var records []StationRecord
	switch snapshot.Schema {
	case SchemaDaily:
		records = ParseDailyStations(text)
	default:
		records = ParseIntradayStations(text)
	}

	s.mu.Lock()
	if gen != s.issued {
		// A newer load has been issued; discard this result.
		s.mu.Unlock()
		log.Printf("stations: discarding superseded load (generation %d < %d)", gen, s.issued)
		return nil
	}
	s.lastErr = nil
	// Apply while still holding the lock so a superseded load can never
	// slip its generation in after the check.
	s.dir.Replace(records)
	s.coord.OnDirectoryLoaded()
	s.mu.Unlock()

	log.Printf("stations: loaded %d records from %q", len(records), snapshot.Locator)
	return nil
}

// LoadCities fetches and parses the static city grid metadata. Cities have
// an unrelated lifecycle: loaded once, never date-resolved.
func (s *Service) LoadCities(ctx context.Context) error {
	text, err := s.fetcher.FetchResource(ctx, s.citiesPath)
	if err != nil {
		return fmt.Errorf("loading city metadata from %q: %w", s.citiesPath, err)
	}

	cities := ParseCities(text)

	s.mu.Lock()
	s.cities = cities
	s.mu.Unlock()

	log.Printf("stations: loaded %d cities from %q", len(cities), s.citiesPath)
	return nil
}

// Cities returns the loaded city metadata in input order.
func (s *Service) Cities() []CityGridRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]CityGridRecord, len(s.cities))
	copy(result, s.cities)
	return result
}

// LastError returns the failure of the most recent snapshot load, or "" if
// it succeeded. The message is user-readable; a failed load must surface
// clearly rather than leave a silently stale view.
func (s *Service) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastErr == nil {
		return ""
	}
	return s.lastErr.Error()
}

// recordOutcome stores the load error unless a newer load has been issued.
func (s *Service) recordOutcome(gen uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen == s.issued {
		s.lastErr = err
	}
}
