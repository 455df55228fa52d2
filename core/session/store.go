package session

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/m3rciful/salonbot/core/logger"
)

const component = "session"

// Store keeps session records, calendar markers and activity timestamps.
// All three maps are guarded by a single mutex and change together.
type Store struct {
	mu      sync.Mutex
	records map[ID]*Record
	markers map[ID]string
	seen    map[ID]time.Time

	now       func() time.Time
	newMarker func() string

	// beforeRemove is called ahead of each map deletion in HardClear.
	beforeRemove func(part string)
}

// Option customises a Store.
type Option func(*Store)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMarkerSource replaces the calendar marker generator.
func WithMarkerSource(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newMarker = fn
		}
	}
}

// NewStore constructs an empty Store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		records:   make(map[ID]*Record),
		markers:   make(map[ID]string),
		seen:      make(map[ID]time.Time),
		now:       time.Now,
		newMarker: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the store clock reading.
func (s *Store) Now() time.Time {
	return s.now()
}

// GetOrCreate returns the record for id, allocating it on first use.
// The activity timestamp is refreshed either way. The returned pointer is
// shared; mutate it only through Mutate or Update.
func (s *Store) GetOrCreate(id ID) (*Record, error) {
	if !id.Valid() {
		return nil, ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateLocked(id), nil
}

func (s *Store) getOrCreateLocked(id ID) *Record {
	rec, ok := s.records[id]
	if !ok {
		rec = &Record{Stage: StageIdle}
		s.records[id] = rec
		logger.Debug(context.Background(), component, "session.create",
			slog.Int64("chat_id", int64(id)),
		)
	}
	s.seen[id] = s.now()
	return rec
}

// Get returns a copy of the record without touching its activity timestamp.
func (s *Store) Get(id ID) (Record, bool) {
	if !id.Valid() {
		return Record{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return Record{}, false
	}
	return rec.Clone(), true
}

// Touch refreshes the activity timestamp of an existing record.
func (s *Store) Touch(id ID) bool {
	if !id.Valid() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return false
	}
	s.seen[id] = s.now()
	return true
}

// LastActivity returns the activity timestamp recorded for id.
func (s *Store) LastActivity(id ID) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts, ok := s.seen[id]
	return ts, ok
}

// Mutate runs fn on the record for id under the store lock, creating the
// record when needed and refreshing its activity.
func (s *Store) Mutate(id ID, fn func(*Record) error) error {
	if !id.Valid() {
		return ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.getOrCreateLocked(id)
	return guardErr(func() error { return fn(rec) })
}

// Update runs fn on an existing record under the store lock.
// It does not refresh activity and returns ErrNotFound when id is unknown.
func (s *Store) Update(id ID, fn func(*Record) error) error {
	if !id.Valid() {
		return ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return ErrNotFound
	}
	return guardErr(func() error { return fn(rec) })
}

// IssueMarker binds a fresh calendar marker to an existing session.
func (s *Store) IssueMarker(id ID) (string, error) {
	if !id.Valid() {
		return "", ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return "", ErrNotFound
	}
	marker := s.newMarker()
	s.markers[id] = marker
	return marker, nil
}

// Marker returns the calendar marker bound to id.
func (s *Store) Marker(id ID) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markers[id]
	return m, ok
}

// DropMarker removes the calendar marker bound to id.
func (s *Store) DropMarker(id ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.markers, id)
}

// Stats reports the size of each map.
type Stats struct {
	Records    int
	Markers    int
	Timestamps int
}

// Stats returns current map sizes.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Records:    len(s.records),
		Markers:    len(s.markers),
		Timestamps: len(s.seen),
	}
}

// Len returns the number of live records.
func (s *Store) Len() int {
	return s.Stats().Records
}

// SoftClear resets the transient state of a record and drops its calendar
// marker. Unless preserveBooking is set, the chosen service, master, date and
// time are cleared as well and the stage returns to idle. The record itself
// stays in the store.
func (s *Store) SoftClear(id ID, preserveBooking, verbose bool) ClearResult {
	ctx := context.Background()
	if !id.Valid() {
		if verbose {
			logger.Warn(ctx, component, "session.soft_clear",
				slog.String("status", "fail"),
				slog.String("reason", "invalid_id"),
			)
		}
		return ClearFailed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		if verbose {
			logger.Info(ctx, component, "session.soft_clear",
				slog.String("status", "skip"),
				slog.Int64("chat_id", int64(id)),
				slog.String("reason", "not_found"),
			)
		}
		return ClearNotFound
	}

	_, hadMarker := s.markers[id]
	err := guardErr(func() error {
		rec.clearTransient()
		if !preserveBooking {
			rec.clearBooking()
		}
		delete(s.markers, id)
		return nil
	})
	if err != nil {
		logger.Error(ctx, component, "session.soft_clear",
			slog.String("status", "fail"),
			slog.Int64("chat_id", int64(id)),
			slog.String("err", err.Error()),
		)
		return ClearFailed
	}
	if verbose {
		logger.Info(ctx, component, "session.soft_clear",
			slog.String("status", "ok"),
			slog.Int64("chat_id", int64(id)),
			slog.Bool("preserve_booking", preserveBooking),
			slog.Bool("had_marker", hadMarker),
		)
	}
	return Cleared
}

// HardClear removes id from every map.
//
// When a part is already absent and force is false the remaining parts are
// still removed but false is returned. With force the call succeeds regardless.
// If takeBackup is set and the removal faults midway, the snapshot taken
// beforehand is restored so the maps stay consistent; a forced call still
// reports success in that case.
func (s *Store) HardClear(id ID, force, takeBackup bool) bool {
	if !id.Valid() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hardClearLocked(id, force, takeBackup)
}

type backup struct {
	record    *Record
	marker    string
	hasMarker bool
	seen      time.Time
	hasSeen   bool
}

func (s *Store) snapshotLocked(id ID) *backup {
	b := &backup{}
	rec, hasRecord := s.records[id]
	b.record = rec
	b.marker, b.hasMarker = s.markers[id]
	b.seen, b.hasSeen = s.seen[id]
	if !hasRecord && !b.hasMarker && !b.hasSeen {
		return nil
	}
	return b
}

func (s *Store) restoreLocked(id ID, b *backup) {
	if b.record != nil {
		s.records[id] = b.record
	}
	if b.hasMarker {
		s.markers[id] = b.marker
	}
	if b.hasSeen {
		s.seen[id] = b.seen
	}
}

func (s *Store) hardClearLocked(id ID, force, takeBackup bool) bool {
	var snap *backup
	if takeBackup {
		snap = s.snapshotLocked(id)
	}

	complete := true
	err := guardErr(func() error {
		s.remove("record", id, func() bool {
			_, ok := s.records[id]
			delete(s.records, id)
			return ok
		}, &complete)
		s.remove("marker", id, func() bool {
			_, ok := s.markers[id]
			delete(s.markers, id)
			return ok
		}, &complete)
		s.remove("timestamp", id, func() bool {
			_, ok := s.seen[id]
			delete(s.seen, id)
			return ok
		}, &complete)
		return nil
	})
	if err != nil {
		restored := force && snap != nil
		if restored {
			s.restoreLocked(id, snap)
		}
		logger.Error(context.Background(), component, "session.hard_clear",
			slog.String("status", "fail"),
			slog.Int64("chat_id", int64(id)),
			slog.Bool("restored", restored),
			slog.String("err", err.Error()),
		)
		return restored
	}
	return complete || force
}

func (s *Store) remove(part string, id ID, del func() bool, complete *bool) {
	if s.beforeRemove != nil {
		s.beforeRemove(part)
	}
	if !del() {
		*complete = false
	}
}

func (s *Store) presentLocked(id ID) bool {
	if _, ok := s.records[id]; ok {
		return true
	}
	if _, ok := s.markers[id]; ok {
		return true
	}
	_, ok := s.seen[id]
	return ok
}

// EvictIdle removes every identifier whose last activity is at least period
// before now. The scan and the removals run under one lock hold.
func (s *Store) EvictIdle(now time.Time, period time.Duration) ([]ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		evicted []ID
		result  *multierror.Error
	)
	err := guardErr(func() error {
		var stale []ID
		for id, last := range s.seen {
			if !last.Add(period).After(now) {
				stale = append(stale, id)
			}
		}
		for _, id := range stale {
			if !s.presentLocked(id) {
				continue
			}
			if !s.hardClearLocked(id, true, false) {
				result = multierror.Append(result, fmt.Errorf("evict %d: %w", id, ErrInternal))
				continue
			}
			evicted = append(evicted, id)
		}
		return nil
	})
	if err != nil {
		result = multierror.Append(result, err)
	}
	slices.Sort(evicted)
	return evicted, result.ErrorOrNil()
}

func guardErr(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrInternal, r)
		}
	}()
	return fn()
}
