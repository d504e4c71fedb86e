package logstore

import (
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"flashlog/infra/fcb"
	"flashlog/infra/flash"
)

// Store is a flash-backed circular log. Construct with New and call Init
// before use.
type Store struct {
	area    flash.Area
	cfg     Config
	name    string
	logger  zerolog.Logger
	metrics metrics

	log      *fcb.FCB
	ready    bool
	maxEntry int
	// firstID seeds the sector ids of a log started on an erased area.
	firstID uint16
}

// New binds a store to area. It does not touch flash.
func New(area flash.Area, cfg Config, opts ...Option) *Store {
	s := &Store{
		area:   area,
		cfg:    cfg,
		name:   DefaultName,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics = newMetrics(s.name)
	return s
}

// Init attaches to the log already on flash, or starts an empty one. It
// never erases. An area with more sectors than MaxSectors is accepted and
// the excess is ignored.
func (s *Store) Init() error {
	s.setReady(false)

	sectors, err := s.area.Sectors(s.cfg.MaxSectors)
	if err != nil && !errors.Is(err, flash.ErrTooManySectors) {
		return markIO(err, "discover sectors")
	}

	log, err := fcb.New(s.area, fcb.Config{
		Magic:   s.cfg.Magic,
		Version: s.cfg.Version,
		Align:   s.cfg.Align,
		FirstID: s.firstID,
		Sectors: sectors,
	})
	if err != nil {
		s.logger.Error().Err(err).Int("sectors", len(sectors)).Msg("log store init failed")
		return markIO(err, "attach log")
	}

	s.log = log
	s.maxEntry = log.MaxPayload()
	if s.cfg.MaxEntrySize > 0 {
		s.maxEntry = min(s.maxEntry, s.cfg.MaxEntrySize)
	}
	s.setReady(true)

	st := log.Stats()
	s.logger.Info().
		Int("sectors", st.Sectors).
		Int("used_sectors", st.UsedSectors).
		Uint16("oldest_id", st.OldestID).
		Uint16("active_id", st.ActiveID).
		Msg("log store ready")
	return nil
}

// EraseAndReinit wipes the whole area, including sectors beyond
// MaxSectors, and starts an empty log. Sector ids continue past the ones
// of the erased log, so cursors saved before the erase are stale rather
// than pointing into new entries.
func (s *Store) EraseAndReinit() error {
	s.setReady(false)
	if s.log != nil {
		s.firstID = s.log.Stats().ActiveID + 1
	}
	if err := s.area.Erase(0, s.area.Size()); err != nil {
		s.logger.Error().Err(err).Msg("log store erase failed")
		return markIO(err, "erase area")
	}
	s.logger.Warn().Uint32("bytes", s.area.Size()).Msg("log store erased")
	return s.Init()
}

func (s *Store) Ready() bool {
	return s.ready
}

// MaxEntrySize is the largest payload Write accepts. Zero until Init.
func (s *Store) MaxEntrySize() int {
	if !s.ready {
		return 0
	}
	return s.maxEntry
}

// Stats reports ring occupancy. ok is false when the store is not ready.
func (s *Store) Stats() (st fcb.Stats, ok bool) {
	if !s.ready {
		return fcb.Stats{}, false
	}
	return s.log.Stats(), true
}

func (s *Store) setReady(v bool) {
	s.ready = v
	if v {
		s.metrics.ready.Set(1)
	} else {
		s.metrics.ready.Set(0)
	}
}

// disable takes the store out of service after an unrecoverable failure.
func (s *Store) disable(cause error) {
	s.setReady(false)
	s.logger.Error().Err(cause).Msg("log store disabled")
}
