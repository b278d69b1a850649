package snapshot

import (
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Source serves the current snapshot. Readers always see a complete
// snapshot; Reload swaps in a new one only after it validated.
type Source struct {
	path    string
	logger  zerolog.Logger
	current atomic.Pointer[Snapshot]
}

// NewSource loads the snapshot at path, or the built-in defaults when path is empty.
func NewSource(path string, logger zerolog.Logger) (*Source, error) {
	s := &Source{path: path, logger: logger}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Static wraps a fixed snapshot. Reload keeps it.
func Static(snap *Snapshot) *Source {
	s := &Source{logger: zerolog.Nop()}
	s.current.Store(snap)
	return s
}

// Current returns the active snapshot.
func (s *Source) Current() *Snapshot {
	if s == nil {
		return nil
	}
	return s.current.Load()
}

// Reload re-reads the snapshot file. On failure the previous snapshot stays active.
func (s *Source) Reload() error {
	if s.path == "" {
		if s.current.Load() == nil {
			s.current.Store(Default())
		}
		return nil
	}
	snap, err := LoadFile(s.path)
	if err != nil {
		s.logger.Error().Err(err).Str("path", s.path).Msg("snapshot_reload_failed")
		return err
	}
	prev := s.current.Swap(snap)
	event := s.logger.Info().Str("path", s.path).Str("version", snap.Version)
	if prev != nil {
		event = event.Str("previous_version", prev.Version)
	}
	event.Msg("snapshot_loaded")
	return nil
}
