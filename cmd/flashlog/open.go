package main

import (
	"github.com/cockroachdb/errors"

	"flashlog/backend"
	"flashlog/infra/flash"
	"flashlog/logstore"
	"flashlog/record"
)

// openStore opens the configured image and attaches a store to it. Init
// failures are returned along with the store so callers can still erase.
func (a *app) openStore() (*flash.File, *logstore.Store, error) {
	f := a.cfg.Flash
	img, err := flash.OpenFile(f.Path, f.Size, f.SectorSize)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "open flash image %s", f.Path)
	}
	store := logstore.New(img, logstore.Config{
		Magic:        f.Magic,
		Version:      0,
		MaxSectors:   f.MaxSectors,
		Align:        f.Align,
		MaxEntrySize: f.MaxEntrySize,
	}, logstore.WithLogger(a.logger.With().Str("component", "logstore").Logger()))
	return img, store, store.Init()
}

func (a *app) newBackend(store *logstore.Store) (*backend.Backend, error) {
	format, err := record.ParseFormat(a.cfg.Backend.Format)
	if err != nil {
		return nil, err
	}
	return backend.New(store,
		backend.WithFormat(format),
		backend.WithMaxMessageSize(a.cfg.Backend.MaxMessageSize),
		backend.WithLogger(a.logger.With().Str("component", "backend").Logger()),
	), nil
}
