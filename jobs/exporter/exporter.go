// Package exporter periodically ships new log entries to a sink.
package exporter

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"flashlog/infra/checkpoint"
	"flashlog/logstore"
	"flashlog/service"
)

var (
	exportedBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flashlog_export_bytes_total",
		Help: "Bytes acknowledged by the export sink.",
	}, []string{"consumer"})
	exportErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flashlog_export_errors_total",
		Help: "Export passes that ended in an error.",
	}, []string{"consumer"})
)

// Sink receives exported chunks. Send returns once the chunk is durable on
// the other side.
type Sink interface {
	Send(ctx context.Context, key, value []byte) error
}

// Checkpoints stores resume positions. *checkpoint.Store satisfies it.
type Checkpoints interface {
	Load(consumer string) (checkpoint.Checkpoint, bool, error)
	Save(consumer string, cur logstore.Cursor, shipped uint64) (checkpoint.Checkpoint, error)
}

type Config struct {
	// Consumer names the checkpoint and is the message key.
	Consumer  string
	ChunkSize int
	Interval  time.Duration
}

type Exporter struct {
	svc    *service.LogService
	ckpt   Checkpoints
	sink   Sink
	cfg    Config
	logger zerolog.Logger
}

// ------------------------------------------------
// CONSTRUCTOR
// ------------------------------------------------

func New(svc *service.LogService, ckpt Checkpoints, sink Sink, cfg Config, logger zerolog.Logger) *Exporter {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1024
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.Consumer == "" {
		cfg.Consumer = "default"
	}
	return &Exporter{
		svc:    svc,
		ckpt:   ckpt,
		sink:   sink,
		cfg:    cfg,
		logger: logger.With().Str("consumer", cfg.Consumer).Logger(),
	}
}

// ------------------------------------------------
// LOOP
// ------------------------------------------------

// Run exports once per interval until ctx is done. Failed passes are
// retried on the next tick from the last saved checkpoint.
func (e *Exporter) Run(ctx context.Context) {
	e.logger.Info().Dur("interval", e.cfg.Interval).Msg("exporter started")
	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info().Msg("exporter stopped")
			return
		case <-ticker.C:
			if _, err := e.RunOnce(ctx); err != nil && ctx.Err() == nil {
				e.logger.Warn().Err(err).Msg("export pass failed")
			}
		}
	}
}

// ------------------------------------------------
// ONE PASS
// ------------------------------------------------

// RunOnce ships every entry written since the saved checkpoint and returns
// the number of bytes acknowledged. The checkpoint is saved after each
// acknowledged chunk.
func (e *Exporter) RunOnce(ctx context.Context) (int, error) {
	cp, _, err := e.ckpt.Load(e.cfg.Consumer)
	if err != nil {
		exportErrors.WithLabelValues(e.cfg.Consumer).Inc()
		return 0, err
	}
	from, err := cp.Cursor()
	if err != nil {
		e.logger.Warn().Err(err).Msg("discarding unreadable checkpoint")
		from = logstore.Cursor{}
	}

	shipped, err := e.drain(ctx, from)
	if errors.Is(err, logstore.ErrInvalidArgument) && shipped == 0 && !from.IsZero() {
		// The checkpoint no longer matches what is on flash.
		e.logger.Warn().Err(err).Stringer("cursor", from).Msg("checkpoint rejected, exporting from oldest entry")
		shipped, err = e.drain(ctx, logstore.Cursor{})
	}
	if err != nil {
		exportErrors.WithLabelValues(e.cfg.Consumer).Inc()
		return shipped, err
	}
	if shipped > 0 {
		e.logger.Debug().Int("bytes", shipped).Msg("export pass shipped")
	}
	return shipped, nil
}

func (e *Exporter) drain(ctx context.Context, from logstore.Cursor) (int, error) {
	key := []byte(e.cfg.Consumer)
	shipped := 0
	_, err := e.svc.Drain(ctx, from, e.cfg.ChunkSize, func(chunk []byte, next logstore.Cursor) error {
		if err := e.sink.Send(ctx, key, chunk); err != nil {
			return err
		}
		shipped += len(chunk)
		exportedBytes.WithLabelValues(e.cfg.Consumer).Add(float64(len(chunk)))
		if _, err := e.ckpt.Save(e.cfg.Consumer, next, uint64(len(chunk))); err != nil {
			return errors.Wrap(err, "save checkpoint")
		}
		return nil
	})
	return shipped, err
}
