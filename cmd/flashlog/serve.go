package main

import (
	"context"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"flashlog/api/grpcserver"
	"flashlog/infra/checkpoint"
	"flashlog/infra/kafka"
	"flashlog/infra/logging"
	"flashlog/jobs/exporter"
	"flashlog/service"
)

func newServeCommand(a *app) *cobra.Command {
	var eraseOnCorrupt bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the log over gRPC and ship it to Kafka",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context(), eraseOnCorrupt)
		},
	}
	cmd.Flags().BoolVar(&eraseOnCorrupt, "erase-on-corrupt", false, "erase the image when it holds no valid log")
	return cmd
}

type closer interface{ Close() error }

func (a *app) serve(parent context.Context, eraseOnCorrupt bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---------------- Flash ----------------

	img, store, err := a.openStore()
	if img == nil {
		return err
	}
	defer img.Close()
	if err != nil {
		if !eraseOnCorrupt {
			return errors.Wrap(err, "attach log store (use --erase-on-corrupt to start fresh)")
		}
		a.logger.Warn().Err(err).Msg("erasing unreadable flash image")
		if err := store.EraseAndReinit(); err != nil {
			return err
		}
	}

	// ---------------- Service ----------------

	be, err := a.newBackend(store)
	if err != nil {
		return err
	}
	svc := service.NewLogService(store, be, a.logger.With().Str("component", "service").Logger())
	if last, err := svc.RecoverSequence(); err != nil {
		a.logger.Warn().Err(err).Msg("sequence recovery failed")
	} else {
		a.logger.Info().Uint64("last_seq", last).Msg("sequence recovered")
	}

	// The store logs through a.logger; only components outside the
	// service lock may log into flash.
	logger := a.logger
	if a.cfg.Server.LogToFlash {
		logger = logging.New(a.cfg.Logging, svc.RawWriter())
	}

	// ---------------- Exporter ----------------

	if a.cfg.Export.Enabled {
		job, closers, err := a.newExporter(svc, logger)
		if err != nil {
			return err
		}
		for _, c := range closers {
			defer c.Close()
		}
		go job.Run(ctx)
	}

	// ---------------- Metrics ----------------

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metrics := &http.Server{
		Addr:              a.cfg.Server.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server exited")
		}
	}()

	// ---------------- gRPC ----------------

	lis, err := net.Listen("tcp", a.cfg.Server.GRPCAddr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", a.cfg.Server.GRPCAddr)
	}
	gs := grpc.NewServer()
	grpcserver.Register(gs, grpcserver.NewServer(svc, logger.With().Str("component", "grpc").Logger()))

	go func() {
		<-ctx.Done()
		logger.Info().Msg("shutting down")
		gs.GracefulStop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metrics.Shutdown(shutdownCtx)
	}()

	logger.Info().
		Str("grpc", a.cfg.Server.GRPCAddr).
		Str("metrics", a.cfg.Server.MetricsAddr).
		Str("image", a.cfg.Flash.Path).
		Msg("flashlog serving")
	if err := gs.Serve(lis); err != nil {
		return errors.Wrap(err, "grpc server exited")
	}
	return img.Sync()
}

func (a *app) newExporter(svc *service.LogService, logger zerolog.Logger) (*exporter.Exporter, []closer, error) {
	e := a.cfg.Export
	ck, err := checkpoint.Open(e.CheckpointDir)
	if err != nil {
		return nil, nil, err
	}
	closers := []closer{ck}

	kc := kafka.Config{Brokers: e.Brokers, Topic: e.Topic, ClientID: "flashlog-" + e.Consumer}
	var sink exporter.Sink
	switch e.Driver {
	case "sarama":
		p, err := kafka.NewSaramaProducer(kc)
		if err != nil {
			_ = ck.Close()
			return nil, nil, err
		}
		sink = p
		closers = append(closers, p)
	default:
		p := kafka.NewProducer(kc)
		sink = p
		closers = append(closers, p)
	}

	job := exporter.New(svc, ck, sink, exporter.Config{
		Consumer:  e.Consumer,
		ChunkSize: e.ChunkSize,
		Interval:  e.Interval,
	}, logger.With().Str("component", "exporter").Logger())
	return job, closers, nil
}
