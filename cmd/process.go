// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"errors"
	"fmt"
	"radar/internal/capture"
	"radar/internal/config"
	applog "radar/internal/log"
	"radar/internal/metrics"
	"radar/internal/pipeline"
	"radar/internal/radar"
	"radar/internal/transport"
	"radar/internal/transport/udp"
	"strings"

	"golang.org/x/sync/errgroup"
)

// NewSource returns the capture source selected by cfg.
func NewSource(cfg *config.Config) (capture.Source, error) {
	switch strings.ToLower(cfg.Capture.Source) {
	case "wav":
		return capture.NewWAVSource(cfg.Capture.Path, cfg.Radar.TraceLength), nil
	case "synthetic":
		chirp, err := cfg.ChirpParameters()
		if err != nil {
			return nil, err
		}
		return &capture.SyntheticSource{
			Chirp:       chirp,
			Traces:      cfg.Capture.Traces,
			TraceLength: cfg.Radar.TraceLength,
			Delay:       cfg.Capture.EchoDelay,
			Amplitude:   complex(cfg.Capture.EchoAmplitude, 0),
			NoiseSigma:  cfg.Capture.NoiseSigma,
			Seed:        cfg.Capture.Seed,
		}, nil
	default:
		return nil, fmt.Errorf("unknown capture source '%s'", cfg.Capture.Source)
	}
}

// NewPipeline synthesizes the replica and builds the configured stage chain.
func NewPipeline(cfg *config.Config, observer pipeline.Observer) (*pipeline.Pipeline, error) {
	replica, err := cfg.Replica()
	if err != nil {
		return nil, err
	}
	domain, err := cfg.InputDomain()
	if err != nil {
		return nil, err
	}
	stages, err := cfg.StageConfigs(replica)
	if err != nil {
		return nil, err
	}
	return pipeline.New(stages,
		pipeline.WithInputDomain(domain),
		pipeline.WithWorkers(cfg.Pipeline.Workers),
		pipeline.WithObserver(observer))
}

// NewTransports opens every configured consumer. The logging transport is
// always present.
func NewTransports(cfg *config.Config) ([]transport.Transport, error) {
	transports := []transport.Transport{transport.NewLoggingTransport()}

	if cfg.Transport.WebSocketAddr != "" {
		transports = append(transports, transport.NewWebSocketTransport(cfg.Transport.WebSocketAddr))
	}

	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewUDPSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			closeAll(transports)
			return nil, err
		}
		publisher, err := udp.NewUDPPublisher(cfg.Transport.UDPSendInterval, sender)
		if err != nil {
			sender.Close()
			closeAll(transports)
			return nil, err
		}
		publisher.Start()
		transports = append(transports, publisher)
	}

	return transports, nil
}

func closeAll(transports []transport.Transport) error {
	var errs []error
	for _, t := range transports {
		errs = append(errs, t.Close())
	}
	return errors.Join(errs...)
}

// Process runs one complete processing job: load, pipeline, record, publish.
// Cancelling ctx aborts the run; the metrics endpoint and transports are shut
// down before Process returns.
func Process(ctx context.Context, cfg *config.Config) (*pipeline.Result, error) {
	collector := metrics.NewCollector()

	g, gctx := errgroup.WithContext(ctx)
	serveCtx, stopServing := context.WithCancel(gctx)
	defer stopServing()
	if cfg.Metrics.Addr != "" {
		g.Go(func() error { return collector.Serve(serveCtx, cfg.Metrics.Addr) })
	}

	res, err := process(serveCtx, cfg, collector)

	stopServing()
	if serveErr := g.Wait(); serveErr != nil {
		err = errors.Join(err, fmt.Errorf("metrics server: %w", serveErr))
	}
	return res, err
}

func process(ctx context.Context, cfg *config.Config, observer pipeline.Observer) (*pipeline.Result, error) {
	source, err := NewSource(cfg)
	if err != nil {
		return nil, err
	}
	p, err := NewPipeline(cfg, observer)
	if err != nil {
		return nil, err
	}

	in, err := source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load traces: %w", err)
	}
	applog.Infof("Process: Loaded %d traces of %d samples (%s)", in.Len(), in.TraceLen(), in.Domain())
	if in.SampleRate() != cfg.Radar.SampleRate {
		return nil, fmt.Errorf("%w: traces sampled at %.6g Hz, replica synthesized at %.6g Hz",
			radar.ErrShapeMismatch, in.SampleRate(), cfg.Radar.SampleRate)
	}

	res, err := p.Run(ctx, in)
	if err != nil {
		return nil, err
	}
	for _, s := range res.Stages {
		applog.Infof("Process: Stage %d %s [%s] %d -> %d traces, %d -> %d samples, dropped %d, %s",
			s.Index, s.Kind, s.Params, s.InTraces, s.OutTraces, s.InLen, s.OutLen, s.Dropped, s.Duration)
	}

	if cfg.Output.Path != "" {
		gain, err := capture.NewRecorder(cfg.Output.Path, cfg.Output.BitDepth).Write(res.Buffer)
		if err != nil {
			return res, fmt.Errorf("failed to record result: %w", err)
		}
		applog.Infof("Process: Result saved to %s (gain %.3g)", cfg.Output.Path, gain)
	}

	transports, err := NewTransports(cfg)
	if err != nil {
		return res, err
	}
	gates := cfg.RangeGates()
	var errs []error
	for _, t := range transports {
		if err := transport.Publish(ctx, t, res, gates); err != nil {
			errs = append(errs, err)
		}
	}

	if cfg.Transport.WebSocketAddr != "" && len(errs) == 0 {
		applog.Infof("Process: Serving result on ws://%s/ws until interrupted", cfg.Transport.WebSocketAddr)
		<-ctx.Done()
	}

	errs = append(errs, closeAll(transports))
	return res, errors.Join(errs...)
}
