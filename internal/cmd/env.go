package cmd

import (
	"context"

	"github.com/Iron-Ham/streamledger/internal/config"
	"github.com/Iron-Ham/streamledger/internal/event"
	"github.com/Iron-Ham/streamledger/internal/logging"
	"github.com/Iron-Ham/streamledger/internal/stream"
)

// environment is what the workload commands build from the configuration.
type environment struct {
	cfg    *config.Config
	logger *logging.Logger
	bus    *event.Bus
	stream *stream.MemoryStream
}

func setup(ctx context.Context) (*environment, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return newEnvironment(ctx, cfg)
}

func newEnvironment(ctx context.Context, cfg *config.Config) (*environment, error) {
	logger, err := logging.NewLogger(cfg.Logging.File, cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	bus := event.NewBus(logger)

	s, err := newStream(ctx, cfg, logger, bus)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}
	return &environment{cfg: cfg, logger: logger, bus: bus, stream: s}, nil
}

// newStream builds and creates the configured stream.
func newStream(ctx context.Context, cfg *config.Config, logger *logging.Logger, bus *event.Bus) (*stream.MemoryStream, error) {
	resolver, err := cfg.Stream.Resolver()
	if err != nil {
		return nil, err
	}
	rep, err := cfg.Stream.Representation()
	if err != nil {
		return nil, err
	}
	strategy, err := cfg.Stream.ExistingStrategy()
	if err != nil {
		return nil, err
	}

	s, err := stream.New(cfg.Stream.Name,
		stream.WithResolver(resolver),
		stream.WithDefaultSerializer(rep),
		stream.WithBus(bus),
		stream.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	if err := s.Create(ctx, strategy); err != nil {
		return nil, err
	}
	return s, nil
}

func (e *environment) Close() error {
	return e.logger.Close()
}
