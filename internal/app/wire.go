package app

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"gatelink/internal/domain"
	"gatelink/internal/gateway"
	"gatelink/internal/services/identity"
	"gatelink/internal/store"
)

// Wire bundles the stores, services and gateway client for the CLI.
type Wire struct {
	Logger    *slog.Logger
	Identity  *identity.Service
	Endpoints domain.EndpointStore
	Gateway   *gateway.Client
	Metrics   *prometheus.Registry
}

// NewWire constructs the dependency graph from cfg. sink may be nil.
func NewWire(cfg Config, logger *slog.Logger, sink domain.MessageSink) (*Wire, error) {
	if cfg.Home == "" {
		return nil, fmt.Errorf("app: home directory not set")
	}
	if logger == nil {
		logger = slog.Default()
	}

	// File-based stores
	identityStore := store.NewIdentityFileStore(cfg.Home, cfg.Passphrase)
	endpointStore := store.NewEndpointFileStore(cfg.Home)

	idsvc := identity.New(identityStore, logger)
	registry := prometheus.NewRegistry()

	opts := []gateway.Option{
		gateway.WithLogger(logger),
		gateway.WithEndpointStore(endpointStore),
		gateway.WithMetricsRegistry(registry),
		gateway.WithPushTokenProvider(NewStaticPushProvider(cfg.PushPlatform, cfg.PushToken)),
	}
	if sink != nil {
		opts = append(opts, gateway.WithMessageSink(sink))
	}
	client := gateway.New(cfg.Gateway, idsvc, opts...)

	return &Wire{
		Logger:    logger,
		Identity:  idsvc,
		Endpoints: endpointStore,
		Gateway:   client,
		Metrics:   registry,
	}, nil
}

// Close releases the gateway client.
func (w *Wire) Close() error { return w.Gateway.Close() }
