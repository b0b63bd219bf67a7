package consumer

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"seedharvest/pkg/config"
	errs "seedharvest/pkg/errors"
	"seedharvest/pkg/logger"
)

// Entry is one torrent known to the download consumer
type Entry struct {
	Hash string
	Name string
}

// AddOptions controls how an artifact is handed to the consumer
type AddOptions struct {
	Destination string
	Labels      []string
	Paused      bool
}

// Added describes a torrent accepted by the consumer
type Added struct {
	Hash string
	Name string
}

// Gateway is the download consumer: the torrent client that seeds what the
// harvester acquires. Hashes are always lower-case hex.
type Gateway interface {
	ListAll(ctx context.Context) ([]Entry, error)
	Add(ctx context.Context, artifact []byte, opts AddOptions) (Added, error)
}

// New selects a backend by cfg.Kind
func New(cfg *config.ConsumerConfig, log logger.Logger) (Gateway, error) {
	switch strings.ToLower(cfg.Kind) {
	case "", "transmission":
		return NewTransmission(cfg, log)
	case "qbittorrent":
		return NewQBittorrent(cfg, log), nil
	default:
		return nil, errs.Config("consumer", fmt.Errorf("unknown consumer kind %q", cfg.Kind))
	}
}

// OptionsFromConfig returns the add options configured for every artifact
func OptionsFromConfig(cfg *config.ConsumerConfig) AddOptions {
	return AddOptions{
		Destination: cfg.SavePath,
		Labels:      append([]string(nil), cfg.Labels...),
		Paused:      cfg.Paused,
	}
}

// session lazily creates a backend client on first use and drops it after
// a failed operation so the next call reconnects. Every dial starts a new
// generation; a failure only drops the client of the generation it saw.
type session[T any] struct {
	mu     sync.Mutex
	client T
	ready  bool
	gen    uint64
	dial   func(ctx context.Context) (T, error)
	logger logger.Logger
}

func (s *session[T]) get(ctx context.Context) (T, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready {
		return s.client, s.gen, nil
	}

	client, err := s.dial(ctx)
	if err != nil {
		var zero T
		return zero, 0, err
	}
	s.gen++
	s.client = client
	s.ready = true
	s.logger.DebugWithFields("Connected to download consumer", map[string]interface{}{"generation": s.gen})
	return client, s.gen, nil
}

// invalidate drops the client of generation gen. A newer connection made
// by another caller in the meantime is kept.
func (s *session[T]) invalidate(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready || s.gen != gen {
		return
	}
	s.logger.DebugWithFields("Dropping download consumer connection", map[string]interface{}{"generation": gen})
	var zero T
	s.client = zero
	s.ready = false
}

func normalizeHash(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}
