package consumer

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/autobrr/go-qbittorrent"

	"seedharvest/pkg/config"
	errs "seedharvest/pkg/errors"
	"seedharvest/pkg/logger"
	"seedharvest/pkg/torrentfile"
)

// qbitAPI is the subset of *qbittorrent.Client in use
type qbitAPI interface {
	LoginCtx(ctx context.Context) error
	GetTorrentsCtx(ctx context.Context, o qbittorrent.TorrentFilterOptions) ([]qbittorrent.Torrent, error)
	AddTorrentFromMemoryCtx(ctx context.Context, buf []byte, options map[string]string) error
}

// QBittorrent is a Gateway backed by the qBittorrent Web API
type QBittorrent struct {
	session *session[qbitAPI]
}

// NewQBittorrent builds a qBittorrent gateway; the first call logs in
func NewQBittorrent(cfg *config.ConsumerConfig, log logger.Logger) *QBittorrent {
	qcfg := qbittorrent.Config{
		Host:     QBittorrentHost(cfg),
		Username: cfg.Username,
		Password: cfg.Password,
	}
	return newQBittorrent(func(ctx context.Context) (qbitAPI, error) {
		client := qbittorrent.NewClient(qcfg)
		if err := client.LoginCtx(ctx); err != nil {
			return nil, fmt.Errorf("login: %w", err)
		}
		return client, nil
	}, log)
}

func newQBittorrent(dial func(ctx context.Context) (qbitAPI, error), log logger.Logger) *QBittorrent {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &QBittorrent{session: &session[qbitAPI]{
		dial:   dial,
		logger: log.WithFields(map[string]interface{}{"component": "consumer", "kind": "qbittorrent"}),
	}}
}

// QBittorrentHost builds the Web UI base URL from configuration
func QBittorrentHost(cfg *config.ConsumerConfig) string {
	scheme := "http"
	if cfg.HTTPS {
		scheme = "https"
	}
	host := cfg.Host
	if cfg.Port > 0 {
		host += ":" + strconv.Itoa(cfg.Port)
	}
	return scheme + "://" + host
}

// ListAll returns every torrent the client knows about
func (q *QBittorrent) ListAll(ctx context.Context) ([]Entry, error) {
	client, gen, err := q.session.get(ctx)
	if err != nil {
		return nil, errs.Consumer("connect", err)
	}

	torrents, err := client.GetTorrentsCtx(ctx, qbittorrent.TorrentFilterOptions{Filter: qbittorrent.TorrentFilterAll})
	if err != nil {
		q.session.invalidate(gen)
		return nil, errs.Consumer("list torrents", err)
	}

	entries := make([]Entry, 0, len(torrents))
	for _, tor := range torrents {
		if tor.Hash == "" {
			continue
		}
		entries = append(entries, Entry{Hash: normalizeHash(tor.Hash), Name: tor.Name})
	}
	return entries, nil
}

// Add uploads the artifact from memory. The Web API does not report the
// info-hash of an added torrent, so it is computed from the artifact.
func (q *QBittorrent) Add(ctx context.Context, artifact []byte, opts AddOptions) (Added, error) {
	meta, err := torrentfile.Parse(artifact)
	if err != nil {
		return Added{}, errs.Consumer("add torrent", err)
	}

	client, gen, err := q.session.get(ctx)
	if err != nil {
		return Added{}, errs.Consumer("connect", err)
	}

	options := map[string]string{
		"paused": strconv.FormatBool(opts.Paused),
	}
	if opts.Destination != "" {
		options["savepath"] = opts.Destination
	}
	if len(opts.Labels) > 0 {
		options["tags"] = strings.Join(opts.Labels, ",")
	}

	if err := client.AddTorrentFromMemoryCtx(ctx, artifact, options); err != nil {
		q.session.invalidate(gen)
		return Added{}, errs.Consumer("add torrent", err)
	}

	return Added{Hash: meta.InfoHash, Name: meta.Name}, nil
}
