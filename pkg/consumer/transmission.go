package consumer

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"

	"github.com/hekmon/transmissionrpc/v3"

	"seedharvest/pkg/config"
	errs "seedharvest/pkg/errors"
	"seedharvest/pkg/logger"
	"seedharvest/pkg/torrentfile"
)

// transmissionAPI is the subset of *transmissionrpc.Client in use
type transmissionAPI interface {
	TorrentGet(ctx context.Context, fields []string, ids []int64) ([]transmissionrpc.Torrent, error)
	TorrentAdd(ctx context.Context, payload transmissionrpc.TorrentAddPayload) (transmissionrpc.Torrent, error)
}

// Transmission is a Gateway backed by the Transmission RPC API
type Transmission struct {
	session *session[transmissionAPI]
}

// NewTransmission builds a Transmission gateway; nothing is contacted
// until the first call.
func NewTransmission(cfg *config.ConsumerConfig, log logger.Logger) (*Transmission, error) {
	endpoint, err := TransmissionEndpoint(cfg)
	if err != nil {
		return nil, errs.Config("consumer", err)
	}
	return newTransmission(func(ctx context.Context) (transmissionAPI, error) {
		return transmissionrpc.New(endpoint, nil)
	}, log), nil
}

func newTransmission(dial func(ctx context.Context) (transmissionAPI, error), log logger.Logger) *Transmission {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Transmission{session: &session[transmissionAPI]{
		dial:   dial,
		logger: log.WithFields(map[string]interface{}{"component": "consumer", "kind": "transmission"}),
	}}
}

// TransmissionEndpoint builds the RPC URL from configuration
func TransmissionEndpoint(cfg *config.ConsumerConfig) (*url.URL, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("transmission host is required")
	}
	scheme := "http"
	if cfg.HTTPS {
		scheme = "https"
	}
	path := cfg.RPCPath
	if path == "" {
		path = "/transmission/rpc"
	}
	u := &url.URL{
		Scheme: scheme,
		Host:   cfg.Host,
		Path:   path,
	}
	if cfg.Port > 0 {
		u.Host = cfg.Host + ":" + strconv.Itoa(cfg.Port)
	}
	if cfg.Username != "" || cfg.Password != "" {
		u.User = url.UserPassword(cfg.Username, cfg.Password)
	}
	return u, nil
}

// ListAll returns every torrent the daemon knows about
func (t *Transmission) ListAll(ctx context.Context) ([]Entry, error) {
	client, gen, err := t.session.get(ctx)
	if err != nil {
		return nil, errs.Consumer("connect", err)
	}

	torrents, err := client.TorrentGet(ctx, []string{"hashString", "name"}, nil)
	if err != nil {
		t.session.invalidate(gen)
		return nil, errs.Consumer("list torrents", err)
	}

	entries := make([]Entry, 0, len(torrents))
	for _, tor := range torrents {
		if tor.HashString == nil {
			continue
		}
		entry := Entry{Hash: normalizeHash(*tor.HashString)}
		if tor.Name != nil {
			entry.Name = *tor.Name
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Add uploads the artifact as base64 metainfo
func (t *Transmission) Add(ctx context.Context, artifact []byte, opts AddOptions) (Added, error) {
	client, gen, err := t.session.get(ctx)
	if err != nil {
		return Added{}, errs.Consumer("connect", err)
	}

	metainfo := base64.StdEncoding.EncodeToString(artifact)
	payload := transmissionrpc.TorrentAddPayload{
		MetaInfo: &metainfo,
		Paused:   &opts.Paused,
		Labels:   opts.Labels,
	}
	if opts.Destination != "" {
		dir := opts.Destination
		payload.DownloadDir = &dir
	}

	tor, err := client.TorrentAdd(ctx, payload)
	if err != nil {
		t.session.invalidate(gen)
		return Added{}, errs.Consumer("add torrent", err)
	}

	var added Added
	if tor.HashString != nil {
		added.Hash = normalizeHash(*tor.HashString)
	}
	if tor.Name != nil {
		added.Name = *tor.Name
	}
	if added.Hash == "" {
		if meta, err := torrentfile.Parse(artifact); err == nil {
			added.Hash = meta.InfoHash
			if added.Name == "" {
				added.Name = meta.Name
			}
		}
	}
	return added, nil
}
