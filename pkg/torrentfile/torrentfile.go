// Package torrentfile reads the pieces of a .torrent file the harvester
// needs for deduplication.
package torrentfile

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/anacrolix/torrent/metainfo"
)

// ErrNoInfo is returned for metainfo without an info dictionary
var ErrNoInfo = errors.New("torrent has no info dictionary")

// Meta is the subset of a torrent's metainfo used by the pipeline
type Meta struct {
	// InfoHash is the lower-case hex SHA-1 of the bencoded info dictionary
	InfoHash string
	Name     string
	Size     int64
}

// Parse decodes torrent bytes
func Parse(data []byte) (Meta, error) {
	mi, err := metainfo.Load(bytes.NewReader(data))
	if err != nil {
		return Meta{}, fmt.Errorf("decode torrent: %w", err)
	}
	if len(mi.InfoBytes) == 0 {
		return Meta{}, ErrNoInfo
	}

	info, err := mi.UnmarshalInfo()
	if err != nil {
		return Meta{}, fmt.Errorf("decode info dictionary: %w", err)
	}

	return Meta{
		InfoHash: strings.ToLower(mi.HashInfoBytes().HexString()),
		Name:     info.Name,
		Size:     info.TotalLength(),
	}, nil
}

// InfoHash returns the lower-case hex info-hash of torrent bytes
func InfoHash(data []byte) (string, error) {
	meta, err := Parse(data)
	if err != nil {
		return "", err
	}
	return meta.InfoHash, nil
}
