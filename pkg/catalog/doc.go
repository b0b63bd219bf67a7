// Package catalog is the client for the M-Team torrent catalog API.
//
// It lists catalog pages, requests per-item download URLs and fetches the
// torrent file itself. Listing and token calls share a courtesy rate
// limiter. Artifact responses are returned raw and judged by Classify,
// which recognises the upstream's throttling and quota messages.
package catalog
