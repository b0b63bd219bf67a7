// Package downloader fetches torrent artifacts from the catalog into the
// artifact store and runs per-item work on a bounded worker pool.
package downloader
