// Package consumer talks to the torrent client that seeds acquired
// artifacts. Transmission and qBittorrent are supported behind the same
// Gateway interface; both connect lazily and reconnect after a failure.
package consumer
