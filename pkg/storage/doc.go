// Package storage keeps downloaded torrent files.
//
// Artifacts are addressed by a deterministic key derived from the catalog
// item id, so an artifact already on disk is never fetched twice. The
// backing store is a gocloud.dev/blob bucket: a local directory by default,
// or any bucket URL (mem://, s3://...) when configured.
//
//	store, err := storage.Open(ctx, "./torrents", "mteam", ".torrent")
//	key := store.Key("12345") // mteam.12345.torrent
//	ok, err := store.Exists(ctx, key)
package storage
