// Package harvester drives the acquisition pipeline: it walks the catalog
// page by page from the ledger cursor, skips items that are already
// processed or already seeded, downloads new artifacts on a bounded worker
// pool and adds them to the download consumer.
//
// A run ends when the catalog returns an empty page, when the per-run
// dispatch cap is reached, or when its context is cancelled. The ledger is
// persisted after every page and on every exit path. An exhausted daily
// quota is the one abrupt exit: all workers stop, the ledger is saved and
// the process exits with status 1.
package harvester
