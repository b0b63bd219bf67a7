// Package ledger keeps the durable record of which catalog items have been
// handed to the download consumer and which listing page the next run
// starts from.
//
// The state lives in a single JSON file that is always replaced atomically,
// so a crash mid-write leaves the previous version intact.
package ledger
