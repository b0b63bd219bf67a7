// Package inventory keeps a short-lived copy of the info-hashes the
// download consumer already has, so the harvester can skip items that were
// added by hand or by an earlier run that lost its ledger.
package inventory
