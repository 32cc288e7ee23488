package monitor

import "time"

// Status is the last observed reachability of the client's dependencies.
// Optional dependencies that are not configured report false.
type Status struct {
	Backend         bool      `json:"backend" yaml:"backend"`
	PostgreSQL      bool      `json:"postgresql" yaml:"postgresql"`
	Redis           bool      `json:"redis" yaml:"redis"`
	CredentialStore bool      `json:"credential_store" yaml:"credential_store"`
	StoredKeys      int       `json:"stored_keys" yaml:"stored_keys"`
	LastCheck       time.Time `json:"last_check" yaml:"last_check"`
}
