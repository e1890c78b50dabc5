// Package storage provides persistence for the testrig metadata store.
// The store holds the database registry the host application reads, the
// test principals, and the persisted setup log.
//
// Per docs/plan.md: "Explicit over ambient" - everything the harness
// knows about the host lives in these records, not in process state.
package storage

import (
	"encoding/json"
	"fmt"
	"time"
)

// Database is a registry record for a connected database.
// Extra is a JSON blob of engine configuration the host application
// reads when it opens the connection; conditioning rewrites it.
type Database struct {
	ID        int64
	Name      string
	URI       string
	Backend   string
	Extra     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks that the record can be persisted.
func (d *Database) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("storage: database name cannot be empty")
	}
	if d.URI == "" {
		return fmt.Errorf("storage: database uri cannot be empty")
	}
	return nil
}

// ExtraMap decodes the extra-configuration blob. An empty blob decodes
// to an empty map, never nil.
func (d *Database) ExtraMap() (map[string]interface{}, error) {
	extra := make(map[string]interface{})
	if d.Extra == "" {
		return extra, nil
	}
	if err := json.Unmarshal([]byte(d.Extra), &extra); err != nil {
		return nil, fmt.Errorf("storage: invalid extra blob for %s: %w", d.Name, err)
	}
	return extra, nil
}

// SetExtraMap encodes the map back into the extra-configuration blob.
func (d *Database) SetExtraMap(extra map[string]interface{}) error {
	data, err := json.Marshal(extra)
	if err != nil {
		return fmt.Errorf("storage: cannot encode extra blob for %s: %w", d.Name, err)
	}
	d.Extra = string(data)
	return nil
}

// User is a test principal the host application authenticates against.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

// Validate checks that the record can be persisted.
func (u *User) Validate() error {
	if u.Username == "" {
		return fmt.Errorf("storage: username cannot be empty")
	}
	if u.PasswordHash == "" {
		return fmt.Errorf("storage: password hash cannot be empty")
	}
	return nil
}
