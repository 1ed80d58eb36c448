package domain

import "github.com/google/uuid"

// Instance is a tenant: a closed accounting world with its own accounts and
// ledger. Every other row is owned by an Instance through instance_id.
type Instance struct {
	ID       uuid.UUID
	Address  string
	Config   map[string]string
	Metadata map[string]string
}
