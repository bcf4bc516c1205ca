package models

import "github.com/google/uuid"

// CallerIdentity is resolved once per request and never mutated afterwards.
type CallerIdentity struct {
	// Identifier is the user id for authenticated callers and the client
	// network address otherwise. It keys the quota ledger.
	Identifier    string     `json:"identifier"`
	UserID        *uuid.UUID `json:"user_id,omitempty"`
	Authenticated bool       `json:"authenticated"`
	Premium       bool       `json:"premium"`
}

// AnonymousIdentity builds an identity for a caller without a usable token.
func AnonymousIdentity(address string) CallerIdentity {
	if address == "" {
		address = "unknown"
	}
	return CallerIdentity{Identifier: address}
}
