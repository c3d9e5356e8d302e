package models

import "time"

// Provenance tags which source backed a canonical identity.
type Provenance string

const (
	ProvenanceManual     Provenance = "manual"
	ProvenanceRegistered Provenance = "registered"
)

// CanonicalIdentity is the reconciler's merged, deduplicated student view:
// one entry per unique business key, falling back to email when the key is
// absent. Account and registered-view values win over roster values for the
// same field; roster only backfills fields the account left empty.
type CanonicalIdentity struct {
	StudentID        string     `json:"studentId,omitempty"`
	Email            string     `json:"email,omitempty"`
	FirstName        string     `json:"firstName"`
	LastName         string     `json:"lastName"`
	Sex              string     `json:"sex,omitempty"`
	Course           string     `json:"course,omitempty"`
	Year             string     `json:"year,omitempty"`
	Section          string     `json:"section,omitempty"`
	Provenance       Provenance `json:"provenance"`
	IsRegisteredUser bool       `json:"isRegisteredUser"`

	// RosterInternalID is kept so callers can address the underlying
	// roster document when one exists.
	RosterInternalID string `json:"rosterInternalId,omitempty"`
	AccountID        string `json:"accountId,omitempty"`
}

// IntegrityWarning reports two records claiming the same key within one
// source. Non-fatal: the merge proceeds on the tie-break rule and the
// warning rides along on the snapshot.
type IntegrityWarning struct {
	Source      string `json:"source"`
	Key         string `json:"key"`
	DocumentIDs []string `json:"documentIds"`
}

// RegistrySnapshot is the reconciler output delivered to subscribers.
type RegistrySnapshot struct {
	Identities []CanonicalIdentity `json:"identities"`
	Warnings   []IntegrityWarning  `json:"warnings,omitempty"`
	ComputedAt time.Time           `json:"computedAt"`
}
