package domain

import "time"

// AuditEntry is one append-only audit log record.
type AuditEntry struct {
	ID        int64
	UserEmail string
	Action    string
	Status    string
	Detail    string
	CreatedAt time.Time
}

// Audit statuses.
const (
	AuditStatusAllowed = "ALLOWED"
	AuditStatusDenied  = "DENIED"
	AuditStatusError   = "ERROR"
)

// AuditFilter narrows an audit listing.
type AuditFilter struct {
	UserEmail *string
	Action    *string
	Status    *string
	Since     *time.Time
	Page      PageRequest
}
