package domain

import (
	"strings"
	"time"
)

// Integration is a connection to an external provider. The credential bag is
// opaque JSON, encrypted at rest and never returned in full.
type Integration struct {
	ID           string
	Provider     string
	Name         string
	Credentials  string // JSON blob, encrypted in storage
	LastTestOK   *bool
	LastTestedAt *time.Time
	CreatedBy    int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Redacted returns a copy safe to return to clients: the credential bag is
// replaced with a marker when present.
func (i Integration) Redacted() Integration {
	out := i
	if out.Credentials != "" {
		out.Credentials = "********"
	}
	return out
}

// CreateIntegrationRequest carries the fields for registering an integration.
type CreateIntegrationRequest struct {
	Provider    string
	Name        string
	Credentials string
}

// Validate checks required fields.
func (r *CreateIntegrationRequest) Validate() error {
	if strings.TrimSpace(r.Provider) == "" {
		return ErrValidation("provider is required")
	}
	if strings.TrimSpace(r.Name) == "" {
		return ErrValidation("integration name is required")
	}
	if strings.TrimSpace(r.Credentials) == "" {
		return ErrValidation("credentials are required")
	}
	return nil
}

// QueryTemplate is a saved, named SQL body that workflow steps and ad-hoc
// queries can reference.
type QueryTemplate struct {
	ID          string
	Name        string
	Description *string
	SQL         string
	CreatedBy   int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateTemplateRequest carries the fields for saving a template.
type CreateTemplateRequest struct {
	Name        string
	Description *string
	SQL         string
}

// Validate checks required fields.
func (r *CreateTemplateRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrValidation("template name is required")
	}
	if strings.TrimSpace(r.SQL) == "" {
		return ErrValidation("template sql is required")
	}
	return nil
}
