// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "certchain/pkg/domain-errors"
)

// SessionID identifies an issuance session. Sessions are addressable only
// through the HTTP surface, so the id is opaque to clients.
type SessionID uuid.UUID

// CertificateID is the ledger key of a certificate. Any non-empty string is
// valid; CERT-<5 digits> is only the generated convention.
type CertificateID string

// NewSessionID returns a random session id.
func NewSessionID() SessionID {
	return SessionID(uuid.New())
}

// Parse functions - use at trust boundaries (handlers, CLI arguments).

func ParseSessionID(s string) (SessionID, error) {
	if s == "" {
		return SessionID(uuid.Nil), dErrors.New(dErrors.CodeInvalidInput, "session ID cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil || id == uuid.Nil {
		return SessionID(uuid.Nil), dErrors.New(dErrors.CodeInvalidInput, "invalid session ID")
	}
	return SessionID(id), nil
}

// ParseCertificateID trims surrounding whitespace; blank input is rejected.
func ParseCertificateID(s string) (CertificateID, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "certificate ID cannot be empty")
	}
	return CertificateID(trimmed), nil
}

func (id SessionID) String() string     { return uuid.UUID(id).String() }
func (id CertificateID) String() string { return string(id) }

func (id SessionID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id CertificateID) IsNil() bool { return id == "" }

// MarshalText encodes a session id in its canonical UUID form.
func (id SessionID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}
