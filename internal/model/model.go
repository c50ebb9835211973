// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// CredentialRecord is the single stored Google credential for one user.
// Token fields hold authenticated-encrypted blobs; plaintext never leaves
// the cipher / lifecycle-manager boundary.
type CredentialRecord struct {
	UserID          uuid.UUID // PK, 1:1 with the account owner
	AccessTokenEnc  string    // AEAD blob, short-lived bearer token
	RefreshTokenEnc string    // AEAD blob, long-lived refresh token
	ExpiresAt       time.Time // expiry of the currently stored access token
	CreatedAt       time.Time
	UpdatedAt       time.Time // bumped on every refresh
}

// RefreshedToken is the provider's answer to a refresh_token grant.
type RefreshedToken struct {
	AccessToken  string
	ExpiresIn    int64  // seconds; 0 when the provider omitted a lifetime
	RefreshToken string // non-empty only if the provider rotated it
}

// TokenInfo is the provider's introspection result for an access token.
type TokenInfo struct {
	Scope     string // space-separated granted scopes
	Email     string
	ExpiresIn int64 // seconds
}

// ConnectionStatus reports whether a user's Gmail connection is usable.
// A fresh token with a missing send scope is still not Valid.
type ConnectionStatus struct {
	Valid     bool   `json:"valid"`
	Email     string `json:"email,omitempty"`
	ExpiresIn int64  `json:"expires_in,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// CV is one uploaded CV document; the file itself lives in blob storage
// under StorageKey.
type CV struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	FileName   string
	StorageKey string
	SizeBytes  int64
	UploadedAt time.Time
}

// TailorResult is the opaque answer from the AI optimization service.
type TailorResult struct {
	Score       int    `json:"score"`
	DocumentURL string `json:"document_url"`
	EmailSent   bool   `json:"email_sent"`
}

// Application is one tailored-CV submission against a job description.
type Application struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	CVID           uuid.UUID
	JobDescription string
	Score          int
	DocumentURL    string
	EmailSent      bool
	CreatedAt      time.Time
}
