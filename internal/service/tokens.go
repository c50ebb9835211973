// Package service contains application services for the credential
// lifecycle, CV management and the optimize-and-send flow.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/jobpilot/jobpilot/internal/crypto"
	"github.com/jobpilot/jobpilot/internal/errs"
	"github.com/jobpilot/jobpilot/internal/googleauth"
	"github.com/jobpilot/jobpilot/internal/model"
	"github.com/jobpilot/jobpilot/internal/repository"
)

const (
	// refreshMargin is how much validity must remain before we hand out a
	// stored token without refreshing. Refreshing proactively keeps a token
	// from expiring mid-use.
	refreshMargin = 5 * time.Minute

	// defaultTokenLifetime applies when the provider omits expires_in.
	defaultTokenLifetime = time.Hour
)

var refreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "jobpilot_token_refresh_total",
	Help: "Provider refresh calls by outcome.",
}, []string{"result"})

// GoogleProvider defines the upstream OAuth operations the lifecycle
// manager depends on.
type GoogleProvider interface {
	// Refresh exchanges a refresh token for a new access token.
	Refresh(ctx context.Context, refreshToken string) (*model.RefreshedToken, error)
	// Introspect reports scopes, account email and remaining lifetime.
	Introspect(ctx context.Context, accessToken string) (*model.TokenInfo, error)
}

// TokenService is the single chokepoint through which consumers obtain a
// guaranteed-fresh plaintext access token for a user.
type TokenService interface {
	// GetValidAccessToken returns a currently usable access token,
	// transparently refreshing and persisting when near or past expiry.
	// Note this read-shaped call may write: a refresh upserts the record.
	GetValidAccessToken(ctx context.Context, userID uuid.UUID) (string, error)
	// CheckConnectionStatus reports whether the connection is usable,
	// including whether the token carries the gmail.send scope.
	CheckConnectionStatus(ctx context.Context, userID uuid.UUID) (model.ConnectionStatus, error)
	// SaveTokens seeds the credential record after the consent callback.
	SaveTokens(ctx context.Context, userID uuid.UUID, accessToken, refreshToken string, expiresAt time.Time) error
	// Disconnect deletes the credential record. Idempotent.
	Disconnect(ctx context.Context, userID uuid.UUID) error
}

// TokenServiceImpl implements TokenService over the credential repository,
// the cipher, and the provider client.
type TokenServiceImpl struct {
	creds    repository.CredentialRepository
	cipher   *crypto.Cipher
	provider GoogleProvider
	log      *zap.Logger

	margin          time.Duration
	defaultLifetime time.Duration

	// locksMu guards locks; one mutex per user serializes the
	// decide-to-refresh → call provider → persist critical section.
	locksMu sync.Mutex
	locks   map[uuid.UUID]*sync.Mutex
}

// NewTokenService constructs the lifecycle manager with its dependencies.
func NewTokenService(creds repository.CredentialRepository, cipher *crypto.Cipher, provider GoogleProvider, log *zap.Logger) *TokenServiceImpl {
	return &TokenServiceImpl{
		creds:           creds,
		cipher:          cipher,
		provider:        provider,
		log:             log,
		margin:          refreshMargin,
		defaultLifetime: defaultTokenLifetime,
		locks:           make(map[uuid.UUID]*sync.Mutex),
	}
}

func (s *TokenServiceImpl) userLock(userID uuid.UUID) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	mu, ok := s.locks[userID]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[userID] = mu
	}
	return mu
}

// fresh reports whether the stored access token is still valid beyond the
// safety margin.
func (s *TokenServiceImpl) fresh(rec *model.CredentialRecord) bool {
	return time.Until(rec.ExpiresAt) > s.margin
}

// GetValidAccessToken implements the lifecycle contract. The happy path
// with a fresh token makes no network call; otherwise the refresh is
// serialized per user so rotating refresh tokens stay safe.
func (s *TokenServiceImpl) GetValidAccessToken(ctx context.Context, userID uuid.UUID) (string, error) {
	rec, err := s.loadRecord(ctx, userID)
	if err != nil {
		return "", err
	}
	// The refresh token is checked up front even when the access token is
	// still fresh: a record that cannot be refreshed is already corrupt and
	// the caller should learn that now, not at the next expiry.
	if _, err := s.decryptOrCorrupt(userID, rec.RefreshTokenEnc); err != nil {
		return "", err
	}
	if s.fresh(rec) {
		return s.decryptOrCorrupt(userID, rec.AccessTokenEnc)
	}

	mu := s.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	// A concurrent caller may have refreshed while we waited for the lock;
	// the persisted record is authoritative, so look again.
	rec, err = s.loadRecord(ctx, userID)
	if err != nil {
		return "", err
	}
	if s.fresh(rec) {
		return s.decryptOrCorrupt(userID, rec.AccessTokenEnc)
	}

	refreshToken, err := s.decryptOrCorrupt(userID, rec.RefreshTokenEnc)
	if err != nil {
		return "", err
	}

	newTok, err := s.provider.Refresh(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, errs.ErrRefreshRejected) {
			// The record stays untouched: a present-but-failing refresh
			// token is a distinguishable state, not one to silently erase.
			refreshTotal.WithLabelValues("rejected").Inc()
			s.log.Warn("refresh token rejected by provider", zap.String("user_id", userID.String()))
			return "", errs.ErrReauthRequired
		}
		refreshTotal.WithLabelValues("unavailable").Inc()
		return "", err
	}

	accessEnc, err := s.cipher.Encrypt(newTok.AccessToken)
	if err != nil {
		return "", err
	}
	refreshEnc := rec.RefreshTokenEnc // carried over unless the provider rotated it
	if newTok.RefreshToken != "" {
		if refreshEnc, err = s.cipher.Encrypt(newTok.RefreshToken); err != nil {
			return "", err
		}
	}

	lifetime := s.defaultLifetime
	if newTok.ExpiresIn > 0 {
		lifetime = time.Duration(newTok.ExpiresIn) * time.Second
	}
	expiresAt := time.Now().Add(lifetime)

	if err := s.creds.Upsert(ctx, userID, accessEnc, refreshEnc, expiresAt); err != nil {
		return "", err
	}
	refreshTotal.WithLabelValues("ok").Inc()
	s.log.Info("access token refreshed",
		zap.String("user_id", userID.String()),
		zap.Time("expires_at", expiresAt),
		zap.Bool("refresh_token_rotated", newTok.RefreshToken != ""),
	)
	return newTok.AccessToken, nil
}

// loadRecord maps a missing row to ErrNotConnected; store failures pass
// through untouched.
func (s *TokenServiceImpl) loadRecord(ctx context.Context, userID uuid.UUID) (*model.CredentialRecord, error) {
	rec, err := s.creds.Load(ctx, userID)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, errs.ErrNotConnected
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// decryptOrCorrupt turns an integrity failure into ErrCorruptCredential,
// logged distinctly so a key-rotation mismatch is actionable.
func (s *TokenServiceImpl) decryptOrCorrupt(userID uuid.UUID, blob string) (string, error) {
	plain, err := s.cipher.Decrypt(blob)
	if errors.Is(err, errs.ErrIntegrity) {
		s.log.Error("stored credential failed integrity check",
			zap.String("user_id", userID.String()))
		return "", errs.ErrCorruptCredential
	}
	if err != nil {
		return "", err
	}
	return plain, nil
}

// CheckConnectionStatus runs the token path and then introspects: a token
// can be fresh yet insufficiently scoped, and that still reads as invalid.
// Terminal credential states come back as reasons, not errors; transient
// store/provider failures stay errors.
func (s *TokenServiceImpl) CheckConnectionStatus(ctx context.Context, userID uuid.UUID) (model.ConnectionStatus, error) {
	token, err := s.GetValidAccessToken(ctx, userID)
	switch {
	case errors.Is(err, errs.ErrNotConnected):
		return model.ConnectionStatus{Reason: "not_connected"}, nil
	case errors.Is(err, errs.ErrReauthRequired):
		return model.ConnectionStatus{Reason: "reauth_required"}, nil
	case errors.Is(err, errs.ErrCorruptCredential):
		return model.ConnectionStatus{Reason: "corrupt_credential"}, nil
	case err != nil:
		return model.ConnectionStatus{}, err
	}

	info, err := s.provider.Introspect(ctx, token)
	if errors.Is(err, errs.ErrRefreshRejected) {
		return model.ConnectionStatus{Reason: "invalid_token"}, nil
	}
	if err != nil {
		return model.ConnectionStatus{}, err
	}

	if !hasScope(info.Scope, googleauth.SendScope) {
		return model.ConnectionStatus{Email: info.Email, Reason: "missing_scope"}, nil
	}
	return model.ConnectionStatus{Valid: true, Email: info.Email, ExpiresIn: info.ExpiresIn}, nil
}

func hasScope(granted, want string) bool {
	for _, s := range strings.Fields(granted) {
		if s == want {
			return true
		}
	}
	return false
}

// SaveTokens is the consent-callback persistence path: it seeds (or
// replaces) the credential record with freshly encrypted material.
func (s *TokenServiceImpl) SaveTokens(ctx context.Context, userID uuid.UUID, accessToken, refreshToken string, expiresAt time.Time) error {
	if accessToken == "" || refreshToken == "" {
		return fmt.Errorf("%w: access and refresh tokens are required", errs.ErrInvalidInput)
	}
	accessEnc, err := s.cipher.Encrypt(accessToken)
	if err != nil {
		return err
	}
	refreshEnc, err := s.cipher.Encrypt(refreshToken)
	if err != nil {
		return err
	}
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(s.defaultLifetime)
	}
	return s.creds.Upsert(ctx, userID, accessEnc, refreshEnc, expiresAt)
}

// Disconnect removes the stored credential; disconnecting an already
// disconnected user is not an error.
func (s *TokenServiceImpl) Disconnect(ctx context.Context, userID uuid.UUID) error {
	return s.creds.Delete(ctx, userID)
}
