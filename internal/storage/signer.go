package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/jobpilot/jobpilot/internal/errs"
)

// URLSigner mints and verifies time-limited download links for stored
// blobs, so the file endpoint needs no session auth.
type URLSigner struct {
	secret  []byte
	baseURL string
	ttl     time.Duration
}

// NewURLSigner builds a signer. baseURL is the external address the links
// are rooted at, ttl the lifetime of each link.
func NewURLSigner(secret, baseURL string, ttl time.Duration) *URLSigner {
	return &URLSigner{secret: []byte(secret), baseURL: baseURL, ttl: ttl}
}

// SignedURL returns an absolute URL for key valid until now+ttl.
func (s *URLSigner) SignedURL(key string) string {
	expires := time.Now().Add(s.ttl).Unix()
	sig := s.sign(key, expires)
	return fmt.Sprintf("%s/cvs/files/%s?expires=%d&sig=%s",
		s.baseURL, url.PathEscape(key), expires, sig)
}

// Verify checks the signature and expiry taken from a request. Expired or
// tampered links come back as errs.ErrUnauthorized.
func (s *URLSigner) Verify(key, expiresStr, sig string) error {
	expires, err := strconv.ParseInt(expiresStr, 10, 64)
	if err != nil {
		return errs.ErrUnauthorized
	}
	if time.Now().Unix() > expires {
		return errs.ErrUnauthorized
	}
	want := s.sign(key, expires)
	if !hmac.Equal([]byte(want), []byte(sig)) {
		return errs.ErrUnauthorized
	}
	return nil
}

func (s *URLSigner) sign(key string, expires int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s\n%d", key, expires)
	return hex.EncodeToString(mac.Sum(nil))
}
