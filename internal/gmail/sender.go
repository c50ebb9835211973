// Package gmail sends mail on a user's behalf through the Gmail API,
// authenticated with tokens obtained from the credential lifecycle manager.
package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gofrs/uuid/v5"
	"golang.org/x/oauth2"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/jobpilot/jobpilot/internal/errs"
	"github.com/jobpilot/jobpilot/internal/service"
)

// apiClient abstracts the one Gmail call this package makes.
type apiClient interface {
	send(ctx context.Context, raw string) error
}

// Sender is the mail-send consumer of the token lifecycle manager.
type Sender struct {
	tokens    service.TokenService
	newClient func(ctx context.Context, accessToken string) (apiClient, error)
}

// NewSender constructs a Sender using the real Gmail API.
func NewSender(tokens service.TokenService) *Sender {
	return &Sender{tokens: tokens, newClient: newGmailClient}
}

func newGmailClient(ctx context.Context, accessToken string) (apiClient, error) {
	svc, err := gmailapi.NewService(ctx,
		option.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})))
	if err != nil {
		return nil, err
	}
	return &liveClient{svc: svc}, nil
}

type liveClient struct{ svc *gmailapi.Service }

func (c *liveClient) send(ctx context.Context, raw string) error {
	_, err := c.svc.Users.Messages.Send("me", &gmailapi.Message{Raw: raw}).Context(ctx).Do()
	return err
}

// Send delivers a plain-text message from the user's own address. If Gmail
// rejects the token as unauthorized (a concurrent refresh may have superseded
// the one we were handed) it fetches a fresh token and retries exactly once.
// Lifecycle failures propagate untranslated so the handler can tell
// "reconnect" from "try again".
func (s *Sender) Send(ctx context.Context, userID uuid.UUID, to, subject, body string) error {
	raw := rawMessage(to, subject, body)

	token, err := s.tokens.GetValidAccessToken(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.sendWith(ctx, token, raw); err != nil {
		if !isUnauthorized(err) {
			return mapSendErr(err)
		}
		token, err = s.tokens.GetValidAccessToken(ctx, userID)
		if err != nil {
			return err
		}
		if err := s.sendWith(ctx, token, raw); err != nil {
			return mapSendErr(err)
		}
	}
	return nil
}

// mapSendErr translates a Gmail 403 into the scope sentinel: the token is
// alive but was never granted gmail.send.
func mapSendErr(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusForbidden {
		return fmt.Errorf("%w: %s", errs.ErrScopeMissing, gerr.Message)
	}
	return fmt.Errorf("gmail send: %w", err)
}

func (s *Sender) sendWith(ctx context.Context, token, raw string) error {
	client, err := s.newClient(ctx, token)
	if err != nil {
		return err
	}
	return client.send(ctx, raw)
}

func isUnauthorized(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusUnauthorized
}

// rawMessage builds the RFC 2822 message Gmail expects, web-safe base64
// encoded.
func rawMessage(to, subject, body string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return base64.RawURLEncoding.EncodeToString([]byte(b.String()))
}
