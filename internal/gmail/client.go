package gmail

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"finsync/internal/logging"
	"finsync/internal/model"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/sync/singleflight"
	gmailv1 "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// CredentialStore persists one OAuth credential per user.
type CredentialStore interface {
	PutCredential(ctx context.Context, userID string, c model.Credential) error
	// GetCredential returns model.ErrCredentialNotFound when nothing is stored.
	GetCredential(ctx context.Context, userID string) (model.Credential, error)
	DeleteCredential(ctx context.Context, userID string) error
}

// UserResolver tells the authorization flow whether a state's user exists.
type UserResolver interface {
	UserExists(ctx context.Context, userID string) (bool, error)
}

// NewOAuthConfig builds the Google OAuth client configuration.
// Scopes default to gmail.readonly.
func NewOAuthConfig(clientID, clientSecret, redirectURL string, scopes ...string) *oauth2.Config {
	if len(scopes) == 0 {
		scopes = []string{gmailv1.GmailReadonlyScope}
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       scopes,
		Endpoint:     google.Endpoint,
	}
}

// AuthFlow issues consent URLs and turns authorization codes into stored credentials.
type AuthFlow struct {
	cfg    *oauth2.Config
	creds  CredentialStore
	users  UserResolver
	states *StateCodec
	log    *zap.Logger
}

func NewAuthFlow(cfg *oauth2.Config, creds CredentialStore, users UserResolver, states *StateCodec, log *zap.Logger) *AuthFlow {
	return &AuthFlow{cfg: cfg, creds: creds, users: users, states: states, log: logging.OrNop(log)}
}

// configFor copies the shared config with a per-request redirect URI.
func (f *AuthFlow) configFor(redirectURI string) *oauth2.Config {
	c := *f.cfg
	if redirectURI != "" {
		c.RedirectURL = redirectURI
	}
	return &c
}

// ConsentURL returns the provider consent page for userID. Offline access and a
// forced prompt make Google return a refresh token every time.
func (f *AuthFlow) ConsentURL(userID, redirectURI string) (string, error) {
	state, err := f.states.Issue(userID)
	if err != nil {
		return "", err
	}
	return f.configFor(redirectURI).AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

// CompleteExchange consumes state, exchanges code and stores the resulting
// credential, replacing any earlier one. It returns the user id from state.
func (f *AuthFlow) CompleteExchange(ctx context.Context, code, state, redirectURI string) (string, error) {
	userID, err := f.states.Consume(state)
	if err != nil {
		return "", err
	}
	ok, err := f.users.UserExists(ctx, userID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: unknown user %q", model.ErrInvalidState, userID)
	}

	code = strings.TrimSpace(code)
	if code == "" {
		return "", fmt.Errorf("%w: empty authorization code", model.ErrExchangeFailed)
	}
	cfg := f.configFor(redirectURI)
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrExchangeFailed, err)
	}

	cred := credentialFromToken(tok, cfg.Scopes)
	if err := f.creds.PutCredential(ctx, userID, cred); err != nil {
		return "", err
	}
	f.log.Info("mailbox authorized",
		zap.String("user", userID),
		zap.Bool("offline", cred.CanRefresh()),
		zap.Time("expiry", cred.Expiry),
	)
	return userID, nil
}

// Revoke forgets the user's credential; the next import needs a new consent.
func (f *AuthFlow) Revoke(ctx context.Context, userID string) error {
	return f.creds.DeleteCredential(ctx, userID)
}

// refreshTimeout bounds a shared token refresh.
const refreshTimeout = 30 * time.Second

// ClientFactory hands out Gmail clients bound to a user's stored credential.
type ClientFactory struct {
	cfg   *oauth2.Config
	creds CredentialStore
	log   *zap.Logger
	opts  []option.ClientOption
	now   func() time.Time

	refreshes singleflight.Group
}

// NewClientFactory returns a factory; opts are passed to gmailv1.NewService
// after the authenticated HTTP client.
func NewClientFactory(cfg *oauth2.Config, creds CredentialStore, log *zap.Logger, opts ...option.ClientOption) *ClientFactory {
	return &ClientFactory{cfg: cfg, creds: creds, log: logging.OrNop(log), opts: opts, now: time.Now}
}

// ClientFor returns a Gmail service for userID. It fails with
// model.ErrNotAuthorized when no credential is stored and with
// model.ErrCredentialExpired when the token cannot be used or refreshed.
func (f *ClientFactory) ClientFor(ctx context.Context, userID string) (*gmailv1.Service, error) {
	cred, err := f.currentCredential(ctx, userID)
	if err != nil {
		return nil, err
	}
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(tokenFromCredential(cred)))
	opts := append([]option.ClientOption{option.WithHTTPClient(httpClient)}, f.opts...)
	svc, err := gmailv1.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return svc, nil
}

func (f *ClientFactory) currentCredential(ctx context.Context, userID string) (model.Credential, error) {
	cred, err := f.creds.GetCredential(ctx, userID)
	if errors.Is(err, model.ErrCredentialNotFound) {
		return model.Credential{}, fmt.Errorf("%w: %s", model.ErrNotAuthorized, userID)
	}
	if err != nil {
		return model.Credential{}, err
	}
	if !cred.NeedsRefresh(f.now()) {
		return cred, nil
	}
	if !cred.CanRefresh() {
		return model.Credential{}, fmt.Errorf("%w: token expires %s and no refresh token is stored",
			model.ErrCredentialExpired, cred.Expiry.Format(time.RFC3339))
	}

	// Concurrent requests for the same user share one refresh, detached from
	// any one caller's cancellation.
	ch := f.refreshes.DoChan(userID, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return f.refresh(rctx, userID, cred)
	})
	select {
	case <-ctx.Done():
		return model.Credential{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return model.Credential{}, res.Err
		}
		return res.Val.(model.Credential), nil
	}
}

func (f *ClientFactory) refresh(ctx context.Context, userID string, stale model.Credential) (model.Credential, error) {
	if cur, err := f.creds.GetCredential(ctx, userID); err == nil && !cur.NeedsRefresh(f.now()) {
		return cur, nil
	}

	// No access token, so the source must go to the token endpoint.
	tok, err := f.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: stale.RefreshToken}).Token()
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return model.Credential{}, fmt.Errorf("refresh: %w", err)
	}
	if err != nil {
		f.log.Warn("token refresh rejected", zap.String("user", userID), zap.Error(err))
		return model.Credential{}, fmt.Errorf("%w: refresh: %w", model.ErrCredentialExpired, err)
	}

	fresh := credentialFromToken(tok, stale.Scopes)
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = stale.RefreshToken
	}
	if err := f.creds.PutCredential(ctx, userID, fresh); err != nil {
		return model.Credential{}, err
	}
	f.log.Debug("token refreshed", zap.String("user", userID), zap.Time("expiry", fresh.Expiry))
	return fresh, nil
}

func credentialFromToken(tok *oauth2.Token, fallbackScopes []string) model.Credential {
	scopes := fallbackScopes
	if s, ok := tok.Extra("scope").(string); ok && strings.TrimSpace(s) != "" {
		scopes = strings.Fields(s)
	}
	return model.Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
		Scopes:       append([]string(nil), scopes...),
	}
}

func tokenFromCredential(c model.Credential) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    c.TokenType,
		Expiry:       c.Expiry,
	}
}
