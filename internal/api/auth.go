package api

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/chirp-chat/chirp/internal/creds"
)

// LocalData clears account-owned local state. Implemented by the store;
// nil disables the purge.
type LocalData interface {
	PurgeAccountData() error
}

// Authenticator exchanges credentials for a session token and primes the
// credential store. Failures are terminal for the call: retries are
// user-initiated re-submissions, never automatic.
type Authenticator struct {
	client *Client
	creds  *creds.Store
	local  LocalData
	logger *zap.Logger
}

// NewAuthenticator creates an authenticator over the given API client and
// credential store. local holds the account's cached data and is wiped when
// a different account logs into the same session.
func NewAuthenticator(client *Client, store *creds.Store, local LocalData, logger *zap.Logger) *Authenticator {
	return &Authenticator{client: client, creds: store, local: local, logger: logger}
}

// Login authenticates with a username or email plus password. On success
// the credentials are persisted and returned.
func (a *Authenticator) Login(ctx context.Context, usernameOrEmail, password string) (*creds.Credentials, error) {
	result, err := a.client.Login(ctx, usernameOrEmail, password)
	if err != nil {
		return nil, err
	}
	return a.persist(result)
}

// Signup registers a new account. The server issues a token on success, so
// the session is primed exactly as after a login.
func (a *Authenticator) Signup(ctx context.Context, req *SignupRequest) (*creds.Credentials, error) {
	result, err := a.client.Signup(ctx, req)
	if err != nil {
		return nil, err
	}
	return a.persist(result)
}

// Logout clears the stored credentials.
func (a *Authenticator) Logout() error {
	a.logger.Info("clearing session credentials")
	return a.creds.Clear()
}

func (a *Authenticator) persist(result *LoginResult) (*creds.Credentials, error) {
	c := &creds.Credentials{
		Token:    result.Token,
		UserID:   result.UserID,
		Username: result.Username,
	}
	if !c.Complete() {
		return nil, &Error{Kind: KindServer, Message: "incomplete auth response"}
	}

	// A different account logging into this session must not see the
	// previous account's roster or conversations.
	if prev, ok := a.creds.Load(); ok && prev.UserID != c.UserID && a.local != nil {
		a.logger.Info("account changed, purging local data",
			zap.String("previous_user", prev.UserID), zap.String("user", c.UserID))
		if err := a.local.PurgeAccountData(); err != nil {
			return nil, fmt.Errorf("purge previous account data: %w", err)
		}
	}

	if err := a.creds.Save(c); err != nil {
		return nil, err
	}
	a.logger.Info("session authenticated", zap.String("username", c.Username))
	return c, nil
}
