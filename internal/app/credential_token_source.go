package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// CredentialReader reads the stored credential.
type CredentialReader interface {
	Get(ctx context.Context) (string, error)
	Expiry(ctx context.Context) (time.Time, error)
}

// CredentialTokenSource serves the stored credential as an oauth2.Token.
// There is no refresh: an expired credential yields an error until the user
// logs in again.
type CredentialTokenSource struct {
	store CredentialReader
}

// Compile-time check to ensure CredentialTokenSource implements oauth2.TokenSource
var _ oauth2.TokenSource = (*CredentialTokenSource)(nil)

// NewCredentialTokenSource creates a CredentialTokenSource.
func NewCredentialTokenSource(store CredentialReader) (*CredentialTokenSource, error) {
	if store == nil {
		return nil, fmt.Errorf("missing credential store")
	}
	return &CredentialTokenSource{store: store}, nil
}

// Token returns the stored credential. Every call re-reads the store, so an
// expired credential is cleared the moment it is requested.
func (c *CredentialTokenSource) Token() (*oauth2.Token, error) {
	// oauth2.TokenSource.Token() has no context parameter (legacy interface limitation)
	ctx := context.Background()

	accessToken, err := c.store.Get(ctx)
	if err != nil {
		return nil, err
	}

	expiry, err := c.store.Expiry(ctx)
	if err != nil {
		return nil, err
	}

	return &oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		Expiry:      expiry,
	}, nil
}
