package supabase

import (
	"context"
	"errors"
	"fmt"
	"time"

	supa "github.com/supabase-community/supabase-go"

	"example.com/wellness/internal/domain"
)

// Authenticator signs users in with email and password.
type Authenticator struct {
	client *supa.Client
}

var _ domain.Authenticator = (*Authenticator)(nil)

// NewAuthenticator wraps client.
func NewAuthenticator(client *supa.Client) *Authenticator {
	return &Authenticator{client: client}
}

// SignIn exchanges credentials for a session.
func (a *Authenticator) SignIn(ctx context.Context, email, password string) (domain.Session, error) {
	resp, err := a.client.Auth.SignInWithEmailPassword(email, password)
	if err != nil {
		return domain.Session{}, fmt.Errorf("sign in: %w", err)
	}
	if resp == nil || resp.AccessToken == "" {
		return domain.Session{}, errors.New("sign in: empty session")
	}

	expires := time.Unix(resp.ExpiresAt, 0).UTC()
	if resp.ExpiresAt == 0 {
		expires = time.Now().UTC().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}
	return domain.Session{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    expires,
		UserID:       resp.User.ID.String(),
		Email:        resp.User.Email,
	}, nil
}
