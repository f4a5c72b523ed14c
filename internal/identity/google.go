// Package identity verifies identity-provider credentials and issues portal session tokens.
package identity

import (
	"context"
	"errors"
	"fmt"

	"recruitment-portal/internal/app"
	"recruitment-portal/internal/domain"

	googleAuthIDTokenVerifier "github.com/futurenda/google-auth-id-token-verifier"
)

// GoogleVerifier checks Google ID tokens against the configured OAuth client id.
type GoogleVerifier struct {
	clientID string
	verify   func(token string, audience []string) error
	decode   func(token string) (*googleAuthIDTokenVerifier.ClaimSet, error)
}

func NewGoogleVerifier(clientID string) *GoogleVerifier {
	v := googleAuthIDTokenVerifier.Verifier{}
	return &GoogleVerifier{
		clientID: clientID,
		verify:   v.VerifyIDToken,
		decode:   googleAuthIDTokenVerifier.Decode,
	}
}

// Verify validates the token signature and audience, then returns its claims.
func (g *GoogleVerifier) Verify(_ context.Context, credential string) (app.Identity, error) {
	if g.clientID == "" {
		return app.Identity{}, errors.New("google client id not configured")
	}
	if err := g.verify(credential, []string{g.clientID}); err != nil {
		return app.Identity{}, fmt.Errorf("%w: %v", domain.ErrInvalidCredential, err)
	}
	claims, err := g.decode(credential)
	if err != nil {
		return app.Identity{}, fmt.Errorf("%w: decode: %v", domain.ErrInvalidCredential, err)
	}
	return app.Identity{
		Subject: claims.Sub,
		Email:   claims.Email,
		Name:    claims.Name,
	}, nil
}
