package twitch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// TokenURL is Twitch's OAuth2 token endpoint.
const TokenURL = "https://id.twitch.tv/oauth2/token"

// CredentialProvider hands out bearer tokens for Helix requests.
// Invalidate drops the cached token so the next Token call fetches a new one.
type CredentialProvider interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// AppTokenSource fetches and caches a Twitch app access (client credentials) token.
type AppTokenSource struct {
	Config     clientcredentials.Config
	HTTPClient *http.Client

	mu  sync.Mutex
	src oauth2.TokenSource
}

func NewAppTokenSource(clientID, clientSecret string) *AppTokenSource {
	return &AppTokenSource{
		Config: clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     TokenURL,
			// Twitch expects the credentials in the form body.
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// Token returns a valid (fresh or cached) app access token.
func (s *AppTokenSource) Token(ctx context.Context) (string, error) {
	if s.Config.ClientID == "" || s.Config.ClientSecret == "" {
		return "", errors.New("missing client id/secret for twitch app token")
	}

	s.mu.Lock()
	if s.src == nil {
		// The reuse source refreshes lazily from this context, so it must
		// outlive any single request.
		base := context.Background()
		if s.HTTPClient != nil {
			base = context.WithValue(base, oauth2.HTTPClient, s.HTTPClient)
		}
		s.src = s.Config.TokenSource(base)
	}
	src := s.src
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	tok, err := src.Token()
	if err != nil {
		return "", fmt.Errorf("twitch token request failed: %w", err)
	}
	return tok.AccessToken, nil
}

// Invalidate forgets the cached token.
func (s *AppTokenSource) Invalidate() {
	s.mu.Lock()
	s.src = nil
	s.mu.Unlock()
}
