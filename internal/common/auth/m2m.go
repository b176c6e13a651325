// internal/common/auth/m2m.go
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"taas-es-processor/internal/common/errors"
	commonhttp "taas-es-processor/internal/common/http"
)

// expirySkew renews a token this long before it actually expires.
const expirySkew = 30 * time.Second

// TokenProvider yields a bearer token for service-to-service calls.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// M2MClient fetches machine-to-machine tokens with the client credentials
// grant and caches them until shortly before expiry.
type M2MClient struct {
	tokenURL     string
	clientID     string
	clientSecret string
	audience     string
	httpClient   *commonhttp.Client
	now          func() time.Time

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// TokenResponse holds the response from the token endpoint.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
}

func NewM2MClient(tokenURL, clientID, clientSecret, audience string, httpClient *commonhttp.Client) *M2MClient {
	return &M2MClient{
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		audience:     audience,
		httpClient:   httpClient,
		now:          time.Now,
	}
}

// Token returns the cached token or fetches a new one.
func (m *M2MClient) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.accessToken != "" && m.tokenExpiry.After(m.now()) {
		return m.accessToken, nil
	}

	body, err := m.httpClient.PostJSON(ctx, m.tokenURL, nil, map[string]string{
		"grant_type":    "client_credentials",
		"client_id":     m.clientID,
		"client_secret": m.clientSecret,
		"audience":      m.audience,
	})
	if err != nil {
		return "", &errors.StandardError{
			Code:      "M2M_AUTH_ERROR",
			Message:   "Failed to obtain machine token",
			Details:   err.Error(),
			Retryable: true,
			Timestamp: m.now().UTC(),
		}
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("token response carried no access_token")
	}

	m.accessToken = tokenResp.AccessToken
	m.tokenExpiry = m.now().Add(time.Duration(tokenResp.ExpiresIn)*time.Second - expirySkew)
	return m.accessToken, nil
}

// StaticToken is a TokenProvider returning a fixed value.
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) {
	return string(s), nil
}
