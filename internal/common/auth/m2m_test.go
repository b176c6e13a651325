package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "taas-es-processor/internal/common/errors"
	commonhttp "taas-es-processor/internal/common/http"
)

func TestM2MClient_CachesUntilExpiry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		var req map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "client_credentials", req["grant_type"])
		assert.Equal(t, "https://m2m.topcoder-dev.com/", req["audience"])
		_ = json.NewEncoder(w).Encode(TokenResponse{AccessToken: "tok-" + string(rune('0'+n)), ExpiresIn: 3600})
	}))
	defer srv.Close()

	now := time.Now()
	c := NewM2MClient(srv.URL, "id", "secret", "https://m2m.topcoder-dev.com/", commonhttp.NewClient(time.Second))
	c.now = func() time.Time { return now }

	tok, err := c.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)

	tok, err = c.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	now = now.Add(time.Hour)
	tok, err = c.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-2", tok)
}

func TestM2MClient_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewM2MClient(srv.URL, "id", "bad", "aud", commonhttp.NewClient(time.Second))
	_, err := c.Token(context.Background())

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorCode("M2M_AUTH_ERROR"), apperrors.CodeOf(err))
}

func TestStaticToken(t *testing.T) {
	tok, err := StaticToken("abc").Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)
}
