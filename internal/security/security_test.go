package security

import (
	"context"
	"encoding/hex"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHashToken(t *testing.T) {
	// sha256("abc")
	require.Equal(t,
		"ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		HashToken("abc"),
	)
	require.Len(t, HashToken(""), 64)
	require.NotEqual(t, HashToken("a"), HashToken("b"))
}

func TestUserAgentHash_TruncatesAt255(t *testing.T) {
	base := strings.Repeat("a", 255)

	require.Equal(t, HashToken(base), UserAgentHash(base))
	require.Equal(t, UserAgentHash(base), UserAgentHash(base+"tail"))
	require.NotEqual(t, UserAgentHash(base[:254]), UserAgentHash(base))
	require.Equal(t, HashToken(""), UserAgentHash(""))
}

func TestNewCSRFToken(t *testing.T) {
	a, err := NewCSRFToken()
	require.NoError(t, err)
	b, err := NewCSRFToken()
	require.NoError(t, err)

	require.Len(t, a, 64)
	_, err = hex.DecodeString(a)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestParseSameSite(t *testing.T) {
	tests := []struct {
		in      string
		want    http.SameSite
		wantErr bool
	}{
		{in: "lax", want: http.SameSiteLaxMode},
		{in: "", want: http.SameSiteLaxMode},
		{in: "Strict", want: http.SameSiteStrictMode},
		{in: "none", want: http.SameSiteNoneMode},
		{in: "sometimes", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSameSite(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestCookiePolicy_Cookie(t *testing.T) {
	p := CookiePolicy{SameSite: http.SameSiteStrictMode, Secure: true}

	c := p.Cookie(RefreshCookie, "v", 7*24*time.Hour, true)
	require.Equal(t, RefreshCookie, c.Name)
	require.Equal(t, "v", c.Value)
	require.Equal(t, "/", c.Path)
	require.Equal(t, 7*24*3600, c.MaxAge)
	require.True(t, c.HttpOnly)
	require.True(t, c.Secure)
	require.Equal(t, http.SameSiteStrictMode, c.SameSite)

	csrf := p.Cookie(CSRFCookie, "x", 24*time.Hour, false)
	require.False(t, csrf.HttpOnly)
	require.Equal(t, 86400, csrf.MaxAge)
}

func TestCookiePolicy_Expire(t *testing.T) {
	p := CookiePolicy{SameSite: http.SameSiteLaxMode}

	c := p.Expire(RefreshCookie, true)
	require.Equal(t, -1, c.MaxAge)
	require.Empty(t, c.Value)
	require.Equal(t, "/", c.Path)
	require.True(t, c.HttpOnly)
	require.Contains(t, c.String(), "Max-Age=0")
}

func TestJitter(t *testing.T) {
	min, max := 220*time.Millisecond, 420*time.Millisecond
	for i := 0; i < 200; i++ {
		d := Jitter(min, max)
		require.GreaterOrEqual(t, d, min)
		require.Less(t, d, max)
	}

	require.Equal(t, min, Jitter(min, min))
	require.Equal(t, time.Duration(0), Jitter(0, 0))
}

func TestSleep(t *testing.T) {
	require.NoError(t, Sleep(context.Background(), time.Millisecond))
	require.NoError(t, Sleep(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := Sleep(ctx, time.Minute)
	require.ErrorIs(t, err, context.Canceled)
	require.Less(t, time.Since(start), time.Second)
}
