package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "storegate/pkg/domain-errors"
)

var testCreds = Credentials{
	ConsumerKey:    "ck-123",
	ConsumerSecret: "cs-456",
	AccessToken:    "at-789",
	TokenSecret:    "ts-012",
}

func TestPercentEncode(t *testing.T) {
	t.Run("encodes the characters the generic encoder leaves alone", func(t *testing.T) {
		assert.Equal(t, "%21%27%28%29%2A", PercentEncode("!'()*"))
	})

	t.Run("uses uppercase hex and percent for space", func(t *testing.T) {
		assert.Equal(t, "a%20b%2Fc", PercentEncode("a b/c"))
	})

	t.Run("leaves unreserved characters alone", func(t *testing.T) {
		assert.Equal(t, "AZaz09-._~", PercentEncode("AZaz09-._~"))
	})

	t.Run("encodes utf-8 bytes individually", func(t *testing.T) {
		assert.Equal(t, "%C3%A9", PercentEncode("é"))
	})
}

func TestNewRejectsIncompleteTuple(t *testing.T) {
	partial := testCreds
	partial.TokenSecret = ""
	_, err := New(partial)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthenticated))
}

// parseOAuthHeader splits `OAuth k="v", ...` into a map of decoded values.
func parseOAuthHeader(t *testing.T, header string) map[string]string {
	t.Helper()
	require.True(t, strings.HasPrefix(header, "OAuth "))
	out := make(map[string]string)
	for _, part := range strings.Split(strings.TrimPrefix(header, "OAuth "), ", ") {
		k, quoted, ok := strings.Cut(part, "=")
		require.True(t, ok, "malformed header part %q", part)
		v := strings.Trim(quoted, `"`)
		decoded, err := url.QueryUnescape(v)
		require.NoError(t, err)
		out[k] = decoded
	}
	return out
}

func TestAuthorizationHeaderShape(t *testing.T) {
	signer, err := New(testCreds)
	require.NoError(t, err)

	header, err := signer.Authorization("GET", "https://shop.example.com/rest/V1/products", nil)
	require.NoError(t, err)

	params := parseOAuthHeader(t, header)
	assert.Equal(t, "ck-123", params["oauth_consumer_key"])
	assert.Equal(t, "at-789", params["oauth_token"])
	assert.Equal(t, "HMAC-SHA256", params["oauth_signature_method"])
	assert.Equal(t, "1.0", params["oauth_version"])
	assert.NotEmpty(t, params["oauth_signature"])
	// 128 bits of entropy, hex-rendered.
	assert.Len(t, params["oauth_nonce"], 32)
}

func TestSignatureVerifiesAgainstRederivedBaseString(t *testing.T) {
	verify := func(t *testing.T, rawURL string, query url.Values) {
		t.Helper()
		signer, err := New(testCreds)
		require.NoError(t, err)

		header, err := signer.Authorization("POST", rawURL, query)
		require.NoError(t, err)
		params := parseOAuthHeader(t, header)

		protocol := map[string]string{
			"oauth_consumer_key":     params["oauth_consumer_key"],
			"oauth_nonce":            params["oauth_nonce"],
			"oauth_signature_method": params["oauth_signature_method"],
			"oauth_timestamp":        params["oauth_timestamp"],
			"oauth_token":            params["oauth_token"],
			"oauth_version":          params["oauth_version"],
		}
		u, err := url.Parse(rawURL)
		require.NoError(t, err)
		base := "https://" + u.Host + u.Path

		baseStr := SignatureBaseString("POST", base, query, protocol)
		key := PercentEncode(testCreds.ConsumerSecret) + "&" + PercentEncode(testCreds.TokenSecret)
		mac := hmac.New(sha256.New, []byte(key))
		mac.Write([]byte(baseStr))
		expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

		assert.Equal(t, expected, params["oauth_signature"])
	}

	t.Run("with query parameters", func(t *testing.T) {
		verify(t, "https://shop.example.com/rest/V1/products", url.Values{
			"searchCriteria[pageSize]": {"50"},
			"fields":                   {"sku,price"},
		})
	})

	t.Run("without query parameters", func(t *testing.T) {
		verify(t, "https://shop.example.com/rest/V1/products", nil)
	})
}

func TestTwoSignaturesDifferOnlyInNonceAndTimestamp(t *testing.T) {
	clock := time.Unix(1700000000, 0)
	nonces := []string{"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"}
	calls := 0

	signer, err := New(testCreds,
		WithClock(func() time.Time {
			defer func() { clock = clock.Add(time.Second) }()
			return clock
		}),
		WithNonceSource(func() (string, error) {
			defer func() { calls++ }()
			return nonces[calls], nil
		}),
	)
	require.NoError(t, err)

	query := url.Values{"searchCriteria[currentPage]": {"1"}}
	first, err := signer.Authorization("GET", "https://shop.example.com/rest/V1/products", query)
	require.NoError(t, err)
	second, err := signer.Authorization("GET", "https://shop.example.com/rest/V1/products", query)
	require.NoError(t, err)

	p1 := parseOAuthHeader(t, first)
	p2 := parseOAuthHeader(t, second)
	for _, stable := range []string{"oauth_consumer_key", "oauth_token", "oauth_signature_method", "oauth_version"} {
		assert.Equal(t, p1[stable], p2[stable])
	}
	assert.NotEqual(t, p1["oauth_nonce"], p2["oauth_nonce"])
	assert.NotEqual(t, p1["oauth_timestamp"], p2["oauth_timestamp"])
	assert.NotEqual(t, p1["oauth_signature"], p2["oauth_signature"])
}

func TestBaseURLNormalization(t *testing.T) {
	signer, err := New(testCreds, WithNonceSource(func() (string, error) { return "fixednonce", nil }),
		WithClock(func() time.Time { return time.Unix(1700000000, 0) }))
	require.NoError(t, err)

	withPort, err := signer.Authorization("GET", "https://Shop.Example.com:443/rest/V1/products", nil)
	require.NoError(t, err)
	withoutPort, err := signer.Authorization("GET", "https://shop.example.com/rest/V1/products", nil)
	require.NoError(t, err)

	assert.Equal(t, parseOAuthHeader(t, withoutPort)["oauth_signature"], parseOAuthHeader(t, withPort)["oauth_signature"])
}
