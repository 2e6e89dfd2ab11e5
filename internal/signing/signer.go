// Package signing produces OAuth 1.0a HMAC-SHA256 Authorization headers for
// requests against the commerce platform's REST API. The platform verifies
// signatures per RFC 5849 §3.4.1, so the base string construction here has to
// match that algorithm exactly.
package signing

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	dErrors "storegate/pkg/domain-errors"
)

// Credentials is the long-lived four-part credential tuple issued by the
// platform's integration admin. It lives only in process memory and must never
// be persisted or logged.
type Credentials struct {
	ConsumerKey    string
	ConsumerSecret string
	AccessToken    string
	TokenSecret    string
}

// Complete reports whether all four parts are present.
func (c Credentials) Complete() bool {
	return c.ConsumerKey != "" && c.ConsumerSecret != "" &&
		c.AccessToken != "" && c.TokenSecret != ""
}

// Signer computes Authorization headers for a fixed credential tuple. It holds
// no other state; nonce and timestamp are drawn fresh per call.
type Signer struct {
	creds Credentials
	now   func() time.Time
	nonce func() (string, error)
}

// Option customizes a Signer; tests pin the clock and nonce source.
type Option func(*Signer)

func WithClock(now func() time.Time) Option {
	return func(s *Signer) { s.now = now }
}

func WithNonceSource(nonce func() (string, error)) Option {
	return func(s *Signer) { s.nonce = nonce }
}

// New builds a Signer. An incomplete credential tuple fails fast with an
// unauthenticated error so no network call is ever attempted with a partial
// tuple.
func New(creds Credentials, opts ...Option) (*Signer, error) {
	if !creds.Complete() {
		return nil, dErrors.New(dErrors.CodeUnauthenticated, "incomplete credential tuple")
	}
	s := &Signer{
		creds: creds,
		now:   time.Now,
		nonce: randomNonce,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Authorization signs a request and returns the OAuth header value. Only the
// method, base URL, and query parameters are signed; request bodies are
// intentionally excluded to match the platform's verifier.
func (s *Signer) Authorization(method, rawURL string, query url.Values) (string, error) {
	nonce, err := s.nonce()
	if err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	timestamp := strconv.FormatInt(s.now().Unix(), 10)
	return s.authorization(method, rawURL, query, nonce, timestamp)
}

func (s *Signer) authorization(method, rawURL string, query url.Values, nonce, timestamp string) (string, error) {
	base, err := normalizeBaseURL(rawURL)
	if err != nil {
		return "", err
	}

	protocol := s.protocolParams(nonce, timestamp)
	baseStr := SignatureBaseString(method, base, query, protocol)
	signature := s.hmacSign(baseStr)

	// Header carries protocol parameters plus the signature, each value
	// percent-encoded and quoted.
	keys := make([]string, 0, len(protocol))
	for k := range protocol {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("OAuth ")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%q", k, PercentEncode(protocol[k]))
	}
	fmt.Fprintf(&b, ", oauth_signature=%q", PercentEncode(signature))
	return b.String(), nil
}

func (s *Signer) protocolParams(nonce, timestamp string) map[string]string {
	return map[string]string{
		"oauth_consumer_key":     s.creds.ConsumerKey,
		"oauth_nonce":            nonce,
		"oauth_signature_method": "HMAC-SHA256",
		"oauth_timestamp":        timestamp,
		"oauth_token":            s.creds.AccessToken,
		"oauth_version":          "1.0",
	}
}

func (s *Signer) hmacSign(baseStr string) string {
	key := PercentEncode(s.creds.ConsumerSecret) + "&" + PercentEncode(s.creds.TokenSecret)
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(baseStr))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// SignatureBaseString builds the RFC 5849 §3.4.1 base string: uppercase
// method, encoded base URL, and the encoded, sorted parameter string joined
// with ampersands. Query parameters and protocol parameters are merged into
// one flat set; requests with no query parameters sign protocol parameters
// alone.
func SignatureBaseString(method, baseURL string, query url.Values, protocol map[string]string) string {
	type pair struct{ k, v string }
	pairs := make([]pair, 0, len(query)+len(protocol))
	for k, vs := range query {
		for _, v := range vs {
			pairs = append(pairs, pair{PercentEncode(k), PercentEncode(v)})
		}
	}
	for k, v := range protocol {
		pairs = append(pairs, pair{PercentEncode(k), PercentEncode(v)})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].k != pairs[j].k {
			return pairs[i].k < pairs[j].k
		}
		return pairs[i].v < pairs[j].v
	})

	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p.k + "=" + p.v
	}
	paramString := strings.Join(parts, "&")

	return strings.ToUpper(method) + "&" + PercentEncode(baseURL) + "&" + PercentEncode(paramString)
}

// normalizeBaseURL strips the query and fragment and lowercases the scheme and
// host, dropping default ports, per the RFC's base string URI rules.
func normalizeBaseURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInvalidInput, "unparsable request URL")
	}
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	switch {
	case scheme == "http" && strings.HasSuffix(host, ":80"):
		host = strings.TrimSuffix(host, ":80")
	case scheme == "https" && strings.HasSuffix(host, ":443"):
		host = strings.TrimSuffix(host, ":443")
	}
	return scheme + "://" + host + u.EscapedPath(), nil
}

// PercentEncode applies RFC 3986 encoding with the strict unreserved set.
// url.QueryEscape under-encodes `! ' ( ) *` and renders spaces as '+', both of
// which the platform's verifier rejects, so the encoder is written out here.
func PercentEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteString(strings.ToUpper(hex.EncodeToString([]byte{c})))
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '-' || c == '.' || c == '_' || c == '~':
		return true
	}
	return false
}

// randomNonce draws 16 bytes (128 bits) of entropy, hex-rendered. Collisions
// are not checked locally; freshness is enforced server-side over the signing
// window.
func randomNonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
