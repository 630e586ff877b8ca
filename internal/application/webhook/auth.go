package webhook

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthorized is returned by authenticate on any authentication failure;
// callers translate it to a 401 response.
type ErrUnauthorized struct {
	Reason string
}

func (e *ErrUnauthorized) Error() string {
	return fmt.Sprintf("webhook: unauthorized: %s", e.Reason)
}

// authenticate dispatches on auth.Kind. A nil auth descriptor allows every
// request, matching spec.md §4.3's "optional authentication descriptor".
func authenticate(auth *AuthDescriptor, headers map[string]string, body map[string]any) error {
	if auth == nil || auth.Kind == AuthNone {
		return nil
	}

	switch auth.Kind {
	case AuthBearer:
		return authenticateBearer(auth, headers)
	case AuthBasic:
		return authenticateBasic(auth, headers)
	case AuthAPIKey:
		return authenticateAPIKey(auth, headers)
	case AuthSignature:
		return authenticateSignature(auth, headers, body)
	default:
		return &ErrUnauthorized{Reason: fmt.Sprintf("unknown auth kind %q", auth.Kind)}
	}
}

func bearerToken(headers map[string]string) (string, bool) {
	value := headerLookup(headers, "Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(value, prefix) {
		return "", false
	}
	return strings.TrimPrefix(value, prefix), true
}

func authenticateBearer(auth *AuthDescriptor, headers map[string]string) error {
	token, ok := bearerToken(headers)
	if !ok {
		return &ErrUnauthorized{Reason: "missing bearer token"}
	}

	_, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(auth.Secret), nil
	})
	if err != nil {
		return &ErrUnauthorized{Reason: "invalid bearer token: " + err.Error()}
	}
	return nil
}

func authenticateBasic(auth *AuthDescriptor, headers map[string]string) error {
	value := headerLookup(headers, "Authorization")
	const prefix = "Basic "
	if !strings.HasPrefix(value, prefix) {
		return &ErrUnauthorized{Reason: "missing basic auth header"}
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, prefix))
	if err != nil {
		return &ErrUnauthorized{Reason: "malformed basic auth header"}
	}

	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 {
		return &ErrUnauthorized{Reason: "malformed basic auth credentials"}
	}

	if parts[0] != auth.Username || parts[1] != auth.Secret {
		return &ErrUnauthorized{Reason: "invalid basic auth credentials"}
	}
	return nil
}

func authenticateAPIKey(auth *AuthDescriptor, headers map[string]string) error {
	headerName := auth.HeaderName
	if headerName == "" {
		headerName = "X-API-Key"
	}

	value := headerLookup(headers, headerName)
	if value == "" || !hmac.Equal([]byte(value), []byte(auth.Secret)) {
		return &ErrUnauthorized{Reason: "invalid api key"}
	}
	return nil
}

func authenticateSignature(auth *AuthDescriptor, headers map[string]string, body map[string]any) error {
	signature := headerLookup(headers, "X-Webhook-Signature")
	if signature == "" {
		return &ErrUnauthorized{Reason: "missing signature header"}
	}

	expected, err := computeSignature(auth.Algorithm, auth.Secret, body)
	if err != nil {
		return &ErrUnauthorized{Reason: err.Error()}
	}

	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return &ErrUnauthorized{Reason: "signature mismatch"}
	}
	return nil
}

// computeSignature hex-encodes an HMAC of the canonical JSON body under the
// given algorithm, defaulting to sha256.
func computeSignature(algorithm, secret string, body map[string]any) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to encode payload for signing: %w", err)
	}

	var mac hashFunc
	switch algorithm {
	case "", "sha256":
		mac = hmac.New(sha256.New, []byte(secret))
	case "sha1":
		mac = hmac.New(sha1.New, []byte(secret))
	default:
		return "", fmt.Errorf("unsupported signature algorithm %q", algorithm)
	}

	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

type hashFunc interface {
	Write(p []byte) (int, error)
	Sum(b []byte) []byte
}

// headerLookup is a case-insensitive lookup over a plain map[string]string,
// since net/http.Header's canonicalization is not guaranteed to have been
// applied by the caller.
func headerLookup(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}
