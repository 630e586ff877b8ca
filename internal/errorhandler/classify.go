package errorhandler

import (
	"errors"
	"net"
	"strings"
)

// StatusError is implemented by errors that carry an HTTP-ish status code
// (e.g. from the REST or webhook layers), used for the direct status-code
// classification path.
type StatusError interface {
	StatusCode() int
}

// Classify deterministically maps an error to a Kind: HTTP status codes
// first if the error exposes one, then name/message heuristics.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var se StatusError
	if errors.As(err, &se) {
		if k, ok := fromStatusCode(se.StatusCode()); ok {
			return k
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindNetwork
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return KindTimeout
	case strings.Contains(msg, "context canceled"):
		return KindTimeout
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "no such host"), strings.Contains(msg, "network"):
		return KindNetwork
	case strings.Contains(msg, "unauthorized") || strings.Contains(msg, "authentication"):
		return KindAuthentication
	case strings.Contains(msg, "forbidden") || strings.Contains(msg, "permission"):
		return KindAuthorization
	case strings.Contains(msg, "not found"):
		return KindNotFound
	case strings.Contains(msg, "conflict") || strings.Contains(msg, "already exists"):
		return KindConflict
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests"):
		return KindRateLimit
	case strings.Contains(msg, "resource exhausted") || strings.Contains(msg, "out of memory") ||
		strings.Contains(msg, "quota"):
		return KindResourceExhausted
	case strings.Contains(msg, "unavailable"):
		return KindServiceUnavailable
	case strings.Contains(msg, "validation") || strings.Contains(msg, "invalid"):
		return KindValidation
	case strings.Contains(msg, "bad request"):
		return KindBadRequest
	case strings.Contains(msg, "internal") || strings.Contains(msg, "panic"):
		return KindInternalServer
	default:
		return KindUnknown
	}
}

func fromStatusCode(code int) (Kind, bool) {
	switch code {
	case 400:
		return KindBadRequest, true
	case 401:
		return KindAuthentication, true
	case 403:
		return KindAuthorization, true
	case 404:
		return KindNotFound, true
	case 409:
		return KindConflict, true
	case 429:
		return KindRateLimit, true
	case 503:
		return KindServiceUnavailable, true
	}
	if code >= 500 && code <= 599 {
		return KindInternalServer, true
	}
	return "", false
}
