// Package sessionid encodes and decodes the session identifiers embedded in shareable result links.
//
// The encoding is URL-safe base64 of the canonical UUID text. It only keeps
// raw database identifiers out of casual view and is not a security boundary.
package sessionid

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const (
	// ParamEncoded is the query parameter carrying an encoded token.
	ParamEncoded = "sessionId"
	// ParamLegacy is the query parameter carrying a raw UUID in older links.
	ParamLegacy = "session"
	// ResultPath is the path shareable links point at.
	ResultPath = "/result"
)

var (
	// ErrInvalid is returned when a value is not a canonical session identifier.
	ErrInvalid = errors.New("invalid session identifier")
	// ErrNotFound is returned when a URL carries no usable session identifier.
	ErrNotFound = errors.New("session identifier not found")
)

var canonicalUUID = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// IsValid reports whether id is canonical UUID text (8-4-4-4-12 hex groups).
func IsValid(id string) bool {
	return canonicalUUID.MatchString(id)
}

// Encode returns the URL-safe token for a session id.
func Encode(id string) (string, error) {
	if !IsValid(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalid, id)
	}
	return base64.RawURLEncoding.EncodeToString([]byte(id)), nil
}

// Decode reverses Encode. Tokens produced with the standard base64 alphabet
// or with padding are accepted too, since older links were built that way.
func Decode(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", fmt.Errorf("%w: empty token", ErrInvalid)
	}

	for _, enc := range []*base64.Encoding{
		base64.RawURLEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.StdEncoding,
	} {
		raw, err := enc.DecodeString(token)
		if err != nil {
			continue
		}
		if id := string(raw); IsValid(id) {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: token %q does not decode to a session id", ErrInvalid, token)
}

// FromQuery extracts the session id from query values. The encoded form is
// tried first; if it is missing or does not decode, the legacy raw form is used.
func FromQuery(values url.Values) (string, error) {
	if token := values.Get(ParamEncoded); token != "" {
		if id, err := Decode(token); err == nil {
			return id, nil
		}
	}
	if raw := strings.TrimSpace(values.Get(ParamLegacy)); raw != "" && IsValid(raw) {
		return raw, nil
	}
	return "", ErrNotFound
}

// FromURL extracts the session id from a shareable link.
func FromURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return FromQuery(u.Query())
}

// Resolve accepts anything a user might paste: a raw id, an encoded token, or
// a result URL.
func Resolve(input string) (string, error) {
	input = strings.TrimSpace(input)
	if IsValid(input) {
		return input, nil
	}
	if strings.Contains(input, "?") {
		return FromURL(input)
	}
	return Decode(input)
}

// ShareURL builds the preferred result link for a session.
func ShareURL(base, id string) (string, error) {
	token, err := Encode(id)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", base, err)
	}
	u.Path += ResultPath
	u.RawQuery = url.Values{ParamEncoded: []string{token}}.Encode()
	return u.String(), nil
}
