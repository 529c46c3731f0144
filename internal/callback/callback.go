// Package callback implements the compact token format carried in menu button
// callback data, and a router that dispatches tokens to per-platform handlers.
//
// Tokens are underscore-joined segments. The first segment is the platform
// tag, the last is always the session id, and the second-to-last is always the
// issue timestamp; whatever sits between the platform tag and the timestamp is
// platform-specific. Session ids must therefore never contain underscores.
package callback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidToken     = errors.New("invalid callback token")
	ErrUnknownPlatform  = errors.New("no handler for callback platform")
	ErrDuplicateHandler = errors.New("handler already registered for platform")
)

// IsTokenError reports whether err is a malformed-token failure rather than
// a handler failure, so callers can show an "invalid button" notice.
func IsTokenError(err error) bool {
	return errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrUnknownPlatform)
}

// TimestampFormat is a sortable compact timestamp used inside tokens. It is
// informational only; routing never parses it back into a time.
const TimestampFormat = "20060102150405"

// A Token is one decoded callback payload.
type Token struct {
	// Platform is the first segment, e.g. "yt", "tt", "insta", "s".
	Platform string
	// Selector is the first platform-specific segment, when present: a format
	// index for yt, a kind tag ("mp4"/"mp3") for tt and insta.
	Selector string
	// Extra holds any further segments between Selector and Timestamp.
	Extra []string
	// Timestamp is the second-to-last segment as issued.
	Timestamp string
	// SessionID is the last segment.
	SessionID string
}

// String re-encodes the token. New(...).String() is how buttons are minted.
func (t Token) String() string {
	parts := []string{t.Platform}
	if t.Selector != "" {
		parts = append(parts, t.Selector)
	}
	parts = append(parts, t.Extra...)
	parts = append(parts, t.Timestamp, t.SessionID)
	return strings.Join(parts, "_")
}

// New mints a token for a session, stamping it with the current time.
func New(platform, selector, sessionID string, extra ...string) Token {
	return Token{
		Platform:  platform,
		Selector:  selector,
		Extra:     extra,
		Timestamp: time.Now().UTC().Format(TimestampFormat),
		SessionID: sessionID,
	}
}

// Parse decodes a raw callback string. minSegments is the total segment count
// the platform requires; tokens with fewer segments are rejected rather than
// guessed at, since a short token would shift the session id into the wrong
// position.
func Parse(raw string, minSegments int) (Token, error) {
	if minSegments < 3 {
		minSegments = 3
	}
	parts := strings.Split(raw, "_")
	if len(parts) < minSegments {
		return Token{}, fmt.Errorf("%w: got %d segments, want at least %d", ErrInvalidToken, len(parts), minSegments)
	}
	for _, p := range parts {
		if p == "" {
			return Token{}, fmt.Errorf("%w: empty segment", ErrInvalidToken)
		}
	}
	t := Token{
		Platform:  parts[0],
		Timestamp: parts[len(parts)-2],
		SessionID: parts[len(parts)-1],
	}
	middle := parts[1 : len(parts)-2]
	if len(middle) > 0 {
		t.Selector = middle[0]
	}
	if len(middle) > 1 {
		t.Extra = middle[1:]
	}
	return t, nil
}

// A Handler consumes one decoded token.
type Handler func(ctx context.Context, token Token) error

type route struct {
	minSegments int
	handler     Handler
}

// Router dispatches raw callback strings by their platform tag. Registration
// happens at startup; Route is safe for concurrent use once registration is
// done.
type Router struct {
	routes map[string]route
}

func NewRouter() *Router {
	return &Router{routes: make(map[string]route)}
}

// Handle registers a handler for a platform tag.
func (r *Router) Handle(platform string, minSegments int, handler Handler) error {
	if _, exists := r.routes[platform]; exists {
		return fmt.Errorf("%w: %v", ErrDuplicateHandler, platform)
	}
	r.routes[platform] = route{minSegments: minSegments, handler: handler}
	return nil
}

// MustHandle is Handle for static startup registration.
func (r *Router) MustHandle(platform string, minSegments int, handler Handler) {
	if err := r.Handle(platform, minSegments, handler); err != nil {
		panic(err)
	}
}

// Route decodes raw and calls the matching handler. The platform tag is the
// text before the first underscore, so lookup happens before full parsing.
func (r *Router) Route(ctx context.Context, raw string) error {
	platform, _, found := strings.Cut(raw, "_")
	if !found {
		return fmt.Errorf("%w: %q", ErrInvalidToken, raw)
	}
	rt, exists := r.routes[platform]
	if !exists {
		return fmt.Errorf("%w: %v", ErrUnknownPlatform, platform)
	}
	token, err := Parse(raw, rt.minSegments)
	if err != nil {
		return err
	}
	return rt.handler(ctx, token)
}
