// Package auth obtains note.com session credentials.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
)

// Identity is the login pair for one note.com account.
type Identity struct {
	Email    string
	Password string
}

// Valid reports whether both halves are present.
func (id Identity) Valid() bool {
	return id.Email != "" && id.Password != ""
}

// Bundle is an immutable set of session cookies, keyed by name.
type Bundle struct {
	tokens map[string]string
}

// NewBundle copies tokens into a Bundle.
func NewBundle(tokens map[string]string) Bundle {
	cp := make(map[string]string, len(tokens))
	for k, v := range tokens {
		cp[k] = v
	}
	return Bundle{tokens: cp}
}

func (b Bundle) Get(name string) (string, bool) {
	v, ok := b.tokens[name]
	return v, ok
}

func (b Bundle) Len() int { return len(b.tokens) }

func (b Bundle) Empty() bool { return len(b.tokens) == 0 }

// Names returns the cookie names in sorted order.
func (b Bundle) Names() []string {
	names := make([]string, 0, len(b.tokens))
	for k := range b.tokens {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Cookies returns fresh *http.Cookie values for attaching to requests.
func (b Bundle) Cookies() []*http.Cookie {
	out := make([]*http.Cookie, 0, len(b.tokens))
	for _, name := range b.Names() {
		out = append(out, &http.Cookie{Name: name, Value: b.tokens[name]})
	}
	return out
}

// Acquirer logs in once and returns the session bundle. It never returns a
// partial bundle: on failure the Bundle is empty and the error matches ErrAuth.
type Acquirer interface {
	Acquire(ctx context.Context, id Identity) (Bundle, error)
}

// AcquirerFunc adapts a function to Acquirer.
type AcquirerFunc func(ctx context.Context, id Identity) (Bundle, error)

func (f AcquirerFunc) Acquire(ctx context.Context, id Identity) (Bundle, error) {
	return f(ctx, id)
}

// ErrAuth is matched by every *AuthError.
var ErrAuth = errors.New("authentication failed")

// Reason narrows down why a login failed.
type Reason string

const (
	ReasonTimeout    Reason = "timeout"
	ReasonDriver     Reason = "driver"
	ReasonUnexpected Reason = "unexpected"
)

// AuthError is the single failure type returned by acquirers.
type AuthError struct {
	Reason Reason
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("auth %s", e.Reason)
	}
	return fmt.Sprintf("auth %s: %v", e.Reason, e.Err)
}

func (e *AuthError) Is(target error) bool { return target == ErrAuth }

func (e *AuthError) Unwrap() error { return e.Err }
