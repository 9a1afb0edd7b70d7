//go:build integration

package auth_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"auto_note_article_publisher/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const loginForm = `<html><body>
<form method="post" action="/login">
  <input name="email"><input name="password" type="password">
  <button type="submit">login</button>
</form></body></html>`

func fakeNote(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_ = r.ParseForm()
			if r.PostForm.Get("email") == "me@example.com" && r.PostForm.Get("password") == "secret" {
				http.SetCookie(w, &http.Cookie{Name: "_note_session_v5", Value: "session-1", Path: "/"})
				http.Redirect(w, r, "/", http.StatusFound)
				return
			}
		}
		fmt.Fprint(w, loginForm)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>home</body></html>")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRodAcquirer_Login_Integration(t *testing.T) {
	srv := fakeNote(t)
	a := auth.NewRodAcquirer(auth.RodConfig{
		LoginURL: srv.URL + "/login",
		Headless: true,
		Timeout:  15 * time.Second,
	}, zaptest.NewLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	bundle, err := a.Acquire(ctx, auth.Identity{Email: "me@example.com", Password: "secret"})
	require.NoError(t, err)
	v, ok := bundle.Get("_note_session_v5")
	require.True(t, ok)
	assert.Equal(t, "session-1", v)
}

func TestRodAcquirer_WrongPassword_Integration(t *testing.T) {
	srv := fakeNote(t)
	a := auth.NewRodAcquirer(auth.RodConfig{
		LoginURL: srv.URL + "/login",
		Headless: true,
		Timeout:  3 * time.Second,
	}, zaptest.NewLogger(t))

	bundle, err := a.Acquire(context.Background(), auth.Identity{Email: "me@example.com", Password: "nope"})
	require.ErrorIs(t, err, auth.ErrAuth)
	assert.True(t, bundle.Empty())

	var authErr *auth.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, auth.ReasonTimeout, authErr.Reason)
}

func TestRodAcquirer_CancelDuringLogin_Integration(t *testing.T) {
	srv := fakeNote(t)
	a := auth.NewRodAcquirer(auth.RodConfig{
		LoginURL: srv.URL + "/login",
		Headless: true,
		Timeout:  time.Minute,
	}, zaptest.NewLogger(t))

	// A wrong password keeps the page on the login form, so Acquire is still
	// polling for navigation when ctx is cancelled.
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(3*time.Second, cancel)

	type result struct {
		bundle auth.Bundle
		err    error
	}
	done := make(chan result, 1)
	go func() {
		b, err := a.Acquire(ctx, auth.Identity{Email: "me@example.com", Password: "nope"})
		done <- result{b, err}
	}()

	select {
	case res := <-done:
		require.ErrorIs(t, res.err, auth.ErrAuth)
		assert.True(t, res.bundle.Empty())
	case <-time.After(30 * time.Second):
		t.Fatal("Acquire did not return after its context was cancelled")
	}
}
