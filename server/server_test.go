package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"auto_note_article_publisher/generator"
	"auto_note_article_publisher/publisher"
)

type fakePoster struct {
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	delay    time.Duration

	mu  sync.Mutex
	got []publisher.Article
	res *publisher.Result
	err error
}

func (f *fakePoster) Post(_ context.Context, art publisher.Article) (*publisher.Result, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(f.delay)

	f.mu.Lock()
	f.got = append(f.got, art)
	f.mu.Unlock()
	return f.res, f.err
}

type fakeGenerator struct {
	spec generator.Spec
	err  error
}

func (f *fakeGenerator) Generate(_ context.Context, spec generator.Spec) (generator.Draft, error) {
	f.spec = spec
	if f.err != nil {
		return generator.Draft{}, f.err
	}
	return generator.Draft{Title: "T", Markdown: "# T\n\n" + spec.Topic}, nil
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPostSuccess(t *testing.T) {
	poster := &fakePoster{res: &publisher.Result{
		RunID:       "run-1",
		State:       publisher.StateFinalized,
		Transitions: []publisher.State{publisher.StateStart, publisher.StateAuthenticated, publisher.StateDraftCreated, publisher.StateFinalized},
		Draft:       publisher.Draft{ID: "42", Key: "n1"},
		ImageErr:    errors.New("image too large"),
		URL:         "https://note.com/alice/n/n1",
	}}
	srv, err := New(poster, nil, nil)
	require.NoError(t, err)

	rec := do(t, srv.Routes(), http.MethodPost, "/api/posts", `{"title":"Hello","markdown":"# Hi","image_path":"/tmp/x.png"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp postResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, "https://note.com/alice/n/n1", resp.URL)
	assert.Equal(t, "n1", resp.ArticleKey)
	assert.Equal(t, "image too large", resp.ImageError)
	assert.Equal(t, []string{"start", "authenticated", "draft_created", "finalized"}, resp.Steps)
	require.Len(t, poster.got, 1)
	assert.Equal(t, publisher.Article{Title: "Hello", Markdown: "# Hi", ImagePath: "/tmp/x.png"}, poster.got[0])
}

func TestPostFailureReportsKind(t *testing.T) {
	poster := &fakePoster{
		res: &publisher.Result{State: publisher.StateFailed},
		err: &publisher.PostError{Kind: publisher.KindDraftCreate, Reason: "status 500"},
	}
	srv, err := New(poster, nil, nil)
	require.NoError(t, err)

	rec := do(t, srv.Routes(), http.MethodPost, "/api/posts", `{"title":"a","markdown":"b"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	var resp postResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.OK)
	assert.Equal(t, "draft_create_failure", resp.ErrorKind)
	assert.Contains(t, resp.Reason, "status 500")
	assert.Equal(t, "failed", resp.State)
}

func TestPostValidation(t *testing.T) {
	srv, err := New(&fakePoster{}, nil, nil)
	require.NoError(t, err)
	h := srv.Routes()

	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodGet, "/api/posts", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/posts", `{`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/posts", `{"title":"a"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/posts", `{"title":"a","markdown":"b","extra":1}`).Code)
}

func TestPostsAreSerialized(t *testing.T) {
	poster := &fakePoster{res: &publisher.Result{}, delay: 20 * time.Millisecond}
	srv, err := New(poster, nil, nil)
	require.NoError(t, err)
	h := srv.Routes()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := do(t, h, http.MethodPost, "/api/posts", `{"title":"a","markdown":"b"}`)
			assert.Equal(t, http.StatusOK, rec.Code)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), poster.maxSeen.Load())
	assert.Len(t, poster.got, 4)
}

type blockingPoster struct {
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (b *blockingPoster) Post(context.Context, publisher.Article) (*publisher.Result, error) {
	b.calls.Add(1)
	b.started <- struct{}{}
	<-b.release
	return &publisher.Result{}, nil
}

func TestQueuedPostGivesUpWhenRequestEnds(t *testing.T) {
	poster := &blockingPoster{started: make(chan struct{}, 1), release: make(chan struct{})}
	srv, err := New(poster, nil, nil)
	require.NoError(t, err)
	h := srv.Routes()

	first := make(chan int, 1)
	go func() {
		first <- do(t, h, http.MethodPost, "/api/posts", `{"title":"a","markdown":"b"}`).Code
	}()
	<-poster.started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/posts", strings.NewReader(`{"title":"c","markdown":"d"}`)).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, int32(1), poster.calls.Load())

	close(poster.release)
	assert.Equal(t, http.StatusOK, <-first)

	// The slot is free again once the first run finishes.
	poster.release = make(chan struct{})
	close(poster.release)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/posts", `{"title":"e","markdown":"f"}`).Code)
	assert.Equal(t, int32(2), poster.calls.Load())
}

func TestGenerate(t *testing.T) {
	gen := &fakeGenerator{}
	srv, err := New(&fakePoster{}, gen, nil)
	require.NoError(t, err)

	rec := do(t, srv.Routes(), http.MethodPost, "/api/generate", `{"topic":"Go","outline":["a","b"],"words":800}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var draft generator.Draft
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &draft))
	assert.Equal(t, "T", draft.Title)
	assert.Equal(t, "# T\n\nGo", draft.Markdown)
	assert.Equal(t, []string{"a", "b"}, gen.spec.Outline)
	assert.Equal(t, 800, gen.spec.Words)

	gen.err = errors.New("model down")
	rec = do(t, srv.Routes(), http.MethodPost, "/api/generate", `{"topic":"Go"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestGenerateDisabled(t *testing.T) {
	srv, err := New(&fakePoster{}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotImplemented, do(t, srv.Routes(), http.MethodPost, "/api/generate", `{}`).Code)
}

func TestHealthzAndAccessLog(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	srv, err := New(&fakePoster{}, nil, zap.New(core))
	require.NoError(t, err)

	rec := do(t, srv.Routes(), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	entries := logs.FilterMessage("http request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/healthz", fields["path"])
	assert.Equal(t, int64(200), fields["status"])
}

func TestNewRequiresPoster(t *testing.T) {
	_, err := New(nil, nil, nil)
	assert.Error(t, err)
}
