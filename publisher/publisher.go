// Package publisher posts Markdown articles to note.com as drafts: log in,
// create the draft, attach an optional eyecatch image, then save it.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"auto_note_article_publisher/auth"
	"auto_note_article_publisher/executor"
	"auto_note_article_publisher/markdown"
)

// State is a step of the posting state machine.
type State string

const (
	StateStart         State = "start"
	StateAuthenticated State = "authenticated"
	StateDraftCreated  State = "draft_created"
	StateImageUploaded State = "image_uploaded"
	StateFinalized     State = "finalized"
	StateFailed        State = "failed"
)

// Article describes the content to be posted.
type Article struct {
	Title     string
	Markdown  string
	ImagePath string
}

// Result describes one run. It is returned even when the run fails.
type Result struct {
	RunID       string
	State       State
	Transitions []State
	Draft       Draft
	Image       *Image
	// ImageErr holds an absorbed image failure; the draft was still saved.
	ImageErr error
	URL      string
}

func (r *Result) moveTo(s State) {
	r.State = s
	r.Transitions = append(r.Transitions, s)
}

// Deps are the collaborators of a Publisher. Only Acquirer is required.
type Deps struct {
	Acquirer auth.Acquirer
	Executor *executor.Executor
	Renderer markdown.Renderer
	Logger   *zap.Logger
}

// Publisher runs posting pipelines for one note.com account. Runs share no
// mutable state; each one acquires its own credential bundle.
type Publisher struct {
	cfg      Config
	identity auth.Identity
	acquirer auth.Acquirer
	exec     *executor.Executor
	renderer markdown.Renderer
	logger   *zap.Logger
}

// New validates cfg and the identity and wires defaults for missing deps.
func New(cfg Config, id auth.Identity, deps Deps) (*Publisher, error) {
	if !id.Valid() {
		return nil, ErrMissingIdentity
	}
	if deps.Acquirer == nil {
		return nil, errors.New("credential acquirer is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	renderer := deps.Renderer
	if renderer == nil {
		r, err := markdown.New(cfg.Markdown.Renderer)
		if err != nil {
			return nil, err
		}
		renderer = r
	}
	exec := deps.Executor
	if exec == nil {
		exec = executor.New(cfg.ExecutorConfig(), nil, logger)
	}
	return &Publisher{
		cfg:      cfg,
		identity: id,
		acquirer: deps.Acquirer,
		exec:     exec,
		renderer: renderer,
		logger:   logger,
	}, nil
}

// Post runs the pipeline once. On failure the returned error is a
// *PostError and the Result records how far the run got. Image problems
// are not failures: they land on Result.ImageErr.
func (p *Publisher) Post(ctx context.Context, art Article) (*Result, error) {
	res := &Result{RunID: uuid.NewString()}
	res.moveTo(StateStart)
	log := p.logger.With(zap.String("run_id", res.RunID), zap.String("title", art.Title))

	fail := func(err error) (*Result, error) {
		res.moveTo(StateFailed)
		var pe *PostError
		if !errors.As(err, &pe) {
			pe = newPostError(KindDraftCreate, err, "unexpected error")
		}
		log.Error("post failed", zap.String("kind", string(pe.Kind)), zap.String("reason", pe.Reason), zap.Error(pe.Err))
		return res, pe
	}

	log.Info("authenticating")
	var bundle auth.Bundle
	err := guard(KindAuth, func() error {
		b, err := p.acquirer.Acquire(ctx, p.identity)
		if err != nil {
			return newPostError(KindAuth, err, "login failed")
		}
		if b.Empty() {
			return newPostError(KindAuth, nil, "login returned no session cookies")
		}
		bundle = b
		return nil
	})
	if err != nil {
		return fail(err)
	}
	res.moveTo(StateAuthenticated)

	log.Info("creating draft")
	var html string
	err = guard(KindDraftCreate, func() error {
		html = p.renderer.Render(art.Markdown)
		d, err := p.createDraft(ctx, bundle, art.Title, html)
		res.Draft = d
		return err
	})
	if err != nil {
		return fail(err)
	}
	res.moveTo(StateDraftCreated)
	log.Info("draft created", zap.String("article_id", res.Draft.ID), zap.String("article_key", res.Draft.Key))

	var imageKey string
	if art.ImagePath != "" {
		log.Info("uploading image", zap.String("path", art.ImagePath))
		err = guard(KindImage, func() error {
			img, err := p.uploadImage(ctx, bundle, art.ImagePath)
			if err == nil {
				res.Image = &img
			}
			return err
		})
		if err != nil {
			res.ImageErr = err
			log.Warn("image upload failed, saving draft without eyecatch", zap.String("kind", string(KindImage)), zap.Error(err))
		} else {
			imageKey = res.Image.Key
			res.moveTo(StateImageUploaded)
			log.Info("image uploaded", zap.String("image_key", imageKey))
		}
	}

	log.Info("saving draft")
	err = guard(KindFinalize, func() error {
		return p.finalizeDraft(ctx, bundle, res.Draft, art.Title, html, imageKey)
	})
	if err != nil {
		return fail(err)
	}
	res.moveTo(StateFinalized)
	res.URL = p.ArticleURL(res.Draft.Key)
	log.Info("post completed", zap.String("url", res.URL), zap.Bool("eyecatch", imageKey != ""))
	return res, nil
}

// PostToNote is the boolean form of Post: the reason for a false result is
// already logged.
func (p *Publisher) PostToNote(ctx context.Context, art Article) bool {
	_, err := p.Post(ctx, art)
	return err == nil
}

// ArticleURL builds the public URL of a note from its key.
func (p *Publisher) ArticleURL(key string) string {
	base := strings.TrimRight(p.cfg.Platform.BaseURL, "/")
	if p.cfg.Platform.Owner == "" {
		return fmt.Sprintf("%s/n/%s", base, url.PathEscape(key))
	}
	return fmt.Sprintf("%s/%s/n/%s", base, url.PathEscape(p.cfg.Platform.Owner), url.PathEscape(key))
}

// guard converts a panic inside a stage into a PostError of that stage.
func guard(kind Kind, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newPostError(kind, fmt.Errorf("%v", r), "panic")
		}
	}()
	return fn()
}
