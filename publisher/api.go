package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"auto_note_article_publisher/auth"
	"auto_note_article_publisher/executor"
)

const (
	textNotesPath   = "/text_notes"
	uploadImagePath = "/upload_image"
	statusDraft     = "draft"
	xsrfCookie      = "XSRF-TOKEN"
	xsrfHeader      = "X-XSRF-TOKEN"
	bodySummaryMax  = 200
)

// Draft is a note.com article record created by a run.
type Draft struct {
	ID  string
	Key string
}

// Image is an uploaded eyecatch.
type Image struct {
	Key string
	URL string
}

type createDraftPayload struct {
	Body        string  `json:"body"`
	Name        string  `json:"name"`
	TemplateKey *string `json:"template_key"`
}

type updateDraftPayload struct {
	Body             string `json:"body"`
	Name             string `json:"name"`
	Status           string `json:"status"`
	EyecatchImageKey string `json:"eyecatch_image_key,omitempty"`
}

type createDraftResp struct {
	Data struct {
		ID  json.RawMessage `json:"id"`
		Key string          `json:"key"`
	} `json:"data"`
}

type uploadImageResp struct {
	Data struct {
		Key string `json:"key"`
		URL string `json:"url"`
	} `json:"data"`
}

func (p *Publisher) createDraft(ctx context.Context, bundle auth.Bundle, title, html string) (Draft, error) {
	body, err := json.Marshal(createDraftPayload{Body: html, Name: title})
	if err != nil {
		return Draft{}, newPostError(KindDraftCreate, err, "encode payload")
	}

	resp, err := p.exec.Execute(ctx, p.jsonRequest(http.MethodPost, p.apiURL(textNotesPath), body, bundle))
	if err != nil {
		return Draft{}, newPostError(KindDraftCreate, err, "request failed")
	}
	if !resp.OK() {
		return Draft{}, newPostError(KindDraftCreate, nil, "status %d: %s", resp.StatusCode, describeBody(resp))
	}

	var data createDraftResp
	if err := json.Unmarshal(resp.Body, &data); err != nil {
		return Draft{}, newPostError(KindDraftCreate, err, "decode response")
	}
	id, err := rawID(data.Data.ID)
	if err != nil {
		return Draft{}, newPostError(KindDraftCreate, err, "malformed response")
	}
	if data.Data.Key == "" {
		return Draft{}, newPostError(KindDraftCreate, nil, "malformed response: data.key missing")
	}
	return Draft{ID: id, Key: data.Data.Key}, nil
}

func (p *Publisher) uploadImage(ctx context.Context, bundle auth.Bundle, imagePath string) (Image, error) {
	info, err := os.Stat(imagePath)
	if err != nil {
		return Image{}, newPostError(KindImage, err, "image not found: %s", imagePath)
	}
	if !info.Mode().IsRegular() {
		return Image{}, newPostError(KindImage, nil, "image is not a regular file: %s", imagePath)
	}
	if info.Size() > p.cfg.Image.MaxBytes {
		return Image{}, newPostError(KindImage, nil, "image too large: %.1fMB exceeds %.1fMB",
			float64(info.Size())/1024/1024, float64(p.cfg.Image.MaxBytes)/1024/1024)
	}

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return Image{}, newPostError(KindImage, err, "read image")
	}
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(imagePath)))
	header.Set("Content-Type", imageContentType(imagePath))
	part, err := writer.CreatePart(header)
	if err != nil {
		return Image{}, newPostError(KindImage, err, "build multipart body")
	}
	if _, err := part.Write(data); err != nil {
		return Image{}, newPostError(KindImage, err, "build multipart body")
	}
	if err := writer.Close(); err != nil {
		return Image{}, newPostError(KindImage, err, "build multipart body")
	}

	req := p.baseRequest(http.MethodPost, p.apiURL(uploadImagePath), bundle)
	req.Body = buf.Bytes()
	req.ContentType = writer.FormDataContentType()

	resp, err := p.exec.Execute(ctx, req)
	if err != nil {
		return Image{}, newPostError(KindImage, err, "request failed")
	}
	if !resp.OK() {
		return Image{}, newPostError(KindImage, nil, "status %d: %s", resp.StatusCode, describeBody(resp))
	}
	var out uploadImageResp
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return Image{}, newPostError(KindImage, err, "decode response")
	}
	if out.Data.Key == "" || out.Data.URL == "" {
		return Image{}, newPostError(KindImage, nil, "malformed response: data.key or data.url missing")
	}
	return Image{Key: out.Data.Key, URL: out.Data.URL}, nil
}

func (p *Publisher) finalizeDraft(ctx context.Context, bundle auth.Bundle, draft Draft, title, html, imageKey string) error {
	body, err := json.Marshal(updateDraftPayload{
		Body:             html,
		Name:             title,
		Status:           statusDraft,
		EyecatchImageKey: imageKey,
	})
	if err != nil {
		return newPostError(KindFinalize, err, "encode payload")
	}

	target := p.apiURL(textNotesPath + "/" + url.PathEscape(draft.ID))
	resp, err := p.exec.Execute(ctx, p.jsonRequest(http.MethodPut, target, body, bundle))
	if err != nil {
		return newPostError(KindFinalize, err, "request failed")
	}
	if !resp.OK() {
		return newPostError(KindFinalize, nil, "status %d: %s", resp.StatusCode, describeBody(resp))
	}
	return nil
}

func (p *Publisher) apiURL(path string) string {
	return strings.TrimRight(p.cfg.Platform.APIBase, "/") + path
}

func (p *Publisher) baseRequest(method, target string, bundle auth.Bundle) executor.Request {
	req := executor.Request{
		Method:  method,
		URL:     target,
		Header:  make(http.Header),
		Cookies: bundle.Cookies(),
	}
	if token, ok := bundle.Get(xsrfCookie); ok {
		if decoded, err := url.QueryUnescape(token); err == nil {
			token = decoded
		}
		req.Header.Set(xsrfHeader, token)
	}
	return req
}

func (p *Publisher) jsonRequest(method, target string, body []byte, bundle auth.Bundle) executor.Request {
	req := p.baseRequest(method, target, bundle)
	req.Body = body
	req.ContentType = "application/json"
	return req
}

// rawID accepts the draft id as either a JSON number or a string.
func rawID(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", errors.New("data.id missing")
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", fmt.Errorf("data.id: %w", err)
		}
		if s == "" {
			return "", errors.New("data.id empty")
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return "", fmt.Errorf("data.id: %w", err)
	}
	return n.String(), nil
}

// describeBody shortens a failed response for log lines. HTML error pages
// are reduced to their <title>.
func describeBody(resp *executor.Response) string {
	if strings.Contains(resp.Header.Get("Content-Type"), "html") {
		if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body)); err == nil {
			if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
				return title
			}
			return truncate(strings.Join(strings.Fields(doc.Text()), " "), bodySummaryMax)
		}
	}
	return truncate(strings.TrimSpace(string(resp.Body)), bodySummaryMax)
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}

func imageContentType(path string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
