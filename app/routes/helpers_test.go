package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"quill/app/auth"
	"quill/app/middleware"
	"quill/app/models"
	"quill/app/repositories"
	"quill/app/services"
	"quill/app/views"

	"github.com/stretchr/testify/require"
)

type testServer struct {
	t       *testing.T
	ctx     context.Context
	store   *repositories.Store
	svc     *services.Services
	handler http.Handler
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	db, err := repositories.OpenBadger("", nil)
	require.NoError(t, err)
	store := repositories.NewBadgerStore(db)
	t.Cleanup(func() { store.Close() })

	tokens, err := auth.NewTokens("routes-test-secret", time.Hour)
	require.NoError(t, err)
	v, err := views.New()
	require.NoError(t, err)

	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	svc := services.New(store, tokens)
	return &testServer{
		t:       t,
		ctx:     context.Background(),
		store:   store,
		svc:     svc,
		handler: SetupRoutes(svc, v, opts),
	}
}

// signUp registers a user and returns it with a bearer token.
func (s *testServer) signUp(name string) (*models.User, string) {
	s.t.Helper()
	session, err := s.svc.Auth.Register(s.ctx, services.RegisterInput{
		Name:     name,
		Email:    strings.ToLower(name) + "@example.com",
		Password: "password123",
	})
	require.NoError(s.t, err)
	return session.User, session.Token
}

func (s *testServer) category(name string) *models.Category {
	s.t.Helper()
	c := &models.Category{Name: name, Slug: strings.ToLower(name)}
	require.NoError(s.t, s.store.Categories.Create(s.ctx, c))
	return c
}

func (s *testServer) tag(name string) *models.Tag {
	s.t.Helper()
	tag := &models.Tag{Name: name, Slug: strings.ToLower(name)}
	require.NoError(s.t, s.store.Tags.Create(s.ctx, tag))
	return tag
}

// publish creates a published post through the service layer.
func (s *testServer) publish(author *models.User, title string, tags ...int) *models.Post {
	s.t.Helper()
	post, err := s.svc.Posts.Create(s.ctx, author, services.PostInput{
		Title:   title,
		Content: "Some **markdown** about " + title,
		Status:  models.StatusPublished,
		Tags:    tags,
	})
	require.NoError(s.t, err)
	return post
}

// api sends a JSON request under /api.
func (s *testServer) api(method, path string, body any, token string) *httptest.ResponseRecorder {
	s.t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(s.t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, "/api"+path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

// browse sends a browser request, authenticated by cookie when token is set.
func (s *testServer) browse(method, path string, form url.Values, token string) *httptest.ResponseRecorder {
	s.t.Helper()
	var r io.Reader
	if form != nil {
		r = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, r)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: middleware.TokenCookie, Value: token})
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// browseAccept sends a request outside /api asking for a given media type.
func (s *testServer) browseAccept(method, path, accept string) *httptest.ResponseRecorder {
	s.t.Helper()
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Accept", accept)
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func draftInput(title string) services.PostInput {
	return services.PostInput{Title: title, Content: "draft body", Status: models.StatusDraft}
}
