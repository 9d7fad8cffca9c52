package routes

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"quill/app/models"
	"quill/app/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type validationBody struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors"`
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t, Options{})

	for _, path := range []string{"/health-check", "/api/health-check"} {
		t.Run(path, func(t *testing.T) {
			w := s.browse(http.MethodGet, path, nil, "")
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

			body := decode[map[string]string](t, w)
			assert.Equal(t, "ok", body["status"])
			_, err := time.Parse(time.RFC3339, body["timestamp"])
			assert.NoError(t, err)
		})
	}
}

func TestAPIAuth(t *testing.T) {
	s := newTestServer(t, Options{})

	t.Run("register", func(t *testing.T) {
		w := s.api(http.MethodPost, "/register", map[string]string{
			"name": "Ada", "email": "ada@example.com", "password": "password123",
		}, "")
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		session := decode[services.Session](t, w)
		assert.NotEmpty(t, session.Token)
		assert.Equal(t, "Ada", session.User.Name)
		assert.NotContains(t, w.Body.String(), "password")
	})

	t.Run("duplicate email", func(t *testing.T) {
		w := s.api(http.MethodPost, "/register", map[string]string{
			"name": "Ada", "email": "ADA@example.com", "password": "password123",
		}, "")
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "The email has already been taken.", decode[validationBody](t, w).Errors["email"])
	})

	t.Run("login", func(t *testing.T) {
		w := s.api(http.MethodPost, "/login", map[string]string{"email": "ada@example.com", "password": "password123"}, "")
		require.Equal(t, http.StatusOK, w.Code)
		token := decode[services.Session](t, w).Token

		dash := s.api(http.MethodGet, "/dashboard", nil, token)
		assert.Equal(t, http.StatusOK, dash.Code)
	})

	t.Run("bad credentials", func(t *testing.T) {
		w := s.api(http.MethodPost, "/login", map[string]string{"email": "ada@example.com", "password": "wrong-password"}, "")
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		body := decode[validationBody](t, w)
		assert.Equal(t, "The given data was invalid.", body.Message)
		assert.Equal(t, "These credentials do not match our records.", body.Errors["email"])
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"email":`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		s.handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("dashboard needs a token", func(t *testing.T) {
		w := s.api(http.MethodGet, "/dashboard", nil, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Unauthenticated.", decode[validationBody](t, w).Message)

		w = s.api(http.MethodGet, "/dashboard", nil, "not-a-token")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("logout", func(t *testing.T) {
		w := s.api(http.MethodPost, "/logout", nil, "")
		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}

func TestAPIPosts(t *testing.T) {
	s := newTestServer(t, Options{})
	ada, adaToken := s.signUp("Ada")
	_, eveToken := s.signUp("Eve")
	golang := s.category("Go")
	tips := s.tag("Tips")
	news := s.tag("News")

	var created models.Post

	t.Run("create requires a user", func(t *testing.T) {
		w := s.api(http.MethodPost, "/posts", map[string]any{"title": "x"}, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("create validates", func(t *testing.T) {
		w := s.api(http.MethodPost, "/posts", map[string]any{
			"status": "pending", "category_id": 999, "tags": []int{tips.ID, 999},
		}, adaToken)
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		errs := decode[validationBody](t, w).Errors
		assert.Equal(t, "Post title is required.", errs["title"])
		assert.Equal(t, "Post content is required.", errs["content"])
		assert.Equal(t, "Post status must be draft, published, or archived.", errs["status"])
		assert.Equal(t, "Selected category does not exist.", errs["category_id"])
		assert.Equal(t, "One or more selected tags do not exist.", errs["tags"])
	})

	t.Run("create", func(t *testing.T) {
		w := s.api(http.MethodPost, "/posts", map[string]any{
			"title":          "Hello, World!",
			"content":        "# Hi\n\nThis is **quill**.",
			"status":         "published",
			"category_id":    golang.ID,
			"featured_image": "https://img.example.com/hello.png",
			"tags":           []int{tips.ID, news.ID},
		}, adaToken)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		created = decode[models.Post](t, w)
		assert.Equal(t, "hello-world", created.Slug)
		assert.Equal(t, ada.ID, created.UserID)
		assert.NotNil(t, created.PublishedAt)
		assert.Equal(t, 1, created.ReadingTime)
		assert.Len(t, created.Tags, 2)
	})

	t.Run("same title gets a suffix", func(t *testing.T) {
		w := s.api(http.MethodPost, "/posts", map[string]any{
			"title": "Hello, World!", "content": "again", "status": "draft",
		}, adaToken)
		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "hello-world-2", decode[models.Post](t, w).Slug)
	})

	t.Run("show by slug and id counts views", func(t *testing.T) {
		w := s.api(http.MethodGet, "/posts/hello-world", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		view := decode[services.PostView](t, w)
		assert.Equal(t, int64(1), view.Post.Views)
		assert.Contains(t, view.ContentHTML, "<strong>quill</strong>")
		assert.Equal(t, "Ada", view.Post.Author.Name)
		assert.NotNil(t, view.RelatedPosts)

		w = s.api(http.MethodGet, "/posts/"+strconv.Itoa(created.ID), nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, int64(2), decode[services.PostView](t, w).Post.Views)
	})

	t.Run("drafts are hidden from others", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, s.api(http.MethodGet, "/posts/hello-world-2", nil, "").Code)
		assert.Equal(t, http.StatusNotFound, s.api(http.MethodGet, "/posts/hello-world-2", nil, eveToken).Code)
		assert.Equal(t, http.StatusOK, s.api(http.MethodGet, "/posts/hello-world-2", nil, adaToken).Code)
	})

	t.Run("index lists published posts only", func(t *testing.T) {
		w := s.api(http.MethodGet, "/posts", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		index := decode[services.PostIndex](t, w)
		require.Len(t, index.Posts.Data, 1)
		assert.Equal(t, created.ID, index.Posts.Data[0].ID)
		assert.Equal(t, 1, index.Posts.Total)
		assert.Equal(t, 12, index.Posts.PerPage)
		assert.Len(t, index.Categories, 1)
		assert.Len(t, index.Tags, 2)
	})

	t.Run("huge page numbers are capped", func(t *testing.T) {
		w := s.api(http.MethodGet, "/posts?page=9223372036854775807", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		index := decode[services.PostIndex](t, w)
		assert.Empty(t, index.Posts.Data)
		assert.Equal(t, models.MaxPage, index.Posts.CurrentPage)
		assert.Equal(t, 1, index.Posts.Total)
	})

	t.Run("forms", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, s.api(http.MethodGet, "/posts/create", nil, adaToken).Code)
		assert.Equal(t, http.StatusUnauthorized, s.api(http.MethodGet, "/posts/create", nil, "").Code)
		assert.Equal(t, http.StatusOK, s.api(http.MethodGet, "/posts/hello-world/edit", nil, adaToken).Code)
		assert.Equal(t, http.StatusForbidden, s.api(http.MethodGet, "/posts/hello-world/edit", nil, eveToken).Code)
	})

	t.Run("supplied slug is made url safe", func(t *testing.T) {
		for slug, want := range map[string]string{"a/b": "a-b", "what?x=1": "what-x-1"} {
			w := s.api(http.MethodPost, "/posts", map[string]any{
				"title": "Unsafe " + slug, "slug": slug, "content": "x", "status": "draft",
			}, adaToken)
			require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
			assert.Equal(t, want, decode[models.Post](t, w).Slug)
			assert.Equal(t, http.StatusOK, s.api(http.MethodGet, "/posts/"+want, nil, adaToken).Code)
		}
	})

	update := map[string]any{"title": "Hello again", "content": "changed", "status": "published"}

	t.Run("only the author may update", func(t *testing.T) {
		w := s.api(http.MethodPut, "/posts/hello-world", update, eveToken)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "This action is unauthorized.", decode[validationBody](t, w).Message)
	})

	t.Run("patch keeps omitted fields", func(t *testing.T) {
		w := s.api(http.MethodPatch, "/posts/hello-world", update, adaToken)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		post := decode[models.Post](t, w)
		assert.Equal(t, "Hello again", post.Title)
		assert.Equal(t, "hello-world", post.Slug)
		assert.Len(t, post.Tags, 2)
		require.NotNil(t, post.CategoryID)
		assert.Equal(t, golang.ID, *post.CategoryID)
		assert.Equal(t, "https://img.example.com/hello.png", post.FeaturedImage)
		assert.Equal(t, created.PublishedAt.Unix(), post.PublishedAt.Unix())
	})

	t.Run("update clears tags when empty", func(t *testing.T) {
		body := map[string]any{"title": "Hello again", "content": "changed", "status": "published", "tags": []int{}}
		w := s.api(http.MethodPut, "/posts/hello-world", body, adaToken)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, decode[models.Post](t, w).Tags)
	})

	t.Run("slug collision on update", func(t *testing.T) {
		body := map[string]any{"title": "x", "slug": "hello-world-2", "content": "x", "status": "draft"}
		w := s.api(http.MethodPut, "/posts/hello-world", body, adaToken)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "The slug has already been taken.", decode[validationBody](t, w).Errors["slug"])
	})

	t.Run("delete", func(t *testing.T) {
		assert.Equal(t, http.StatusForbidden, s.api(http.MethodDelete, "/posts/hello-world", nil, eveToken).Code)
		assert.Equal(t, http.StatusNoContent, s.api(http.MethodDelete, "/posts/hello-world", nil, adaToken).Code)
		assert.Equal(t, http.StatusNotFound, s.api(http.MethodGet, "/posts/hello-world", nil, adaToken).Code)
		assert.Equal(t, http.StatusNotFound, s.api(http.MethodDelete, "/posts/hello-world", nil, adaToken).Code)
	})
}

func TestAPIComments(t *testing.T) {
	s := newTestServer(t, Options{})
	ada, adaToken := s.signUp("Ada")
	_, eveToken := s.signUp("Eve")
	post := s.publish(ada, "Threads")
	other := s.publish(ada, "Elsewhere")

	w := s.api(http.MethodPost, "/comments", map[string]any{"content": "First!", "post_id": post.ID}, eveToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	root := decode[models.Comment](t, w)
	assert.Equal(t, models.CommentApproved, root.Status)
	require.NotNil(t, root.Author)
	assert.Equal(t, "Eve", root.Author.Name)

	w = s.api(http.MethodPost, "/comments", map[string]any{"content": "Reply", "post_id": post.ID, "parent_id": root.ID}, adaToken)
	require.Equal(t, http.StatusCreated, w.Code)
	reply := decode[models.Comment](t, w)

	t.Run("validation", func(t *testing.T) {
		tests := []struct {
			name  string
			body  map[string]any
			field string
			msg   string
		}{
			{"missing content", map[string]any{"post_id": post.ID}, "content", "Comment content is required."},
			{"missing post", map[string]any{"content": "x"}, "post_id", "Post ID is required."},
			{"unknown post", map[string]any{"content": "x", "post_id": 999}, "post_id", "Selected post does not exist."},
			{"unknown parent", map[string]any{"content": "x", "post_id": post.ID, "parent_id": 999}, "parent_id", "Parent comment does not exist."},
			{"parent elsewhere", map[string]any{"content": "x", "post_id": other.ID, "parent_id": root.ID}, "parent_id", "Parent comment belongs to a different post."},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				w := s.api(http.MethodPost, "/comments", tt.body, eveToken)
				require.Equal(t, http.StatusUnprocessableEntity, w.Code)
				assert.Equal(t, tt.msg, decode[validationBody](t, w).Errors[tt.field])
			})
		}
	})

	t.Run("anonymous", func(t *testing.T) {
		w := s.api(http.MethodPost, "/comments", map[string]any{"content": "x", "post_id": post.ID}, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("thread in post detail", func(t *testing.T) {
		w := s.api(http.MethodGet, "/posts/"+post.Slug, nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		view := decode[services.PostView](t, w)
		require.Len(t, view.Post.Comments, 1)
		require.Len(t, view.Post.Comments[0].Replies, 1)
		assert.Equal(t, reply.ID, view.Post.Comments[0].Replies[0].ID)
	})

	t.Run("delete", func(t *testing.T) {
		assert.Equal(t, http.StatusForbidden, s.api(http.MethodDelete, "/comments/"+strconv.Itoa(root.ID), nil, adaToken).Code)
		assert.Equal(t, http.StatusNoContent, s.api(http.MethodDelete, "/comments/"+strconv.Itoa(root.ID), nil, eveToken).Code)
		assert.Equal(t, http.StatusNotFound, s.api(http.MethodDelete, "/comments/"+strconv.Itoa(reply.ID), nil, adaToken).Code, "replies go with their parent")
	})
}

func TestAPICommentRateLimit(t *testing.T) {
	s := newTestServer(t, Options{CommentsPerMinute: 1, CommentBurst: 2})
	ada, token := s.signUp("Ada")
	post := s.publish(ada, "Busy")

	body := map[string]any{"content": "spam", "post_id": post.ID}
	assert.Equal(t, http.StatusCreated, s.api(http.MethodPost, "/comments", body, token).Code)
	assert.Equal(t, http.StatusCreated, s.api(http.MethodPost, "/comments", body, token).Code)
	assert.Equal(t, http.StatusTooManyRequests, s.api(http.MethodPost, "/comments", body, token).Code)
}

func TestAPITaxonomy(t *testing.T) {
	s := newTestServer(t, Options{})
	ada, token := s.signUp("Ada")
	golang := s.category("Go")
	s.category("Rust")
	tips := s.tag("Tips")

	inGo, err := s.svc.Posts.Create(s.ctx, ada, services.PostInput{
		Title: "Channels", Content: "x", Status: models.StatusPublished, CategoryID: &golang.ID, Tags: []int{tips.ID},
	})
	require.NoError(t, err)
	_, err = s.svc.Posts.Create(s.ctx, ada, services.PostInput{
		Title: "Draft", Content: "x", Status: models.StatusDraft, CategoryID: &golang.ID,
	})
	require.NoError(t, err)

	t.Run("categories index counts every post", func(t *testing.T) {
		w := s.api(http.MethodGet, "/categories", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		categories := decode[[]models.Category](t, w)
		require.Len(t, categories, 2)
		assert.Equal(t, "go", categories[0].Slug)
		assert.Equal(t, 2, *categories[0].PostsCount)
	})

	t.Run("category show lists published posts", func(t *testing.T) {
		w := s.api(http.MethodGet, "/categories/go", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		page := decode[services.CategoryPage](t, w)
		assert.Equal(t, golang.ID, page.Category.ID)
		require.Len(t, page.Posts.Data, 1)
		assert.Equal(t, inGo.ID, page.Posts.Data[0].ID)
	})

	t.Run("tags", func(t *testing.T) {
		w := s.api(http.MethodGet, "/tags", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decode[[]models.Tag](t, w), 1)

		w = s.api(http.MethodGet, "/tags/tips", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decode[services.TagPage](t, w).Posts.Data, 1)
	})

	t.Run("unknown slugs", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, s.api(http.MethodGet, "/categories/nope", nil, "").Code)
		assert.Equal(t, http.StatusNotFound, s.api(http.MethodGet, "/tags/nope", nil, "").Code)
	})

	t.Run("create", func(t *testing.T) {
		w := s.api(http.MethodPost, "/categories", map[string]string{"name": "Web Dev", "color": "#3366ff"}, token)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Equal(t, "web-dev", decode[models.Category](t, w).Slug)

		w = s.api(http.MethodPost, "/tags", map[string]string{"name": "Tips"}, token)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

		assert.Equal(t, http.StatusUnauthorized, s.api(http.MethodPost, "/tags", map[string]string{"name": "New"}, "").Code)
	})
}

func TestAPIHome(t *testing.T) {
	s := newTestServer(t, Options{})
	ada, token := s.signUp("Ada")
	for i := 0; i < 8; i++ {
		s.publish(ada, "Post "+strconv.Itoa(i))
	}

	w := s.api(http.MethodGet, "/", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	home := decode[services.HomeView](t, w)
	assert.Len(t, home.Posts, 6)
	assert.NotNil(t, home.FeaturedPost)

	w = s.api(http.MethodGet, "/dashboard", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	dash := decode[map[string][]models.Post](t, w)
	assert.Len(t, dash["posts"], 5)
}

func TestAPINotFound(t *testing.T) {
	s := newTestServer(t, Options{})
	w := s.api(http.MethodGet, "/nowhere", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "Not Found.", decode[validationBody](t, w).Message)
}
