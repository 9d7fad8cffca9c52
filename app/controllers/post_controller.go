package controllers

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"quill/app/middleware"
	"quill/app/models"
	"quill/app/services"
	"quill/app/views"

	"github.com/gorilla/mux"
)

// formTimeLayouts are the published_at formats accepted from HTML forms.
var formTimeLayouts = []string{"2006-01-02T15:04", time.RFC3339, "2006-01-02"}

// PostController handles HTTP requests for blog posts
type PostController struct {
	responder
	posts *services.PostService
}

// NewPostController creates a new PostController
func NewPostController(posts *services.PostService, v *views.Views, log *slog.Logger) *PostController {
	return &PostController{responder: newResponder(v, log), posts: posts}
}

// Index lists published posts
func (pc *PostController) Index(w http.ResponseWriter, r *http.Request) {
	index, err := pc.posts.Index(r.Context(), pageParam(r))
	if err != nil {
		pc.sendError(w, r, err)
		return
	}
	pc.respond(w, r, "posts/index", "Posts", index)
}

// Show displays a single post by slug or id
func (pc *PostController) Show(w http.ResponseWriter, r *http.Request) {
	view, err := pc.posts.Show(r.Context(), middleware.Actor(r.Context()), mux.Vars(r)["slug"])
	if err != nil {
		pc.sendError(w, r, err)
		return
	}
	pc.respond(w, r, "posts/show", view.Post.Title, view)
}

// New displays the form for creating a new post
func (pc *PostController) New(w http.ResponseWriter, r *http.Request) {
	form, err := pc.posts.CreateForm(r.Context(), middleware.Actor(r.Context()))
	if err != nil {
		pc.sendError(w, r, err)
		return
	}
	pc.respond(w, r, "posts/form", "New post", form)
}

// Edit displays the form for editing a post
func (pc *PostController) Edit(w http.ResponseWriter, r *http.Request) {
	form, err := pc.posts.EditForm(r.Context(), middleware.Actor(r.Context()), mux.Vars(r)["slug"])
	if err != nil {
		pc.sendError(w, r, err)
		return
	}
	pc.respond(w, r, "posts/form", "Edit post", form)
}

// Create handles creating a new post
func (pc *PostController) Create(w http.ResponseWriter, r *http.Request) {
	actor := middleware.Actor(r.Context())
	input, err := decodePostInput(w, r)
	if err == nil {
		var post *models.Post
		post, err = pc.posts.Create(r.Context(), actor, input)
		if err == nil {
			if wantsJSON(r) {
				pc.sendJSON(w, http.StatusCreated, post)
				return
			}
			pc.redirect(w, r, "/posts/"+url.PathEscape(post.Slug), "Post created successfully.")
			return
		}
	}

	if pc.reshowForm(w, r, err, input, "New post", func() (*services.PostForm, error) {
		return pc.posts.CreateForm(r.Context(), actor)
	}) {
		return
	}
	pc.sendError(w, r, err)
}

// Update handles editing an existing post
func (pc *PostController) Update(w http.ResponseWriter, r *http.Request) {
	actor := middleware.Actor(r.Context())
	key := mux.Vars(r)["slug"]
	input, err := decodePostInput(w, r)
	if err == nil {
		var post *models.Post
		post, err = pc.posts.Update(r.Context(), actor, key, input)
		if err == nil {
			if wantsJSON(r) {
				pc.sendJSON(w, http.StatusOK, post)
				return
			}
			pc.redirect(w, r, "/posts/"+url.PathEscape(post.Slug), "Post updated successfully.")
			return
		}
	}

	if pc.reshowForm(w, r, err, input, "Edit post", func() (*services.PostForm, error) {
		return pc.posts.EditForm(r.Context(), actor, key)
	}) {
		return
	}
	pc.sendError(w, r, err)
}

// Delete handles deleting a post
func (pc *PostController) Delete(w http.ResponseWriter, r *http.Request) {
	if err := pc.posts.Delete(r.Context(), middleware.Actor(r.Context()), mux.Vars(r)["slug"]); err != nil {
		pc.sendError(w, r, err)
		return
	}
	if wantsJSON(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	pc.redirect(w, r, "/posts", "Post deleted successfully.")
}

// reshowForm renders the post form again with the submitted values when a
// browser submission fails validation. It reports whether it responded.
func (pc *PostController) reshowForm(w http.ResponseWriter, r *http.Request, err error, input services.PostInput, title string, load func() (*services.PostForm, error)) bool {
	var verr *services.ValidationError
	if wantsJSON(r) || !errors.As(err, &verr) {
		return false
	}
	form, ferr := load()
	if ferr != nil {
		return false
	}
	form.Post = draftPost(form.Post, input)
	pc.render(w, r, http.StatusUnprocessableEntity, "posts/form", &views.Page{
		Title:  title,
		Errors: verr.Fields,
		Data:   form,
	})
	return true
}

// draftPost overlays submitted values on the stored post, keeping its id
// and slug so the form still posts to the right place.
func draftPost(stored *models.Post, input services.PostInput) *models.Post {
	draft := &models.Post{
		Title:         input.Title,
		Slug:          input.Slug,
		Excerpt:       input.Excerpt,
		Content:       input.Content,
		FeaturedImage: input.FeaturedImage,
		Status:        input.Status,
		PublishedAt:   input.PublishedAt,
		CategoryID:    input.CategoryID,
	}
	if stored != nil {
		draft.ID = stored.ID
		draft.Slug = stored.Slug
		draft.Tags = stored.Tags
	}
	if input.Tags != nil {
		draft.Tags = make([]*models.Tag, 0, len(input.Tags))
		for _, id := range input.Tags {
			draft.Tags = append(draft.Tags, &models.Tag{ID: id})
		}
	}
	return draft
}

// decodePostInput reads a post from a JSON body or an HTML form.
func decodePostInput(w http.ResponseWriter, r *http.Request) (services.PostInput, error) {
	var input services.PostInput
	if sentJSON(r) {
		return input, decodeJSON(w, r, &input)
	}
	if err := parseForm(w, r); err != nil {
		return input, err
	}
	return postInputFromForm(r.PostForm)
}

func postInputFromForm(form url.Values) (services.PostInput, error) {
	verr := services.NewValidationError()
	input := services.PostInput{
		Title:         form.Get("title"),
		Slug:          form.Get("slug"),
		Excerpt:       form.Get("excerpt"),
		Content:       form.Get("content"),
		FeaturedImage: form.Get("featured_image"),
		Status:        models.PostStatus(form.Get("status")),
		CategoryID:    formInt(form, "category_id", verr, "Selected category does not exist."),
		ReadingTime:   formInt(form, "reading_time", verr, "The reading time must be an integer."),
		Sent:          make(map[string]bool, len(form)),
	}
	for field := range form {
		input.Sent[field] = true
	}

	if raw := strings.TrimSpace(form.Get("published_at")); raw != "" {
		input.PublishedAt = parseFormTime(raw)
		if input.PublishedAt == nil {
			verr.Add("published_at", "The published at is not a valid date.")
		}
	}

	// _tags marks a form that renders tag checkboxes, so an empty
	// selection clears the tags instead of leaving them alone.
	if _, ok := form["_tags"]; ok || len(form["tags"]) > 0 {
		input.Tags = []int{}
		for _, raw := range form["tags"] {
			if raw = strings.TrimSpace(raw); raw == "" {
				continue
			}
			id, err := strconv.Atoi(raw)
			if err != nil {
				verr.Add("tags", "One or more selected tags do not exist.")
				continue
			}
			input.Tags = append(input.Tags, id)
		}
	}
	return input, verr.OrNil()
}

func parseFormTime(raw string) *time.Time {
	for _, layout := range formTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
