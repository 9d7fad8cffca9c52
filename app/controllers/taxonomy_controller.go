package controllers

import (
	"log/slog"
	"net/http"

	"quill/app/middleware"
	"quill/app/services"
	"quill/app/views"

	"github.com/gorilla/mux"
)

// CategoryController handles HTTP requests for categories
type CategoryController struct {
	responder
	categories *services.CategoryService
}

// NewCategoryController creates a new CategoryController
func NewCategoryController(categories *services.CategoryService, v *views.Views, log *slog.Logger) *CategoryController {
	return &CategoryController{responder: newResponder(v, log), categories: categories}
}

// Index lists categories with their post counts
func (cc *CategoryController) Index(w http.ResponseWriter, r *http.Request) {
	categories, err := cc.categories.Index(r.Context())
	if err != nil {
		cc.sendError(w, r, err)
		return
	}
	cc.respond(w, r, "categories/index", "Categories", categories)
}

// Show lists the published posts of one category
func (cc *CategoryController) Show(w http.ResponseWriter, r *http.Request) {
	page, err := cc.categories.Show(r.Context(), mux.Vars(r)["slug"], pageParam(r))
	if err != nil {
		cc.sendError(w, r, err)
		return
	}
	cc.respond(w, r, "categories/show", page.Category.Name, page)
}

// Create adds a category
func (cc *CategoryController) Create(w http.ResponseWriter, r *http.Request) {
	input, err := decodeTaxonomyInput(w, r)
	if err != nil {
		cc.sendError(w, r, err)
		return
	}
	category, err := cc.categories.Create(r.Context(), middleware.Actor(r.Context()), input)
	if err != nil {
		cc.sendError(w, r, err)
		return
	}
	if wantsJSON(r) {
		cc.sendJSON(w, http.StatusCreated, category)
		return
	}
	cc.redirect(w, r, "/categories/"+category.Slug, "Category created successfully.")
}

// TagController handles HTTP requests for tags
type TagController struct {
	responder
	tags *services.TagService
}

// NewTagController creates a new TagController
func NewTagController(tags *services.TagService, v *views.Views, log *slog.Logger) *TagController {
	return &TagController{responder: newResponder(v, log), tags: tags}
}

// Index lists tags with their post counts
func (tc *TagController) Index(w http.ResponseWriter, r *http.Request) {
	tags, err := tc.tags.Index(r.Context())
	if err != nil {
		tc.sendError(w, r, err)
		return
	}
	tc.respond(w, r, "tags/index", "Tags", tags)
}

// Show lists the published posts carrying one tag
func (tc *TagController) Show(w http.ResponseWriter, r *http.Request) {
	page, err := tc.tags.Show(r.Context(), mux.Vars(r)["slug"], pageParam(r))
	if err != nil {
		tc.sendError(w, r, err)
		return
	}
	tc.respond(w, r, "tags/show", "#"+page.Tag.Name, page)
}

// Create adds a tag
func (tc *TagController) Create(w http.ResponseWriter, r *http.Request) {
	input, err := decodeTaxonomyInput(w, r)
	if err != nil {
		tc.sendError(w, r, err)
		return
	}
	tag, err := tc.tags.Create(r.Context(), middleware.Actor(r.Context()), input)
	if err != nil {
		tc.sendError(w, r, err)
		return
	}
	if wantsJSON(r) {
		tc.sendJSON(w, http.StatusCreated, tag)
		return
	}
	tc.redirect(w, r, "/tags/"+tag.Slug, "Tag created successfully.")
}

func decodeTaxonomyInput(w http.ResponseWriter, r *http.Request) (services.TaxonomyInput, error) {
	var input services.TaxonomyInput
	if sentJSON(r) {
		return input, decodeJSON(w, r, &input)
	}
	if err := parseForm(w, r); err != nil {
		return input, err
	}
	input.Name = r.PostForm.Get("name")
	input.Slug = r.PostForm.Get("slug")
	input.Description = r.PostForm.Get("description")
	input.Color = r.PostForm.Get("color")
	return input, nil
}
