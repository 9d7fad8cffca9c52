package controllers

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"quill/app/middleware"
	"quill/app/services"
	"quill/app/views"

	"github.com/gorilla/mux"
)

// CommentController handles HTTP requests for comments
type CommentController struct {
	responder
	comments *services.CommentService
}

// NewCommentController creates a new CommentController
func NewCommentController(comments *services.CommentService, v *views.Views, log *slog.Logger) *CommentController {
	return &CommentController{responder: newResponder(v, log), comments: comments}
}

// Create handles creating a new comment or reply
func (cc *CommentController) Create(w http.ResponseWriter, r *http.Request) {
	input, err := decodeCommentInput(w, r)
	if err != nil {
		cc.sendError(w, r, err)
		return
	}

	comment, post, err := cc.comments.Create(r.Context(), middleware.Actor(r.Context()), input)
	if err != nil {
		cc.sendError(w, r, err)
		return
	}
	if wantsJSON(r) {
		cc.sendJSON(w, http.StatusCreated, comment)
		return
	}
	cc.redirect(w, r, "/posts/"+url.PathEscape(post.Slug), "Comment added successfully.")
}

// Delete handles deleting a comment and its replies
func (cc *CommentController) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		cc.sendError(w, r, services.ErrNotFound)
		return
	}

	post, err := cc.comments.Delete(r.Context(), middleware.Actor(r.Context()), id)
	if err != nil {
		cc.sendError(w, r, err)
		return
	}
	if wantsJSON(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	cc.redirect(w, r, "/posts/"+url.PathEscape(post.Slug), "Comment deleted successfully.")
}

func decodeCommentInput(w http.ResponseWriter, r *http.Request) (services.CommentInput, error) {
	var input services.CommentInput
	if sentJSON(r) {
		return input, decodeJSON(w, r, &input)
	}
	if err := parseForm(w, r); err != nil {
		return input, err
	}
	return commentInputFromForm(r.PostForm)
}

func commentInputFromForm(form url.Values) (services.CommentInput, error) {
	verr := services.NewValidationError()
	input := services.CommentInput{
		Content:  form.Get("content"),
		ParentID: formInt(form, "parent_id", verr, "Parent comment does not exist."),
	}
	if id := formInt(form, "post_id", verr, "Selected post does not exist."); id != nil {
		input.PostID = *id
	}
	return input, verr.OrNil()
}
