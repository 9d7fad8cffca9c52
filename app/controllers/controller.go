package controllers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"quill/app/middleware"
	"quill/app/models"
	"quill/app/services"
	"quill/app/views"
)

// maxBodyBytes caps JSON and form bodies.
const maxBodyBytes = 1 << 20

// errBadRequest marks a body that could not be decoded at all.
var errBadRequest = errors.New("malformed request body")

// responder holds what every controller needs to answer a request in either
// JSON or HTML.
type responder struct {
	views *views.Views
	log   *slog.Logger
}

func newResponder(v *views.Views, log *slog.Logger) responder {
	if log == nil {
		log = slog.Default()
	}
	return responder{views: v, log: log}
}

// wantsJSON reports whether the client should get JSON back.
func wantsJSON(r *http.Request) bool {
	if r.URL.Path == "/api" || strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// sentJSON reports whether the request body is JSON.
func sentJSON(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

func (c *responder) sendJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		c.log.Error("failed to encode response", "error", err)
	}
}

func (c *responder) render(w http.ResponseWriter, r *http.Request, status int, name string, page *views.Page) {
	page.Actor = middleware.Actor(r.Context())
	if page.Notice == "" {
		page.Notice = r.URL.Query().Get("notice")
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.views.Render(w, name, page); err != nil {
		c.log.Error("failed to render page",
			"request_id", middleware.RequestID(r.Context()),
			"page", name,
			"error", err,
		)
	}
}

// respond sends data as JSON, or renders the page for browsers.
func (c *responder) respond(w http.ResponseWriter, r *http.Request, name, title string, data any) {
	if wantsJSON(r) {
		c.sendJSON(w, http.StatusOK, data)
		return
	}
	c.render(w, r, http.StatusOK, name, &views.Page{Title: title, Data: data})
}

// redirect sends a browser to path with a notice to show there.
func (c *responder) redirect(w http.ResponseWriter, r *http.Request, path, notice string) {
	if notice != "" {
		path += "?notice=" + url.QueryEscape(notice)
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// sendError maps a service error onto a status code. Unexpected errors are
// logged and reported without detail.
func (c *responder) sendError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *services.ValidationError
	status, message := http.StatusInternalServerError, "Server Error."
	switch {
	case errors.As(err, &verr):
		status, message = http.StatusUnprocessableEntity, "The given data was invalid."
	case errors.Is(err, errBadRequest):
		status, message = http.StatusBadRequest, "The request body could not be read."
	case errors.Is(err, services.ErrUnauthenticated):
		status, message = http.StatusUnauthorized, "Unauthenticated."
	case errors.Is(err, services.ErrForbidden):
		status, message = http.StatusForbidden, "This action is unauthorized."
	case errors.Is(err, services.ErrNotFound):
		status, message = http.StatusNotFound, "Not Found."
	default:
		c.log.Error("request failed",
			"request_id", middleware.RequestID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}

	if wantsJSON(r) {
		body := map[string]any{"message": message}
		if verr != nil {
			body["errors"] = verr.Fields
		}
		c.sendJSON(w, status, body)
		return
	}
	if status == http.StatusUnauthorized {
		c.redirect(w, r, "/login", "Please log in to continue.")
		return
	}
	page := &views.Page{Title: http.StatusText(status), Data: message}
	if verr != nil {
		page.Errors = verr.Fields
	}
	c.render(w, r, status, "error", page)
}

// decodeJSON reads a JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.Join(errBadRequest, err)
	}
	return nil
}

// parseForm reads an url-encoded or multipart body.
func parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
			return errors.Join(errBadRequest, err)
		}
		return nil
	}
	if err := r.ParseForm(); err != nil {
		return errors.Join(errBadRequest, err)
	}
	return nil
}

// pageParam returns the ?page= value, defaulting to 1 and capped at
// models.MaxPage.
func pageParam(r *http.Request) int {
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil {
		return models.ClampPage(p)
	}
	return 1
}

// formInt parses an optional integer form field. Blank means nil.
func formInt(form url.Values, field string, verr *services.ValidationError, msg string) *int {
	raw := strings.TrimSpace(form.Get(field))
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		verr.Add(field, msg)
		return nil
	}
	return &n
}
