package controllers

import (
	"log/slog"
	"net/http"
	"time"

	"quill/app/middleware"
	"quill/app/services"
	"quill/app/views"
)

// HomeController serves the landing page, the dashboard and the health check
type HomeController struct {
	responder
	home *services.HomeService
	now  func() time.Time
}

// NewHomeController creates a new HomeController
func NewHomeController(home *services.HomeService, v *views.Views, log *slog.Logger) *HomeController {
	return &HomeController{responder: newResponder(v, log), home: home, now: time.Now}
}

// HealthCheck always answers with JSON
func (hc *HomeController) HealthCheck(w http.ResponseWriter, r *http.Request) {
	hc.sendJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": hc.now().UTC().Format(time.RFC3339),
	})
}

// Home shows the latest posts, the top categories and the featured post
func (hc *HomeController) Home(w http.ResponseWriter, r *http.Request) {
	view, err := hc.home.Home(r.Context())
	if err != nil {
		hc.sendError(w, r, err)
		return
	}
	hc.respond(w, r, "home", "", view)
}

// Dashboard shows the signed in user's most recent posts
func (hc *HomeController) Dashboard(w http.ResponseWriter, r *http.Request) {
	posts, err := hc.home.Dashboard(r.Context(), middleware.Actor(r.Context()))
	if err != nil {
		hc.sendError(w, r, err)
		return
	}
	if wantsJSON(r) {
		hc.sendJSON(w, http.StatusOK, map[string]any{"posts": posts})
		return
	}
	hc.render(w, r, http.StatusOK, "dashboard", &views.Page{Title: "Dashboard", Data: posts})
}

// NotFound answers requests that match no route
func (hc *HomeController) NotFound(w http.ResponseWriter, r *http.Request) {
	hc.sendError(w, r, services.ErrNotFound)
}
