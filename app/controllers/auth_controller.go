package controllers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"quill/app/middleware"
	"quill/app/services"
	"quill/app/views"
)

// AuthController signs users up, in and out
type AuthController struct {
	responder
	auth *services.AuthService
}

// NewAuthController creates a new AuthController
func NewAuthController(auth *services.AuthService, v *views.Views, log *slog.Logger) *AuthController {
	return &AuthController{responder: newResponder(v, log), auth: auth}
}

// LoginForm shows the login page
func (ac *AuthController) LoginForm(w http.ResponseWriter, r *http.Request) {
	ac.render(w, r, http.StatusOK, "auth/login", &views.Page{Title: "Log in"})
}

// RegisterForm shows the registration page
func (ac *AuthController) RegisterForm(w http.ResponseWriter, r *http.Request) {
	ac.render(w, r, http.StatusOK, "auth/register", &views.Page{Title: "Register"})
}

// Register creates an account and signs it in
func (ac *AuthController) Register(w http.ResponseWriter, r *http.Request) {
	var input services.RegisterInput
	if err := ac.decode(w, r, &input, func() {
		input.Name = r.PostForm.Get("name")
		input.Email = r.PostForm.Get("email")
		input.Password = r.PostForm.Get("password")
	}); err != nil {
		ac.sendError(w, r, err)
		return
	}

	session, err := ac.auth.Register(r.Context(), input)
	if err != nil {
		input.Password = ""
		ac.authError(w, r, err, "auth/register", "Register", input)
		return
	}
	ac.signIn(w, r, http.StatusCreated, session, "Welcome to Quill, "+session.User.Name+".")
}

// Login checks credentials and signs the user in
func (ac *AuthController) Login(w http.ResponseWriter, r *http.Request) {
	var input services.LoginInput
	if err := ac.decode(w, r, &input, func() {
		input.Email = r.PostForm.Get("email")
		input.Password = r.PostForm.Get("password")
	}); err != nil {
		ac.sendError(w, r, err)
		return
	}

	session, err := ac.auth.Login(r.Context(), input)
	if err != nil {
		input.Password = ""
		ac.authError(w, r, err, "auth/login", "Log in", input)
		return
	}
	ac.signIn(w, r, http.StatusOK, session, "Welcome back, "+session.User.Name+".")
}

// Logout clears the token cookie
func (ac *AuthController) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	if wantsJSON(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	ac.redirect(w, r, "/", "You have been logged out.")
}

// decode reads a JSON body into dst, or parses the form and lets fromForm
// copy the fields.
func (ac *AuthController) decode(w http.ResponseWriter, r *http.Request, dst any, fromForm func()) error {
	if sentJSON(r) {
		return decodeJSON(w, r, dst)
	}
	if err := parseForm(w, r); err != nil {
		return err
	}
	fromForm()
	return nil
}

func (ac *AuthController) signIn(w http.ResponseWriter, r *http.Request, status int, session *services.Session, notice string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	if wantsJSON(r) {
		ac.sendJSON(w, status, session)
		return
	}
	ac.redirect(w, r, "/dashboard", notice)
}

// authError re-renders the auth form on validation failures for browsers.
func (ac *AuthController) authError(w http.ResponseWriter, r *http.Request, err error, page, title string, input any) {
	var verr *services.ValidationError
	if wantsJSON(r) || !errors.As(err, &verr) {
		ac.sendError(w, r, err)
		return
	}
	ac.render(w, r, http.StatusUnprocessableEntity, page, &views.Page{Title: title, Errors: verr.Fields, Data: input})
}
