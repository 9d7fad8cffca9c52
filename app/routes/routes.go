package routes

import (
	"log/slog"
	"net/http"

	"quill/app/controllers"
	"quill/app/middleware"
	"quill/app/services"
	"quill/app/views"

	"github.com/gorilla/mux"
)

// Options tunes the router.
type Options struct {
	Logger *slog.Logger
	// CommentsPerMinute and CommentBurst limit comment creation per client.
	// Zero disables the limit.
	CommentsPerMinute float64
	CommentBurst      int
}

// SetupRoutes builds the site router. Every route is served twice: as HTML
// at its path and as JSON under /api.
func SetupRoutes(svc *services.Services, v *views.Views, opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	c := handlers{
		home:       controllers.NewHomeController(svc.Home, v, log),
		posts:      controllers.NewPostController(svc.Posts, v, log),
		comments:   controllers.NewCommentController(svc.Comments, v, log),
		categories: controllers.NewCategoryController(svc.Categories, v, log),
		tags:       controllers.NewTagController(svc.Tags, v, log),
		auth:       controllers.NewAuthController(svc.Auth, v, log),
		limit:      func(h http.Handler) http.Handler { return h },
	}
	if opts.CommentsPerMinute > 0 {
		c.limit = middleware.NewRateLimiter(opts.CommentsPerMinute, opts.CommentBurst).Limit
	}

	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(c.home.NotFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	// Serve static files
	router.PathPrefix("/static/").Handler(http.StripPrefix("/static/", views.Static()))

	c.register(router.PathPrefix("/api").Subrouter())
	c.register(router)

	// Middleware wraps the router rather than using router.Use so that
	// unmatched requests are logged and method overrides apply before
	// matching.
	var handler http.Handler = router
	handler = middleware.Authenticate(svc.Auth, log)(handler)
	handler = middleware.ContentTypeJSON(handler)
	handler = middleware.MethodOverride(handler)
	handler = middleware.Recoverer(log)(handler)
	handler = middleware.Logger(log)(handler)
	return handler
}

type handlers struct {
	home       *controllers.HomeController
	posts      *controllers.PostController
	comments   *controllers.CommentController
	categories *controllers.CategoryController
	tags       *controllers.TagController
	auth       *controllers.AuthController
	limit      func(http.Handler) http.Handler
}

func (c handlers) register(r *mux.Router) {
	r.HandleFunc("/health-check", c.home.HealthCheck).Methods("GET")
	r.HandleFunc("/", c.home.Home).Methods("GET")
	r.HandleFunc("/dashboard", c.home.Dashboard).Methods("GET")

	// Auth endpoints
	r.HandleFunc("/login", c.auth.LoginForm).Methods("GET")
	r.HandleFunc("/login", c.auth.Login).Methods("POST")
	r.HandleFunc("/register", c.auth.RegisterForm).Methods("GET")
	r.HandleFunc("/register", c.auth.Register).Methods("POST")
	r.HandleFunc("/logout", c.auth.Logout).Methods("POST")

	// Posts endpoints
	posts := r.PathPrefix("/posts").Subrouter()
	posts.HandleFunc("", c.posts.Index).Methods("GET")
	posts.HandleFunc("", c.posts.Create).Methods("POST")
	posts.HandleFunc("/create", c.posts.New).Methods("GET")
	posts.HandleFunc("/{slug}", c.posts.Show).Methods("GET")
	posts.HandleFunc("/{slug}/edit", c.posts.Edit).Methods("GET")
	posts.HandleFunc("/{slug}", c.posts.Update).Methods("PUT", "PATCH")
	posts.HandleFunc("/{slug}", c.posts.Delete).Methods("DELETE")

	// Taxonomy endpoints
	r.HandleFunc("/categories", c.categories.Index).Methods("GET")
	r.HandleFunc("/categories", c.categories.Create).Methods("POST")
	r.HandleFunc("/categories/{slug}", c.categories.Show).Methods("GET")
	r.HandleFunc("/tags", c.tags.Index).Methods("GET")
	r.HandleFunc("/tags", c.tags.Create).Methods("POST")
	r.HandleFunc("/tags/{slug}", c.tags.Show).Methods("GET")

	// Comments endpoints
	r.Handle("/comments", c.limit(http.HandlerFunc(c.comments.Create))).Methods("POST")
	r.HandleFunc("/comments/{id:[0-9]+}", c.comments.Delete).Methods("DELETE")
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
}
