package services

import (
	"quill/app/auth"
	"quill/app/queries"
	"quill/app/repositories"
)

// Services bundles every service over one store.
type Services struct {
	Posts      *PostService
	Comments   *CommentService
	Categories *CategoryService
	Tags       *TagService
	Home       *HomeService
	Auth       *AuthService
}

// New wires the services over store.
func New(store *repositories.Store, tokens *auth.Tokens) *Services {
	q := queries.New(store)
	return &Services{
		Posts:      NewPostService(store, q),
		Comments:   NewCommentService(store),
		Categories: NewCategoryService(store, q),
		Tags:       NewTagService(store, q),
		Home:       NewHomeService(q),
		Auth:       NewAuthService(store.Users, tokens),
	}
}
