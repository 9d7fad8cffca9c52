package services

import (
	"context"

	"quill/app/models"
	"quill/app/queries"
)

// HomeView is the landing page.
type HomeView struct {
	Posts        []*models.Post     `json:"posts"`
	Categories   []*models.Category `json:"categories"`
	FeaturedPost *models.Post       `json:"featured_post"`
}

// HomeService serves the landing page and the dashboard
type HomeService struct {
	queries *queries.Queries
}

// NewHomeService creates a new HomeService
func NewHomeService(q *queries.Queries) *HomeService {
	return &HomeService{queries: q}
}

// Home returns the latest posts, the first categories and the most viewed
// post.
func (s *HomeService) Home(ctx context.Context) (*HomeView, error) {
	posts, err := s.queries.Latest(ctx, queries.LatestLimit)
	if err != nil {
		return nil, err
	}
	categories, err := s.queries.CategoriesWithCounts(ctx, queries.HomeCategoryLimit)
	if err != nil {
		return nil, err
	}
	featured, err := s.queries.MostViewed(ctx)
	if err != nil {
		return nil, err
	}
	return &HomeView{Posts: posts, Categories: categories, FeaturedPost: featured}, nil
}

// Dashboard returns the actor's most recent posts in any status.
func (s *HomeService) Dashboard(ctx context.Context, actor *models.User) ([]*models.Post, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	return s.queries.ByAuthor(ctx, actor.ID, queries.DashboardLimit)
}
