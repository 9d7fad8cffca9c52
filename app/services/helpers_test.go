package services

import (
	"context"
	"testing"
	"time"

	"quill/app/auth"
	"quill/app/models"
	"quill/app/repositories"

	"github.com/stretchr/testify/require"
)

type testEnv struct {
	ctx      context.Context
	store    *repositories.Store
	svc      *Services
	clock    *time.Time
	author   *models.User
	stranger *models.User
	category *models.Category
	tagA     *models.Tag
	tagB     *models.Tag
	tagC     *models.Tag
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := repositories.OpenBadger("", nil)
	require.NoError(t, err)
	store := repositories.NewBadgerStore(db)
	t.Cleanup(func() { store.Close() })

	tokens, err := auth.NewTokens("test-secret", time.Hour)
	require.NoError(t, err)

	clock := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	env := &testEnv{ctx: context.Background(), store: store, svc: New(store, tokens), clock: &clock}
	now := func() time.Time { return *env.clock }
	env.svc.Posts.now = now
	env.svc.Comments.now = now

	env.author = &models.User{Name: "Ada", Email: "ada@example.com"}
	require.NoError(t, store.Users.Create(env.ctx, env.author))
	env.stranger = &models.User{Name: "Eve", Email: "eve@example.com"}
	require.NoError(t, store.Users.Create(env.ctx, env.stranger))

	env.category = &models.Category{Name: "Go", Slug: "go"}
	require.NoError(t, store.Categories.Create(env.ctx, env.category))
	env.tagA = &models.Tag{Name: "Alpha", Slug: "a"}
	env.tagB = &models.Tag{Name: "Beta", Slug: "b"}
	env.tagC = &models.Tag{Name: "Gamma", Slug: "c"}
	for _, tag := range []*models.Tag{env.tagA, env.tagB, env.tagC} {
		require.NoError(t, store.Tags.Create(env.ctx, tag))
	}
	return env
}

// advance moves the service clock forward.
func (e *testEnv) advance(d time.Duration) {
	*e.clock = e.clock.Add(d)
}

func (e *testEnv) createPost(t *testing.T, title string, status models.PostStatus) *models.Post {
	t.Helper()
	post, err := e.svc.Posts.Create(e.ctx, e.author, PostInput{
		Title:   title,
		Content: "Some **markdown** content.",
		Status:  status,
	})
	require.NoError(t, err)
	return post
}

func tagIDs(tags []*models.Tag) []int {
	ids := make([]int, 0, len(tags))
	for _, tag := range tags {
		ids = append(ids, tag.ID)
	}
	return ids
}

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	return verr.Fields
}
