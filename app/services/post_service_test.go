package services

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"quill/app/models"
	"quill/app/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostServiceCreate(t *testing.T) {
	env := newTestEnv(t)

	t.Run("draft has no published_at and derives fields", func(t *testing.T) {
		post, err := env.svc.Posts.Create(env.ctx, env.author, PostInput{
			Title:   "Crème Brûlée Tips",
			Content: strings.Repeat("word ", 450),
			Status:  models.StatusDraft,
		})
		require.NoError(t, err)
		assert.Equal(t, "creme-brulee-tips", post.Slug)
		assert.Nil(t, post.PublishedAt)
		assert.Equal(t, 3, post.ReadingTime)
		assert.True(t, strings.HasSuffix(post.Excerpt, "…"))
		assert.Equal(t, env.author.ID, post.UserID)
		assert.Equal(t, env.author, post.Author)
	})

	t.Run("published is stamped with now", func(t *testing.T) {
		post := env.createPost(t, "Published Now", models.StatusPublished)
		require.NotNil(t, post.PublishedAt)
		assert.Equal(t, *env.clock, *post.PublishedAt)
	})

	t.Run("explicit published_at wins", func(t *testing.T) {
		when := time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC)
		post, err := env.svc.Posts.Create(env.ctx, env.author, PostInput{
			Title: "Backdated", Content: "x", Status: models.StatusPublished, PublishedAt: &when,
		})
		require.NoError(t, err)
		assert.Equal(t, when, *post.PublishedAt)
	})

	t.Run("slug collisions get a suffix", func(t *testing.T) {
		first := env.createPost(t, "Same Title", models.StatusDraft)
		second := env.createPost(t, "Same Title", models.StatusDraft)
		third := env.createPost(t, "Same Title", models.StatusDraft)
		assert.Equal(t, "same-title", first.Slug)
		assert.Equal(t, "same-title-2", second.Slug)
		assert.Equal(t, "same-title-3", third.Slug)
	})

	t.Run("tags are synced", func(t *testing.T) {
		post, err := env.svc.Posts.Create(env.ctx, env.author, PostInput{
			Title: "Tagged", Content: "x", Status: models.StatusDraft,
			CategoryID: &env.category.ID, Tags: []int{env.tagA.ID, env.tagB.ID},
		})
		require.NoError(t, err)
		assert.Equal(t, []int{env.tagA.ID, env.tagB.ID}, tagIDs(post.Tags))
	})

	t.Run("supplied slugs are made url safe", func(t *testing.T) {
		tests := []struct {
			title string
			slug  string
			want  string
		}{
			{"Slash", "a/b", "a-b"},
			{"Query", "what?x=1", "what-x-1"},
			{"Spaces", "  Hello World ", "hello-world"},
			{"Only Punctuation", "???", "only-punctuation"},
		}
		for _, tt := range tests {
			post, err := env.svc.Posts.Create(env.ctx, env.author, PostInput{
				Title: tt.title, Slug: tt.slug, Content: "x", Status: models.StatusPublished,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, post.Slug)

			found, err := env.svc.Posts.Find(env.ctx, tt.want)
			require.NoError(t, err)
			assert.Equal(t, post.ID, found.ID)
		}
	})

	t.Run("failed tag sync leaves no post behind", func(t *testing.T) {
		posts := env.store.Posts
		env.store.Posts = failingTagSync{PostRepository: posts}
		defer func() { env.store.Posts = posts }()

		_, err := env.svc.Posts.Create(env.ctx, env.author, PostInput{
			Title: "Racing Tags", Content: "x", Status: models.StatusDraft, Tags: []int{env.tagA.ID},
		})
		assert.Equal(t, map[string]string{"tags": "One or more selected tags do not exist."}, fieldErrors(t, err))

		_, err = posts.GetBySlug(env.ctx, "racing-tags")
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})

	t.Run("anonymous actor", func(t *testing.T) {
		_, err := env.svc.Posts.Create(env.ctx, nil, PostInput{Title: "x", Content: "x", Status: models.StatusDraft})
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	missing := 999
	tests := []struct {
		name   string
		input  PostInput
		fields map[string]string
	}{
		{
			name:  "required fields",
			input: PostInput{},
			fields: map[string]string{
				"title":   "Post title is required.",
				"content": "Post content is required.",
				"status":  "Post status is required.",
			},
		},
		{
			name:   "bad status",
			input:  PostInput{Title: "x", Content: "x", Status: "secret"},
			fields: map[string]string{"status": "Post status must be draft, published, or archived."},
		},
		{
			name:   "title too long",
			input:  PostInput{Title: strings.Repeat("t", 256), Content: "x", Status: models.StatusDraft},
			fields: map[string]string{"title": "The title field must not be greater than 255 characters."},
		},
		{
			name:   "unknown category",
			input:  PostInput{Title: "x", Content: "x", Status: models.StatusDraft, CategoryID: &missing},
			fields: map[string]string{"category_id": "Selected category does not exist."},
		},
		{
			name:   "unknown tag",
			input:  PostInput{Title: "x", Content: "x", Status: models.StatusDraft, Tags: []int{1, missing}},
			fields: map[string]string{"tags": "One or more selected tags do not exist."},
		},
		{
			name:   "taken slug",
			input:  PostInput{Title: "x", Slug: "same-title", Content: "x", Status: models.StatusDraft},
			fields: map[string]string{"slug": "The slug has already been taken."},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Posts.Create(env.ctx, env.author, tt.input)
			assert.Equal(t, tt.fields, fieldErrors(t, err))
		})
	}
}

func TestPostServiceUpdate(t *testing.T) {
	env := newTestEnv(t)
	post, err := env.svc.Posts.Create(env.ctx, env.author, PostInput{
		Title: "Draft", Content: "x", Status: models.StatusDraft, Tags: []int{env.tagA.ID, env.tagB.ID},
	})
	require.NoError(t, err)

	update := func(input PostInput) (*models.Post, error) {
		return env.svc.Posts.Update(env.ctx, env.author, post.Slug, input)
	}

	t.Run("publishing stamps published_at once", func(t *testing.T) {
		env.advance(time.Hour)
		updated, err := update(PostInput{Title: "Draft", Content: "x", Status: models.StatusPublished})
		require.NoError(t, err)
		require.NotNil(t, updated.PublishedAt)
		stamped := *updated.PublishedAt
		assert.Equal(t, *env.clock, stamped)

		env.advance(time.Hour)
		again, err := update(PostInput{Title: "Draft again", Content: "y", Status: models.StatusPublished})
		require.NoError(t, err)
		assert.Equal(t, stamped, *again.PublishedAt)

		env.advance(time.Hour)
		archived, err := update(PostInput{Title: "Draft again", Content: "y", Status: models.StatusArchived})
		require.NoError(t, err)
		assert.Equal(t, stamped, *archived.PublishedAt)
	})

	t.Run("nil tags leave tags alone", func(t *testing.T) {
		updated, err := update(PostInput{Title: "Kept", Content: "x", Status: models.StatusDraft})
		require.NoError(t, err)
		assert.Equal(t, []int{env.tagA.ID, env.tagB.ID}, tagIDs(updated.Tags))
	})

	t.Run("tag sync replaces", func(t *testing.T) {
		updated, err := update(PostInput{Title: "Synced", Content: "x", Status: models.StatusDraft, Tags: []int{env.tagB.ID, env.tagC.ID}})
		require.NoError(t, err)
		assert.Equal(t, []int{env.tagB.ID, env.tagC.ID}, tagIDs(updated.Tags))
	})

	t.Run("empty tags clear", func(t *testing.T) {
		updated, err := update(PostInput{Title: "Cleared", Content: "x", Status: models.StatusDraft, Tags: []int{}})
		require.NoError(t, err)
		assert.Empty(t, updated.Tags)
	})

	t.Run("slug may stay or change", func(t *testing.T) {
		updated, err := update(PostInput{Title: "Renamed", Slug: post.Slug, Content: "x", Status: models.StatusDraft})
		require.NoError(t, err)
		assert.Equal(t, post.Slug, updated.Slug)

		renamed, err := update(PostInput{Title: "Renamed", Slug: "renamed", Content: "x", Status: models.StatusDraft})
		require.NoError(t, err)
		assert.Equal(t, "renamed", renamed.Slug)
		post = renamed
	})

	t.Run("omitted fields keep their values", func(t *testing.T) {
		full, err := update(PostInput{
			Title: "Full", Content: "x", Status: models.StatusDraft,
			Excerpt: "Hand written.", FeaturedImage: "https://img.example.com/a.png",
			CategoryID: &env.category.ID, ReadingTime: intPtr(9),
		})
		require.NoError(t, err)
		require.NotNil(t, full.CategoryID)

		var partial PostInput
		require.NoError(t, json.Unmarshal([]byte(`{"title":"Partial","content":"x","status":"draft"}`), &partial))
		updated, err := update(partial)
		require.NoError(t, err)
		assert.Equal(t, "Partial", updated.Title)
		require.NotNil(t, updated.CategoryID)
		assert.Equal(t, env.category.ID, *updated.CategoryID)
		assert.Equal(t, "https://img.example.com/a.png", updated.FeaturedImage)
		assert.Equal(t, "Hand written.", updated.Excerpt)
		assert.Equal(t, 9, updated.ReadingTime)

		var clearing PostInput
		require.NoError(t, json.Unmarshal([]byte(`{"title":"Partial","content":"x","status":"draft","category_id":null,"featured_image":""}`), &clearing))
		cleared, err := update(clearing)
		require.NoError(t, err)
		assert.Nil(t, cleared.CategoryID)
		assert.Empty(t, cleared.FeaturedImage)
		assert.Equal(t, "Hand written.", cleared.Excerpt)
	})

	t.Run("stranger is forbidden", func(t *testing.T) {
		_, err := env.svc.Posts.Update(env.ctx, env.stranger, post.Slug, PostInput{Title: "Mine", Content: "x", Status: models.StatusDraft})
		assert.ErrorIs(t, err, ErrForbidden)

		got, err := env.store.Posts.GetByID(env.ctx, post.ID)
		require.NoError(t, err)
		assert.NotEqual(t, "Mine", got.Title)
	})

	t.Run("anonymous and missing", func(t *testing.T) {
		_, err := env.svc.Posts.Update(env.ctx, nil, post.Slug, PostInput{})
		assert.ErrorIs(t, err, ErrUnauthenticated)
		_, err = env.svc.Posts.Update(env.ctx, env.author, "no-such-post", PostInput{})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("numeric id works as key", func(t *testing.T) {
		updated, err := env.svc.Posts.Update(env.ctx, env.author, "1", PostInput{Title: "By ID", Content: "x", Status: models.StatusDraft})
		require.NoError(t, err)
		assert.Equal(t, post.ID, updated.ID)
	})
}

func TestPostServiceDelete(t *testing.T) {
	env := newTestEnv(t)
	post := env.createPost(t, "Doomed", models.StatusPublished)

	assert.ErrorIs(t, env.svc.Posts.Delete(env.ctx, nil, post.Slug), ErrUnauthenticated)
	assert.ErrorIs(t, env.svc.Posts.Delete(env.ctx, env.stranger, post.Slug), ErrForbidden)
	_, err := env.store.Posts.GetByID(env.ctx, post.ID)
	require.NoError(t, err, "a forbidden delete must not remove the post")

	require.NoError(t, env.svc.Posts.Delete(env.ctx, env.author, post.Slug))
	_, err = env.store.Posts.GetByID(env.ctx, post.ID)
	assert.Error(t, err)
	assert.ErrorIs(t, env.svc.Posts.Delete(env.ctx, env.author, post.Slug), ErrNotFound)
}

func TestPostServiceShow(t *testing.T) {
	env := newTestEnv(t)
	published, err := env.svc.Posts.Create(env.ctx, env.author, PostInput{
		Title: "Public", Content: "# Heading\n\n<script>alert(1)</script>", Status: models.StatusPublished,
		CategoryID: &env.category.ID,
	})
	require.NoError(t, err)
	draft := env.createPost(t, "Private", models.StatusDraft)
	sibling, err := env.svc.Posts.Create(env.ctx, env.author, PostInput{
		Title: "Sibling", Content: "x", Status: models.StatusPublished, CategoryID: &env.category.ID,
	})
	require.NoError(t, err)

	t.Run("views increase by one per call", func(t *testing.T) {
		for want := int64(1); want <= 3; want++ {
			view, err := env.svc.Posts.Show(env.ctx, nil, published.Slug)
			require.NoError(t, err)
			assert.Equal(t, want, view.Post.Views)
		}
	})

	t.Run("detail payload", func(t *testing.T) {
		view, err := env.svc.Posts.Show(env.ctx, env.stranger, published.Slug)
		require.NoError(t, err)
		assert.Contains(t, view.ContentHTML, "<h1")
		assert.NotContains(t, view.ContentHTML, "<script")
		assert.Equal(t, "Ada", view.Post.Author.Name)
		require.Len(t, view.RelatedPosts, 1)
		assert.Equal(t, sibling.ID, view.RelatedPosts[0].ID)
	})

	t.Run("drafts are hidden from everyone but the author", func(t *testing.T) {
		_, err := env.svc.Posts.Show(env.ctx, nil, draft.Slug)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = env.svc.Posts.Show(env.ctx, env.stranger, draft.Slug)
		assert.ErrorIs(t, err, ErrNotFound)

		view, err := env.svc.Posts.Show(env.ctx, env.author, draft.Slug)
		require.NoError(t, err)
		assert.Equal(t, draft.ID, view.Post.ID)
	})

	t.Run("unknown post", func(t *testing.T) {
		_, err := env.svc.Posts.Show(env.ctx, nil, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestPostServiceIndexAndForms(t *testing.T) {
	env := newTestEnv(t)
	env.createPost(t, "One", models.StatusPublished)
	env.createPost(t, "Two", models.StatusDraft)
	mine := env.createPost(t, "Three", models.StatusArchived)

	index, err := env.svc.Posts.Index(env.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, index.Posts.Total)
	assert.Len(t, index.Categories, 1)
	assert.Len(t, index.Tags, 3)

	_, err = env.svc.Posts.CreateForm(env.ctx, nil)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	form, err := env.svc.Posts.CreateForm(env.ctx, env.author)
	require.NoError(t, err)
	assert.Nil(t, form.Post)
	assert.Len(t, form.Tags, 3)

	_, err = env.svc.Posts.EditForm(env.ctx, env.stranger, mine.Slug)
	assert.ErrorIs(t, err, ErrForbidden)
	edit, err := env.svc.Posts.EditForm(env.ctx, env.author, mine.Slug)
	require.NoError(t, err)
	assert.Equal(t, mine.ID, edit.Post.ID)
}

// failingTagSync loses every tag association, as if the tags were deleted
// after the references were checked.
type failingTagSync struct {
	repositories.PostRepository
}

func (failingTagSync) SyncTags(ctx context.Context, postID int, tagIDs []int) error {
	return repositories.ErrConstraint
}

func intPtr(n int) *int { return &n }

func TestPostInputUnmarshalJSON(t *testing.T) {
	var input PostInput
	require.NoError(t, json.Unmarshal([]byte(`{"Title":"T","content":"c","category_id":null}`), &input))
	assert.Equal(t, "T", input.Title)
	assert.True(t, input.sent("title"))
	assert.True(t, input.sent("category_id"))
	assert.False(t, input.sent("featured_image"))
	assert.Nil(t, input.CategoryID)

	var bare PostInput
	assert.True(t, bare.sent("featured_image"), "inputs built in code send every field")

	assert.Error(t, json.Unmarshal([]byte(`[1]`), &input))
}
