package postgres_test

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/articles-api/internal/apperror"
	"github.com/sakif/articles-api/internal/model"
	"github.com/sakif/articles-api/internal/repository"
	"github.com/sakif/articles-api/internal/repository/postgres"
	"github.com/sakif/articles-api/internal/testutil"
)

func Test_IsDSN(t *testing.T) {
	assert.True(t, postgres.IsDSN("postgres://u:p@localhost:5432/db"))
	assert.True(t, postgres.IsDSN("postgresql://localhost/db"))
	assert.False(t, postgres.IsDSN("data/articles.db"))
	assert.False(t, postgres.IsDSN(":memory:"))
}

func Test_Store(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)

	createUser := func(t *testing.T, db *postgres.DB, username string) *model.User {
		t.Helper()
		u := &model.User{Username: username, PasswordHash: "hash"}
		require.NoError(t, db.CreateUser(t.Context(), u))
		return u
	}

	base := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

	createArticle := func(t *testing.T, db *postgres.DB, author *model.User, day int) *model.Article {
		t.Helper()
		a := &model.Article{
			Title:           "article",
			Description:     "body",
			PublicationDate: base.AddDate(0, 0, day),
			Author:          author.AsAuthor(),
		}
		require.NoError(t, db.CreateArticle(t.Context(), a))
		return a
	}

	t.Run("create user and read it back", func(t *testing.T) {
		testutil.WithTx(t, pg.Pool, func(tx pgx.Tx) {
			db := postgres.NewWithDBTX(tx)

			created := createUser(t, db, "alice")
			assert.NotZero(t, created.ID)
			assert.WithinDuration(t, time.Now(), created.CreatedAt, 5*time.Second)

			got, err := db.GetUserByUsername(t.Context(), "alice")
			require.NoError(t, err)
			assert.Equal(t, created.ID, got.ID)
			assert.Equal(t, "hash", got.PasswordHash)

			exists, err := db.UsernameExists(t.Context(), "alice")
			require.NoError(t, err)
			assert.True(t, exists)
		})
	})

	t.Run("duplicate username is a conflict", func(t *testing.T) {
		testutil.WithTx(t, pg.Pool, func(tx pgx.Tx) {
			db := postgres.NewWithDBTX(tx)
			createUser(t, db, "bob")

			err := db.CreateUser(t.Context(), &model.User{Username: "bob", PasswordHash: "x"})
			assert.ErrorIs(t, err, apperror.ErrConflict)
		})
	})

	t.Run("unknown user is not found", func(t *testing.T) {
		testutil.WithTx(t, pg.Pool, func(tx pgx.Tx) {
			db := postgres.NewWithDBTX(tx)

			_, err := db.GetUserByID(t.Context(), 987654)
			assert.ErrorIs(t, err, apperror.ErrNotFound)
		})
	})

	t.Run("second page of eleven", func(t *testing.T) {
		testutil.WithTx(t, pg.Pool, func(tx pgx.Tx) {
			db := postgres.NewWithDBTX(tx)
			alice := createUser(t, db, "alice")

			oldest := createArticle(t, db, alice, 0)
			for day := 1; day < 11; day++ {
				createArticle(t, db, alice, day)
			}

			articles, total, err := db.ListArticles(t.Context(),
				repository.NewArticleQuery(model.ArticleFilter{}, 2, 10))
			require.NoError(t, err)
			assert.Equal(t, 11, total)
			require.Len(t, articles, 1)
			assert.Equal(t, oldest.ID, articles[0].ID)
			assert.Equal(t, "alice", articles[0].Author.Username)
		})
	})

	t.Run("filters by author and inclusive date range", func(t *testing.T) {
		testutil.WithTx(t, pg.Pool, func(tx pgx.Tx) {
			db := postgres.NewWithDBTX(tx)
			alice := createUser(t, db, "alice")
			bob := createUser(t, db, "bob")
			for day := 0; day < 5; day++ {
				createArticle(t, db, alice, day)
			}
			createArticle(t, db, bob, 2)

			from := base.AddDate(0, 0, 1)
			to := base.AddDate(0, 0, 3)
			filter := model.ArticleFilter{Author: &alice.ID, StartDate: &from, EndDate: &to}

			articles, total, err := db.ListArticles(t.Context(), repository.NewArticleQuery(filter, 1, 10))
			require.NoError(t, err)
			assert.Equal(t, 3, total)
			for _, a := range articles {
				assert.Equal(t, alice.ID, a.Author.ID)
			}
		})
	})

	t.Run("zero publication date defaults to now", func(t *testing.T) {
		testutil.WithTx(t, pg.Pool, func(tx pgx.Tx) {
			db := postgres.NewWithDBTX(tx)
			alice := createUser(t, db, "alice")

			a := &model.Article{Title: "t", Description: "d", Author: alice.AsAuthor()}
			require.NoError(t, db.CreateArticle(t.Context(), a))
			assert.WithinDuration(t, time.Now(), a.PublicationDate, 5*time.Second)
		})
	})

	t.Run("update and delete", func(t *testing.T) {
		testutil.WithTx(t, pg.Pool, func(tx pgx.Tx) {
			db := postgres.NewWithDBTX(tx)
			alice := createUser(t, db, "alice")
			a := createArticle(t, db, alice, 0)

			a.Title = "renamed"
			require.NoError(t, db.UpdateArticle(t.Context(), a))

			got, err := db.GetArticleByID(t.Context(), a.ID)
			require.NoError(t, err)
			assert.Equal(t, "renamed", got.Title)

			require.NoError(t, db.DeleteArticle(t.Context(), a.ID))
			assert.ErrorIs(t, db.DeleteArticle(t.Context(), a.ID), apperror.ErrNotFound)
			assert.ErrorIs(t, db.UpdateArticle(t.Context(), a), apperror.ErrNotFound)
		})
	})
}
