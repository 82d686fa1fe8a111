package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sakif/articles-api/internal/apperror"
	"github.com/sakif/articles-api/internal/model"
	"github.com/sakif/articles-api/internal/repository"
)

const selectArticle = `
SELECT a.id, a.title, a.description, a.publication_date, a.created_at, a.updated_at,
       u.id, u.username
FROM articles a JOIN users u ON u.id = a.author_id
`

func (db *DB) GetArticleByID(ctx context.Context, id int64) (*model.Article, error) {
	rows, _ := db.db.Query(ctx, selectArticle+`WHERE a.id = $1`, id)
	a, err := pgx.CollectOneRow(rows, rowToArticle)

	switch {
	case err == nil:
		return &a, nil
	case errors.Is(err, pgx.ErrNoRows):
		return nil, apperror.NotFound("article", id)
	default:
		return nil, fmt.Errorf("postgres: getting article %d: %w", id, err)
	}
}

// ListArticles counts and selects inside one transaction so total and page agree.
func (db *DB) ListArticles(ctx context.Context, q repository.ArticleQuery) ([]model.Article, int, error) {
	tx, err := db.db.Begin(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres: starting list transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	where, args := q.Where(dollar)

	var total int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM articles a `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres: counting articles: %w", err)
	}

	n := len(args)
	pageArgs := append(append([]any{}, args...), q.Limit, q.Offset())
	rows, _ := tx.Query(ctx,
		selectArticle+where+` `+repository.ArticleOrder+
			fmt.Sprintf(` LIMIT %s OFFSET %s`, dollar(n+1), dollar(n+2)),
		pageArgs...,
	)
	articles, err := pgx.CollectRows(rows, rowToArticle)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres: listing articles: %w", err)
	}

	return articles, total, nil
}

const createArticle = `-- name: CreateArticle
INSERT INTO articles (title, description, publication_date, author_id)
VALUES ($1, $2, COALESCE($3, now()), $4)
RETURNING id, publication_date, created_at, updated_at
`

// CreateArticle inserts a. A zero PublicationDate lets the database default
// it to the insert time.
func (db *DB) CreateArticle(ctx context.Context, a *model.Article) error {
	var published *time.Time
	if !a.PublicationDate.IsZero() {
		t := a.PublicationDate.UTC()
		published = &t
	}

	err := db.db.QueryRow(ctx, createArticle, a.Title, a.Description, published, a.Author.ID).
		Scan(&a.ID, &a.PublicationDate, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: creating article: %w", err)
	}

	a.PublicationDate = a.PublicationDate.UTC()
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return nil
}

const updateArticle = `-- name: UpdateArticle
UPDATE articles
SET title = $1, description = $2, publication_date = $3, updated_at = now()
WHERE id = $4
RETURNING updated_at
`

func (db *DB) UpdateArticle(ctx context.Context, a *model.Article) error {
	a.PublicationDate = a.PublicationDate.UTC()

	err := db.db.QueryRow(ctx, updateArticle, a.Title, a.Description, a.PublicationDate, a.ID).
		Scan(&a.UpdatedAt)
	switch {
	case err == nil:
		a.UpdatedAt = a.UpdatedAt.UTC()
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return apperror.NotFound("article", a.ID)
	default:
		return fmt.Errorf("postgres: updating article %d: %w", a.ID, err)
	}
}

func (db *DB) DeleteArticle(ctx context.Context, id int64) error {
	tag, err := db.db.Exec(ctx, `DELETE FROM articles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: deleting article %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("article", id)
	}
	return nil
}

func rowToArticle(row pgx.CollectableRow) (model.Article, error) {
	var a model.Article
	err := row.Scan(
		&a.ID, &a.Title, &a.Description, &a.PublicationDate, &a.CreatedAt, &a.UpdatedAt,
		&a.Author.ID, &a.Author.Username,
	)
	a.PublicationDate = a.PublicationDate.UTC()
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return a, err
}
