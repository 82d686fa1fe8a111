package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/articles-api/internal/apperror"
	"github.com/sakif/articles-api/internal/model"
	"github.com/sakif/articles-api/internal/repository"
)

// articleColumns selects an article together with its author's public
// identity. The password column is never part of an article read.
const articleColumns = `
	a.id, a.title, a.description, a.publication_date, a.created_at, a.updated_at,
	u.id, u.username`

const articleFrom = `FROM articles a JOIN users u ON u.id = a.author_id`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (model.Article, error) {
	var a model.Article
	err := row.Scan(
		&a.ID, &a.Title, &a.Description, &a.PublicationDate, &a.CreatedAt, &a.UpdatedAt,
		&a.Author.ID, &a.Author.Username,
	)
	return a, err
}

// GetArticleByID returns the article with its author joined in.
// Returns apperror.ErrNotFound if no article has that id.
func (db *DB) GetArticleByID(ctx context.Context, id int64) (*model.Article, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+articleColumns+` `+articleFrom+` WHERE a.id = ?`,
		id,
	)

	a, err := scanArticle(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("article", id)
		}
		return nil, fmt.Errorf("sqlite: getting article %d: %w", id, err)
	}
	return &a, nil
}

// ListArticles runs the count and the page select in one read transaction so
// the total and the page come from the same snapshot.
func (db *DB) ListArticles(ctx context.Context, q repository.ArticleQuery) ([]model.Article, int, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: starting list transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // nothing was written

	where, args := q.Where(questionMark)

	var total int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM articles a `+where,
		args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting articles: %w", err)
	}

	pageArgs := append(append([]any{}, args...), q.Limit, q.Offset())
	rows, err := tx.QueryContext(ctx,
		`SELECT `+articleColumns+` `+articleFrom+` `+where+` `+repository.ArticleOrder+` LIMIT ? OFFSET ?`,
		pageArgs...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: listing articles: %w", err)
	}
	defer rows.Close()

	articles := make([]model.Article, 0, q.Limit)
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("sqlite: scanning article row: %w", err)
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("sqlite: iterating articles: %w", err)
	}

	return articles, total, nil
}

// CreateArticle inserts a and fills in its ID and timestamps. A zero
// PublicationDate defaults to the creation time.
func (db *DB) CreateArticle(ctx context.Context, a *model.Article) error {
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	if a.PublicationDate.IsZero() {
		a.PublicationDate = now
	}
	a.PublicationDate = a.PublicationDate.UTC()

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO articles (title, description, publication_date, author_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.Title,
		a.Description,
		a.PublicationDate,
		a.Author.ID,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating article: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading article id: %w", err)
	}
	a.ID = id

	return nil
}

// UpdateArticle persists the mutable fields. author_id is not in the SET list:
// an article's author is fixed at creation.
func (db *DB) UpdateArticle(ctx context.Context, a *model.Article) error {
	a.UpdatedAt = time.Now().UTC()
	a.PublicationDate = a.PublicationDate.UTC()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE articles
		 SET title = ?, description = ?, publication_date = ?, updated_at = ?
		 WHERE id = ?`,
		a.Title,
		a.Description,
		a.PublicationDate,
		a.UpdatedAt,
		a.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating article %d: %w", a.ID, err)
	}

	return checkAffected(result, a.ID)
}

func (db *DB) DeleteArticle(ctx context.Context, id int64) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM articles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting article %d: %w", id, err)
	}

	return checkAffected(result, id)
}

// checkAffected turns "0 rows affected" into apperror.ErrNotFound.
func checkAffected(result sql.Result, id int64) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("article", id)
	}
	return nil
}
