// Package repository declares the persistence contracts used by the service
// layer, and the ArticleQuery builder shared by every SQL implementation.
//
// Implementations live in sub-packages (sqlite, postgres). Services depend only
// on these interfaces, so tests can inject in-memory fakes.
package repository

import (
	"context"

	"github.com/sakif/articles-api/internal/model"
)

// ArticleRepository persists articles. Every read joins the author and
// returns only its public identity (id, username).
type ArticleRepository interface {
	// GetArticleByID returns apperror.ErrNotFound when no row matches.
	GetArticleByID(ctx context.Context, id int64) (*model.Article, error)
	// ListArticles returns one page of matches plus the total match count.
	ListArticles(ctx context.Context, q ArticleQuery) ([]model.Article, int, error)
	// CreateArticle inserts a and fills in its ID and timestamps.
	CreateArticle(ctx context.Context, a *model.Article) error
	// UpdateArticle writes title, description and publication date.
	// The author column is never touched.
	UpdateArticle(ctx context.Context, a *model.Article) error
	DeleteArticle(ctx context.Context, id int64) error
}

// UserRepository persists user accounts.
type UserRepository interface {
	// CreateUser returns an apperror.ErrConflict error if the username is taken.
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
}

// Store is everything the server needs from a backing database.
type Store interface {
	ArticleRepository
	UserRepository
	Ping(ctx context.Context) error
	Close() error
}
