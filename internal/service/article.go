// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Services take primitives and domain types, never *http.Request, and return
// apperror values that the handler layer maps to status codes.
//
// THE DEPENDENCY CHAIN:
//
//	server.New creates:  Store → Cache → Service → Handler
//	At runtime:          Handler → Service → Cache (hit) or Repository (miss)
//
// Repositories arrive as interfaces, so tests inject in-memory fakes.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/articles-api/internal/apperror"
	"github.com/sakif/articles-api/internal/auth"
	"github.com/sakif/articles-api/internal/cache"
	"github.com/sakif/articles-api/internal/model"
	"github.com/sakif/articles-api/internal/repository"
)

// MaxTitleLength matches the VARCHAR(255) title column.
const MaxTitleLength = 255

// ArticleService is the cached, ownership-checked API over articles.
//
// READ PATH:  cache hit → return; miss → repository → fill cache → return.
// WRITE PATH: authorize → repository → invalidate. Invalidation runs only
// after the write succeeded and never undoes it.
type ArticleService struct {
	repo   repository.ArticleRepository
	cache  *cache.ArticleCache
	logger *slog.Logger
}

func NewArticleService(repo repository.ArticleRepository, c *cache.ArticleCache, logger *slog.Logger) *ArticleService {
	return &ArticleService{
		repo:   repo,
		cache:  c,
		logger: logger,
	}
}

// FindAll returns one page of articles, newest publication date first.
// No match is an empty page, not an error.
func (s *ArticleService) FindAll(ctx context.Context, filter model.ArticleFilter, page, limit int) (*model.ArticlePage, error) {
	q := repository.NewArticleQuery(filter, page, limit)
	key := cache.ListKey(filter, q.Page, q.Limit)

	if cached, ok := s.cache.GetList(ctx, key); ok {
		return cached, nil
	}

	articles, total, err := s.repo.ListArticles(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("listing articles: %w", err)
	}

	result := repository.NewArticlePage(q, articles, total)
	s.cache.SetList(ctx, key, result)
	return result, nil
}

// FindOne returns the article with id, or an apperror.ErrNotFound error.
func (s *ArticleService) FindOne(ctx context.Context, id int64) (*model.Article, error) {
	key := cache.ItemKey(id)

	if cached, ok := s.cache.GetItem(ctx, key); ok {
		return cached, nil
	}

	article, err := s.repo.GetArticleByID(ctx, id)
	if err != nil {
		// NotFound is already an apperror; other errors keep their wrapping.
		return nil, err
	}

	s.cache.SetItem(ctx, key, article)
	return article, nil
}

// Create stores a new article owned by actor.
func (s *ArticleService) Create(ctx context.Context, input model.ArticleInput, actor *auth.Identity) (*model.Article, error) {
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)

	if err := validateTitle(title); err != nil {
		return nil, err
	}
	if description == "" {
		return nil, apperror.ValidationFailed("description", "description is required")
	}

	article := &model.Article{
		Title:       title,
		Description: description,
		Author:      model.Author{ID: actor.ID, Username: actor.Username},
	}
	if input.PublicationDate != nil {
		article.PublicationDate = input.PublicationDate.UTC()
	}

	if err := s.repo.CreateArticle(ctx, article); err != nil {
		s.logger.Error("failed to create article",
			slog.Int64("authorID", actor.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating article: %w", err)
	}

	s.cache.InvalidateListWindow(ctx)

	s.logger.Info("article created",
		slog.Int64("id", article.ID),
		slog.Int64("authorID", actor.ID),
	)

	return article, nil
}

// Update applies patch to the article if actor is its author.
func (s *ArticleService) Update(ctx context.Context, id int64, patch model.ArticlePatch, actor *auth.Identity) (*model.Article, error) {
	if err := validatePatch(&patch); err != nil {
		return nil, err
	}

	article, err := s.loadOwned(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	patch.Apply(article)

	if err := s.repo.UpdateArticle(ctx, article); err != nil {
		return nil, fmt.Errorf("updating article %d: %w", id, err)
	}

	s.cache.InvalidateItem(ctx, id)
	s.cache.InvalidateListWindow(ctx)

	s.logger.Info("article updated", slog.Int64("id", id))
	return article, nil
}

// Remove deletes the article if actor is its author and returns the state
// it had just before deletion.
func (s *ArticleService) Remove(ctx context.Context, id int64, actor *auth.Identity) (*model.Article, error) {
	article, err := s.loadOwned(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	if err := s.repo.DeleteArticle(ctx, id); err != nil {
		return nil, fmt.Errorf("deleting article %d: %w", id, err)
	}

	s.cache.InvalidateItem(ctx, id)
	s.cache.InvalidateListWindow(ctx)

	s.logger.Info("article deleted", slog.Int64("id", id))
	return article, nil
}

// loadOwned fetches the article (cache first) and checks that actor owns it.
// Only the author may change or delete an article; there are no roles.
func (s *ArticleService) loadOwned(ctx context.Context, id int64, actor *auth.Identity) (*model.Article, error) {
	article, err := s.FindOne(ctx, id)
	if err != nil {
		return nil, err
	}

	if article.Author.ID != actor.ID {
		s.logger.Warn("article ownership check failed",
			slog.Int64("id", id),
			slog.Int64("authorID", article.Author.ID),
			slog.Int64("actorID", actor.ID),
		)
		return nil, apperror.Forbidden("you can only modify your own articles")
	}

	return article, nil
}

func validateTitle(title string) error {
	if title == "" {
		return apperror.ValidationFailed("title", "title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
	}
	return nil
}

// validatePatch trims present text fields in place and rejects blank ones.
func validatePatch(p *model.ArticlePatch) error {
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if err := validateTitle(title); err != nil {
			return err
		}
		p.Title = &title
	}
	if p.Description != nil {
		description := strings.TrimSpace(*p.Description)
		if description == "" {
			return apperror.ValidationFailed("description", "description must not be empty")
		}
		p.Description = &description
	}
	return nil
}
