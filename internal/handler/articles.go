package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/articles-api/internal/apperror"
	"github.com/sakif/articles-api/internal/auth"
	"github.com/sakif/articles-api/internal/model"
	"github.com/sakif/articles-api/internal/repository"
	"github.com/sakif/articles-api/internal/service"
)

// ArticleHandler exposes the article service over HTTP.
//
// ROUTES:
//
//	GET    /articles        → HandleList   (public)
//	GET    /articles/{id}   → HandleGet    (public)
//	POST   /articles        → HandleCreate (auth required)
//	PATCH  /articles/{id}   → HandleUpdate (auth required, owner only)
//	DELETE /articles/{id}   → HandleDelete (auth required, owner only)
//
// The handler only translates HTTP to service calls and back. Ownership and
// caching live in service.ArticleService.
type ArticleHandler struct {
	articles *service.ArticleService
	logger   *slog.Logger
}

// NewArticleHandler creates an ArticleHandler.
func NewArticleHandler(articles *service.ArticleService, logger *slog.Logger) *ArticleHandler {
	return &ArticleHandler{articles: articles, logger: logger}
}

// createArticleRequest is the body of POST /articles.
type createArticleRequest struct {
	Title           string  `json:"title"           validate:"required,max=255"`
	Description     string  `json:"description"     validate:"required"`
	PublicationDate *string `json:"publicationDate"`
}

// updateArticleRequest is the body of PATCH /articles/{id}. Absent fields
// are left unchanged.
type updateArticleRequest struct {
	Title           *string `json:"title"           validate:"omitnil,min=1,max=255"`
	Description     *string `json:"description"     validate:"omitnil,min=1"`
	PublicationDate *string `json:"publicationDate"`
}

// HandleList returns one page of articles.
//
// HTTP: GET /articles?author=1&startDate=2024-01-01&endDate=2024-12-31&page=1&limit=10
//
// Every parameter is optional; page and limit default to 1 and 10.
func (h *ArticleHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var filter model.ArticleFilter

	if raw := strings.TrimSpace(q.Get("author")); raw != "" {
		author, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || author <= 0 {
			writeError(w, apperror.ValidationFailed("author", "must be a positive integer"))
			return
		}
		filter.Author = &author
	}

	var err error
	if filter.StartDate, err = optionalQueryDate(q.Get("startDate"), "startDate"); err != nil {
		writeError(w, err)
		return
	}
	if filter.EndDate, err = optionalQueryDate(q.Get("endDate"), "endDate"); err != nil {
		writeError(w, err)
		return
	}

	page, err := queryInt(q.Get("page"), "page", repository.DefaultPage)
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := queryInt(q.Get("limit"), "limit", repository.DefaultListLimit)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.articles.FindAll(r.Context(), filter, page, limit)
	if err != nil {
		h.logger.Error("failed to list articles", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// HandleGet returns a single article.
//
// HTTP: GET /articles/{id}
func (h *ArticleHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := articleID(w, r)
	if !ok {
		return
	}

	article, err := h.articles.FindOne(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, article)
}

// HandleCreate creates an article owned by the caller.
//
// HTTP: POST /articles
// REQUEST BODY: {"title": "...", "description": "...", "publicationDate": "2024-05-01"}
func (h *ArticleHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("authentication required"))
		return
	}

	req, ok := bindJSON[createArticleRequest](w, r)
	if !ok {
		return
	}

	published, err := parseOptionalDate("publicationDate", req.PublicationDate)
	if err != nil {
		writeError(w, err)
		return
	}

	article, err := h.articles.Create(r.Context(), model.ArticleInput{
		Title:           req.Title,
		Description:     req.Description,
		PublicationDate: published,
	}, actor)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, article)
}

// HandleUpdate applies a partial update to an article the caller owns.
//
// HTTP: PATCH /articles/{id}
func (h *ArticleHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("authentication required"))
		return
	}

	id, ok := articleID(w, r)
	if !ok {
		return
	}

	req, ok := bindJSON[updateArticleRequest](w, r)
	if !ok {
		return
	}

	published, err := parseOptionalDate("publicationDate", req.PublicationDate)
	if err != nil {
		writeError(w, err)
		return
	}

	article, err := h.articles.Update(r.Context(), id, model.ArticlePatch{
		Title:           req.Title,
		Description:     req.Description,
		PublicationDate: published,
	}, actor)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, article)
}

// HandleDelete removes an article the caller owns and returns it.
//
// HTTP: DELETE /articles/{id}
func (h *ArticleHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("authentication required"))
		return
	}

	id, ok := articleID(w, r)
	if !ok {
		return
	}

	article, err := h.articles.Remove(r.Context(), id, actor)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, article)
}

// articleID reads the {id} URL parameter, writing a 400 when it is not a
// positive integer.
func articleID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, apperror.ValidationFailed("id", "must be a positive integer"))
		return 0, false
	}
	return id, true
}

func optionalQueryDate(raw, field string) (*time.Time, error) {
	return parseOptionalDate(field, &raw)
}

func queryInt(raw, field string, def int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apperror.ValidationFailed(field, "must be a positive integer")
	}
	return n, nil
}
