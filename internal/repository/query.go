package repository

import (
	"strings"
	"time"

	"github.com/sakif/articles-api/internal/model"
)

const (
	DefaultPage      = 1
	DefaultListLimit = 10
	MaxListLimit     = 100
)

// ArticleOrder is the ORDER BY clause for list queries. id breaks ties
// between articles published at the same instant so pages are stable.
const ArticleOrder = "ORDER BY a.publication_date DESC, a.id DESC"

// ArticleQuery is a bounded, ordered article query: an optional author,
// an optional publication date range and one page.
//
// Implementations render it with Where/Offset/Limit; the table alias for
// articles is always "a".
type ArticleQuery struct {
	AuthorID *int64
	From     *time.Time // inclusive lower bound on publication_date
	To       *time.Time // inclusive upper bound on publication_date
	Page     int
	Limit    int
}

// NewArticleQuery turns a filter and pagination parameters into a query.
// page and limit below 1 are raised to 1; limit is capped at MaxListLimit.
func NewArticleQuery(filter model.ArticleFilter, page, limit int) ArticleQuery {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 1
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	q := ArticleQuery{
		AuthorID: filter.Author,
		Page:     page,
		Limit:    limit,
	}

	// The four date cases (start only, end only, both, neither) fall out of
	// setting each bound independently: both bounds together form an
	// inclusive BETWEEN.
	if filter.StartDate != nil {
		from := filter.StartDate.UTC()
		q.From = &from
	}
	if filter.EndDate != nil {
		to := filter.EndDate.UTC()
		q.To = &to
	}

	return q
}

// Offset is the number of rows to skip: (page-1)*limit.
func (q ArticleQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// Where renders the predicate as a SQL WHERE clause. bind returns the
// placeholder for the n-th argument (1-based), so SQLite can pass "?" and
// Postgres "$n". It returns an empty clause when there is no predicate.
func (q ArticleQuery) Where(bind func(n int) string) (string, []any) {
	var (
		conds []string
		args  []any
	)

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, cond+" "+bind(len(args)))
	}

	if q.AuthorID != nil {
		add("a.author_id =", *q.AuthorID)
	}
	if q.From != nil {
		add("a.publication_date >=", *q.From)
	}
	if q.To != nil {
		add("a.publication_date <=", *q.To)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

// LastPage returns ceil(total/limit). An empty result has last page 0.
func LastPage(total, limit int) int {
	if total <= 0 || limit < 1 {
		return 0
	}
	return (total + limit - 1) / limit
}

// NewArticlePage assembles the paged result for q.
func NewArticlePage(q ArticleQuery, data []model.Article, total int) *model.ArticlePage {
	if data == nil {
		data = []model.Article{}
	}
	return &model.ArticlePage{
		Data:     data,
		Total:    total,
		Page:     q.Page,
		LastPage: LastPage(total, q.Limit),
	}
}
