package model

import "time"

// Article is a piece of content owned by exactly one author.
// Author is set on creation and never reassigned.
type Article struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	PublicationDate time.Time `json:"publicationDate"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
	Author          Author    `json:"author"`
}

// ArticleInput carries the fields of a new article.
// A nil PublicationDate means "publish at creation time".
type ArticleInput struct {
	Title           string
	Description     string
	PublicationDate *time.Time
}

// ArticlePatch is a partial update: nil fields keep their current value.
type ArticlePatch struct {
	Title           *string
	Description     *string
	PublicationDate *time.Time
}

// Apply copies the present patch fields onto a.
func (p ArticlePatch) Apply(a *Article) {
	if p.Title != nil {
		a.Title = *p.Title
	}
	if p.Description != nil {
		a.Description = *p.Description
	}
	if p.PublicationDate != nil {
		a.PublicationDate = p.PublicationDate.UTC()
	}
}

// ArticleFilter narrows a list query. Every field is optional.
type ArticleFilter struct {
	Author    *int64
	StartDate *time.Time
	EndDate   *time.Time
}

// ArticlePage is one page of a list query, as returned to clients and
// stored in the cache.
type ArticlePage struct {
	Data     []Article `json:"data"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	LastPage int       `json:"last_page"`
}
