package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/sakif/articles-api/internal/auth"
	"github.com/sakif/articles-api/internal/cache"
	"github.com/sakif/articles-api/internal/handler"
	"github.com/sakif/articles-api/internal/model"
	"github.com/sakif/articles-api/internal/repository/sqlite"
	"github.com/sakif/articles-api/internal/service"
)

// testAPI is the full HTTP surface backed by an in-memory SQLite database
// and an in-memory cache.
type testAPI struct {
	t      *testing.T
	router http.Handler
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("handler-test-secret-0123456789", time.Hour)
	require.NoError(t, err)

	authSvc := service.NewAuthService(db, tokens, auth.NewPasswordService(4), logger)
	articleSvc := service.NewArticleService(db, cache.New(cache.NewMemoryStore(), logger), logger)

	authHandler := handler.NewAuthHandler(authSvc, time.Hour, logger)
	articleHandler := handler.NewArticleHandler(articleSvc, logger)

	r := chi.NewRouter()
	r.Post("/auth/register", authHandler.HandleRegister)
	r.Post("/auth/login", authHandler.HandleLogin)
	r.Post("/auth/logout", authHandler.HandleLogout)
	r.Get("/articles", articleHandler.HandleList)
	r.Get("/articles/{id}", articleHandler.HandleGet)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))
		r.Get("/auth/me", authHandler.HandleMe)
		r.Post("/articles", articleHandler.HandleCreate)
		r.Patch("/articles/{id}", articleHandler.HandleUpdate)
		r.Delete("/articles/{id}", articleHandler.HandleDelete)
	})

	return &testAPI{t: t, router: r}
}

// do sends a request with an optional JSON body and bearer token.
func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

// register creates a user and returns their access token.
func (a *testAPI) register(username string) string {
	a.t.Helper()

	rr := a.do(http.MethodPost, "/auth/register", "", map[string]string{
		"username": username,
		"password": "pw-" + username,
	})
	require.Equal(a.t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(a.t, json.NewDecoder(rr.Body).Decode(&resp))
	require.NotEmpty(a.t, resp.AccessToken)
	return resp.AccessToken
}

func (a *testAPI) createArticle(token string, body map[string]any) model.Article {
	a.t.Helper()

	rr := a.do(http.MethodPost, "/articles", token, body)
	require.Equal(a.t, http.StatusCreated, rr.Code, rr.Body.String())

	var article model.Article
	require.NoError(a.t, json.NewDecoder(rr.Body).Decode(&article))
	return article
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) handler.ErrorResponse {
	t.Helper()
	var resp handler.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	return resp
}

func articlePath(id int64) string {
	return "/articles/" + strconv.FormatInt(id, 10)
}
