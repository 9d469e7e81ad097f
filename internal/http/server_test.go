package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"bilancio/internal/auth"
	"bilancio/internal/core"
	"bilancio/internal/services"
	"bilancio/internal/storage"
)

func testServer(t *testing.T) (*Server, *core.User) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	user, err := repo.UpsertUserByGoogle(context.Background(), "google-1", "u@example.com", "U")
	if err != nil {
		t.Fatalf("UpsertUserByGoogle() error = %v", err)
	}

	tokens := auth.NewTokenIssuer("test-secret", time.Hour)
	srv := NewServer(
		":0",
		repo,
		services.NewExpenseService(repo, nil),
		services.NewRecurringService(repo),
		services.NewExportService(repo, nil, 10),
		auth.NewGoogleAuthenticator("", "", ""),
		tokens,
	)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return srv, user
}

func doJSON(t *testing.T, srv *Server, method, path, body string, userID int64, email string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if userID != 0 {
		token, err := srv.tokens.Issue(userID, email)
		if err != nil {
			t.Fatalf("Issue() error = %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func firstCategory(t *testing.T, srv *Server, userID int64) int64 {
	t.Helper()
	categories, err := srv.storage.ListCategories(context.Background(), userID)
	if err != nil || len(categories) == 0 {
		t.Fatalf("ListCategories() = %v, %v", categories, err)
	}
	return categories[0].ID
}

func TestCreateExpenseInheritsBaseCurrency(t *testing.T) {
	srv, user := testServer(t)
	catID := firstCategory(t, srv, user.ID)

	body := `{"date":"2024-03-15","category_id":` + jsonInt(catID) + `,"amount":"10.00","description":"milk"}`
	rec := doJSON(t, srv, http.MethodPost, "/api/expenses", body, user.ID, user.Email)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp expenseResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Currency != user.BaseCurrency {
		t.Errorf("Currency = %q, want base currency %q", resp.Currency, user.BaseCurrency)
	}
	if resp.Amount != "10.00" {
		t.Errorf("Amount = %q", resp.Amount)
	}
}

func TestCreateExpenseExplicitCurrencyWins(t *testing.T) {
	srv, user := testServer(t)
	catID := firstCategory(t, srv, user.ID)

	body := `{"date":"2024-03-15","category_id":` + jsonInt(catID) + `,"amount":"5.00","currency":"eur","description":"coffee"}`
	rec := doJSON(t, srv, http.MethodPost, "/api/expenses", body, user.ID, user.Email)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp expenseResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Currency != "EUR" {
		t.Errorf("Currency = %q, want EUR", resp.Currency)
	}
}

func TestCreateRecurringInheritsBaseCurrency(t *testing.T) {
	srv, user := testServer(t)
	catID := firstCategory(t, srv, user.ID)

	body := `{"category_id":` + jsonInt(catID) + `,"amount":"1200.00","frequency":"monthly","start_date":"2024-01-15","description":"rent"}`
	rec := doJSON(t, srv, http.MethodPost, "/api/recurring-expenses", body, user.ID, user.Email)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp recurringResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Currency != user.BaseCurrency {
		t.Errorf("Currency = %q, want base currency %q", resp.Currency, user.BaseCurrency)
	}
}

func TestCreateExpenseRequiresAuth(t *testing.T) {
	srv, user := testServer(t)
	catID := firstCategory(t, srv, user.ID)

	body := `{"date":"2024-03-15","category_id":` + jsonInt(catID) + `,"amount":"10.00","description":"milk"}`
	rec := doJSON(t, srv, http.MethodPost, "/api/expenses", body, 0, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func jsonInt(n int64) string {
	return strconv.FormatInt(n, 10)
}
