package sqlite

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/velric/velric-server/internal/apperror"
	"github.com/velric/velric-server/internal/auth"
	"github.com/velric/velric-server/internal/model"
)

// newTestDB returns a fresh in-memory database that is closed when the test ends.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func strPtr(s string) *string { return &s }

// createTestUser creates a user and fails the test if it errors.
func createTestUser(t *testing.T, db *DB, email string) *model.User {
	t.Helper()
	user := &model.User{
		Email:        email,
		Name:         strPtr("Test User"),
		ProfileImage: strPtr("https://example.com/avatar.png"),
	}
	if err := db.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// =========================================================================
// CREATE TESTS
// =========================================================================

func TestCreateUser(t *testing.T) {
	db := newTestDB(t)

	user := &model.User{Email: "ada@example.com", Name: strPtr("Ada")}
	if err := db.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	if !uuidPattern.MatchString(user.ID) {
		t.Errorf("CreateUser() ID = %q, want a UUID", user.ID)
	}
	if user.CreatedAt.IsZero() {
		t.Error("CreateUser() did not set CreatedAt")
	}
}

func TestCreateUser_KeepsProvidedID(t *testing.T) {
	db := newTestDB(t)

	user := &model.User{ID: "11111111-1111-1111-1111-111111111111", Email: "fixed@example.com"}
	if err := db.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if user.ID != "11111111-1111-1111-1111-111111111111" {
		t.Errorf("ID = %q, want the provided one", user.ID)
	}
}

func TestCreateUser_DuplicateEmailIsConflict(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "dup@example.com")

	err := db.CreateUser(context.Background(), &model.User{Email: "DUP@example.com"})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("CreateUser() error = %v, want ErrConflict", err)
	}
}

// =========================================================================
// LOOKUP TESTS
// =========================================================================

func TestGetUserByID(t *testing.T) {
	db := newTestDB(t)
	created := createTestUser(t, db, "byid@example.com")

	found, err := db.GetUserByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if found.Email != "byid@example.com" {
		t.Errorf("Email = %q, want %q", found.Email, "byid@example.com")
	}
	if found.Name == nil || *found.Name != "Test User" {
		t.Errorf("Name = %v, want %q", found.Name, "Test User")
	}
	if found.SurveyCompletedAt != nil {
		t.Errorf("SurveyCompletedAt = %v, want nil", found.SurveyCompletedAt)
	}
}

// Ids are stored lower case; the bearer UUID may arrive in any case.
func TestResolverFindsUserByUpperCaseID(t *testing.T) {
	db := newTestDB(t)
	created := createTestUser(t, db, "upper@example.com")

	tokens, err := auth.NewTokenService("test-secret-0123456789", "velric-test", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService() error = %v", err)
	}
	r, err := auth.NewResolver(db, nil, tokens, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}

	for _, token := range []string{created.ID, strings.ToUpper(created.ID)} {
		p, ok := r.Authenticate(context.Background(), token)
		if !ok {
			t.Fatalf("Authenticate(%q) did not resolve", token)
		}
		if p.ID != created.ID {
			t.Errorf("Authenticate(%q) ID = %q, want %q", token, p.ID, created.ID)
		}
	}
}

func TestGetUserByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetUserByID(context.Background(), "11111111-1111-1111-1111-111111111111")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByID() error = %v, want ErrNotFound", err)
	}
}

func TestGetUserByEmail_CaseInsensitive(t *testing.T) {
	db := newTestDB(t)
	created := createTestUser(t, db, "Grace@Example.com")

	found, err := db.GetUserByEmail(context.Background(), "grace@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail() error = %v", err)
	}
	if found.ID != created.ID {
		t.Errorf("ID = %q, want %q", found.ID, created.ID)
	}
}

func TestGetUserByEmail_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetUserByEmail(context.Background(), "nobody@example.com")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByEmail() error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// GOOGLE TOKEN TESTS
// =========================================================================

func TestGoogleAccessToken_ExactMatchAndHeal(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "google@example.com")

	if _, err := db.GetUserByGoogleAccessToken(ctx, "ya29.old"); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("lookup before any token stored: error = %v, want ErrNotFound", err)
	}

	if err := db.UpdateGoogleAccessToken(ctx, user.ID, "ya29.old"); err != nil {
		t.Fatalf("UpdateGoogleAccessToken() error = %v", err)
	}
	found, err := db.GetUserByGoogleAccessToken(ctx, "ya29.old")
	if err != nil {
		t.Fatalf("GetUserByGoogleAccessToken() error = %v", err)
	}
	if found.ID != user.ID {
		t.Errorf("ID = %q, want %q", found.ID, user.ID)
	}

	// Healing replaces the token; the old one no longer matches.
	if err := db.UpdateGoogleAccessToken(ctx, user.ID, "ya29.new"); err != nil {
		t.Fatalf("UpdateGoogleAccessToken() error = %v", err)
	}
	if _, err := db.GetUserByGoogleAccessToken(ctx, "ya29.old"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("old token still matches: error = %v", err)
	}
}

func TestUpdateGoogleAccessToken_UnknownUser(t *testing.T) {
	db := newTestDB(t)

	err := db.UpdateGoogleAccessToken(context.Background(), "missing", "ya29.x")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdateGoogleAccessToken() error = %v, want ErrNotFound", err)
	}
}

func TestUpdateGoogleTokens_KeepsRefreshTokenWhenEmpty(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "refresh@example.com")
	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)

	first := model.GoogleTokens{AccessToken: "ya29.a", RefreshToken: "1//refresh", ExpiresAt: expires}
	if err := db.UpdateGoogleTokens(ctx, user.ID, first); err != nil {
		t.Fatalf("UpdateGoogleTokens() first error = %v", err)
	}
	second := model.GoogleTokens{AccessToken: "ya29.b", ExpiresAt: expires}
	if err := db.UpdateGoogleTokens(ctx, user.ID, second); err != nil {
		t.Fatalf("UpdateGoogleTokens() second error = %v", err)
	}

	found, err := db.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if found.GoogleAccessToken == nil || *found.GoogleAccessToken != "ya29.b" {
		t.Errorf("GoogleAccessToken = %v, want ya29.b", found.GoogleAccessToken)
	}
	if found.GoogleRefreshToken == nil || *found.GoogleRefreshToken != "1//refresh" {
		t.Errorf("GoogleRefreshToken = %v, want it preserved", found.GoogleRefreshToken)
	}
	if found.GoogleTokenExpiresAt == nil || !found.GoogleTokenExpiresAt.Equal(expires) {
		t.Errorf("GoogleTokenExpiresAt = %v, want %v", found.GoogleTokenExpiresAt, expires)
	}
}

func TestUpdateVelricScore(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "score@example.com")

	if err := db.UpdateVelricScore(ctx, user.ID, 8.5); err != nil {
		t.Fatalf("UpdateVelricScore() error = %v", err)
	}
	found, _ := db.GetUserByID(ctx, user.ID)
	if found.OverallVelricScore == nil || *found.OverallVelricScore != 8.5 {
		t.Errorf("OverallVelricScore = %v, want 8.5", found.OverallVelricScore)
	}
}
