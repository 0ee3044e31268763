package app

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"demonboard/api/internal/authpw"
	"demonboard/api/internal/store"

	"golang.org/x/crypto/bcrypt"
)

// fakeUserDirectory backs the password auth service in tests.
type fakeUserDirectory struct {
	users []store.User
}

func (f *fakeUserDirectory) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeUserDirectory) GetUserByName(_ context.Context, name string) (store.User, error) {
	for _, u := range f.users {
		if strings.EqualFold(u.Name, name) {
			return u, nil
		}
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeUserDirectory) CreateUser(_ context.Context, user store.User) error {
	f.users = append(f.users, user)
	return nil
}

func newAuthServer(t *testing.T, directory *fakeUserDirectory) *HTTPServer {
	t.Helper()
	svc := newTestService(&fakeStore{}, nil)
	svc.authpw = authpw.NewService(directory)
	return NewHTTPServer(svc, "*")
}

func postJSON(t *testing.T, server *HTTPServer, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	return rr
}

func TestSignUpThenSignIn(t *testing.T) {
	directory := &fakeUserDirectory{}
	server := newAuthServer(t, directory)

	rr := postJSON(t, server, "/api/auth/signup", `{"email":"avery@example.com","password":"hunter2hunter2","name":"Avery"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 from signup, got %d body=%s", rr.Code, rr.Body.String())
	}
	var created map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("parse signup response: %v", err)
	}
	if created["role"] != "member" {
		t.Fatalf("expected new accounts to start as member, got %v", created["role"])
	}

	rr = postJSON(t, server, "/api/auth/signin", `{"email":"avery@example.com","password":"hunter2hunter2"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from signin, got %d body=%s", rr.Code, rr.Body.String())
	}
	var session map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &session); err != nil {
		t.Fatalf("parse signin response: %v", err)
	}
	token, _ := session["accessToken"].(string)
	if token == "" {
		t.Fatal("expected an access token from signin")
	}
	if session["refreshToken"] == "" {
		t.Fatal("expected a refresh token from signin")
	}
}

func TestSignUpDuplicateEmailConflicts(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2hunter2"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	directory := &fakeUserDirectory{users: []store.User{{
		ID: "usr_1", Name: "Avery", Email: "avery@example.com", PasswordHash: string(hash), Role: "member",
	}}}
	server := newAuthServer(t, directory)

	rr := postJSON(t, server, "/api/auth/signup", `{"email":"avery@example.com","password":"hunter2hunter2","name":"Other"}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate email, got %d body=%s", rr.Code, rr.Body.String())
	}
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if payload["code"] != "CONFLICT" {
		t.Fatalf("expected code CONFLICT, got %v", payload["code"])
	}
}

func TestSignInWrongPasswordUnauthorized(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse-battery"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	directory := &fakeUserDirectory{users: []store.User{{
		ID: "usr_1", Name: "Avery", Email: "avery@example.com", PasswordHash: string(hash), Role: "member",
	}}}
	server := newAuthServer(t, directory)

	rr := postJSON(t, server, "/api/auth/signin", `{"email":"avery@example.com","password":"wrong"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a wrong password, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestProtectedRouteRequiresToken(t *testing.T) {
	server := NewHTTPServer(newTestService(&fakeStore{}, nil), "*")

	req := httptest.NewRequest(http.MethodPost, "/api/records", bytes.NewBufferString(`{"levelId":"lvl_1","percent":50,"videoUrl":"https://v"}`))
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a bearer token, got %d", rr.Code)
	}
}
