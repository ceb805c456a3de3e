package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/maruel/buyandsell/internal/metrics"
	"github.com/maruel/buyandsell/internal/server/auth"
	"github.com/maruel/buyandsell/internal/server/dto"
	"github.com/maruel/buyandsell/internal/server/reqctx"
	"github.com/maruel/buyandsell/internal/storage"
	"github.com/maruel/ksid"
	"golang.org/x/crypto/bcrypt"
)

const testDescription = "A sturdy wooden table with four chairs, lightly used, pick up only."

type testServer struct {
	t       *testing.T
	srv     *httptest.Server
	store   *storage.Store
	router  *Router
	headers map[string]string // added to every request
}

func newTestServer(t *testing.T, ratePerMin int) *testServer {
	t.Helper()
	return newTestServerWithProxies(t, ratePerMin, nil)
}

func newTestServerWithProxies(t *testing.T, ratePerMin int, proxies *reqctx.Proxies) *testServer {
	t.Helper()
	store, err := storage.Open(storage.Options{
		DataDir:        t.TempDir(),
		DBName:         "db",
		UploadDir:      t.TempDir(),
		MaxUploadBytes: 1024,
		Salt:           "pepper",
		PasswordCost:   bcrypt.MinCost,
	})
	if err != nil {
		t.Fatal(err)
	}
	router := NewRouter(&Config{
		Store:          store,
		Tokens:         auth.NewTokens("0123456789abcdef0123456789abcdef", time.Hour),
		Metrics:        metrics.New(),
		Version:        "test",
		Proxies:        proxies,
		AuthRatePerMin: ratePerMin,
		MaxBodyBytes:   4096,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		srv.Close()
		router.Close()
	})
	return &testServer{t: t, srv: srv, store: store, router: router}
}

// do sends body as JSON (or raw when it is an io.Reader) and decodes the
// response into out when non-nil.
func (s *testServer) do(method, path, token string, body, out any) *http.Response {
	s.t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case io.Reader:
		r = b
	default:
		data, err := json.Marshal(b)
		if err != nil {
			s.t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, s.srv.URL+path, r)
	if err != nil {
		s.t.Fatal(err)
	}
	if r != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}
	resp, err := s.srv.Client().Do(req)
	if err != nil {
		s.t.Fatal(err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		s.t.Fatal(err)
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			s.t.Fatalf("%s %s: failed to decode %q: %v", method, path, data, err)
		}
	}
	return resp
}

func (s *testServer) expect(resp *http.Response, want int) {
	s.t.Helper()
	if resp.StatusCode != want {
		s.t.Fatalf("%s %s: status = %d, want %d", resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, want)
	}
}

// login registers a user and returns its token and profile.
func (s *testServer) login(email string) (string, *dto.UserResponse) {
	s.t.Helper()
	var user dto.UserResponse
	s.expect(s.do("POST", "/api/users/register", "", dto.RegisterRequest{Email: email, Password: "secret1", Name: "Tester"}, &user), http.StatusCreated)
	var login dto.LoginResponse
	s.expect(s.do("POST", "/api/users/login", "", dto.LoginRequest{Email: email, Password: "secret1"}, &login), http.StatusOK)
	if login.Token == "" || login.User.ID != user.ID {
		s.t.Fatalf("bad login response %+v", login)
	}
	return login.Token, &user
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, 0)
	var got dto.HealthResponse
	resp := s.do("GET", "/api/health", "", nil, &got)
	s.expect(resp, http.StatusOK)
	if got.Status != "ok" || got.Version != "test" {
		t.Errorf("health = %+v", got)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("X-Request-ID missing")
	}
}

func TestUsers(t *testing.T) {
	s := newTestServer(t, 0)
	token, user := s.login("joe@example.com")
	if user.AvatarPath == "" || user.Type != "simple" {
		t.Errorf("register = %+v", user)
	}

	var me dto.UserResponse
	s.expect(s.do("GET", "/api/users/me", token, nil, &me), http.StatusOK)
	if me.ID != user.ID || me.Email != "joe@example.com" {
		t.Errorf("me = %+v", me)
	}

	var e errorBody
	s.expect(s.do("POST", "/api/users/register", "", dto.RegisterRequest{Email: "JOE@example.com", Password: "secret1", Name: "Other"}, &e), http.StatusConflict)
	if e.Error.Code != "CONFLICT" {
		t.Errorf("code = %q", e.Error.Code)
	}
	s.expect(s.do("POST", "/api/users/login", "", dto.LoginRequest{Email: "joe@example.com", Password: "wrong12"}, nil), http.StatusUnauthorized)
	s.expect(s.do("POST", "/api/users/register", "", dto.RegisterRequest{Email: "x@example.com", Password: "short", Name: "X"}, nil), http.StatusBadRequest)
	s.expect(s.do("POST", "/api/users/register", "", map[string]string{"email": "y@example.com", "bogus": "1"}, nil), http.StatusBadRequest)
	s.expect(s.do("GET", "/api/users/me", "", nil, nil), http.StatusUnauthorized)
	s.expect(s.do("GET", "/api/users/me", "not-a-token", nil, nil), http.StatusUnauthorized)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, 2)
	bad := dto.LoginRequest{Email: "nobody@example.com", Password: "secret1"}
	s.expect(s.do("POST", "/api/users/login", "", bad, nil), http.StatusUnauthorized)
	s.expect(s.do("POST", "/api/users/login", "", bad, nil), http.StatusUnauthorized)
	var e errorBody
	resp := s.do("POST", "/api/users/login", "", bad, &e)
	s.expect(resp, http.StatusTooManyRequests)
	if e.Error.Code != "RATE_LIMITED" || resp.Header.Get("Retry-After") == "" {
		t.Errorf("got %+v, headers %v", e, resp.Header)
	}
	// Other routes are not limited.
	s.expect(s.do("GET", "/api/health", "", nil, nil), http.StatusOK)
}

func TestRateLimitIgnoresForwardedFromClients(t *testing.T) {
	s := newTestServer(t, 1)
	bad := dto.LoginRequest{Email: "nobody@example.com", Password: "secret1"}
	s.headers = map[string]string{"X-Forwarded-For": "203.0.113.1"}
	s.expect(s.do("POST", "/api/users/login", "", bad, nil), http.StatusUnauthorized)
	s.headers = map[string]string{"X-Forwarded-For": "203.0.113.2"}
	s.expect(s.do("POST", "/api/users/login", "", bad, nil), http.StatusTooManyRequests)
}

func TestRateLimitBehindTrustedProxy(t *testing.T) {
	proxies, err := reqctx.NewProxies([]string{"127.0.0.0/8", "::1"})
	if err != nil {
		t.Fatal(err)
	}
	s := newTestServerWithProxies(t, 1, proxies)
	bad := dto.LoginRequest{Email: "nobody@example.com", Password: "secret1"}
	s.headers = map[string]string{"X-Forwarded-For": "203.0.113.1"}
	s.expect(s.do("POST", "/api/users/login", "", bad, nil), http.StatusUnauthorized)
	s.expect(s.do("POST", "/api/users/login", "", bad, nil), http.StatusTooManyRequests)
	s.headers = map[string]string{"X-Forwarded-For": "203.0.113.2"}
	s.expect(s.do("POST", "/api/users/login", "", bad, nil), http.StatusUnauthorized)
}

func TestOffersAndComments(t *testing.T) {
	s := newTestServer(t, 0)
	alice, _ := s.login("alice@example.com")
	bob, _ := s.login("bob@example.com")

	var cat dto.CategoryResponse
	s.expect(s.do("POST", "/api/categories", "", dto.CreateCategoryRequest{Name: "Furniture"}, nil), http.StatusUnauthorized)
	s.expect(s.do("POST", "/api/categories", alice, dto.CreateCategoryRequest{Name: "Furniture"}, &cat), http.StatusCreated)
	var cats dto.ListCategoriesResponse
	s.expect(s.do("GET", "/api/categories", "", nil, &cats), http.StatusOK)
	if len(cats.Categories) != 1 || cats.Categories[0].ID != cat.ID {
		t.Fatalf("categories = %+v", cats)
	}

	create := dto.CreateOfferRequest{
		Title:       "Oak dining table",
		Description: testDescription,
		Type:        "sell",
		Price:       250,
		Categories:  []ksid.ID{cat.ID},
	}
	var offer dto.OfferResponse
	s.expect(s.do("POST", "/api/offers", alice, create, &offer), http.StatusCreated)
	if offer.Author == nil || offer.Author.Email != "alice@example.com" || len(offer.Categories) != 1 {
		t.Fatalf("offer = %+v", offer)
	}
	create.Price = 5
	s.expect(s.do("POST", "/api/offers", alice, create, nil), http.StatusBadRequest)

	var list dto.ListOffersResponse
	s.expect(s.do("GET", "/api/offers?limit=5&category="+cat.ID.String(), "", nil, &list), http.StatusOK)
	if list.Total != 1 || len(list.Offers) != 1 || list.Limit != 5 {
		t.Fatalf("list = %+v", list)
	}
	s.expect(s.do("GET", "/api/offers?limit=abc", "", nil, nil), http.StatusBadRequest)
	s.expect(s.do("GET", "/api/offers/not!an!id", "", nil, nil), http.StatusBadRequest)

	path := "/api/offers/" + offer.ID.String()
	var got dto.OfferResponse
	s.expect(s.do("GET", path, "", nil, &got), http.StatusOK)
	if got.Title != create.Title {
		t.Errorf("title = %q", got.Title)
	}

	price := 300
	var e errorBody
	s.expect(s.do("PATCH", path, bob, dto.UpdateOfferRequest{Price: &price}, &e), http.StatusForbidden)
	if e.Error.Code != "FORBIDDEN" {
		t.Errorf("code = %q", e.Error.Code)
	}
	s.expect(s.do("PATCH", path, alice, dto.UpdateOfferRequest{Price: &price}, &got), http.StatusOK)
	if got.Price != 300 {
		t.Errorf("price = %d", got.Price)
	}

	var comment dto.CommentResponse
	s.expect(s.do("POST", path+"/comments", bob, dto.CreateCommentRequest{Text: "Is it still available?"}, &comment), http.StatusCreated)
	s.expect(s.do("POST", path+"/comments", bob, dto.CreateCommentRequest{Text: "Hi"}, nil), http.StatusBadRequest)
	var comments dto.ListCommentsResponse
	s.expect(s.do("GET", path+"/comments?limit=10", "", nil, &comments), http.StatusOK)
	if len(comments.Comments) != 1 || comments.Comments[0].ID != comment.ID || comments.Comments[0].Author == nil {
		t.Fatalf("comments = %+v", comments)
	}
	s.expect(s.do("GET", path, "", nil, &got), http.StatusOK)
	if got.CommentCount != 1 {
		t.Errorf("commentCount = %d", got.CommentCount)
	}

	s.expect(s.do("DELETE", path, bob, nil, nil), http.StatusForbidden)
	s.expect(s.do("DELETE", path, alice, nil, nil), http.StatusNoContent)
	s.expect(s.do("GET", path, "", nil, &e), http.StatusNotFound)
	if e.Error.Code != "OFFER_NOT_FOUND" {
		t.Errorf("code = %q", e.Error.Code)
	}
	s.expect(s.do("GET", path+"/comments", "", nil, nil), http.StatusNotFound)
	if n := s.store.Comments.Count(); n != 0 {
		t.Errorf("%d comments left after delete", n)
	}
}

func TestBodyLimit(t *testing.T) {
	s := newTestServer(t, 0)
	token, _ := s.login("joe@example.com")
	big := `{"name":"` + strings.Repeat("x", 8192) + `"}`
	var e errorBody
	s.expect(s.do("POST", "/api/categories", token, strings.NewReader(big), &e), http.StatusRequestEntityTooLarge)
	if e.Error.Code != "PAYLOAD_TOO_LARGE" {
		t.Errorf("code = %q", e.Error.Code)
	}
}

func TestUploadAvatar(t *testing.T) {
	s := newTestServer(t, 0)
	token, user := s.login("joe@example.com")
	_, other := s.login("ann@example.com")

	upload := func(id, filename string, content []byte) *http.Response {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("avatar", filename)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write(content)
		_ = mw.Close()
		req, err := http.NewRequest("POST", s.srv.URL+"/api/users/"+id+"/avatar", &buf)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := s.srv.Client().Do(req)
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	}

	resp := upload(user.ID.String(), "me.png", []byte("png"))
	s.expect(resp, http.StatusOK)
	var updated dto.UserResponse
	if err := json.NewDecoder(resp.Body).Decode(&updated); err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(updated.AvatarPath, ".png") {
		t.Fatalf("avatarPath = %q", updated.AvatarPath)
	}
	if _, err := os.Stat(filepath.Join(s.store.Uploads.Dir(), updated.AvatarPath)); err != nil {
		t.Fatal(err)
	}
	r := s.do("GET", "/static/"+updated.AvatarPath, "", nil, nil)
	s.expect(r, http.StatusOK)

	s.expect(upload(other.ID.String(), "me.png", []byte("png")), http.StatusForbidden)
	s.expect(upload(user.ID.String(), "me.gif", []byte("gif")), http.StatusBadRequest)
	s.expect(upload(user.ID.String(), "big.jpg", bytes.Repeat([]byte("x"), 2048)), http.StatusRequestEntityTooLarge)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, 0)
	s.expect(s.do("GET", "/api/health", "", nil, nil), http.StatusOK)
	req, err := http.NewRequest("GET", s.srv.URL+"/metrics", http.NoBody)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := s.srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `route="GET /api/health"`) {
		t.Errorf("metrics missing health route:\n%s", body)
	}
}
