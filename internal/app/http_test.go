package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"trailcms/api/internal/cmserr"
	"trailcms/api/internal/config"
	"trailcms/api/internal/content"
	"trailcms/api/internal/gitrepo"
	"trailcms/api/internal/pullrequest"
	"trailcms/api/internal/store"
)

const previewPOI = `---
id: alte-kirche
title: Alte Kirche
image: kirche.jpg
layout: poi
gmaps: null
coords: [51.0, 7.5]
info: Eine alte Kirche.
arDesc: Richte die Kamera auf das Portal.
type: poi
ar:
  type: image
  content: model
  location: marker
  nft:
    - id: portal
      model: bell
      scale: "1 1 1"
      position: "0 0 0"
      rotation: "-90 0 0"
---
Text.
`

const plainPOI = `---
id: brunnen
title: Brunnen
image: default.jpg
layout: poi
coords: [51.1, 7.6]
info: Ein Brunnen.
arDesc: Keine AR.
type: poi
ar:
  type: none
  content: none
  location: none
  nft: []
---
`

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]store.User
}

func (f *fakeUsers) GetUserByID(_ context.Context, id string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return store.User{}, fmt.Errorf("user %s: %w", id, store.ErrNotFound)
	}
	return user, nil
}

type fakeSessions struct {
	mu      sync.Mutex
	refresh map[string]string
	revoked map[string]bool
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{refresh: map[string]string{}, revoked: map[string]bool{}}
}

func (f *fakeSessions) SaveRefreshSession(_ context.Context, tokenHash, userID string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refresh[tokenHash] = userID
	return nil
}

func (f *fakeSessions) LookupRefreshSession(_ context.Context, tokenHash string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	userID, ok := f.refresh[tokenHash]
	if !ok {
		return "", store.ErrNotFound
	}
	return userID, nil
}

func (f *fakeSessions) RevokeRefreshSession(_ context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.refresh, tokenHash)
	return nil
}

func (f *fakeSessions) RevokeAccessToken(_ context.Context, jti string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked[jti] = true
	return nil
}

func (f *fakeSessions) IsAccessTokenRevoked(_ context.Context, jti string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.revoked[jti], nil
}

type fakePasswords struct {
	loginFn          func(ctx context.Context, username, password string) (store.User, error)
	changePasswordFn func(ctx context.Context, userID, current, next string) error
}

func (f *fakePasswords) Login(ctx context.Context, username, password string) (store.User, error) {
	return f.loginFn(ctx, username, password)
}

func (f *fakePasswords) ChangePassword(ctx context.Context, userID, current, next string) error {
	if f.changePasswordFn == nil {
		return errors.New("changePasswordFn not configured")
	}
	return f.changePasswordFn(ctx, userID, current, next)
}

type testEnv struct {
	service *Service
	server  http.Handler
	local   *gitrepo.Local
	users   *fakeUsers
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	local, err := gitrepo.NewLocal("", "Test Editor")
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}
	if err := local.Seed(ctx, "main", map[string][]byte{
		"src/wiehl/index.md":       []byte("---\ntitle: Wiehl\nlayout: route\nimage: wiehl.jpg\ntype: route\n---\n"),
		"src/wiehl/alte-kirche.md": []byte(previewPOI),
		"src/wiehl/brunnen.md":     []byte(plainPOI),
		"src/wiehl/images/a.jpg":   []byte("jpeg"),
	}, "Initial content"); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}

	repo := gitrepo.New(local, "main")
	pulls := pullrequest.New(local, "main", "[CMS]", nil)
	contentServices := content.New(repo, pulls, content.Options{
		ContentRoot:  "src",
		CommitPrefix: "[CMS]",
		Routes:       []string{"wiehl"},
		RawBaseURL:   "https://raw.githubusercontent.com/owner/content/main",
	})

	users := &fakeUsers{users: map[string]store.User{
		"u-admin":  {ID: "u-admin", Username: "admin", DisplayName: "Admin", Role: "admin"},
		"u-editor": {ID: "u-editor", Username: "editor", DisplayName: "Editor", Role: "editor"},
		"u-viewer": {ID: "u-viewer", Username: "viewer", DisplayName: "Viewer", Role: "viewer"},
	}}
	passwords := &fakePasswords{loginFn: func(_ context.Context, username, password string) (store.User, error) {
		for _, user := range users.users {
			if user.Username == username && password == "secret-"+username {
				return user, nil
			}
		}
		return store.User{}, cmserr.Unauthorized("invalid credentials")
	}}

	passwords.changePasswordFn = func(_ context.Context, userID, current, next string) error {
		user := users.users[userID]
		if current != "secret-"+user.Username {
			return cmserr.Unauthorized("current password is incorrect")
		}
		if len(next) < 8 {
			return cmserr.Validation("password must be at least 8 characters")
		}
		return nil
	}

	service := &Service{
		cfg: config.Config{
			JWTSecret:   "test-secret",
			AccessTTL:   time.Hour,
			RefreshTTL:  24 * time.Hour,
			TrunkBranch: "main",
		},
		users:     users,
		sessions:  newFakeSessions(),
		passwords: passwords,
		content:   contentServices,
		pulls:     pulls,
		checks:    map[string]HealthCheck{},
	}
	return &testEnv{
		service: service,
		server:  NewHTTPServer(service, "*").Handler(),
		local:   local,
		users:   users,
	}
}

func (e *testEnv) token(t *testing.T, userID string) string {
	t.Helper()
	user, err := e.users.GetUserByID(context.Background(), userID)
	if err != nil {
		t.Fatalf("unknown test user %s", userID)
	}
	session, err := e.service.issueSession(context.Background(), user)
	if err != nil {
		t.Fatalf("issueSession() error = %v", err)
	}
	return session.Token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	e.server.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) doJSON(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	return e.do(t, method, path, token, reader, "application/json")
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response %q: %v", rr.Body.String(), err)
	}
	return payload
}

func expectError(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("expected status %d, got %d body=%s", status, rr.Code, rr.Body.String())
	}
	if got, _ := decode(t, rr)["code"].(string); got != code {
		t.Fatalf("expected code %s, got %q", code, got)
	}
}

func TestStatusAndHealth(t *testing.T) {
	env := newTestEnv(t)

	rr := env.doJSON(t, http.MethodGet, "/api/status", "", "")
	if rr.Code != http.StatusOK || decode(t, rr)["message"] != "API is online" {
		t.Fatalf("status: %d %s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected X-Request-ID header")
	}

	env.service.AddHealthCheck("repository", func(context.Context) error { return nil })
	rr = env.doJSON(t, http.MethodGet, "/api/health", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("healthy: %d %s", rr.Code, rr.Body.String())
	}

	env.service.AddHealthCheck("database", func(context.Context) error { return errors.New("connection refused") })
	rr = env.doJSON(t, http.MethodGet, "/api/health", "", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("unhealthy: %d %s", rr.Code, rr.Body.String())
	}
	checks, _ := decode(t, rr)["checks"].(map[string]any)
	if checks["repository"] != "ok" || !strings.Contains(fmt.Sprint(checks["database"]), "connection refused") {
		t.Fatalf("checks = %v", checks)
	}
}

func TestLoginRefreshLogout(t *testing.T) {
	env := newTestEnv(t)

	rr := env.doJSON(t, http.MethodPost, "/api/auth/login", "", `{"username":"editor","password":"secret-editor"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("login: %d %s", rr.Code, rr.Body.String())
	}
	login := decode(t, rr)
	token, _ := login["token"].(string)
	refresh, _ := login["refreshToken"].(string)
	user, _ := login["user"].(map[string]any)
	if token == "" || refresh == "" || user["role"] != "editor" {
		t.Fatalf("unexpected login payload: %v", login)
	}

	rr = env.doJSON(t, http.MethodPost, "/api/auth/refresh", "", fmt.Sprintf(`{"refreshToken":%q}`, refresh))
	if rr.Code != http.StatusOK {
		t.Fatalf("refresh: %d %s", rr.Code, rr.Body.String())
	}
	rotated, _ := decode(t, rr)["refreshToken"].(string)
	if rotated == "" || rotated == refresh {
		t.Fatal("refresh must rotate the refresh token")
	}
	rr = env.doJSON(t, http.MethodPost, "/api/auth/refresh", "", fmt.Sprintf(`{"refreshToken":%q}`, refresh))
	expectError(t, rr, http.StatusUnauthorized, "UNAUTHORIZED")

	if rr := env.doJSON(t, http.MethodGet, "/api/routes", token, ""); rr.Code != http.StatusOK {
		t.Fatalf("routes before logout: %d %s", rr.Code, rr.Body.String())
	}
	rr = env.doJSON(t, http.MethodPost, "/api/auth/logout", token, fmt.Sprintf(`{"refreshToken":%q}`, rotated))
	if rr.Code != http.StatusOK {
		t.Fatalf("logout: %d %s", rr.Code, rr.Body.String())
	}
	expectError(t, env.doJSON(t, http.MethodGet, "/api/routes", token, ""), http.StatusUnauthorized, "UNAUTHORIZED")
	rr = env.doJSON(t, http.MethodPost, "/api/auth/refresh", "", fmt.Sprintf(`{"refreshToken":%q}`, rotated))
	expectError(t, rr, http.StatusUnauthorized, "UNAUTHORIZED")
}

func TestLoginFailures(t *testing.T) {
	env := newTestEnv(t)
	expectError(t, env.doJSON(t, http.MethodPost, "/api/auth/login", "", `{"username":"editor","password":"nope"}`),
		http.StatusUnauthorized, "UNAUTHORIZED")
	expectError(t, env.doJSON(t, http.MethodPost, "/api/auth/login", "", `{"username":`),
		http.StatusBadRequest, "INVALID_BODY")
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "u-viewer")

	expectError(t, env.doJSON(t, http.MethodPost, "/api/auth/password", "", `{}`), http.StatusUnauthorized, "UNAUTHORIZED")
	expectError(t, env.doJSON(t, http.MethodPost, "/api/auth/password", token, `{"currentPassword":"wrong","newPassword":"long-enough"}`),
		http.StatusUnauthorized, "UNAUTHORIZED")
	expectError(t, env.doJSON(t, http.MethodPost, "/api/auth/password", token, `{"currentPassword":"secret-viewer","newPassword":"short"}`),
		http.StatusBadRequest, "VALIDATION_ERROR")
	rr := env.doJSON(t, http.MethodPost, "/api/auth/password", token, `{"currentPassword":"secret-viewer","newPassword":"long-enough"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("change password: %d %s", rr.Code, rr.Body.String())
	}
}

func TestSessionRequiredAndRoleReloaded(t *testing.T) {
	env := newTestEnv(t)
	expectError(t, env.doJSON(t, http.MethodGet, "/api/routes", "", ""), http.StatusUnauthorized, "UNAUTHORIZED")
	expectError(t, env.doJSON(t, http.MethodGet, "/api/routes", "garbage", ""), http.StatusUnauthorized, "UNAUTHORIZED")

	token := env.token(t, "u-editor")
	env.users.mu.Lock()
	demoted := env.users.users["u-editor"]
	demoted.Role = "viewer"
	env.users.users["u-editor"] = demoted
	env.users.mu.Unlock()

	rr := env.doJSON(t, http.MethodPut, "/api/routes/wiehl", token, `{"title":"Neu"}`)
	expectError(t, rr, http.StatusForbidden, "FORBIDDEN")
}

func TestRoleChecks(t *testing.T) {
	env := newTestEnv(t)
	viewer := env.token(t, "u-viewer")
	editor := env.token(t, "u-editor")

	expectError(t, env.doJSON(t, http.MethodPut, "/api/routes/wiehl", viewer, `{"title":"Neu"}`), http.StatusForbidden, "FORBIDDEN")
	expectError(t, env.doJSON(t, http.MethodDelete, "/api/routes/wiehl/pois/brunnen", viewer, ""), http.StatusForbidden, "FORBIDDEN")
	expectError(t, env.doJSON(t, http.MethodPut, "/api/pull-requests/1/merge", editor, ""), http.StatusForbidden, "FORBIDDEN")
	expectError(t, env.doJSON(t, http.MethodDelete, "/api/pull-requests/1", editor, ""), http.StatusForbidden, "FORBIDDEN")
}

func TestRoutesAndErrors(t *testing.T) {
	env := newTestEnv(t)
	viewer := env.token(t, "u-viewer")

	rr := env.doJSON(t, http.MethodGet, "/api/routes", viewer, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list routes: %d %s", rr.Code, rr.Body.String())
	}
	var routes []content.Route
	if err := json.Unmarshal(rr.Body.Bytes(), &routes); err != nil || len(routes) != 1 || routes[0].Title != "Wiehl" {
		t.Fatalf("routes = %+v, %v", routes, err)
	}

	expectError(t, env.doJSON(t, http.MethodGet, "/api/routes/missing/pois", viewer, ""), http.StatusNotFound, "NOT_FOUND")
	expectError(t, env.doJSON(t, http.MethodGet, "/api/routes/wiehl/pois/missing", viewer, ""), http.StatusNotFound, "NOT_FOUND")
	expectError(t, env.doJSON(t, http.MethodGet, "/api/routes/wiehl/unknown", viewer, ""), http.StatusNotFound, "NOT_FOUND")
	expectError(t, env.doJSON(t, http.MethodPatch, "/api/routes/wiehl/pois", viewer, ""), http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED")
	expectError(t, env.doJSON(t, http.MethodGet, "/api/pull-requests/abc", viewer, ""), http.StatusBadRequest, "VALIDATION_ERROR")
}

func TestPOIProposalAndMerge(t *testing.T) {
	env := newTestEnv(t)
	editor := env.token(t, "u-editor")
	admin := env.token(t, "u-admin")

	rr := env.doJSON(t, http.MethodPost, "/api/routes/wiehl/pois", editor, `{"title":"Neue Mühle","coords":[51.2,7.7]}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create POI: %d %s", rr.Code, rr.Body.String())
	}
	created := decode(t, rr)
	poi, _ := created["poi"].(map[string]any)
	proposal, _ := created["pullRequest"].(map[string]any)
	if poi["id"] != "neue-m-hle" {
		t.Fatalf("poi = %v", poi)
	}
	number := int(proposal["number"].(float64))

	expectError(t, env.doJSON(t, http.MethodGet, "/api/routes/wiehl/pois/neue-m-hle", editor, ""), http.StatusNotFound, "NOT_FOUND")

	rr = env.doJSON(t, http.MethodGet, fmt.Sprintf("/api/pull-requests/%d", number), editor, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get PR: %d %s", rr.Code, rr.Body.String())
	}
	var pr gitrepo.PullRequest
	if err := json.Unmarshal(rr.Body.Bytes(), &pr); err != nil {
		t.Fatalf("decode PR: %v", err)
	}
	if pr.Title != "[CMS] Create POI neue-m-hle" || len(pr.Files) != 1 || pr.Files[0].Filename != "src/wiehl/neue-m-hle.md" {
		t.Fatalf("unexpected PR: %+v", pr)
	}

	rr = env.doJSON(t, http.MethodPut, fmt.Sprintf("/api/pull-requests/%d/merge", number), admin, "")
	if rr.Code != http.StatusOK || decode(t, rr)["merged"] != true {
		t.Fatalf("merge: %d %s", rr.Code, rr.Body.String())
	}
	if rr := env.doJSON(t, http.MethodGet, "/api/routes/wiehl/pois/neue-m-hle", editor, ""); rr.Code != http.StatusOK {
		t.Fatalf("merged POI not readable: %d %s", rr.Code, rr.Body.String())
	}
}

func TestPOIIdenticalUpdateConflict(t *testing.T) {
	env := newTestEnv(t)
	editor := env.token(t, "u-editor")

	rr := env.doJSON(t, http.MethodPut, "/api/routes/wiehl/pois/brunnen", editor, `{"title":"Brunnen","info":"Ein Brunnen."}`)
	expectError(t, rr, http.StatusConflict, "CONFLICT")

	pulls, err := env.local.ListPullRequests(context.Background(), "open")
	if err != nil || len(pulls) != 0 {
		t.Fatalf("no pull request expected, got %d (%v)", len(pulls), err)
	}
}

func multipartBody(t *testing.T, filename string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("CreateFormFile() error = %v", err)
		}
		_, _ = part.Write(data)
	}
	for key, value := range fields {
		_ = writer.WriteField(key, value)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &body, writer.FormDataContentType()
}

func TestImageUpload(t *testing.T) {
	env := newTestEnv(t)
	editor := env.token(t, "u-editor")

	body, contentType := multipartBody(t, "tower.png", []byte("png"), map[string]string{"isSmallImage": "true"})
	rr := env.do(t, http.MethodPost, "/api/routes/wiehl/images", editor, body, contentType)
	if rr.Code != http.StatusCreated {
		t.Fatalf("upload: %d %s", rr.Code, rr.Body.String())
	}
	image, _ := decode(t, rr)["image"].(map[string]any)
	if image["url"] != "src/wiehl/images/small/tower.png" || image["small"] != true {
		t.Fatalf("image = %v", image)
	}

	body, contentType = multipartBody(t, "", nil, map[string]string{"isSmallImage": "false"})
	expectError(t, env.do(t, http.MethodPost, "/api/routes/wiehl/images", editor, body, contentType), http.StatusBadRequest, "VALIDATION_ERROR")

	body, contentType = multipartBody(t, "notes.txt", []byte("x"), nil)
	expectError(t, env.do(t, http.MethodPost, "/api/routes/wiehl/images", editor, body, contentType), http.StatusBadRequest, "VALIDATION_ERROR")

	body, contentType = multipartBody(t, "a.jpg", []byte("jpeg-v2"), nil)
	rr = env.do(t, http.MethodPut, "/api/routes/wiehl/images/"+gitrepo.ContentID("src/wiehl/images/a.jpg"), editor, body, contentType)
	if rr.Code != http.StatusOK {
		t.Fatalf("replace image: %d %s", rr.Code, rr.Body.String())
	}
}

func TestForeignPullRequestIsForbidden(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sha, err := env.local.BranchSHA(ctx, "main")
	if err != nil {
		t.Fatalf("BranchSHA() error = %v", err)
	}
	if err := env.local.CreateBranch(ctx, "manual", sha); err != nil {
		t.Fatalf("CreateBranch() error = %v", err)
	}
	if err := env.local.PutFile(ctx, gitrepo.PutFileRequest{Path: "README.md", Content: []byte("hi"), Message: "Add readme", Branch: "manual"}); err != nil {
		t.Fatalf("PutFile() error = %v", err)
	}
	pr, err := env.local.CreatePullRequest(ctx, gitrepo.NewPullRequest{Title: "Manual change", Head: "manual", Base: "main"})
	if err != nil {
		t.Fatalf("CreatePullRequest() error = %v", err)
	}

	admin := env.token(t, "u-admin")
	path := fmt.Sprintf("/api/pull-requests/%d", pr.Number)
	expectError(t, env.doJSON(t, http.MethodGet, path, admin, ""), http.StatusForbidden, "FORBIDDEN")
	expectError(t, env.doJSON(t, http.MethodPut, path+"/merge", admin, ""), http.StatusForbidden, "FORBIDDEN")

	rr := env.doJSON(t, http.MethodGet, "/api/pull-requests", admin, "")
	var listed []gitrepo.PullRequest
	if err := json.Unmarshal(rr.Body.Bytes(), &listed); err != nil || len(listed) != 0 {
		t.Fatalf("foreign PR must not be listed: %s", rr.Body.String())
	}
}

func TestCreatePullRequestTagsTitle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sha, _ := env.local.BranchSHA(ctx, "main")
	if err := env.local.CreateBranch(ctx, "manual", sha); err != nil {
		t.Fatalf("CreateBranch() error = %v", err)
	}
	if err := env.local.PutFile(ctx, gitrepo.PutFileRequest{Path: "NOTES.md", Content: []byte("x"), Message: "notes", Branch: "manual"}); err != nil {
		t.Fatalf("PutFile() error = %v", err)
	}

	editor := env.token(t, "u-editor")
	rr := env.doJSON(t, http.MethodPost, "/api/pull-requests", editor, `{"headBranch":"manual","title":"Add notes"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create PR: %d %s", rr.Code, rr.Body.String())
	}
	if title := decode(t, rr)["title"]; title != "[CMS] Add notes" {
		t.Fatalf("title = %v", title)
	}
}

func TestARPreview(t *testing.T) {
	env := newTestEnv(t)
	viewer := env.token(t, "u-viewer")

	rr := env.do(t, http.MethodGet, "/api/ar-preview/wiehl/alte-kirche", "", nil, "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: %d", rr.Code)
	}
	rr = env.do(t, http.MethodGet, "/api/ar-preview/wiehl/alte-kirche?token=forged", "", nil, "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("invalid token: %d", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/api/ar-preview/wiehl/alte-kirche?token="+viewer, "", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("preview: %d %s", rr.Code, rr.Body.String())
	}
	if !strings.HasPrefix(rr.Header().Get("Content-Type"), "text/html") {
		t.Fatalf("content type = %q", rr.Header().Get("Content-Type"))
	}
	page := rr.Body.String()
	for _, want := range []string{
		"https://raw.githubusercontent.com/owner/content/main/src/wiehl/ar-media/models/bell.glb",
		"https://raw.githubusercontent.com/owner/content/main/src/wiehl/ar-media/images/portal",
		`rotation="-90 0 0"`,
		"AR Preview: Alte Kirche",
	} {
		if !strings.Contains(page, want) {
			t.Errorf("page missing %q", want)
		}
	}

	rr = env.do(t, http.MethodGet, "/api/ar-preview/wiehl/brunnen?token="+viewer, "", nil, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("POI without marker: %d %s", rr.Code, rr.Body.String())
	}
}

func TestMapError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{err: cmserr.Validation("bad"), status: http.StatusBadRequest, code: "VALIDATION_ERROR"},
		{err: fmt.Errorf("wrapped: %w", cmserr.NotFound("gone")), status: http.StatusNotFound, code: "NOT_FOUND"},
		{err: cmserr.Forbidden("no"), status: http.StatusForbidden, code: "FORBIDDEN"},
		{err: cmserr.Conflict("same"), status: http.StatusConflict, code: "CONFLICT"},
		{err: cmserr.Unauthorized("who"), status: http.StatusUnauthorized, code: "UNAUTHORIZED"},
		{err: errors.New("boom"), status: http.StatusInternalServerError, code: "SERVER_ERROR"},
	}
	for _, tc := range cases {
		status, code, message := mapError(tc.err)
		if status != tc.status || code != tc.code {
			t.Errorf("mapError(%v) = %d %s, want %d %s", tc.err, status, code, tc.status, tc.code)
		}
		if status == http.StatusInternalServerError && message != "Server error" {
			t.Errorf("internal details leaked: %q", message)
		}
	}
}
