package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/verbas/internal/apperr"
	"github.com/starford/verbas/internal/backend"
	"github.com/starford/verbas/internal/checksum"
	"github.com/starford/verbas/internal/editor"
	"github.com/starford/verbas/internal/notify"
	"github.com/starford/verbas/internal/project"
	"github.com/starford/verbas/internal/prompt"
	"github.com/starford/verbas/internal/recent"
	"github.com/starford/verbas/internal/session"
	"github.com/starford/verbas/internal/testutil"
	"github.com/starford/verbas/internal/theme"
)

type testEnv struct {
	root    string
	router  http.Handler
	editor  *editor.Manager
	themes  *theme.Store
	recent  *recent.DB
	actions *project.Actions
}

// newTestEnv wires a local backend, the workflows and the editor behind the
// router. An empty authToken means disabled mode.
func newTestEnv(t *testing.T, authToken string) *testEnv {
	t.Helper()
	return newTestEnvWithEvents(t, authToken, nil)
}

func newTestEnvWithEvents(t *testing.T, authToken string, events http.Handler) *testEnv {
	t.Helper()
	logger := testutil.Logger()
	root, fs := testutil.TestRoot(t)

	svc := backend.NewLocal(fs, logger)
	themes, err := theme.NewStore(t.TempDir(), theme.DefaultThemes, theme.DefaultTheme, logger)
	if err != nil {
		t.Fatalf("theme store: %v", err)
	}
	mgr := editor.NewManager("#editor", editor.BufferFactory(0), theme.NewStylesheets(t.TempDir(), logger), themes.Current(), logger)
	if err := mgr.Mount(); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	t.Cleanup(mgr.Destroy)
	themes.Subscribe(func(name string) { _ = mgr.SetTheme(name) })

	n := notify.New(notify.Options{}, logger)
	t.Cleanup(n.Close)

	db := testutil.TestDB(t)
	actions := project.NewActions(svc, session.NewStore(), mgr, n, prompt.FromContext{},
		project.WithRecent(db),
		project.WithLogger(logger),
	)

	router := NewRouter(Deps{
		Backend:   svc,
		Workflows: actions,
		Editor:    mgr,
		Themes:    themes,
		Recent:    db,
		Files:     fs,
		Events:    events,
		Logger:    logger,
	}, authToken != "", authToken)

	return &testEnv{root: root, router: router, editor: mgr, themes: themes, recent: db, actions: actions}
}

func (e *testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, rd)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) workflow(t *testing.T, name, answer string) WorkflowResponse {
	t.Helper()
	w := e.do(t, http.MethodPost, "/project/"+name, WorkflowRequest{Answer: answer})
	if w.Code != http.StatusOK {
		t.Fatalf("%s status = %d, body = %s", name, w.Code, w.Body.String())
	}
	var resp WorkflowResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp
}

func (e *testEnv) getEditor(t *testing.T) EditorResponse {
	t.Helper()
	w := e.do(t, http.MethodGet, "/editor", nil)
	var resp EditorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return resp
}

func TestCommands_ClientRoundTrip(t *testing.T) {
	e := newTestEnv(t, "secret")
	outer := chi.NewRouter()
	outer.Mount("/api", e.router)
	srv := httptest.NewServer(outer)
	defer srv.Close()

	c := backend.NewClient(srv.URL+"/", "secret")
	ctx := context.Background()
	dir := filepath.Join(e.root, "Book")

	if err := c.CreateNewProject(ctx, "Book", dir); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := c.CreateNewProject(ctx, "Book", dir); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("second create = %v, want ErrAlreadyExists", err)
	}

	projectPath := backend.ProjectFilePath(dir, "Book")
	cfg, err := c.LoadProject(ctx, projectPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Name != "Book" || cfg.Structure.ChaptersPath != "chapters" {
		t.Errorf("loaded config = %+v", cfg)
	}

	cfg.Metadata.Author = "Ada"
	if err := c.SaveProject(ctx, projectPath, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	again, err := c.LoadProject(ctx, projectPath)
	if err != nil || again.Metadata.Author != "Ada" {
		t.Errorf("reload = %+v, %v", again.Metadata, err)
	}

	chapter := filepath.Join(dir, "chapters", "base.md")
	if err := c.SaveMarkdownFile(ctx, chapter, "# Hello"); err != nil {
		t.Fatalf("save markdown: %v", err)
	}
	if got, err := c.LoadMarkdownFile(ctx, chapter); err != nil || got != "# Hello" {
		t.Errorf("load markdown = %q, %v", got, err)
	}

	cloned, err := c.CloneProject(ctx, projectPath, filepath.Join(e.root, "copies"))
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	if want := filepath.Join(e.root, "copies", "Book", "Book.verbas"); cloned != want {
		t.Errorf("clone path = %q, want %q", cloned, want)
	}

	zipPath := filepath.Join(e.root, "book.zip")
	if err := c.RepackProject(ctx, projectPath, zipPath); err != nil {
		t.Fatalf("repack: %v", err)
	}
	if _, err := os.Stat(zipPath); err != nil {
		t.Errorf("zip missing: %v", err)
	}

	if name, err := c.AppName(ctx); err != nil || name != backend.AppName {
		t.Errorf("app name = %q, %v", name, err)
	}

	if err := c.DeleteProject(ctx, cloned); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := c.LoadProject(ctx, cloned); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("load deleted = %v, want ErrNotFound", err)
	}

	var cmdErr *backend.CommandError
	if _, err := c.LoadProject(ctx, "/outside/root.verbas"); !errors.As(err, &cmdErr) || cmdErr.Command != backend.CmdLoadProject {
		t.Errorf("escape = %v, want CommandError", err)
	}
}

func TestCommands_BadRequests(t *testing.T) {
	e := newTestEnv(t, "")

	req := httptest.NewRequest(http.MethodPost, "/commands/format_disk", strings.NewReader("{}"))
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown command = %d, want 404", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/commands/load_project", strings.NewReader("{"))
	w = httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad params = %d, want 400", w.Code)
	}
	var body errResponse
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body.Code != backend.CodeInvalidInput {
		t.Errorf("code = %q, want %q", body.Code, backend.CodeInvalidInput)
	}
}

func TestWorkflow_NewLoadsProjectAndEditor(t *testing.T) {
	e := newTestEnv(t, "")
	dir := filepath.Join(e.root, "Novel")

	resp := e.workflow(t, "new", dir)
	if resp.Status != project.StatusDone {
		t.Fatalf("status = %s (%s)", resp.Status, resp.Error)
	}
	if want := filepath.Join(dir, "Novel.verbas"); resp.Session.Path != want {
		t.Errorf("session path = %q, want %q", resp.Session.Path, want)
	}
	if resp.Session.Config == nil || resp.Session.Config.Name != "Novel" {
		t.Errorf("session config = %+v", resp.Session.Config)
	}

	testutil.Eventually(t, 2*time.Second, 10*time.Millisecond, func() bool {
		ed := e.getEditor(t)
		return ed.Ready && strings.Contains(ed.Content, "# Welcome to Verbas")
	}, "editor never showed the base chapter")

	ed := e.getEditor(t)
	if strings.HasPrefix(ed.Content, "+++") {
		t.Errorf("front matter leaked into the editor: %q", ed.Content)
	}

	w := e.do(t, http.MethodGet, "/project", nil)
	var sess SessionResponse
	_ = json.Unmarshal(w.Body.Bytes(), &sess)
	if sess.Path != resp.Session.Path {
		t.Errorf("GET /project path = %q", sess.Path)
	}
}

func TestWorkflow_MissingAnswerCancels(t *testing.T) {
	e := newTestEnv(t, "")

	req := httptest.NewRequest(http.MethodPost, "/project/open", nil)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	var resp WorkflowResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Status != project.StatusCancelled || resp.Error != "" {
		t.Errorf("open without answer = %+v", resp)
	}
	if resp.Session.Path != "" || resp.Session.Config != nil {
		t.Errorf("session changed: %+v", resp.Session)
	}
}

func TestWorkflow_SaveWithoutProjectIsRefused(t *testing.T) {
	e := newTestEnv(t, "")

	resp := e.workflow(t, "save", "")
	if resp.Status != project.StatusRefused {
		t.Errorf("status = %s, want refused", resp.Status)
	}
}

func TestWorkflow_OpenFailureReported(t *testing.T) {
	e := newTestEnv(t, "")

	resp := e.workflow(t, "open", filepath.Join(e.root, "ghost.verbas"))
	if resp.Status != project.StatusFailed || resp.Error == "" {
		t.Errorf("open missing = %+v", resp)
	}
}

func TestWorkflow_SaveWritesEditorContent(t *testing.T) {
	e := newTestEnv(t, "")
	dir := filepath.Join(e.root, "Book")
	if resp := e.workflow(t, "new", dir); resp.Status != project.StatusDone {
		t.Fatalf("new = %+v", resp)
	}

	if w := e.do(t, http.MethodPut, "/editor", EditorSourceRequest{Content: "# Rewritten"}); w.Code != http.StatusAccepted {
		t.Fatalf("PUT /editor = %d", w.Code)
	}
	if err := e.editor.WaitReady(context.Background()); err != nil {
		t.Fatalf("WaitReady: %v", err)
	}

	if resp := e.workflow(t, "save", ""); resp.Status != project.StatusDone {
		t.Fatalf("save = %+v", resp)
	}
	data, err := os.ReadFile(filepath.Join(dir, "chapters", "base.md"))
	if err != nil || string(data) != "# Rewritten" {
		t.Errorf("chapter = %q, %v", data, err)
	}
}

func TestWorkflow_Unknown(t *testing.T) {
	e := newTestEnv(t, "")
	if w := e.do(t, http.MethodPost, "/project/publish", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown workflow = %d, want 404", w.Code)
	}
}

func TestEditor_PutThenGet(t *testing.T) {
	e := newTestEnv(t, "")

	w := e.do(t, http.MethodPut, "/editor", EditorSourceRequest{Content: "# Hi"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("PUT /editor = %d", w.Code)
	}

	testutil.Eventually(t, 2*time.Second, 10*time.Millisecond, func() bool {
		ed := e.getEditor(t)
		return ed.Ready && ed.Content == "# Hi"
	}, "editor never became ready with new content")

	ed := e.getEditor(t)
	if ed.Checksum != checksum.String("# Hi") {
		t.Errorf("checksum = %q", ed.Checksum)
	}
	if ed.State != editor.StateReady.String() {
		t.Errorf("state = %q", ed.State)
	}
}

func TestTheme_SwitchAndReject(t *testing.T) {
	e := newTestEnv(t, "")

	w := e.do(t, http.MethodPut, "/editor/theme", ThemeRequest{Theme: "nord"})
	if w.Code != http.StatusOK {
		t.Fatalf("PUT theme = %d, body = %s", w.Code, w.Body.String())
	}
	testutil.Eventually(t, 2*time.Second, 10*time.Millisecond, func() bool {
		return e.editor.Theme() == "nord" && e.editor.Ready()
	}, "editor never reinitialized with the new theme")

	w = e.do(t, http.MethodPut, "/editor/theme", ThemeRequest{Theme: "solarized"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown theme = %d, want 400", w.Code)
	}

	w = e.do(t, http.MethodGet, "/editor/theme", nil)
	var resp ThemeResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Theme != "nord" || len(resp.Allowed) != 2 {
		t.Errorf("GET theme = %+v", resp)
	}
}

func TestRecent_ListAndForget(t *testing.T) {
	e := newTestEnv(t, "")
	dir := filepath.Join(e.root, "Book")
	if resp := e.workflow(t, "new", dir); resp.Status != project.StatusDone {
		t.Fatalf("new = %+v", resp)
	}

	w := e.do(t, http.MethodGet, "/recent", nil)
	var list RecentResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if len(list.Projects) != 1 || list.Projects[0].Name != "Book" {
		t.Fatalf("recent = %+v", list.Projects)
	}

	w = e.do(t, http.MethodDelete, "/recent?path="+list.Projects[0].Path, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("DELETE /recent = %d", w.Code)
	}
	w = e.do(t, http.MethodGet, "/recent", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if len(list.Projects) != 0 {
		t.Errorf("after forget = %+v", list.Projects)
	}

	if w := e.do(t, http.MethodDelete, "/recent", nil); w.Code != http.StatusBadRequest {
		t.Errorf("DELETE without path = %d, want 400", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	e := newTestEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/project", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	e := newTestEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/project", nil)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	e := newTestEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodPost, "/commands/app_name", strings.NewReader("{}"))
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	e := newTestEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/project", nil)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

func TestBackendOnlyRouter(t *testing.T) {
	_, fs := testutil.TestRoot(t)
	router := NewRouter(Deps{Backend: backend.NewLocal(fs, testutil.Logger())}, false, "")

	req := httptest.NewRequest(http.MethodPost, "/commands/app_name", strings.NewReader("{}"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("app_name = %d", w.Code)
	}
	var resp CommandResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Result != backend.AppName {
		t.Errorf("result = %v", resp.Result)
	}

	req = httptest.NewRequest(http.MethodGet, "/project", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("authoring routes mounted without workflows: %d", w.Code)
	}
}

// SSE endpoint auth tests.

// blockingEvents writes stream headers and blocks until the request ends.
var blockingEvents = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	e := newTestEnvWithEvents(t, "secret", blockingEvents)

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	e := newTestEnvWithEvents(t, "tok", blockingEvents)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}

func TestAuthMiddleware_QueryToken(t *testing.T) {
	e := newTestEnvWithEvents(t, "tok", blockingEvents)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events?access_token=tok", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with query token should not 401")
	}

	// Only GET accepts the query form.
	req = httptest.NewRequest(http.MethodPost, "/commands/app_name?access_token=tok", strings.NewReader("{}"))
	w = httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("POST with query token = %d, want 401", w.Code)
	}

	// A header, when present, wins.
	req = httptest.NewRequest(http.MethodGet, "/project?access_token=tok", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong header = %d, want 401", w.Code)
	}
}

// Image upload tests.

func uploadImage(t *testing.T, router http.Handler, field, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.Copy(part, bytes.NewReader(content))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/project/images", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestUploadImage(t *testing.T) {
	e := newTestEnv(t, "")
	dir := filepath.Join(e.root, "Book")
	if resp := e.workflow(t, "new", dir); resp.Status != project.StatusDone {
		t.Fatalf("new = %+v", resp)
	}

	content := []byte("\x89PNG fake image data")
	w := uploadImage(t, e.router, "file", "cover.png", content)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload = %d, body = %s", w.Code, w.Body.String())
	}
	var resp ImageUploadResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Path != "images/cover.png" || resp.Size != int64(len(content)) {
		t.Errorf("response = %+v", resp)
	}

	data, err := os.ReadFile(filepath.Join(dir, "images", "cover.png"))
	if err != nil {
		t.Fatalf("read uploaded: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Error("uploaded content mismatch")
	}
}

func TestUploadImage_NoProject(t *testing.T) {
	e := newTestEnv(t, "")
	if w := uploadImage(t, e.router, "file", "cover.png", []byte("x")); w.Code != http.StatusConflict {
		t.Errorf("upload without project = %d, want 409", w.Code)
	}
}

func TestUploadImage_MissingFileField(t *testing.T) {
	e := newTestEnv(t, "")
	if resp := e.workflow(t, "new", filepath.Join(e.root, "Book")); resp.Status != project.StatusDone {
		t.Fatalf("new = %+v", resp)
	}
	if w := uploadImage(t, e.router, "image", "cover.png", []byte("x")); w.Code != http.StatusBadRequest {
		t.Errorf("wrong field = %d, want 400", w.Code)
	}
}
