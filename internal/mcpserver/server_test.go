package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/verbas/internal/backend"
	"github.com/starford/verbas/internal/checksum"
	"github.com/starford/verbas/internal/recent"
	"github.com/starford/verbas/internal/testutil"
)

// testServer creates a project "Book" under a temp root and returns its
// project-file path.
func testServer(t *testing.T) (*Server, string, *recent.DB) {
	t.Helper()

	root, fs := testutil.TestRoot(t)
	svc := backend.NewLocal(fs, testutil.Logger())
	dir := filepath.Join(root, "Book")
	if err := svc.CreateNewProject(context.Background(), "Book", dir); err != nil {
		t.Fatal(err)
	}

	db := testutil.TestDB(t)
	srv := New(svc, "test", WithRecent(db), WithFiles(fs), WithLogger(testutil.Logger()))
	return srv, backend.ProjectFilePath(dir, "Book"), db
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no in-process "call tool" helper, so the handlers are
	// invoked directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "get_chapter_contract":
		result, err = srv.getChapterContract(ctx, req)
	case "load_project":
		result, err = srv.loadProject(ctx, req)
	case "read_chapter":
		result, err = srv.readChapter(ctx, req)
	case "write_chapter":
		result, err = srv.writeChapter(ctx, req)
	case "list_recent":
		result, err = srv.listRecent(ctx, req)
	case "upload_image":
		result, err = srv.uploadImage(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func readChapter(t *testing.T, srv *Server, projectPath string) ChapterView {
	t.Helper()
	r := callTool(t, srv, "read_chapter", map[string]interface{}{"project_path": projectPath})
	if r.IsError {
		t.Fatalf("read_chapter: %s", resultText(r))
	}
	var v ChapterView
	if err := json.Unmarshal([]byte(resultText(r)), &v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestContract(t *testing.T) {
	srv, _, _ := testServer(t)
	r := callTool(t, srv, "get_chapter_contract", nil)
	if !strings.Contains(resultText(r), "+++") {
		t.Error("contract does not describe the metadata block")
	}

	contents, err := srv.readContractResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(contents) != 1 {
		t.Fatalf("resource = %v, %v", contents, err)
	}
	if tc, ok := contents[0].(mcp.TextResourceContents); !ok || tc.URI != contractURI {
		t.Errorf("resource contents = %#v", contents[0])
	}
}

func TestLoadProject(t *testing.T) {
	srv, projectPath, _ := testServer(t)

	r := callTool(t, srv, "load_project", map[string]interface{}{"path": projectPath})
	if r.IsError {
		t.Fatalf("load_project: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), `"name": "Book"`) {
		t.Errorf("config = %s", resultText(r))
	}

	r = callTool(t, srv, "load_project", map[string]interface{}{"path": projectPath + ".missing"})
	if !r.IsError {
		t.Error("expected error for missing project")
	}
}

func TestReadChapter_StripsFrontMatter(t *testing.T) {
	srv, projectPath, _ := testServer(t)

	v := readChapter(t, srv, projectPath)
	if v.Title != "Base chapter" {
		t.Errorf("title = %q", v.Title)
	}
	if strings.Contains(v.Body, "+++") || !strings.Contains(v.Body, "# Welcome to Verbas") {
		t.Errorf("body = %q", v.Body)
	}
	raw, err := os.ReadFile(v.Path)
	if err != nil {
		t.Fatal(err)
	}
	if v.Checksum != checksum.Sum(raw) {
		t.Error("checksum does not match the file")
	}
}

func TestWriteChapter_PreservesFrontMatter(t *testing.T) {
	srv, projectPath, _ := testServer(t)
	before := readChapter(t, srv, projectPath)

	r := callTool(t, srv, "write_chapter", map[string]interface{}{
		"project_path": projectPath,
		"content":      "# Rewritten\n\nNew text.\n",
		"if_match":     before.Checksum,
	})
	if r.IsError {
		t.Fatalf("write_chapter: %s", resultText(r))
	}

	after := readChapter(t, srv, projectPath)
	if after.Title != "Base chapter" {
		t.Errorf("front matter lost, title = %q", after.Title)
	}
	if after.Body != "# Rewritten\n\nNew text.\n" {
		t.Errorf("body = %q", after.Body)
	}

	// The old checksum is now stale.
	r = callTool(t, srv, "write_chapter", map[string]interface{}{
		"project_path": projectPath,
		"content":      "lost update",
		"if_match":     before.Checksum,
	})
	if !r.IsError || !strings.Contains(resultText(r), "checksum mismatch") {
		t.Errorf("stale write = %q (error %v)", resultText(r), r.IsError)
	}
	if got := readChapter(t, srv, projectPath); got.Body != after.Body {
		t.Errorf("stale write changed the chapter: %q", got.Body)
	}
}

func TestWriteChapter_WithoutIfMatch(t *testing.T) {
	srv, projectPath, _ := testServer(t)
	r := callTool(t, srv, "write_chapter", map[string]interface{}{
		"project_path": projectPath,
		"content":      "Unconditional.",
	})
	if r.IsError {
		t.Fatalf("write_chapter: %s", resultText(r))
	}
	if got := readChapter(t, srv, projectPath); got.Body != "Unconditional." {
		t.Errorf("body = %q", got.Body)
	}
}

func TestListRecent(t *testing.T) {
	srv, projectPath, db := testServer(t)

	r := callTool(t, srv, "list_recent", map[string]interface{}{})
	if resultText(r) != "no recent projects" {
		t.Errorf("empty list = %q", resultText(r))
	}

	if err := db.Touch(projectPath, "Book", time.Now()); err != nil {
		t.Fatal(err)
	}
	r = callTool(t, srv, "list_recent", map[string]interface{}{"limit": 5.0})
	if !strings.Contains(resultText(r), projectPath) {
		t.Errorf("list = %q", resultText(r))
	}
}

// 1x1 transparent PNG.
const tinyPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="

func TestUploadImage_DataURI(t *testing.T) {
	srv, projectPath, _ := testServer(t)

	r := callTool(t, srv, "upload_image", map[string]interface{}{
		"project_path": projectPath,
		"url":          "data:image/png;base64," + tinyPNG,
		"filename":     "dot.png",
	})
	if r.IsError {
		t.Fatalf("upload_image: %s", resultText(r))
	}
	var res uploadResult
	if err := json.Unmarshal([]byte(resultText(r)), &res); err != nil {
		t.Fatal(err)
	}
	if res.SavedPath != "images/dot.png" || res.MarkdownImage != "![dot.png](../images/dot.png)" {
		t.Errorf("result = %+v", res)
	}

	data, err := os.ReadFile(filepath.Join(filepath.Dir(projectPath), "images", "dot.png"))
	if err != nil {
		t.Fatal(err)
	}
	want, _ := base64.StdEncoding.DecodeString(tinyPNG)
	if string(data) != string(want) {
		t.Error("stored image differs")
	}

	r = callTool(t, srv, "upload_image", map[string]interface{}{
		"project_path": projectPath,
		"url":          "data:image/png;base64," + tinyPNG,
		"filename":     "dot.png",
	})
	if !r.IsError {
		t.Error("duplicate upload should fail")
	}
}

func TestUploadImage_Rejects(t *testing.T) {
	srv, projectPath, _ := testServer(t)

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"wrong extension", map[string]interface{}{"project_path": projectPath, "url": "data:image/png;base64," + tinyPNG, "filename": "dot.exe"}},
		{"content mismatch", map[string]interface{}{"project_path": projectPath, "url": "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("not a png")), "filename": "x.png"}},
		{"unsupported scheme", map[string]interface{}{"project_path": projectPath, "url": "file:///etc/passwd"}},
		{"loopback", map[string]interface{}{"project_path": projectPath, "url": "http://127.0.0.1/x.png"}},
		{"missing project", map[string]interface{}{"project_path": projectPath + ".nope", "url": "data:image/png;base64," + tinyPNG}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if r := callTool(t, srv, "upload_image", tt.args); !r.IsError {
				t.Errorf("expected error, got %q", resultText(r))
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	if got := sanitizeFilename("../../etc/my pic.png"); got != "my_pic.png" {
		t.Errorf("sanitize = %q", got)
	}
}
