// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Verbas projects and chapters for LLM integration via stdio
// transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/verbas/internal/apperr"
	"github.com/starford/verbas/internal/backend"
	"github.com/starford/verbas/internal/checksum"
	"github.com/starford/verbas/internal/frontmatter"
	"github.com/starford/verbas/internal/models"
	"github.com/starford/verbas/internal/recent"
	"github.com/starford/verbas/internal/storage"
)

const contractURI = "verbas://chapter-format"

// Server wraps the MCP server with Verbas tools.
type Server struct {
	mcp     *server.MCPServer
	backend backend.Service
	recent  recent.List
	files   storage.Provider
	logger  *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithRecent enables the list_recent tool.
func WithRecent(r recent.List) Option {
	return func(s *Server) { s.recent = r }
}

// WithFiles enables the upload_image tool, writing through files.
func WithFiles(files storage.Provider) Option {
	return func(s *Server) { s.files = files }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a new MCP server with all Verbas tools registered.
func New(svc backend.Service, version string, opts ...Option) *Server {
	s := &Server{backend: svc, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("component", "mcp"))

	s.mcp = server.NewMCPServer(
		backend.AppName,
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("get_chapter_contract",
		mcp.WithDescription("Returns the Verbas chapter format contract. "+
			"Call this before rewriting chapters to ensure correct structure."),
	), s.getChapterContract)

	s.mcp.AddTool(mcp.NewTool("load_project",
		mcp.WithDescription("Read a Verbas project file and return its configuration as JSON."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Absolute path to the <name>.verbas project file")),
	), s.loadProject)

	s.mcp.AddTool(mcp.NewTool("read_chapter",
		mcp.WithDescription("Read the primary chapter of a project. Returns the title, "+
			"the Markdown body without its metadata block, and a checksum for write_chapter."),
		mcp.WithString("project_path", mcp.Required(), mcp.Description("Absolute path to the project file")),
	), s.readChapter)

	s.mcp.AddTool(mcp.NewTool("write_chapter",
		mcp.WithDescription("Replace the body of the primary chapter, keeping its metadata block. "+
			"Content MUST follow the chapter format contract (see get_chapter_contract or "+
			"the "+contractURI+" resource)."),
		mcp.WithString("project_path", mcp.Required(), mcp.Description("Absolute path to the project file")),
		mcp.WithString("content", mcp.Required(), mcp.Description("New Markdown body, without +++ lines")),
		mcp.WithString("if_match", mcp.Description("Checksum from read_chapter; the write fails if the chapter changed")),
	), s.writeChapter)

	if s.recent != nil {
		s.mcp.AddTool(mcp.NewTool("list_recent",
			mcp.WithDescription("List recently opened projects, most recent first."),
			mcp.WithNumber("limit", mcp.Description("Max entries (default 20)")),
		), s.listRecent)
	}

	if s.files != nil {
		s.mcp.AddTool(mcp.NewTool("upload_image",
			mcp.WithDescription("Store an image in the project's images folder from an http(s) URL "+
				"or a base64 data URI. Returns a markdownImage snippet for the chapter body."),
			mcp.WithString("project_path", mcp.Required(), mcp.Description("Absolute path to the project file")),
			mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data:<mime>;base64,<data> URI")),
			mcp.WithString("filename", mcp.Description("Optional file name (extension must match the content)")),
		), s.uploadImage)
	}

	// Resource: chapter format contract.
	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Chapter Format Contract",
			mcp.WithResourceDescription("Chapter document format that every chapter follows."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// ChapterView is the read_chapter result.
type ChapterView struct {
	Path     string `json:"path"`
	Title    string `json:"title,omitempty"`
	Body     string `json:"body"`
	Checksum string `json:"checksum"`
}

func (s *Server) getChapterContract(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ChapterFormatContract), nil
}

func (s *Server) readContractResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     ChapterFormatContract,
		},
	}, nil
}

func (s *Server) loadProject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cfg, err := s.backend.LoadProject(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(cfg, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

// chapterPath loads the project config and returns its primary chapter path.
func (s *Server) chapterPath(ctx context.Context, projectPath string) (string, error) {
	cfg, err := s.backend.LoadProject(ctx, projectPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(projectPath), cfg.Structure.ChaptersPath, models.BaseChapterFile), nil
}

func (s *Server) readChapter(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectPath, err := req.RequireString("project_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	chapter, err := s.chapterPath(ctx, projectPath)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := s.backend.LoadMarkdownFile(ctx, chapter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("chapter not readable: %v", err)), nil
	}
	doc := frontmatter.Split(raw)
	out, _ := json.MarshalIndent(ChapterView{
		Path:     chapter,
		Title:    doc.Title,
		Body:     doc.Body,
		Checksum: checksum.String(raw),
	}, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) writeChapter(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectPath, err := req.RequireString("project_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ifMatch := strings.TrimSpace(req.GetString("if_match", ""))

	chapter, err := s.chapterPath(ctx, projectPath)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var block string
	raw, err := s.backend.LoadMarkdownFile(ctx, chapter)
	switch {
	case err == nil:
		if !checksum.Matches(ifMatch, raw) {
			return mcp.NewToolResultError("checksum mismatch: the chapter changed since it was read"), nil
		}
		block = frontmatter.Split(raw).Block
	case errors.Is(err, apperr.ErrNotFound):
		if ifMatch != "" {
			return mcp.NewToolResultError("checksum mismatch: the chapter does not exist"), nil
		}
	default:
		return mcp.NewToolResultError(err.Error()), nil
	}

	updated := frontmatter.Join(block, frontmatter.Strip(content))
	if err := s.backend.SaveMarkdownFile(ctx, chapter, updated); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.logger.Info("chapter written", slog.String("path", chapter))

	out, _ := json.Marshal(map[string]string{
		"path":     chapter,
		"checksum": checksum.String(updated),
	})
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listRecent(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := int(req.GetFloat("limit", 0))
	entries, err := s.recent.List(limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(entries) == 0 {
		return mcp.NewToolResultText("no recent projects"), nil
	}
	out, _ := json.MarshalIndent(entries, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}
