package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/starford/verbas/internal/models"
)

// Client invokes backend commands over HTTP: POST <base>/api/commands/<name>
// with the named parameters as a JSON object.
//
// No client-side timeout is applied; callers bound calls through ctx.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
}

var _ Service = (*Client)(nil)

// NewClient creates a new backend client. baseURL may include a trailing slash; it will be normalized.
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		client:  &http.Client{},
	}
}

// Envelope is the response body of every command.
type Envelope struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
	Code   string          `json:"code,omitempty"`
}

// Named parameter sets, one per command.
type (
	CreateNewProjectParams struct {
		Name      string `json:"name"`
		Directory string `json:"directory"`
	}
	PathParams struct {
		Path string `json:"path"`
	}
	SaveProjectParams struct {
		Path   string               `json:"path"`
		Config models.ProjectConfig `json:"config"`
	}
	SaveProjectAsParams struct {
		NewPath string               `json:"newPath"`
		Config  models.ProjectConfig `json:"config"`
	}
	SaveMarkdownParams struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	CloneProjectParams struct {
		OriginalPath  string `json:"originalPath"`
		NewFolderPath string `json:"newFolderPath"`
	}
	RepackProjectParams struct {
		ProjectPath   string `json:"projectPath"`
		TargetZipPath string `json:"targetZipPath"`
	}
)

func (c *Client) invoke(ctx context.Context, command string, params, dest any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("%s: encode params: %w", command, err)
	}
	u, err := url.JoinPath(c.BaseURL, "api", "commands", command)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", command, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", command, err)
	}
	var env Envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			return &CommandError{Command: command, Message: fmt.Sprintf("malformed response (%s)", resp.Status), Code: CodeInternal}
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := env.Error
		if msg == "" {
			msg = resp.Status
		}
		return &CommandError{Command: command, Message: msg, Code: env.Code}
	}
	if dest == nil || len(env.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Result, dest); err != nil {
		return &CommandError{Command: command, Message: "malformed result: " + err.Error(), Code: CodeInternal}
	}
	return nil
}

func (c *Client) CreateNewProject(ctx context.Context, name, directory string) error {
	return c.invoke(ctx, CmdCreateNewProject, CreateNewProjectParams{Name: name, Directory: directory}, nil)
}

func (c *Client) LoadProject(ctx context.Context, path string) (models.ProjectConfig, error) {
	var cfg models.ProjectConfig
	err := c.invoke(ctx, CmdLoadProject, PathParams{Path: path}, &cfg)
	return cfg, err
}

func (c *Client) SaveProject(ctx context.Context, path string, cfg models.ProjectConfig) error {
	return c.invoke(ctx, CmdSaveProject, SaveProjectParams{Path: path, Config: cfg}, nil)
}

func (c *Client) SaveProjectAs(ctx context.Context, newPath string, cfg models.ProjectConfig) error {
	return c.invoke(ctx, CmdSaveProjectAs, SaveProjectAsParams{NewPath: newPath, Config: cfg}, nil)
}

func (c *Client) SaveMarkdownFile(ctx context.Context, path, content string) error {
	return c.invoke(ctx, CmdSaveMarkdownFile, SaveMarkdownParams{Path: path, Content: content}, nil)
}

func (c *Client) LoadMarkdownFile(ctx context.Context, path string) (string, error) {
	var content string
	err := c.invoke(ctx, CmdLoadMarkdownFile, PathParams{Path: path}, &content)
	return content, err
}

func (c *Client) CloneProject(ctx context.Context, originalPath, newFolderPath string) (string, error) {
	var newPath string
	err := c.invoke(ctx, CmdCloneProject, CloneProjectParams{OriginalPath: originalPath, NewFolderPath: newFolderPath}, &newPath)
	return newPath, err
}

func (c *Client) RepackProject(ctx context.Context, projectPath, targetZipPath string) error {
	return c.invoke(ctx, CmdRepackProject, RepackProjectParams{ProjectPath: projectPath, TargetZipPath: targetZipPath}, nil)
}

func (c *Client) DeleteProject(ctx context.Context, path string) error {
	return c.invoke(ctx, CmdDeleteProject, PathParams{Path: path}, nil)
}

func (c *Client) AppName(ctx context.Context) (string, error) {
	var name string
	err := c.invoke(ctx, CmdAppName, struct{}{}, &name)
	return name, err
}
