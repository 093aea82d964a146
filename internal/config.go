package internal

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/verbas/internal/applog"
	"github.com/starford/verbas/internal/notify"
	"github.com/starford/verbas/internal/theme"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Backend modes.
const (
	BackendModeLocal  = "local"
	BackendModeRemote = "remote"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Backend   BackendConfig     `yaml:"backend"`
	Auth      AuthConfig        `yaml:"auth"`
	Workspace WorkspaceConfig   `yaml:"workspace"`
	Editor    EditorConfig      `yaml:"editor"`
	Notify    NotifyConfig      `yaml:"notify"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Backend.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Workspace.Validate(); err != nil {
		return err
	}
	if err := c.Editor.Validate(); err != nil {
		return err
	}
	return c.Notify.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level `yaml:"log_level"`
	LogFormat string     `yaml:"log_format"`
	LogFile   string     `yaml:"log_file"`
	HTTP      HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.LogFormat, validation.In(applog.FormatJSON, applog.FormatText)),
	); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// BackendConfig selects the persistence backend.
//
// In "local" mode projects are read and written in-process, sandboxed under
// Root. In "remote" mode every command is sent to URL; an empty Token is
// looked up in the OS keyring.
type BackendConfig struct {
	Mode  string `yaml:"mode"`
	URL   string `yaml:"url"`
	Root  string `yaml:"root"`
	Token string `yaml:"token"`
}

// Validate validates the backend configuration.
func (c *BackendConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = BackendModeLocal
	}
	remote := c.Mode == BackendModeRemote
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(BackendModeLocal, BackendModeRemote)),
		validation.Field(&c.URL, validation.When(remote, validation.Required)),
		validation.Field(&c.Root, validation.When(!remote, validation.Required)),
	); err != nil {
		return fmt.Errorf("backend: %w", err)
	}
	return nil
}

// Remote reports whether commands go over HTTP.
func (c *BackendConfig) Remote() bool {
	return c.Mode == BackendModeRemote
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// WorkspaceConfig holds per-user state locations.
type WorkspaceConfig struct {
	StateDir string `yaml:"state_dir"`
}

// Validate validates the workspace configuration.
func (c *WorkspaceConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.StateDir, validation.Required),
	)
}

// RecentDB is the recent-projects database path.
func (c *WorkspaceConfig) RecentDB() string {
	return filepath.Join(c.StateDir, "recent.db")
}

// HistoryFile is the shell history path.
func (c *WorkspaceConfig) HistoryFile() string {
	return filepath.Join(c.StateDir, "history")
}

// EditorConfig holds editor presentation settings.
type EditorConfig struct {
	DefaultTheme string   `yaml:"default_theme"`
	Themes       []string `yaml:"themes"`
	ThemesDir    string   `yaml:"themes_dir"`
	// ConstructDelay simulates asynchronous widget construction.
	ConstructDelay time.Duration `yaml:"construct_delay"`
}

// Validate validates the editor configuration.
func (c *EditorConfig) Validate() error {
	themes := make([]any, len(c.Themes))
	for i, t := range c.Themes {
		themes[i] = t
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Themes, validation.Required, validation.Each(validation.Required)),
		validation.Field(&c.DefaultTheme, validation.Required, validation.In(themes...)),
		validation.Field(&c.ConstructDelay, validation.Min(time.Duration(0))),
	); err != nil {
		return fmt.Errorf("editor: %w", err)
	}
	return nil
}

// NotifyConfig holds notification timing.
type NotifyConfig struct {
	Duration time.Duration `yaml:"duration"`
	Fade     time.Duration `yaml:"fade"`
}

// Validate validates the notification configuration.
func (c *NotifyConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Duration, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.Fade, validation.Min(time.Duration(0))),
	); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Backend: BackendConfig{
			Mode: BackendModeLocal,
			Root: "/",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Workspace: WorkspaceConfig{
			StateDir: defaultStateDir(),
		},
		Editor: EditorConfig{
			DefaultTheme: theme.DefaultTheme,
			Themes:       append([]string(nil), theme.DefaultThemes...),
			ThemesDir:    "./themes",
		},
		Notify: NotifyConfig{
			Duration: notify.DefaultDuration,
			Fade:     notify.DefaultFade,
		},
	}
}

func defaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "verbas")
	}
	return ".verbas"
}
