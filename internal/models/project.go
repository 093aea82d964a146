// Package models defines the domain types for Verbas.
package models

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Project file layout conventions.
const (
	ProjectExt      = "verbas"
	ChapterExt      = "md"
	BaseChapterFile = "base." + ChapterExt
)

// ProjectConfig is the content of the canonical <name>.verbas file.
// Treat it as a value: mutate a Clone, never a shared copy.
type ProjectConfig struct {
	Name      string         `json:"name"`
	Version   int            `json:"version"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Editor    EditorSettings `json:"editor"`
	Structure StructurePaths `json:"structure"`
	Chapters  []Chapter      `json:"chapters"`
	Metadata  Metadata       `json:"metadata"`
}

// EditorSettings are the per-project editor preferences.
type EditorSettings struct {
	FontFamily  string  `json:"font_family"`
	FontSize    int     `json:"font_size"`
	Theme       string  `json:"theme"`
	LineSpacing float64 `json:"line_spacing"`
}

// StructurePaths are directories relative to the project root.
type StructurePaths struct {
	ChaptersPath string `json:"chapters_path"`
	ImagesPath   string `json:"images_path"`
	FontsPath    string `json:"fonts_path"`
	StylePath    string `json:"style_path"`
	ExportsPath  string `json:"exports_path"`
	NotesPath    string `json:"notes_path"`
}

// Dirs returns every structure directory in creation order.
func (s StructurePaths) Dirs() []string {
	return []string{s.ChaptersPath, s.ImagesPath, s.FontsPath, s.StylePath, s.ExportsPath, s.NotesPath}
}

// Chapter describes one document unit of the project.
type Chapter struct {
	Title string `json:"title"`
	File  string `json:"file"`
}

// Metadata holds descriptive project information.
type Metadata struct {
	Author     string   `json:"author"`
	Language   string   `json:"language"`
	Tags       []string `json:"tags"`
	CoverImage string   `json:"cover_image"`
}

// NewProjectConfig returns the default configuration written for a new project.
func NewProjectConfig(name string, now time.Time) ProjectConfig {
	now = now.UTC()
	return ProjectConfig{
		Name:      name,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
		Editor: EditorSettings{
			FontFamily:  "Inter",
			FontSize:    16,
			Theme:       "light",
			LineSpacing: 1.5,
		},
		Structure: StructurePaths{
			ChaptersPath: "chapters",
			ImagesPath:   "images",
			FontsPath:    "fonts",
			StylePath:    "style",
			ExportsPath:  "exports",
			NotesPath:    "notes",
		},
		Chapters: []Chapter{},
		Metadata: Metadata{
			Language: "it",
			Tags:     []string{},
		},
	}
}

// Clone returns a deep copy.
func (c ProjectConfig) Clone() ProjectConfig {
	out := c
	if c.Chapters != nil {
		out.Chapters = append([]Chapter(nil), c.Chapters...)
	}
	if c.Metadata.Tags != nil {
		out.Metadata.Tags = append([]string(nil), c.Metadata.Tags...)
	}
	return out
}

// Touched returns a copy with UpdatedAt set to now.
func (c ProjectConfig) Touched(now time.Time) ProjectConfig {
	out := c.Clone()
	out.UpdatedAt = now.UTC()
	return out
}

// Validate validates the project configuration.
func (c *ProjectConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.Version, validation.Required, validation.Min(1)),
	); err != nil {
		return err
	}
	if err := c.Editor.Validate(); err != nil {
		return err
	}
	return c.Structure.Validate()
}

// Validate validates the editor settings.
func (e *EditorSettings) Validate() error {
	return validation.ValidateStruct(e,
		validation.Field(&e.FontSize, validation.Min(0)),
		validation.Field(&e.LineSpacing, validation.Min(0.0)),
	)
}

// Validate validates the structure paths.
func (s *StructurePaths) Validate() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.ChaptersPath, validation.Required),
	)
}
