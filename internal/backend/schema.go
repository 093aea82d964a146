package backend

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/tailscale/hujson"
	"github.com/xeipuuv/gojsonschema"

	"github.com/starford/verbas/internal/apperr"
	"github.com/starford/verbas/internal/models"
)

// ProjectFileSchema is the JSON schema of the canonical project file.
const ProjectFileSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "Verbas project file",
  "type": "object",
  "required": ["name", "version", "structure"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "version": {"type": "integer", "minimum": 1},
    "created_at": {"type": "string"},
    "updated_at": {"type": "string"},
    "editor": {
      "type": "object",
      "properties": {
        "font_family": {"type": "string"},
        "font_size": {"type": "integer", "minimum": 0},
        "theme": {"type": "string"},
        "line_spacing": {"type": "number", "minimum": 0}
      }
    },
    "structure": {
      "type": "object",
      "required": ["chapters_path"],
      "properties": {
        "chapters_path": {"type": "string", "minLength": 1},
        "images_path": {"type": "string"},
        "fonts_path": {"type": "string"},
        "style_path": {"type": "string"},
        "exports_path": {"type": "string"},
        "notes_path": {"type": "string"}
      }
    },
    "chapters": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "title": {"type": "string"},
          "file": {"type": "string"}
        }
      }
    },
    "metadata": {
      "type": "object",
      "properties": {
        "author": {"type": "string"},
        "language": {"type": "string"},
        "tags": {"type": "array", "items": {"type": "string"}},
        "cover_image": {"type": "string"}
      }
    }
  }
}`

var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(ProjectFileSchema))
})

// ValidateProjectFile checks standard JSON against ProjectFileSchema.
func ValidateProjectFile(data []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile project schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalidProject, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", apperr.ErrInvalidProject, strings.Join(msgs, "; "))
	}
	return nil
}

// DecodeProjectFile parses a project file. Comments and trailing commas are
// tolerated so hand-edited files still open.
func DecodeProjectFile(data []byte) (models.ProjectConfig, error) {
	std, err := hujson.Standardize(data)
	if err != nil {
		return models.ProjectConfig{}, fmt.Errorf("%w: invalid JSON format: %v", apperr.ErrInvalidProject, err)
	}
	if err := ValidateProjectFile(std); err != nil {
		return models.ProjectConfig{}, err
	}
	var cfg models.ProjectConfig
	if err := json.Unmarshal(std, &cfg); err != nil {
		return models.ProjectConfig{}, fmt.Errorf("%w: %v", apperr.ErrInvalidProject, err)
	}
	if err := cfg.Validate(); err != nil {
		return models.ProjectConfig{}, fmt.Errorf("%w: %v", apperr.ErrInvalidProject, err)
	}
	return cfg, nil
}

// EncodeProjectFile renders cfg as indented JSON with a trailing newline.
func EncodeProjectFile(cfg models.ProjectConfig) ([]byte, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serialization error: %w", err)
	}
	return append(data, '\n'), nil
}
