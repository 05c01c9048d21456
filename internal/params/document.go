package params

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tphakala/anomalystream/internal/errors"
)

// ErrNoDocument is returned by ReadDocument when no parameter document was given.
var ErrNoDocument = errors.NewStd("expecting model parameters, see --help")

// ReadDocument returns the parameter document named by file, or inline when
// file is empty.
func ReadDocument(file, inline string) ([]byte, error) {
	switch {
	case file != "":
		return LoadDocument(file)
	case strings.TrimSpace(inline) != "":
		return []byte(inline), nil
	}
	return nil, errors.New(ErrNoDocument).Category(errors.CategoryConfiguration).Build()
}

// LoadDocument reads a parameter document from path. Files ending in .yaml
// or .yml are converted to JSON; anything else is returned as is.
func LoadDocument(path string) ([]byte, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is supplied by the operator
	if err != nil {
		return nil, errors.FileError(fmt.Errorf("reading parameter document: %w", err), path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAMLToJSON(data)
	default:
		return data, nil
	}
}

// YAMLToJSON converts a YAML parameter document to the equivalent JSON.
func YAMLToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.ConfigError("$", fmt.Errorf("parameter document is not valid YAML: %w", err))
	}

	out, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.ConfigError("$", fmt.Errorf("parameter document cannot be represented as JSON: %w", err))
	}
	return out, nil
}

// Render writes the resolved configuration as YAML.
func Render(cfg *ModelConfig) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("rendering model configuration: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("rendering model configuration: %w", err)
	}
	return buf.Bytes(), nil
}
