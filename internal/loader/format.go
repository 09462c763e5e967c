package loader

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format is a document serialization.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

var ErrUnsupportedFormat = errors.New("unsupported document format")

// Extensions lists the file extensions recognised for each format, in lookup order.
var Extensions = []string{".yaml", ".yml", ".json", ".toml"}

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
}

// ParseFormat accepts a format name or extension, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// unmarshal decodes data into v with the decoder of the given format.
func unmarshal(format Format, data []byte, v interface{}) error {
	switch format {
	case FormatJSON:
		return json.Unmarshal(data, v)
	case FormatYAML:
		return yaml.Unmarshal(data, v)
	case FormatTOML:
		return toml.Unmarshal(data, v)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, string(format))
	}
}

// decodeGeneric decodes into plain maps and slices so the document can be
// checked against a JSON schema before it is bound to typed structs.
func decodeGeneric(format Format, data []byte) (interface{}, error) {
	if format == FormatTOML {
		var m map[string]interface{}
		if err := toml.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		if m == nil {
			m = map[string]interface{}{}
		}
		return m, nil
	}

	var v interface{}
	if err := unmarshal(format, data, &v); err != nil {
		return nil, err
	}
	return stringKeys(v), nil
}

// stringKeys rewrites the map[interface{}]interface{} values yaml.v3 produces
// for mappings with non-string keys (e.g. `1: true`) so the document can be
// encoded as JSON for schema validation. Keys become their fmt.Sprint form,
// matching what the typed decoder does.
func stringKeys(v interface{}) interface{} {
	switch t := v.(type) {
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, val := range t {
			m[fmt.Sprint(k)] = stringKeys(val)
		}
		return m
	case map[string]interface{}:
		for k, val := range t {
			t[k] = stringKeys(val)
		}
		return t
	case []interface{}:
		for i, val := range t {
			t[i] = stringKeys(val)
		}
		return t
	default:
		return v
	}
}
