package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// LoadDescription reads a catalog description from a .json or .toml file.
func LoadDescription(path string) (Description, error) {
	if strings.TrimSpace(path) == "" {
		return Description{}, errors.New("catalog path required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return Description{}, err
	}
	if info.IsDir() {
		return Description{}, errors.New("catalog path is a directory")
	}

	var desc Description
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.DecodeFile(path, &desc); err != nil {
			return Description{}, fmt.Errorf("decode %s: %w", path, err)
		}
	case ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return Description{}, err
		}
		if err := json.Unmarshal(data, &desc); err != nil {
			return Description{}, fmt.Errorf("decode %s: %w", path, err)
		}
	default:
		return Description{}, fmt.Errorf("unsupported catalog format %q", filepath.Ext(path))
	}
	return desc, nil
}
