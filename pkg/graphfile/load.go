package graphfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aescanero/synapse/pkg/domain"
)

// Load reads a graph file, choosing the format by extension (.json or .hcl).
func Load(path string) (*domain.Graph, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return DecodeJSON(src)
	case ".hcl":
		return DecodeHCL(src, path)
	default:
		return nil, fmt.Errorf("unsupported graph file extension %q (want .json or .hcl)", ext)
	}
}
