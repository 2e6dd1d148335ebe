package steps

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aescanero/synapse/pkg/domain"
)

// FileWriter implements the file step. Without a content parameter it writes
// the text produced by its predecessors.
type FileWriter struct {
	Root string
}

// Execute writes params.content (or upstream text) to params.path.
func (f *FileWriter) Execute(ctx context.Context, params map[string]interface{}, upstream Upstream) (Output, error) {
	rawPath, err := requiredString(params, "path")
	if err != nil {
		return Output{}, err
	}
	content, err := stringParam(params, "content", "")
	if err != nil {
		return Output{}, err
	}
	if _, ok := params["content"]; !ok {
		content = upstreamText(upstream)
	}
	appendMode, err := boolParam(params, "append", false)
	if err != nil {
		return Output{}, err
	}

	path, err := resolvePath(f.Root, rawPath)
	if err != nil {
		return Output{}, err
	}
	if err := ctx.Err(); err != nil {
		return Output{}, domain.AsStepError(err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Output{}, domain.WrapStepError(domain.StepErrIO, err, "create parent directory")
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if appendMode {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return Output{}, domain.WrapStepError(domain.StepErrIO, err, "open %s", rawPath)
	}
	n, err := file.WriteString(content)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return Output{}, domain.WrapStepError(domain.StepErrIO, err, "write %s", rawPath)
	}

	return Output{
		Data: map[string]interface{}{
			"path":          rawPath,
			"bytes_written": n,
		},
		Logs: []string{fmt.Sprintf("wrote %d bytes to %s", n, rawPath)},
	}, nil
}

// FileMover implements the file_move step.
type FileMover struct {
	Root string
}

// Execute renames params.source to params.dest.
func (f *FileMover) Execute(ctx context.Context, params map[string]interface{}, upstream Upstream) (Output, error) {
	rawSrc, err := requiredString(params, "source")
	if err != nil {
		return Output{}, err
	}
	rawDest, err := requiredString(params, "dest")
	if err != nil {
		return Output{}, err
	}
	src, err := resolvePath(f.Root, rawSrc)
	if err != nil {
		return Output{}, err
	}
	dest, err := resolvePath(f.Root, rawDest)
	if err != nil {
		return Output{}, err
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return Output{}, domain.WrapStepError(domain.StepErrIO, err, "create parent directory")
	}
	if err := os.Rename(src, dest); err != nil {
		return Output{}, domain.WrapStepError(domain.StepErrIO, err, "move %s to %s", rawSrc, rawDest)
	}

	return Output{
		Data: map[string]interface{}{"source": rawSrc, "dest": rawDest},
		Logs: []string{fmt.Sprintf("moved %s to %s", rawSrc, rawDest)},
	}, nil
}

// resolvePath maps p into root. Relative paths are joined to root; paths that
// would leave root are rejected.
func resolvePath(root, p string) (string, error) {
	if root == "" {
		return filepath.Clean(p), nil
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", domain.WrapStepError(domain.StepErrIO, err, "resolve file root")
	}
	target := p
	if !filepath.IsAbs(target) {
		target = filepath.Join(absRoot, target)
	}
	target = filepath.Clean(target)

	rel, err := filepath.Rel(absRoot, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", domain.NewStepError(domain.StepErrIO, "path %q is outside the file root", p)
	}
	return target, nil
}
