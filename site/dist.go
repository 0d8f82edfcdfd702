package site

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// DistOptions names the output directory and the asset trees copied into it.
type DistOptions struct {
	Dir       string
	StaticDir string // copied to <Dir>/static
	PublicDir string // copied to the root of Dir
}

// DefaultDistOptions returns the conventional layout.
func DefaultDistOptions() DistOptions {
	return DistOptions{Dir: "dist", StaticDir: "static", PublicDir: "public"}
}

// PrepareDist creates the output directory, disables Jekyll processing for
// GitHub Pages and copies asset trees, overwriting existing files. It
// returns the names of the trees that were copied.
func PrepareDist(opts DistOptions) ([]string, error) {
	if opts.Dir == "" {
		opts.Dir = "dist"
	}
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create dist directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(opts.Dir, ".nojekyll"), nil, 0644); err != nil {
		return nil, fmt.Errorf("failed to write .nojekyll: %w", err)
	}

	var copied []string
	trees := []struct{ src, dst string }{
		{opts.PublicDir, opts.Dir},
		{opts.StaticDir, filepath.Join(opts.Dir, "static")},
	}
	for _, tree := range trees {
		if tree.src == "" {
			continue
		}
		ok, err := copyTree(tree.src, tree.dst)
		if err != nil {
			return copied, err
		}
		if ok {
			slog.Debug("Copied assets", "src", tree.src, "dst", tree.dst)
			copied = append(copied, filepath.Base(tree.src))
		}
	}
	return copied, nil
}

// copyTree copies src into dst. A missing src is not an error.
func copyTree(src, dst string) (bool, error) {
	info, err := os.Stat(src)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", src, err)
	}
	if !info.IsDir() {
		return false, fmt.Errorf("%s is not a directory", src)
	}

	err = filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return copyFile(path, target)
	})
	if err != nil {
		return false, fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return true, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
