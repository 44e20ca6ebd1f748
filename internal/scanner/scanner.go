// Package scanner walks a source tree for files the slicer can analyse.
// It respects .cflowignore files with gitignore-style patterns.
package scanner

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sourcegraph/conc/iter"

	"github.com/l3aro/cflow/pkg/locate"
)

// braceExtensions are C-like sources without a grammar. Their functions
// are found by brace matching.
var braceExtensions = map[string]bool{
	".cs":    true,
	".go":    true,
	".js":    true,
	".ts":    true,
	".rs":    true,
	".kt":    true,
	".swift": true,
	".php":   true,
	".m":     true,
}

// FileInfo represents information about a discovered source file.
type FileInfo struct {
	Path     string          `json:"path"`               // Relative path from root, slash separated
	FullPath string          `json:"full_path"`          // Absolute path
	Language locate.Language `json:"language,omitempty"` // Grammar, empty for brace matching
	Size     int64           `json:"size"`
}

// Options configures the scanner behavior.
type Options struct {
	SkipHidden      bool     // Skip hidden files and directories (starting with .)
	BraceFallback   bool     // Include C-like sources without a grammar
	DefaultExcludes []string // Directory names never entered
	IgnoreFileName  string   // Name of the ignore file (default: .cflowignore)
}

// DefaultOptions returns scanner options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		SkipHidden:     true,
		BraceFallback:  true,
		IgnoreFileName: ".cflowignore",
		DefaultExcludes: []string{
			".git",
			".hg",
			".svn",
			"node_modules",
			"vendor",
			"build",
			"dist",
			"target",
			"bin",
			"obj",
		},
	}
}

// Scanner provides file tree scanning capabilities.
type Scanner struct {
	opts Options
}

// New creates a new Scanner with the given options.
func New(opts Options) *Scanner {
	if opts.IgnoreFileName == "" {
		opts.IgnoreFileName = ".cflowignore"
	}
	return &Scanner{opts: opts}
}

// Scan recursively scans root and returns the analysable files in walk
// order. Unreadable entries are skipped.
func (s *Scanner) Scan(root string) ([]FileInfo, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path: %w", err)
	}
	if info, err := os.Stat(absRoot); err != nil {
		return nil, err
	} else if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", root)
	}

	var rules []ignoreRule
	var files []FileInfo

	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel != "." {
				if s.skipDir(d.Name()) || ignored(rules, rel, true) {
					return filepath.SkipDir
				}
			}
			nested, err := s.loadIgnoreFile(path, rel)
			if err != nil {
				return fmt.Errorf("loading ignore patterns: %w", err)
			}
			rules = append(rules, nested...)
			return nil
		}

		if s.opts.SkipHidden && strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		if !d.Type().IsRegular() || ignored(rules, rel, false) {
			return nil
		}

		lang := locate.DetectLanguage(path)
		if lang == locate.Unknown && !(s.opts.BraceFallback && braceExtensions[strings.ToLower(filepath.Ext(path))]) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		files = append(files, FileInfo{
			Path:     rel,
			FullPath: path,
			Language: lang,
			Size:     info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	return files, nil
}

func (s *Scanner) skipDir(name string) bool {
	if s.opts.SkipHidden && strings.HasPrefix(name, ".") {
		return true
	}
	for _, exclude := range s.opts.DefaultExcludes {
		if strings.EqualFold(name, exclude) {
			return true
		}
	}
	return false
}

// loadIgnoreFile reads the ignore file in dir. Patterns are relative to
// dir, whose path from the scan root is rel.
func (s *Scanner) loadIgnoreFile(dir, rel string) ([]ignoreRule, error) {
	f, err := os.Open(filepath.Join(dir, s.opts.IgnoreFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	base := ""
	if rel != "." {
		base = rel
	}

	var rules []ignoreRule
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rules = append(rules, parseIgnoreRule(line, base))
	}
	return rules, sc.Err()
}

// FileFunctions lists the functions located in one file.
type FileFunctions struct {
	File      FileInfo          `json:"file"`
	Functions []locate.Function `json:"functions"`
	Error     string            `json:"error,omitempty"`
}

// Functions scans root and locates the functions of every file, parsing up
// to workers files at once. A file that fails to parse carries its error.
func (s *Scanner) Functions(ctx context.Context, root string, workers int) ([]FileFunctions, error) {
	files, err := s.Scan(root)
	if err != nil {
		return nil, err
	}

	mapper := iter.Mapper[FileInfo, FileFunctions]{MaxGoroutines: workers}
	return mapper.MapErr(files, func(f *FileInfo) (FileFunctions, error) {
		if err := ctx.Err(); err != nil {
			return FileFunctions{}, err
		}
		out := FileFunctions{File: *f}
		src, err := os.ReadFile(f.FullPath)
		if err != nil {
			out.Error = err.Error()
			return out, nil
		}
		out.Functions, err = locate.Functions(ctx, f.FullPath, src)
		if err != nil {
			out.Error = err.Error()
		}
		return out, nil
	})
}

// Scan is a convenience function that scans a directory with default options.
func Scan(root string) ([]FileInfo, error) {
	return New(DefaultOptions()).Scan(root)
}
