package scanner

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/l3aro/cflow/pkg/locate"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for path, content := range files {
		fullPath := filepath.Join(root, path)
		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			t.Fatalf("Failed to create directory: %v", err)
		}
		if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to create file: %v", err)
		}
	}
}

func paths(files []FileInfo) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Path)
	}
	sort.Strings(out)
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestScannerScan(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		"main.c":                   "int main(void) { return 0; }",
		"include/util.h":           "int util(void);",
		"src/engine.cpp":           "int run() { return 1; }",
		"src/App.java":             "class App {}",
		"src/tool.go":              "package tool",
		"README.md":                "# Test",
		"script.py":                "print('hello')",
		".hidden/file.c":           "int x;",
		"node_modules/pkg/main.js": "module.exports = {}",
		".git/config":              "[core]",
	})

	results, err := New(DefaultOptions()).Scan(tmpDir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	want := []string{"include/util.h", "main.c", "src/App.java", "src/engine.cpp", "src/tool.go"}
	if got := paths(results); !equal(got, want) {
		t.Errorf("Scan() = %v, want %v", got, want)
	}

	languages := map[string]locate.Language{
		"main.c":         locate.C,
		"include/util.h": locate.C,
		"src/engine.cpp": locate.CPP,
		"src/App.java":   locate.Java,
		"src/tool.go":    locate.Unknown,
	}
	for _, f := range results {
		if f.Language != languages[f.Path] {
			t.Errorf("%s: Language = %q, want %q", f.Path, f.Language, languages[f.Path])
		}
		if !filepath.IsAbs(f.FullPath) {
			t.Errorf("%s: FullPath %q is not absolute", f.Path, f.FullPath)
		}
	}
}

func TestScannerWithoutBraceFallback(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		"a.c":  "int a;",
		"b.go": "package b",
	})

	opts := DefaultOptions()
	opts.BraceFallback = false
	results, err := New(opts).Scan(tmpDir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if got := paths(results); !equal(got, []string{"a.c"}) {
		t.Errorf("Scan() = %v, want [a.c]", got)
	}
}

func TestScannerWithIgnoreFile(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		".cflowignore":        "*.h\ngenerated/\n/third_party/*.c\n!keep.h\n",
		"main.c":              "",
		"api.h":               "",
		"keep.h":              "",
		"generated/out.c":     "",
		"third_party/lib.c":   "",
		"src/third_party/x.c": "",
		"src/.cflowignore":    "local.c\n",
		"src/local.c":         "",
		"local.c":             "",
	})

	results, err := New(DefaultOptions()).Scan(tmpDir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	want := []string{"keep.h", "local.c", "main.c", "src/third_party/x.c"}
	if got := paths(results); !equal(got, want) {
		t.Errorf("Scan() = %v, want %v", got, want)
	}
}

func TestScanRejectsFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.c")
	writeTree(t, filepath.Dir(path), map[string]string{"a.c": ""})

	if _, err := Scan(path); err == nil {
		t.Error("Scan() of a file error = nil, want error")
	}
	if _, err := Scan(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("Scan() of a missing directory error = nil, want error")
	}
}

func TestIgnoreRule(t *testing.T) {
	tests := []struct {
		pattern string
		base    string
		path    string
		isDir   bool
		want    bool
	}{
		{"*.h", "", "a.h", false, true},
		{"*.h", "", "deep/dir/a.h", false, true},
		{"*.h", "", "a.c", false, false},
		{"build/", "", "build", true, true},
		{"build/", "", "build", false, false},
		{"build/", "", "build/x.c", false, true},
		{"/gen/*.c", "", "gen/a.c", false, true},
		{"/gen/*.c", "", "src/gen/a.c", false, false},
		{"a.c", "src", "src/a.c", false, true},
		{"a.c", "src", "a.c", false, false},
		{"!keep.h", "", "keep.h", false, true},
	}

	for _, tt := range tests {
		r := parseIgnoreRule(tt.pattern, tt.base)
		if got := r.match(tt.path, tt.isDir); got != tt.want {
			t.Errorf("rule %q (base %q).match(%q) = %v, want %v", tt.pattern, tt.base, tt.path, got, tt.want)
		}
	}
}

func TestFunctions(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		"math.c":   "int add(int a, int b) {\n  return a + b;\n}\n\nint sub(int a, int b) {\n  return a - b;\n}\n",
		"App.java": "class App {\n  int run() {\n    return 1;\n  }\n}\n",
	})

	results, err := New(DefaultOptions()).Functions(context.Background(), tmpDir, 2)
	if err != nil {
		t.Fatalf("Functions failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Functions() returned %d files, want 2", len(results))
	}

	names := map[string][]string{}
	for _, r := range results {
		if r.Error != "" {
			t.Errorf("%s: %s", r.File.Path, r.Error)
		}
		for _, fn := range r.Functions {
			names[r.File.Path] = append(names[r.File.Path], fn.Name)
		}
	}
	if !equal(names["math.c"], []string{"add", "sub"}) {
		t.Errorf("math.c functions = %v, want [add sub]", names["math.c"])
	}
	if !equal(names["App.java"], []string{"run"}) {
		t.Errorf("App.java functions = %v, want [run]", names["App.java"])
	}
}
