package scanner

import (
	"path"
	"strings"
)

// ignoreRule is one gitignore-style pattern from an ignore file.
type ignoreRule struct {
	glob     string // Pattern without the !, leading / and trailing /
	base     string // Directory of the ignore file, relative to the scan root
	negate   bool   // Pattern starts with !
	dirOnly  bool   // Pattern ends with /
	anchored bool   // Pattern contains a / before its end
}

func parseIgnoreRule(line, base string) ignoreRule {
	r := ignoreRule{base: base}
	if strings.HasPrefix(line, "!") {
		r.negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		r.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.Contains(line, "/") {
		r.anchored = true
		line = strings.TrimPrefix(line, "/")
	}
	r.glob = line
	return r
}

// match reports whether the slash-separated path rel, relative to the scan
// root, matches the rule. Unanchored rules match any path component;
// anchored rules match from the ignore file's directory. A rule matching a
// directory also matches everything below it.
func (r ignoreRule) match(rel string, isDir bool) bool {
	if r.base != "" {
		if !strings.HasPrefix(rel, r.base+"/") {
			return false
		}
		rel = strings.TrimPrefix(rel, r.base+"/")
	}

	segs := strings.Split(rel, "/")
	for end := 1; end <= len(segs); end++ {
		// Only the full path may be a file.
		if r.dirOnly && end == len(segs) && !isDir {
			continue
		}
		if r.anchored {
			if ok, _ := path.Match(r.glob, strings.Join(segs[:end], "/")); ok {
				return true
			}
			continue
		}
		if ok, _ := path.Match(r.glob, segs[end-1]); ok {
			return true
		}
	}
	return false
}

// ignored applies rules in order; a later negation re-includes a path.
func ignored(rules []ignoreRule, rel string, isDir bool) bool {
	out := false
	for _, r := range rules {
		if r.match(rel, isDir) {
			out = !r.negate
		}
	}
	return out
}
