package restriction

import (
	"fmt"
	"path"
	"strings"
)

// pattern is a compiled path glob. Segments are matched with path.Match,
// so "*" and "*.pdf" match within one segment. A "**" segment matches zero
// or more segments.
type pattern struct {
	raw      string
	segments []string
}

func compilePattern(raw string) (pattern, error) {
	if !strings.HasPrefix(raw, "/") {
		return pattern{}, fmt.Errorf("%w: %q must start with /", ErrInvalidPattern, raw)
	}
	segs := splitPath(raw)
	for _, s := range segs {
		if s == "**" {
			continue
		}
		if strings.Contains(s, "**") {
			return pattern{}, fmt.Errorf("%w: %q", ErrInvalidPattern, raw)
		}
		if _, err := path.Match(s, ""); err != nil {
			return pattern{}, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, raw, err)
		}
	}
	return pattern{raw: raw, segments: segs}, nil
}

func (p pattern) match(segs []string) bool {
	return matchSegments(p.segments, segs)
}

func matchSegments(pat, segs []string) bool {
	for len(pat) > 0 {
		if pat[0] == "**" {
			rest := pat[1:]
			if len(rest) == 0 {
				return true
			}
			for i := 0; i <= len(segs); i++ {
				if matchSegments(rest, segs[i:]) {
					return true
				}
			}
			return false
		}
		if len(segs) == 0 {
			return false
		}
		if ok, _ := path.Match(pat[0], segs[0]); !ok {
			return false
		}
		pat, segs = pat[1:], segs[1:]
	}
	return len(segs) == 0
}

// splitPath cleans p and returns its lowercase segments.
func splitPath(p string) []string {
	p = strings.Trim(path.Clean("/"+p), "/")
	if p == "" {
		return nil
	}
	return strings.Split(strings.ToLower(p), "/")
}
