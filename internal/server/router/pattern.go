package router

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ParseFunc converts a raw path segment into a typed capture value.
type ParseFunc func(raw string) (any, error)

func builtinTypes() map[string]ParseFunc {
	return map[string]ParseFunc{
		"string": func(raw string) (any, error) { return raw, nil },
		"int": func(raw string) (any, error) {
			return strconv.Atoi(raw)
		},
		"uuid": func(raw string) (any, error) {
			return uuid.Parse(raw)
		},
	}
}

type segment struct {
	literal string
	name    string
	typ     string
}

func (s segment) capture() bool { return s.name != "" }

// parsePattern splits a pattern such as "/api/users/{id:uuid}" into
// segments. It panics on malformed patterns, which are programming errors.
func parsePattern(pattern string, types map[string]ParseFunc) []segment {
	parts := splitPath(pattern)
	segs := make([]segment, 0, len(parts))
	seen := make(map[string]bool)

	for _, p := range parts {
		if !strings.HasPrefix(p, "{") {
			if strings.ContainsAny(p, "{}") {
				panic(fmt.Sprintf("router: malformed segment %q in pattern %q", p, pattern))
			}
			segs = append(segs, segment{literal: p})
			continue
		}
		if !strings.HasSuffix(p, "}") {
			panic(fmt.Sprintf("router: unterminated capture %q in pattern %q", p, pattern))
		}

		name, typ, ok := strings.Cut(p[1:len(p)-1], ":")
		if !ok {
			typ = "string"
		}
		if name == "" {
			panic(fmt.Sprintf("router: empty capture name in pattern %q", pattern))
		}
		if seen[name] {
			panic(fmt.Sprintf("router: duplicate capture %q in pattern %q", name, pattern))
		}
		if _, known := types[typ]; !known {
			panic(fmt.Sprintf("router: unknown capture type %q in pattern %q", typ, pattern))
		}
		seen[name] = true
		segs = append(segs, segment{name: name, typ: typ})
	}
	return segs
}

// splitPath drops leading, trailing and repeated slashes.
func splitPath(path string) []string {
	return strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
}

// match reports whether path segments fit the pattern shape and returns the
// raw capture values by name.
func match(segs []segment, parts []string) (map[string]string, bool) {
	if len(segs) != len(parts) {
		return nil, false
	}
	var raw map[string]string
	for i, s := range segs {
		if !s.capture() {
			if s.literal != parts[i] {
				return nil, false
			}
			continue
		}
		if raw == nil {
			raw = make(map[string]string)
		}
		raw[s.name] = parts[i]
	}
	return raw, true
}
