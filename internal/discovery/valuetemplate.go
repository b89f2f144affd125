package discovery

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Template roots.
const (
	rootValue     = "value"
	rootValueJSON = "value_json"
)

// ValueTemplate is a parsed value template such as
//
//	{{ value_json.POWER }}
//	{{ value_json['AM2301'].Temperature }}
//	{{ value_json.data[0].temp | float }}
//	{{ value }}
//
// Only attribute access, subscripts and a trailing int or float filter are
// supported. Any other Jinja construct is rejected with ErrInvalidTemplate.
type ValueTemplate struct {
	raw    string
	json   bool
	path   []pathStep
	filter string
}

type pathStep struct {
	key     string
	index   int
	isIndex bool
}

// ParseValueTemplate parses a template string.
func ParseValueTemplate(s string) (ValueTemplate, error) {
	t := ValueTemplate{raw: s}

	inner := strings.TrimSpace(s)
	if !strings.HasPrefix(inner, "{{") || !strings.HasSuffix(inner, "}}") {
		return t, fmt.Errorf("%w: %q", ErrInvalidTemplate, s)
	}
	inner = strings.TrimSpace(inner[2 : len(inner)-2])

	expr, filter, hasFilter := strings.Cut(inner, "|")
	if hasFilter {
		t.filter = strings.TrimSpace(filter)
		if t.filter != "int" && t.filter != "float" {
			return t, fmt.Errorf("%w: filter %q in %q", ErrInvalidTemplate, t.filter, s)
		}
	}
	expr = strings.TrimSpace(expr)

	root, rest := splitIdent(expr)
	switch root {
	case rootValue:
		if rest != "" {
			return t, fmt.Errorf("%w: %q", ErrInvalidTemplate, s)
		}
		return t, nil
	case rootValueJSON:
		t.json = true
	default:
		return t, fmt.Errorf("%w: %q", ErrInvalidTemplate, s)
	}

	for rest != "" {
		var step pathStep
		var err error
		step, rest, err = parseStep(rest)
		if err != nil {
			return t, fmt.Errorf("%w: %q: %v", ErrInvalidTemplate, s, err)
		}
		t.path = append(t.path, step)
	}
	if len(t.path) == 0 {
		return t, fmt.Errorf("%w: %q has no field", ErrInvalidTemplate, s)
	}
	return t, nil
}

func parseStep(s string) (pathStep, string, error) {
	switch s[0] {
	case '.':
		key, rest := splitIdent(s[1:])
		if key == "" {
			return pathStep{}, "", fmt.Errorf("empty attribute")
		}
		return pathStep{key: key}, rest, nil
	case '[':
		end := strings.IndexByte(s, ']')
		if end < 0 {
			return pathStep{}, "", fmt.Errorf("unterminated subscript")
		}
		sub := strings.TrimSpace(s[1:end])
		rest := s[end+1:]
		if n := len(sub); n >= 2 && (sub[0] == '\'' || sub[0] == '"') && sub[n-1] == sub[0] {
			return pathStep{key: sub[1 : n-1]}, rest, nil
		}
		i, err := strconv.Atoi(sub)
		if err != nil {
			return pathStep{}, "", fmt.Errorf("bad subscript %q", sub)
		}
		return pathStep{index: i, isIndex: true}, rest, nil
	}
	return pathStep{}, "", fmt.Errorf("unexpected %q", s)
}

// splitIdent splits a leading identifier off s.
func splitIdent(s string) (string, string) {
	i := 0
	for i < len(s) {
		c := s[i]
		if c == '_' || c == '-' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			i++
			continue
		}
		break
	}
	return s[:i], strings.TrimSpace(s[i:])
}

// String returns the template source.
func (t ValueTemplate) String() string { return t.raw }

// Evaluate applies the template to a payload. It returns false when the
// payload does not carry the referenced field or the filter cannot convert it.
func (t ValueTemplate) Evaluate(payload Value) (Value, bool) {
	v := payload
	if t.json {
		for _, step := range t.path {
			var ok bool
			if step.isIndex {
				v, ok = v.Index(step.index)
			} else {
				v, ok = v.Field(step.key)
			}
			if !ok {
				return Value{}, false
			}
		}
	}

	switch t.filter {
	case "int":
		f, ok := v.Float()
		if !ok {
			return Value{}, false
		}
		return Number(math.Trunc(f)), true
	case "float":
		f, ok := v.Float()
		if !ok {
			return Value{}, false
		}
		return Number(f), true
	}
	return v, true
}
