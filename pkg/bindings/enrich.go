// Package bindings resolves templated action parameters and condition
// guards against the chain's context snapshot. It is the in-repo
// implementation of the enrichment collaborator the chain compiler
// takes as an injected function.
package bindings

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"github.com/weftworks/weft/pkg/schema"
)

// bindingFuncMap supplements the built-in template functions
// (eq, ne, and, or, not, index, len, printf, ...).
var bindingFuncMap = template.FuncMap{
	"lower":      strings.ToLower,
	"upper":      strings.ToUpper,
	"trim":       strings.TrimSpace,
	"split":      strings.Split,
	"join":       strings.Join,
	"replace":    strings.ReplaceAll,
	"contains":   strings.Contains,
	"hasPrefix":  strings.HasPrefix,
	"hasSuffix":  strings.HasSuffix,
	"trimPrefix": strings.TrimPrefix,
	"trimSuffix": strings.TrimSuffix,
	// default substitutes def when v is nil or empty.
	"default": func(def, v any) any {
		if v == nil {
			return def
		}
		if s, ok := v.(string); ok && s == "" {
			return def
		}
		return v
	},
	// json renders v as a compact JSON string.
	"json": func(v any) (string, error) {
		var buf bytes.Buffer
		enc := jsonEncoder(&buf)
		if err := enc.Encode(v); err != nil {
			return "", err
		}
		return strings.TrimRight(buf.String(), "\n"), nil
	},
}

// singleRef matches a value that is exactly one dot-path binding, e.g.
// "{{ .form1.row.name }}" or "{{ .actions }}". These resolve to the
// bound value's native type instead of its string rendering.
var singleRef = regexp.MustCompile(`^\{\{\s*\.([\w.]+)\s*\}\}$`)

// Enrich returns a working copy of act with every templated parameter
// resolved against env. The authored action is never mutated. Any
// template error (parse failure, missing key) is returned and halts
// the chain at the caller.
func Enrich(act schema.Action, env map[string]any) (schema.Action, error) {
	out := act.Clone()
	for k, v := range out.Params {
		resolved, err := resolveValue(v, env)
		if err != nil {
			return schema.Action{}, fmt.Errorf("enrich %s param %q: %w", act.Kind, k, err)
		}
		out.Params[k] = resolved
	}
	return out, nil
}

// resolveValue walks a parameter value, resolving templates in strings
// and recursing into maps and slices. Non-template values pass through
// untouched.
func resolveValue(v any, env map[string]any) (any, error) {
	switch t := v.(type) {
	case string:
		return resolveString(t, env)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			r, err := resolveValue(val, env)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			r, err := resolveValue(val, env)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	default:
		return v, nil
	}
}

func resolveString(s string, env map[string]any) (any, error) {
	if !strings.Contains(s, "{{") {
		return s, nil
	}

	// A value that is exactly one binding keeps its native type, so
	// "{{ .form1.row }}" binds the row map itself, not its rendering.
	if m := singleRef.FindStringSubmatch(s); m != nil {
		val, ok := lookupPath(env, m[1])
		if !ok {
			return nil, fmt.Errorf("binding %q: no value at path %q", s, m[1])
		}
		return val, nil
	}

	tmpl, err := template.New("binding").Funcs(bindingFuncMap).Option("missingkey=error").Parse(s)
	if err != nil {
		return nil, fmt.Errorf("parse binding: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, env); err != nil {
		return nil, fmt.Errorf("execute binding: %w", err)
	}
	return buf.String(), nil
}

// lookupPath resolves a dot-separated path through nested maps.
func lookupPath(env map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var cur any = env
	for _, part := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
