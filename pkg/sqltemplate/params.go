/*
Copyright 2025 Jordi Gil.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package sqltemplate

import (
	"fmt"

	apperrors "github.com/jordigilh/govrbac/internal/errors"
)

// Params is the structured params blob stored on a ProposalOperation.
// Builders accept it untyped, the same way the reference implementation's
// dict-based builders do; see the Open Question in SPEC_FULL.md about a
// typed tagged-union rewrite, deferred for now.
type Params map[string]any

func requireString(p Params, key string) (string, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return "", apperrors.NewTemplateErrorf("Missing required parameter: %s", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", apperrors.NewTemplateErrorf("Missing required parameter: %s", key)
	}
	return s, nil
}

func optString(p Params, key string) string {
	if v, ok := p[key]; ok && v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func optStringSlice(p Params, key string) []string {
	v, ok := p[key]
	if !ok || v == nil {
		return nil
	}
	switch vs := v.(type) {
	case []string:
		return vs
	case []any:
		out := make([]string, 0, len(vs))
		for _, item := range vs {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func optBool(p Params, key string) bool {
	if v, ok := p[key]; ok && v != nil {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

func requireMap(p Params, key string) (map[string]any, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return nil, apperrors.NewTemplateErrorf("Missing required parameter: %s", key)
	}
	m, ok := v.(map[string]any)
	if !ok || len(m) == 0 {
		return nil, apperrors.NewTemplateErrorf("Missing required parameter: %s", key)
	}
	return m, nil
}

func requireSlice(p Params, key string) ([]any, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return nil, apperrors.NewTemplateErrorf("Missing required parameter: %s", key)
	}
	s, ok := v.([]any)
	if !ok || len(s) == 0 {
		return nil, apperrors.NewTemplateErrorf("Missing required parameter: %s", key)
	}
	return s, nil
}

// numericLiteral renders a settings/quota value for inline use: numbers
// are emitted bare, everything else is quoted and escaped.
func numericLiteral(v any) string {
	switch n := v.(type) {
	case float64:
		if n == float64(int64(n)) {
			return fmt.Sprintf("%d", int64(n))
		}
		return fmt.Sprintf("%g", n)
	case int:
		return fmt.Sprintf("%d", n)
	case int64:
		return fmt.Sprintf("%d", n)
	default:
		return "'" + EscapeString(fmt.Sprintf("%v", v)) + "'"
	}
}

func intLiteral(v any) (string, error) {
	switch n := v.(type) {
	case float64:
		return fmt.Sprintf("%d", int64(n)), nil
	case int:
		return fmt.Sprintf("%d", n), nil
	case int64:
		return fmt.Sprintf("%d", n), nil
	default:
		return "", apperrors.NewTemplateErrorf("quota limit value is not numeric: %v", v)
	}
}
