package extract

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/MrSnakeDoc/datascope/internal/domain"
)

// listKeys are probed, in order, when no items path is configured and the root is an object.
var listKeys = []string{"vulnerabilities", "items", "data", "results"}

// JSONItems decodes body and extracts one Item per element of the items list.
func (e *Extractor) JSONItems(body io.Reader, rules domain.ExtractionRules) ([]Item, error) {
	dec := json.NewDecoder(body)
	dec.UseNumber()
	var root any
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("failed to decode json: %w", err)
	}

	list, err := itemList(root, rules.Items)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(list))
	for _, raw := range list {
		obj, ok := raw.(map[string]any)
		if !ok {
			if s := collapse(asString(raw)); s != "" {
				items = append(items, Item{ID: hashID(s), Fields: map[string]string{"value": s}})
			}
			continue
		}

		fields := e.jsonFields(obj, rules.Fields)
		if len(fields) == 0 {
			continue
		}
		id := fields[rules.ID]
		if rules.ID == "" || id == "" {
			encoded, _ := json.Marshal(obj)
			id = hashID(string(encoded))
		}
		items = append(items, Item{ID: id, Fields: fields})
	}
	return items, nil
}

func itemList(root any, path string) ([]any, error) {
	if path != "" {
		v, err := walkPath(root, path)
		if err != nil {
			return nil, err
		}
		arr, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("path %q is not an array", path)
		}
		return arr, nil
	}

	switch v := root.(type) {
	case []any:
		return v, nil
	case map[string]any:
		for _, key := range listKeys {
			if arr, ok := v[key].([]any); ok {
				return arr, nil
			}
		}
		// a single object is a single item
		return []any{v}, nil
	default:
		return nil, fmt.Errorf("unexpected json root %T", root)
	}
}

// walkPath follows a dot-notation path through nested objects.
func walkPath(v any, path string) (any, error) {
	current := v
	for _, part := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected object at %q, got %T", part, current)
		}
		current, ok = obj[part]
		if !ok {
			return nil, fmt.Errorf("key %q not found", part)
		}
	}
	return current, nil
}

func (e *Extractor) jsonFields(obj map[string]any, mapping map[string]string) map[string]string {
	fields := make(map[string]string)
	if len(mapping) == 0 {
		for k, v := range obj {
			if _, nested := v.(map[string]any); nested {
				continue
			}
			if s := collapse(asString(v)); s != "" {
				fields[k] = s
			}
		}
		return fields
	}

	for name, path := range mapping {
		v, err := walkPath(obj, path)
		if err != nil {
			continue
		}
		if s := collapse(asString(v)); s != "" {
			fields[name] = s
		}
	}
	return fields
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := asString(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		encoded, _ := json.Marshal(t)
		return string(encoded)
	default:
		return fmt.Sprintf("%v", t)
	}
}
