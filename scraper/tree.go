package scraper

import (
	"maps"
	"slices"
	"strconv"
	"strings"
)

// MaxWalkDepth bounds recursion into decoded JSON documents.
const MaxWalkDepth = 32

// Walk visits every node of a decoded JSON value depth-first. visit
// returns false to skip the node's children. Object keys are visited in
// sorted order. Nodes deeper than MaxWalkDepth are not visited.
func Walk(v any, visit func(node any) bool) {
	walk(v, visit, 0)
}

func walk(v any, visit func(node any) bool, depth int) {
	if depth > MaxWalkDepth {
		return
	}
	if !visit(v) {
		return
	}

	switch node := v.(type) {
	case map[string]any:
		for _, key := range slices.Sorted(maps.Keys(node)) {
			walk(node[key], visit, depth+1)
		}
	case []any:
		for _, child := range node {
			walk(child, visit, depth+1)
		}
	}
}

// stringField returns the first non-empty scalar found under keys.
// Numbers are rendered without exponent so unix timestamps survive.
func stringField(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := scalarString(m[key]); s != "" {
			return s
		}
	}
	return ""
}

// stringFields returns every non-empty scalar found under keys, in key
// order.
func stringFields(m map[string]any, keys ...string) []string {
	var out []string
	for _, key := range keys {
		if s := scalarString(m[key]); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func scalarString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return ""
	}
}

// typeNames returns the JSON-LD @type of m, which may be a string or a list.
func typeNames(m map[string]any) []string {
	switch t := m["@type"].(type) {
	case string:
		return []string{t}
	case []any:
		names := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				names = append(names, s)
			}
		}
		return names
	default:
		return nil
	}
}

func hasType(m map[string]any, names ...string) bool {
	for _, t := range typeNames(m) {
		for _, name := range names {
			if strings.EqualFold(t, name) {
				return true
			}
		}
	}
	return false
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
