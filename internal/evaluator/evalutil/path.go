// Package evalutil holds small helpers shared by more than one evaluator:
// dot-bracket path resolution and deep value comparison with numeric
// coercion, both grounded on the same walking style as the tool-trajectory
// argument matcher.
package evalutil

import (
	"encoding/json"
	"reflect"
	"strconv"
	"strings"
)

// ResolvePath resolves a dotted/bracketed path such as "a.b[0].c" against a
// decoded JSON value (map[string]any / []any / scalar). Returns ok=false
// when any segment is missing or the wrong shape.
func ResolvePath(root any, path string) (any, bool) {
	segs, err := splitPath(path)
	if err != nil {
		return nil, false
	}
	cur := root
	for _, seg := range segs {
		if seg.index != nil {
			arr, ok := cur.([]any)
			if !ok || *seg.index < 0 || *seg.index >= len(arr) {
				return nil, false
			}
			cur = arr[*seg.index]
			continue
		}
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[seg.key]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

type pathSeg struct {
	key   string
	index *int
}

// splitPath parses "a.b[0].c" into [{key:a} {key:b} {index:0} {key:c}].
func splitPath(path string) ([]pathSeg, error) {
	var segs []pathSeg
	for _, dotPart := range strings.Split(path, ".") {
		for len(dotPart) > 0 {
			br := strings.IndexByte(dotPart, '[')
			if br == -1 {
				if dotPart != "" {
					segs = append(segs, pathSeg{key: dotPart})
				}
				dotPart = ""
				continue
			}
			if br > 0 {
				segs = append(segs, pathSeg{key: dotPart[:br]})
			}
			end := strings.IndexByte(dotPart[br:], ']')
			if end == -1 {
				return nil, strconv.ErrSyntax
			}
			idxStr := dotPart[br+1 : br+end]
			idx, err := strconv.Atoi(idxStr)
			if err != nil {
				return nil, err
			}
			segs = append(segs, pathSeg{index: &idx})
			dotPart = dotPart[br+end+1:]
		}
	}
	return segs, nil
}

// DeepEqual compares two decoded JSON values, treating any combination of
// Go numeric types as equal when their float64 values match (JSON decoders
// vary between float64 and json.Number).
func DeepEqual(a, b any) bool {
	if af, ok := AsNumber(a); ok {
		bf, ok := AsNumber(b)
		return ok && af == bf
	}
	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, vv := range av {
			bvv, ok := bv[k]
			if !ok || !DeepEqual(vv, bvv) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !DeepEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return reflect.DeepEqual(a, b)
	}
}

// AsNumber coerces any JSON-decoded numeric representation to float64.
func AsNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
