package evalutil

import "github.com/agentv/agentv"

// MatchArgs compares expected tool-call args against actual args under the
// given mode. expected == nil or the literal string "any" always passes
// (the trajectory matcher's shortcut), independent of mode.
func MatchArgs(mode agentv.ArgMatchMode, expected, actual any, fieldList []string) bool {
	if expected == nil {
		return true
	}
	if s, ok := expected.(string); ok && s == "any" {
		return true
	}

	switch mode {
	case agentv.ArgMatchIgnore:
		return true
	case agentv.ArgMatchSuperset:
		return matchSuperset(expected, actual)
	case agentv.ArgMatchSubset:
		return matchSubset(expected, actual)
	case agentv.ArgMatchFieldList:
		return matchFieldList(expected, actual, fieldList)
	case agentv.ArgMatchExact, "":
		return DeepEqual(expected, actual)
	default:
		return DeepEqual(expected, actual)
	}
}

// matchSuperset requires every key of expected to exist in actual with an
// equal value; extra keys in actual are ignored.
func matchSuperset(expected, actual any) bool {
	em, ok := expected.(map[string]any)
	if !ok {
		return DeepEqual(expected, actual)
	}
	am, ok := actual.(map[string]any)
	if !ok {
		return len(em) == 0
	}
	for k, ev := range em {
		av, ok := am[k]
		if !ok || !DeepEqual(ev, av) {
			return false
		}
	}
	return true
}

// matchSubset requires every key of actual to exist in expected with an
// equal value; no unexpected keys may appear in actual.
func matchSubset(expected, actual any) bool {
	em, ok := expected.(map[string]any)
	if !ok {
		return DeepEqual(expected, actual)
	}
	am, ok := actual.(map[string]any)
	if !ok {
		return true
	}
	for k, av := range am {
		ev, ok := em[k]
		if !ok || !DeepEqual(ev, av) {
			return false
		}
	}
	return true
}

// matchFieldList resolves each dotted path in both sides; a path present in
// expected must deep-equal in actual, a path absent from expected is
// skipped entirely.
func matchFieldList(expected, actual any, fieldList []string) bool {
	for _, path := range fieldList {
		ev, ok := ResolvePath(expected, path)
		if !ok {
			continue
		}
		av, ok := ResolvePath(actual, path)
		if !ok || !DeepEqual(ev, av) {
			return false
		}
	}
	return true
}
