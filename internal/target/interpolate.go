package target

import (
	"fmt"
	"strings"
)

// Interpolate replaces every "${{ VAR_NAME }}" reference in s with env[VAR_NAME].
// Unlike mvdan.cc/sh/v3/shell.Expand (used elsewhere in this module for
// process-environment shell expansion), this parser rejects any reference
// that does not resolve against env — there is no "${{ VAR:-default }}"
// silent-default form, by design: a target definition that references an
// unset variable should fail loudly at resolution time, not fall through
// to an empty string.
func Interpolate(s string, env map[string]string) (string, error) {
	var b strings.Builder
	rest := s

	for {
		start := strings.Index(rest, "${{")
		if start == -1 {
			b.WriteString(rest)
			return b.String(), nil
		}
		end := strings.Index(rest[start:], "}}")
		if end == -1 {
			return "", fmt.Errorf("unterminated ${{ reference in %q", s)
		}
		end += start

		b.WriteString(rest[:start])
		name := strings.TrimSpace(rest[start+3 : end])
		if name == "" {
			return "", fmt.Errorf("empty variable name in ${{ }} reference")
		}
		val, ok := env[name]
		if !ok {
			return "", fmt.Errorf("unresolved reference ${{ %s }}", name)
		}
		b.WriteString(val)
		rest = rest[end+2:]
	}
}
