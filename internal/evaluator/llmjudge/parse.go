package llmjudge

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// extractJSON pulls a JSON object or array out of a judge's raw text reply,
// tolerating markdown fences and prose wrapped around the payload.
func extractJSON(s string) (string, error) {
	trimmed := strings.TrimSpace(s)

	if isValidJSON(trimmed) {
		return trimmed, nil
	}

	cleaned := stripMarkdownFences(trimmed)
	if isValidJSON(cleaned) {
		return cleaned, nil
	}

	if extracted, err := extractWithRegex(trimmed); err == nil && isValidJSON(extracted) {
		return extracted, nil
	}

	if extracted, err := extractByScanning(trimmed); err == nil && isValidJSON(extracted) {
		return extracted, nil
	}

	return "", fmt.Errorf("no JSON structure found in judge response")
}

func stripMarkdownFences(s string) string {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}

func isValidJSON(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	var js json.RawMessage
	return json.Unmarshal([]byte(s), &js) == nil
}

var objPattern = regexp.MustCompile(`\{[\s\S]*\}`)
var arrPattern = regexp.MustCompile(`\[[\s\S]*\]`)

func extractWithRegex(s string) (string, error) {
	if match := objPattern.FindString(s); match != "" {
		return strings.TrimSpace(match), nil
	}
	if match := arrPattern.FindString(s); match != "" {
		return strings.TrimSpace(match), nil
	}
	return "", fmt.Errorf("no JSON structure found")
}

func extractByScanning(s string) (string, error) {
	lines := strings.Split(s, "\n")
	var jsonLines []string
	var inJSON bool
	var braceCount, bracketCount int

	for _, line := range lines {
		trimmedLine := strings.TrimSpace(line)
		if !inJSON && trimmedLine == "" {
			continue
		}
		if !inJSON && (strings.HasPrefix(trimmedLine, "{") || strings.HasPrefix(trimmedLine, "[")) {
			inJSON = true
		}
		if !inJSON {
			continue
		}
		jsonLines = append(jsonLines, line)
		for _, ch := range line {
			switch ch {
			case '{':
				braceCount++
			case '}':
				braceCount--
			case '[':
				bracketCount++
			case ']':
				bracketCount--
			}
		}
		if braceCount == 0 && bracketCount == 0 && len(jsonLines) > 0 {
			return strings.TrimSpace(strings.Join(jsonLines, "\n")), nil
		}
	}
	return "", fmt.Errorf("no complete JSON structure found")
}
