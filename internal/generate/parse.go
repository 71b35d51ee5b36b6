package generate

import (
	"encoding/json"
	"fmt"
	"strings"

	"quiz-room-service/internal/domain"
)

// ParseQuiz decodes a model reply into a quiz. It tolerates code fences and
// prose around the JSON object.
func ParseQuiz(content string) (domain.GeneratedQuiz, error) {
	content = cleanJSONContent(content)

	var quiz domain.GeneratedQuiz
	err := json.Unmarshal([]byte(content), &quiz)
	if err == nil {
		return quiz, nil
	}
	if object, ok := outermostObject(content); ok {
		var retry domain.GeneratedQuiz
		if err2 := json.Unmarshal([]byte(object), &retry); err2 == nil {
			return retry, nil
		}
	}
	return domain.GeneratedQuiz{}, fmt.Errorf("%w: model returned invalid JSON: %w: %s", domain.ErrGenerationFailed, err, truncateRunes(content, 500))
}

func cleanJSONContent(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
	}
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
	}
	if strings.HasSuffix(content, "```") {
		content = strings.TrimSuffix(content, "```")
	}
	return strings.TrimSpace(content)
}

// outermostObject returns the text from the first '{' to the last '}'.
func outermostObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}
