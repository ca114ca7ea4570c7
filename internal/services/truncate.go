package services

import (
	"encoding/json"
	"fmt"
)

// defaultMaxToolResultChars caps tool results at roughly 5K tokens.
const defaultMaxToolResultChars = 20000

// truncateToolResult shortens an oversized tool result and marks the cut.
// When the truncated prefix can be closed into valid JSON, the notice is
// injected as two extra fields on the object; otherwise it is appended as
// a trailing text marker.
func truncateToolResult(content string, maxChars int) string {
	if maxChars <= 0 {
		maxChars = defaultMaxToolResultChars
	}
	if len(content) <= maxChars {
		return content
	}

	truncated := content[:maxChars]
	remaining := len(content) - maxChars

	var parsed map[string]any
	if err := json.Unmarshal([]byte(truncated+"}"), &parsed); err == nil {
		parsed["_truncated"] = true
		parsed["_truncated_message"] = fmt.Sprintf(
			"Resultado truncado. Se omitieron %d caracteres. Usa filtros más específicos o límites menores.", remaining)
		if out, err := json.MarshalIndent(parsed, "", "  "); err == nil {
			return string(out)
		}
	}

	return truncated + fmt.Sprintf(
		"\n\n[TRUNCADO: Se omitieron %d caracteres adicionales. Usa filtros más específicos.]", remaining)
}
