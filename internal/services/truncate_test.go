package services

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncateShortContentUntouched(t *testing.T) {
	content := `{"status":"success"}`
	assert.Equal(t, content, truncateToolResult(content, 20000))
}

func TestTruncateJSONInjectsNotice(t *testing.T) {
	// A flat JSON object whose prefix closes into a valid object when a
	// brace is appended.
	var b strings.Builder
	b.WriteString(`{"status":"success","payload":"`)
	b.WriteString(strings.Repeat("x", 500))
	b.WriteString(`"`)
	content := b.String() + `,"tail":"` + strings.Repeat("y", 500) + `"}`

	out := truncateToolResult(content, len(b.String()))

	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	assert.Equal(t, true, parsed["_truncated"])
	assert.Contains(t, parsed["_truncated_message"], "Resultado truncado")
	assert.Equal(t, "success", parsed["status"])
}

func TestTruncateTextAppendsMarker(t *testing.T) {
	content := strings.Repeat("a", 100)

	out := truncateToolResult(content, 40)

	assert.True(t, strings.HasPrefix(out, strings.Repeat("a", 40)))
	assert.Contains(t, out, "[TRUNCADO")
	assert.Contains(t, out, "60 caracteres")
}

func TestTruncateZeroBudgetUsesDefault(t *testing.T) {
	content := strings.Repeat("a", defaultMaxToolResultChars+10)

	out := truncateToolResult(content, 0)

	assert.Contains(t, out, "[TRUNCADO")
	assert.Contains(t, out, "10 caracteres")
}
