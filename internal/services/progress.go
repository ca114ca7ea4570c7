package services

import (
	"fmt"
	"strings"
)

// progressWordsPerLine is the wrap width for model explanations reused as
// progress messages.
const progressWordsPerLine = 15

// progressMessage builds the human-facing progress line for one tool
// call. When the model emitted explanatory text right before the call,
// that text wins, rewrapped to a fixed number of words per line;
// otherwise a per-tool Spanish phrasing is used, with a generic fallback
// for tools this service does not recognize.
func progressMessage(toolName string, input map[string]any, previousExplanation string) string {
	if strings.TrimSpace(previousExplanation) != "" {
		return wrapWords(previousExplanation, progressWordsPerLine)
	}

	str := func(key, fallback string) string {
		if v, ok := input[key].(string); ok && strings.TrimSpace(v) != "" {
			return v
		}
		return fallback
	}

	switch toolName {
	case "geocode_location":
		return fmt.Sprintf("Buscando ubicación de %s...", str("location", "la ubicación"))
	case "get_traffic_at_location":
		return fmt.Sprintf("Obteniendo tráfico cerca de %s...", str("location_name", "la ubicación"))
	case "get_traffic_stations":
		if freeway := str("freeway", ""); freeway != "" {
			return fmt.Sprintf("Consultando estaciones de la autopista %s...", freeway)
		}
		return "Consultando estaciones de tráfico..."
	case "predict_traffic_spi":
		return "Calculando predicción de tráfico..."
	case "suggest_routes":
		return "Calculando rutas óptimas..."
	default:
		return fmt.Sprintf("⚙️ Ejecutando %s...", toolName)
	}
}

// wrapWords reflows text to at most n words per line.
func wrapWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}
	lines := make([]string, 0, (len(words)+n-1)/n)
	for i := 0; i < len(words); i += n {
		end := i + n
		if end > len(words) {
			end = len(words)
		}
		lines = append(lines, strings.Join(words[i:end], " "))
	}
	return strings.Join(lines, "\n")
}
