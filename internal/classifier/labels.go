package classifier

import "github.com/kjstillabower/weather-collector-service/internal/models"

// RainEmoji picks a sky symbol for a rain probability, stepping at 20/40/60/80.
func RainEmoji(probability int) string {
	switch {
	case probability == 0:
		return "☀️"
	case probability < 20:
		return "🌤️"
	case probability < 40:
		return "⛅"
	case probability < 60:
		return "🌥️"
	case probability < 80:
		return "🌧️"
	default:
		return "⛈️"
	}
}

var intensityLabels = map[models.Intensity]string{
	models.IntensityNone:     "None",
	models.IntensityLight:    "Light",
	models.IntensityModerate: "Moderate",
	models.IntensityHeavy:    "Heavy",
}

// IntensityLabel returns the display label for an intensity, or "" when unknown.
func IntensityLabel(intensity models.Intensity) string {
	return intensityLabels[intensity]
}
