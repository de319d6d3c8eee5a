// Package classifier maps provider weather condition codes and labels to a
// rain-risk signal. Codes follow https://openweathermap.org/weather-conditions.
package classifier

import (
	"strings"

	"github.com/kjstillabower/weather-collector-service/internal/models"
)

// DefaultRainInfo is returned when neither the code nor the description is recognized.
var DefaultRainInfo = models.RainInfo{Probability: 20, Description: "variable weather", Intensity: models.IntensityLight}

var codeTable = map[int]models.RainInfo{
	// clear
	800: entry(0, "clear sky", models.IntensityNone),

	// clouds
	801: entry(10, "few clouds", models.IntensityNone),
	802: entry(25, "scattered clouds", models.IntensityNone),
	803: entry(40, "broken clouds", models.IntensityNone),
	804: entry(60, "overcast clouds", models.IntensityLight),

	// rain
	500: entry(30, "light rain", models.IntensityLight),
	501: entry(50, "moderate rain", models.IntensityModerate),
	502: entry(70, "heavy rain", models.IntensityHeavy),
	503: entry(85, "very heavy rain", models.IntensityHeavy),
	504: entry(95, "extreme rain", models.IntensityHeavy),
	511: entry(80, "freezing rain", models.IntensityHeavy),

	// drizzle
	300: entry(20, "light drizzle", models.IntensityLight),
	301: entry(35, "drizzle", models.IntensityLight),
	302: entry(55, "heavy drizzle", models.IntensityModerate),

	// drizzle and rain
	310: entry(30, "light drizzle rain", models.IntensityLight),
	311: entry(45, "drizzle rain", models.IntensityModerate),
	312: entry(65, "heavy drizzle rain", models.IntensityHeavy),
	313: entry(70, "shower rain and drizzle", models.IntensityHeavy),
	314: entry(85, "heavy shower rain and drizzle", models.IntensityHeavy),

	// rain with hail
	320: entry(60, "light rain with hail", models.IntensityModerate),
	321: entry(75, "rain with hail", models.IntensityHeavy),

	// thunderstorm
	200: entry(80, "thunderstorm with light rain", models.IntensityHeavy),
	201: entry(90, "thunderstorm with rain", models.IntensityHeavy),
	202: entry(95, "thunderstorm with heavy rain", models.IntensityHeavy),
	210: entry(70, "light thunderstorm", models.IntensityModerate),
	211: entry(80, "thunderstorm", models.IntensityHeavy),
	212: entry(95, "heavy thunderstorm", models.IntensityHeavy),
	221: entry(85, "ragged thunderstorm", models.IntensityHeavy),
	230: entry(75, "thunderstorm with light drizzle", models.IntensityHeavy),
	231: entry(85, "thunderstorm with drizzle", models.IntensityHeavy),
	232: entry(95, "thunderstorm with heavy drizzle", models.IntensityHeavy),

	// snow
	600: entry(30, "light snow", models.IntensityLight),
	601: entry(50, "snow", models.IntensityModerate),
	602: entry(70, "blizzard", models.IntensityHeavy),
	611: entry(40, "sleet", models.IntensityModerate),
	612: entry(60, "light shower sleet", models.IntensityModerate),
	613: entry(80, "shower sleet", models.IntensityHeavy),
	615: entry(35, "light rain and snow", models.IntensityLight),
	616: entry(50, "rain and snow", models.IntensityModerate),
	620: entry(20, "light shower snow", models.IntensityLight),
	621: entry(40, "shower snow", models.IntensityModerate),
	622: entry(60, "heavy shower snow", models.IntensityHeavy),

	// atmosphere
	701: entry(5, "mist", models.IntensityNone),
	711: entry(10, "smoke", models.IntensityNone),
	721: entry(5, "haze", models.IntensityNone),
	731: entry(5, "sand/dust whirls", models.IntensityNone),
	741: entry(15, "fog", models.IntensityLight),
	751: entry(10, "sand", models.IntensityNone),
	761: entry(5, "dust", models.IntensityNone),
	762: entry(20, "volcanic ash", models.IntensityLight),
	771: entry(40, "squalls", models.IntensityModerate),
	781: entry(85, "tornado", models.IntensityHeavy),
}

// textRule is one branch of the description fallback. Rules are evaluated in
// order and the first one whose terms match wins.
type textRule struct {
	terms  []string
	result func(desc string) models.RainInfo
}

var textRules = []textRule{
	{
		terms:  []string{"tornado", "tempestade forte"},
		result: fixed(models.RainInfo{Probability: 95, Description: "tornado/severe storm", Intensity: models.IntensityHeavy}),
	},
	{
		terms:  []string{"tempestade", "thunderstorm"},
		result: fixed(models.RainInfo{Probability: 80, Description: "storm", Intensity: models.IntensityHeavy}),
	},
	{
		terms:  []string{"chuva", "rain"},
		result: rainBySeverity,
	},
	{
		terms:  []string{"neve", "snow"},
		result: fixed(models.RainInfo{Probability: 50, Description: "snow", Intensity: models.IntensityModerate}),
	},
	{
		terms:  []string{"nublado", "cloud", "overcast"},
		result: fixed(models.RainInfo{Probability: 40, Description: "cloudy", Intensity: models.IntensityLight}),
	},
	{
		terms:  []string{"ensolarado", "clear", "sunny"},
		result: fixed(models.RainInfo{Probability: 0, Description: "sunny", Intensity: models.IntensityNone}),
	},
}

var (
	heavyTerms    = []string{"forte", "heavy"}
	moderateTerms = []string{"moderada", "moderate"}
)

// Classify returns the rain-risk signal for a condition. A known code wins over
// the description; an unknown or absent code falls back to keyword matching on
// the description, and then to DefaultRainInfo. Classify never fails.
func Classify(code *int, description string) models.RainInfo {
	if code != nil {
		if info, ok := codeTable[*code]; ok {
			return info
		}
	}

	if description != "" {
		desc := strings.ToLower(description)
		for _, rule := range textRules {
			if containsAny(desc, rule.terms) {
				return rule.result(desc)
			}
		}
	}

	return DefaultRainInfo
}

// LookupCode returns the table entry for code, if any.
func LookupCode(code int) (models.RainInfo, bool) {
	info, ok := codeTable[code]
	return info, ok
}

// Codes returns every condition code with a table entry, in no particular order.
func Codes() []int {
	out := make([]int, 0, len(codeTable))
	for code := range codeTable {
		out = append(out, code)
	}
	return out
}

func rainBySeverity(desc string) models.RainInfo {
	switch {
	case containsAny(desc, heavyTerms):
		return models.RainInfo{Probability: 70, Description: "heavy rain", Intensity: models.IntensityHeavy}
	case containsAny(desc, moderateTerms):
		return models.RainInfo{Probability: 50, Description: "moderate rain", Intensity: models.IntensityModerate}
	default:
		return models.RainInfo{Probability: 35, Description: "rain", Intensity: models.IntensityLight}
	}
}

func entry(probability int, description string, intensity models.Intensity) models.RainInfo {
	return models.RainInfo{Probability: probability, Description: description, Intensity: intensity}
}

func fixed(info models.RainInfo) func(string) models.RainInfo {
	return func(string) models.RainInfo { return info }
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
