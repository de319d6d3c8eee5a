package models

// Intensity is an ordinal rain-severity bucket used for labeling.
type Intensity string

const (
	IntensityNone     Intensity = "none"
	IntensityLight    Intensity = "light"
	IntensityModerate Intensity = "moderate"
	IntensityHeavy    Intensity = "heavy"
)

// RainInfo is the classifier result for one weather condition.
type RainInfo struct {
	Probability int       `json:"probability"`
	Description string    `json:"description"`
	Intensity   Intensity `json:"intensity"`
}
