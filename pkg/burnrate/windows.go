package burnrate

// WindowConfig describes one rolling computation window and its weight in
// the composite signal.
type WindowConfig struct {
	Minutes int
	Weight  float64
	Label   string
}

// WindowConfigs are the canonical multi-window set. The short window
// catches spikes, the hour window steers alerting, and the day window
// anchors budget accounting. Weights sum to 1.0.
var WindowConfigs = []WindowConfig{
	{Minutes: 5, Weight: 0.3, Label: "5m"},
	{Minutes: 60, Weight: 0.4, Label: "1h"},
	{Minutes: 1440, Weight: 0.3, Label: "24h"},
}

// weightFor returns the canonical weight for a window, defaulting to an
// equal share when the window is not part of the canonical set.
func weightFor(minutes int) float64 {
	for _, w := range WindowConfigs {
		if w.Minutes == minutes {
			return w.Weight
		}
	}
	return 1.0 / float64(len(WindowConfigs))
}
