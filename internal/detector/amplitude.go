package detector

import "math"

// SilenceDecibels 无读数时的音量
const SilenceDecibels = -160.0

// AmplitudeFromDecibels 将 dB 读数换算为 [0,1] 的归一化幅度
func AmplitudeFromDecibels(db float64) float64 {
	if math.IsNaN(db) {
		db = SilenceDecibels
	}
	return clamp(math.Pow(10, db/20), 0, 1)
}
