package staging

import "github.com/CodingHusk3y/heartwake/internal/models"

// Thresholds 睡眠分期阈值
// 默认值为经验值，需结合真实数据校准
type Thresholds struct {
	MovingThreshold float64 `json:"moving_threshold"` // 体动高于此值 => 清醒
	StillThreshold  float64 `json:"still_threshold"`  // 深睡眠要求的体动上限
	DeepHRMin       float64 `json:"deep_hr_min"`
	DeepHRMax       float64 `json:"deep_hr_max"`
	REMHRMin        float64 `json:"rem_hr_min"`
	REMHRMax        float64 `json:"rem_hr_max"`
	REMMotionMax    float64 `json:"rem_motion_max"` // REM 要求的体动上限
}

// DefaultThresholds 默认阈值
func DefaultThresholds() Thresholds {
	return Thresholds{
		MovingThreshold: 0.5,
		StillThreshold:  0.05,
		DeepHRMin:       40,
		DeepHRMax:       60,
		REMHRMin:        68,
		REMHRMax:        100,
		REMMotionMax:    0.15,
	}
}

// Classifier 基于阈值的心率/体动融合分期（无状态）
type Classifier struct {
	thresholds Thresholds
}

// NewClassifier 创建分期器
func NewClassifier(t Thresholds) *Classifier {
	return &Classifier{thresholds: t}
}

// Thresholds 当前阈值
func (c *Classifier) Thresholds() Thresholds {
	return c.thresholds
}

// Classify 根据心率与体动判断睡眠阶段；任一输入缺失时返回 Unknown
func (c *Classifier) Classify(hr, motion *float64) models.Stage {
	if hr == nil || motion == nil {
		return models.StageUnknown
	}
	t := c.thresholds
	h, m := *hr, *motion

	switch {
	case m > t.MovingThreshold:
		return models.StageAwake
	case h >= t.DeepHRMin && h <= t.DeepHRMax && m <= t.StillThreshold:
		return models.StageDeep
	case h >= t.REMHRMin && h <= t.REMHRMax && m <= t.REMMotionMax:
		return models.StageREM
	default:
		return models.StageLight
	}
}

var defaultClassifier = NewClassifier(DefaultThresholds())

// Classify 使用默认阈值分期
func Classify(hr, motion *float64) models.Stage {
	return defaultClassifier.Classify(hr, motion)
}
