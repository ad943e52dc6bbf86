package models

import (
	"fmt"
	"strings"
)

// Stage 睡眠阶段
type Stage int

const (
	StageUnknown Stage = iota
	StageAwake
	StageLight // 覆盖 N1/N2 过渡期
	StageREM
	StageDeep
)

// WakeEligible 允许提前唤醒的睡眠阶段（浅睡眠、REM）
var WakeEligible = map[Stage]bool{
	StageLight: true,
	StageREM:   true,
}

// IsWakeEligible 是否允许在该阶段提前唤醒
func (s Stage) IsWakeEligible() bool {
	return WakeEligible[s]
}

var stageNames = map[Stage]string{
	StageUnknown: "unknown",
	StageAwake:   "awake",
	StageLight:   "light",
	StageREM:     "rem",
	StageDeep:    "deep",
}

// SNOMED CT 编码（与睡眠垫数据转换保持一致）
var stageSNOMED = map[Stage]struct{ Code, Display string }{
	StageAwake: {"248220002", "Awake"},
	StageLight: {"248232005", "Light sleep"},
	StageDeep:  {"248233000", "Deep sleep"},
	StageREM:   {"248234006", "REM sleep"},
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "unknown"
}

// SNOMEDCode 返回阶段对应的 SNOMED 编码与显示名（Unknown 返回空串）
func (s Stage) SNOMEDCode() (code, display string) {
	v := stageSNOMED[s]
	return v.Code, v.Display
}

// ParseStage 解析阶段名称（兼容 N1/N2 旧名称）
func ParseStage(name string) (Stage, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "unknown", "":
		return StageUnknown, nil
	case "awake", "wake":
		return StageAwake, nil
	case "light", "n1", "n2":
		return StageLight, nil
	case "rem":
		return StageREM, nil
	case "deep", "n3":
		return StageDeep, nil
	default:
		return StageUnknown, fmt.Errorf("unknown sleep stage: %q", name)
	}
}

// MarshalText 以名称序列化（JSON / 数据库字段）
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText 从名称反序列化
func (s *Stage) UnmarshalText(text []byte) error {
	stage, err := ParseStage(string(text))
	if err != nil {
		return err
	}
	*s = stage
	return nil
}
