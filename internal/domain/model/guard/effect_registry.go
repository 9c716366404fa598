package model

import "fmt"

var effectRegistry = make(map[EffectType]func() Effect)

func RegisterEffect(t EffectType, factory func() Effect) {
	effectRegistry[t] = factory
}

// NewEffect returns an empty effect of the registered type.
func NewEffect(t EffectType) (Effect, error) {
	factory, ok := effectRegistry[t]
	if !ok {
		return nil, fmt.Errorf("unknown effect type %q", t)
	}
	return factory(), nil
}

// 初始化时注册
func init() {
	RegisterEffect(EffectTypeCorsOverride, func() Effect { return &CorsOverrideEffect{} })
	RegisterEffect(EffectTypeHeaderRequirement, func() Effect { return &HeaderRequirementEffect{} })
}
