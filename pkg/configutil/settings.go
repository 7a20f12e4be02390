// Package configutil handles the free-form vendor settings blocks
// (vendors.tts.settings) that viper leaves as untyped maps: schema
// validation up front, then decoding into per-provider structs.
package configutil

import (
	"strings"

	"github.com/mitchellh/mapstructure"
)

// DecodeSettings maps a settings block onto a typed provider struct.
// Input is weakly typed so YAML scalars ("true", 3000) land in bool/int
// fields, and key matching ignores case, underscores, and hyphens.
func DecodeSettings(input map[string]any, out any) error {
	if len(input) == 0 {
		return nil
	}
	cfg := &mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		Result:           out,
		WeaklyTypedInput: true,
		MatchName: func(mapKey, fieldName string) bool {
			return normalizeKey(mapKey) == normalizeKey(fieldName)
		},
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

// BoolValue resolves an optional tri-state flag: nil means the provider's
// default, anything else is the operator's choice.
func BoolValue(value *bool, fallback bool) bool {
	if value == nil {
		return fallback
	}
	return *value
}

func normalizeKey(value string) string {
	value = strings.ToLower(value)
	value = strings.ReplaceAll(value, "_", "")
	value = strings.ReplaceAll(value, "-", "")
	return value
}
