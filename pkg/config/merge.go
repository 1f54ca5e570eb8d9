package config

import "dario.cat/mergo"

// mergeOverrides merges user-provided YAML config onto the built-in
// defaults, with non-zero user fields taking precedence.
func mergeOverrides(defaults, override *Config) error {
	return mergo.Merge(defaults, override, mergo.WithOverride)
}
