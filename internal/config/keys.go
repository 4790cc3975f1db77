package config

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// viper returns a viper view over the current configuration, addressed by
// dotted keys such as "output.device_number".
func (m *Manager) viper() (*viper.Viper, error) {
	data, err := yaml.Marshal(m.Get())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return v, nil
}

// GetValue returns the value stored under a dotted key.
func (m *Manager) GetValue(key string) (interface{}, error) {
	v, err := m.viper()
	if err != nil {
		return nil, err
	}
	if !v.IsSet(key) {
		return nil, fmt.Errorf("configuration key not found: %s", key)
	}
	return v.Get(key), nil
}

// SetValue parses value according to the key's current type, validates
// the result and saves it.
func (m *Manager) SetValue(key, value string) error {
	v, err := m.viper()
	if err != nil {
		return err
	}
	key = strings.ToLower(key)
	if !v.IsSet(key) {
		return fmt.Errorf("configuration key not found: %s", key)
	}

	switch v.Get(key).(type) {
	case bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for %s: %s (use: true or false)", key, value)
		}
		v.Set(key, b)
	case int, int64, uint64, float64:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid number for %s: %s", key, value)
		}
		v.Set(key, n)
	case map[string]interface{}:
		return fmt.Errorf("%s is a section, set one of its keys instead", key)
	default:
		v.Set(key, value)
	}

	data, err := yaml.Marshal(v.AllSettings())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to apply %s: %w", key, err)
	}
	cfg.LogLevel = strings.ToUpper(cfg.LogLevel)
	return m.Update(cfg)
}
