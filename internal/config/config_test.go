package config

import "testing"

func TestValidateConfig(t *testing.T) {
	t.Run("DefaultsAreValid", func(t *testing.T) {
		if err := validateConfig(GetDefaults()); err != nil {
			t.Errorf("Defaults must validate: %v", err)
		}
	})

	t.Run("InvalidPort", func(t *testing.T) {
		cfg := GetDefaults()
		cfg.Server.Port = 0
		if err := validateConfig(cfg); err == nil {
			t.Error("Expected error for port 0")
		}
	})

	t.Run("InvalidThreshold", func(t *testing.T) {
		cfg := GetDefaults()
		cfg.Autosave.SimilarityThreshold = 1.5
		if err := validateConfig(cfg); err == nil {
			t.Error("Expected error for threshold above 1")
		}
	})

	t.Run("InvalidDebounce", func(t *testing.T) {
		cfg := GetDefaults()
		cfg.Autosave.Debounce = 0
		if err := validateConfig(cfg); err == nil {
			t.Error("Expected error for zero debounce")
		}
	})

	t.Run("InvalidLogLevel", func(t *testing.T) {
		cfg := GetDefaults()
		cfg.Logging.Level = "verbose"
		if err := validateConfig(cfg); err == nil {
			t.Error("Expected error for unknown log level")
		}
	})
}
