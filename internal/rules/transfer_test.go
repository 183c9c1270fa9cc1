package rules

import (
	"errors"
	"testing"
	"time"

	"github.com/textveil/textveil/internal/masking"
)

func TestTransferRoundTrip(t *testing.T) {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	original := []masking.Rule{
		{Original: "Acme Corp", Masked: "Client A", Kind: masking.CategoryCompany, Enabled: true, CreatedAt: created},
		{Original: "Bob", Masked: "Person X", Kind: masking.CategoryPerson, Enabled: false, CreatedAt: created},
	}

	data, err := Export(original)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	imported, err := Import(data)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	if len(imported) != len(original) {
		t.Fatalf("Expected %d rules, got %d", len(original), len(imported))
	}
	for i, rule := range imported {
		if rule.Original != original[i].Original {
			t.Errorf("Rule %d: expected original %q, got %q", i, original[i].Original, rule.Original)
		}
		if rule.Masked != original[i].Masked {
			t.Errorf("Rule %d: expected masked %q, got %q", i, original[i].Masked, rule.Masked)
		}
		if rule.Enabled != original[i].Enabled {
			t.Errorf("Rule %d: expected enabled %v, got %v", i, original[i].Enabled, rule.Enabled)
		}
	}
}

func TestImportLegacyFieldNames(t *testing.T) {
	payload := []byte(`{
		"version": 1,
		"exportedAt": "2024-03-01T00:00:00Z",
		"rules": [
			{"date": "2024-03-01T00:00:00Z", "original": "Acme", "masked": "Client", "isEnabled": true}
		]
	}`)

	imported, err := Import(payload)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if len(imported) != 1 {
		t.Fatalf("Expected 1 rule, got %d", len(imported))
	}
	if imported[0].Original != "Acme" || imported[0].Masked != "Client" {
		t.Errorf("Legacy field names not honored: %+v", imported[0])
	}
}

func TestImportCurrentFieldNamesPreferred(t *testing.T) {
	payload := []byte(`{
		"version": 1,
		"rules": [
			{"source": "new", "target": "n", "original": "old", "masked": "o"}
		]
	}`)

	imported, err := Import(payload)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if imported[0].Original != "new" || imported[0].Masked != "n" {
		t.Errorf("Current field names must win over legacy aliases: %+v", imported[0])
	}
}

func TestImportMissingEnabledDefaultsTrue(t *testing.T) {
	payload := []byte(`{"version": 1, "rules": [{"source": "a", "target": "b"}]}`)

	imported, err := Import(payload)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if !imported[0].Enabled {
		t.Error("Missing isEnabled should default to enabled")
	}
}

func TestImportFailures(t *testing.T) {
	t.Run("UnsupportedVersion", func(t *testing.T) {
		payload := []byte(`{"version": 99, "rules": [{"source": "a", "target": "b"}]}`)
		_, err := Import(payload)
		if !errors.Is(err, ErrUnsupportedVersion) {
			t.Errorf("Expected ErrUnsupportedVersion, got %v", err)
		}
	})

	t.Run("EmptyPayload", func(t *testing.T) {
		_, err := Import(nil)
		if !errors.Is(err, ErrMissingData) {
			t.Errorf("Expected ErrMissingData, got %v", err)
		}
	})

	t.Run("NoRules", func(t *testing.T) {
		_, err := Import([]byte(`{"version": 1, "rules": []}`))
		if !errors.Is(err, ErrMissingData) {
			t.Errorf("Expected ErrMissingData, got %v", err)
		}
	})

	t.Run("Malformed", func(t *testing.T) {
		if _, err := Import([]byte(`{not json`)); err == nil {
			t.Error("Expected error for malformed payload")
		}
	})
}
