package rules

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/textveil/textveil/internal/masking"
)

// TransferVersion is the current transfer envelope version.
const TransferVersion = 1

// Envelope is the serialization boundary for rule import/export.
type Envelope struct {
	Version    int            `json:"version"`
	ExportedAt time.Time      `json:"exportedAt"`
	Rules      []TransferRule `json:"rules"`
}

// TransferRule is one exported rule. The wire names are source/target; the
// legacy original/masked names are still accepted on import.
type TransferRule struct {
	Date    time.Time
	Source  string
	Target  string
	Enabled bool
}

// MarshalJSON writes the current field names.
func (r TransferRule) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Date    time.Time `json:"date"`
		Source  string    `json:"source"`
		Target  string    `json:"target"`
		Enabled bool      `json:"isEnabled"`
	}{r.Date, r.Source, r.Target, r.Enabled})
}

// UnmarshalJSON accepts both the current source/target names and the legacy
// original/masked names. A missing isEnabled defaults to enabled.
func (r *TransferRule) UnmarshalJSON(data []byte) error {
	var aux struct {
		Date     time.Time `json:"date"`
		Source   string    `json:"source"`
		Target   string    `json:"target"`
		Original string    `json:"original"`
		Masked   string    `json:"masked"`
		Enabled  *bool     `json:"isEnabled"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	r.Date = aux.Date
	r.Source = aux.Source
	if r.Source == "" {
		r.Source = aux.Original
	}
	r.Target = aux.Target
	if r.Target == "" {
		r.Target = aux.Masked
	}
	r.Enabled = true
	if aux.Enabled != nil {
		r.Enabled = *aux.Enabled
	}
	return nil
}

// Export serializes rules into a transfer envelope.
func Export(list []masking.Rule) ([]byte, error) {
	envelope := Envelope{
		Version:    TransferVersion,
		ExportedAt: time.Now().UTC(),
		Rules:      make([]TransferRule, 0, len(list)),
	}
	for _, rule := range list {
		envelope.Rules = append(envelope.Rules, TransferRule{
			Date:    rule.CreatedAt,
			Source:  rule.Original,
			Target:  rule.Masked,
			Enabled: rule.Enabled,
		})
	}

	data, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transfer envelope: %w", err)
	}
	return data, nil
}

// Import parses a transfer envelope back into rules. The transfer format
// carries no category, so imported rules are classified as custom.
func Import(data []byte) ([]masking.Rule, error) {
	if len(data) == 0 {
		return nil, ErrMissingData
	}

	var envelope Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse transfer envelope: %w", err)
	}

	if envelope.Version != TransferVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, envelope.Version)
	}

	if len(envelope.Rules) == 0 {
		return nil, ErrMissingData
	}

	list := make([]masking.Rule, 0, len(envelope.Rules))
	for _, r := range envelope.Rules {
		list = append(list, masking.Rule{
			Original:  r.Source,
			Masked:    r.Target,
			Kind:      masking.CategoryCustom,
			Enabled:   r.Enabled,
			CreatedAt: r.Date,
		})
	}
	return list, nil
}
