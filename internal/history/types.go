// Package history persists anonymization results and schedules debounced
// autosaves gated by text similarity.
package history

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/textveil/textveil/internal/masking"
)

// Record is one persisted anonymization result. SourceText is nil for runs
// without a meaningful source, such as QR decodes.
type Record struct {
	ID         string      `json:"id" db:"id"`
	SourceText *string     `json:"sourceText,omitempty" db:"source_text"`
	TargetText string      `json:"targetText" db:"target_text"`
	Mappings   MappingList `json:"mappings" db:"mappings"`
	CreatedAt  time.Time   `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time   `json:"updatedAt" db:"updated_at"`
}

// MappingList stores mappings as a JSONB column.
type MappingList []masking.Mapping

// Value implements driver.Valuer.
func (m MappingList) Value() (driver.Value, error) {
	if m == nil {
		return "[]", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (m *MappingList) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	}
	return fmt.Errorf("cannot scan %T into MappingList", src)
}
