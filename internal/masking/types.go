package masking

import (
	"fmt"
	"time"
)

// Category classifies a rule or mapping.
type Category int

const (
	CategoryPerson Category = iota
	CategoryCompany
	CategoryProject
	CategoryURL
	CategoryEmail
	CategoryPhone
	CategoryOther
	CategoryCustom
)

var categoryNames = map[Category]string{
	CategoryPerson:  "person",
	CategoryCompany: "company",
	CategoryProject: "project",
	CategoryURL:     "url",
	CategoryEmail:   "email",
	CategoryPhone:   "phone",
	CategoryOther:   "other",
	CategoryCustom:  "custom",
}

// aliasPrefixes are the labels used when the engine generates an alias
// itself. Manual rules carry their own masked value and never get a prefix.
var aliasPrefixes = map[Category]string{
	CategoryPerson:  "Person",
	CategoryCompany: "Company",
	CategoryProject: "Project",
	CategoryURL:     "PrivateURL",
	CategoryEmail:   "Email",
	CategoryPhone:   "Phone",
	CategoryOther:   "Other",
	CategoryCustom:  "Custom",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "unknown"
}

// AliasPrefix returns the label prefix for auto-generated aliases of this category.
func (c Category) AliasPrefix() string {
	if prefix, ok := aliasPrefixes[c]; ok {
		return prefix
	}
	return "Masked"
}

// ParseCategory converts a category name back to its Category value.
func ParseCategory(name string) (Category, error) {
	for c, n := range categoryNames {
		if n == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown category: %s", name)
}

// MarshalText implements encoding.TextMarshaler so categories serialize by name.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Category) UnmarshalText(data []byte) error {
	parsed, err := ParseCategory(string(data))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Rule is a user-authored substitution directive. The engine reads rules,
// it never creates or mutates them.
type Rule struct {
	ID        string    `json:"id" db:"id"`
	Original  string    `json:"original" db:"original"`
	Masked    string    `json:"masked" db:"masked"`
	Kind      Category  `json:"kind" db:"kind"`
	Enabled   bool      `json:"isEnabled" db:"enabled"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Mapping records one original-to-alias substitution applied during a run.
type Mapping struct {
	ID              string   `json:"id"`
	Original        string   `json:"original"`
	Masked          string   `json:"masked"`
	Kind            Category `json:"kind"`
	OccurrenceCount int      `json:"occurrenceCount"`

	// auto marks mappings produced by automatic detection during a run.
	auto bool
}

// Options selects which automatic detectors run.
type Options struct {
	DetectURLs   bool `json:"urlDetectionEnabled"`
	DetectEmails bool `json:"emailDetectionEnabled"`
	DetectPhones bool `json:"phoneDetectionEnabled"`
}

// Result is the output of one Anonymize call. It is returned by value and
// never shared.
type Result struct {
	MaskedText string    `json:"maskedText"`
	Mappings   []Mapping `json:"mappings"`
}
