package transform

import "fmt"

// Preset selects one pipeline stage: a built-in transform or the
// custom-mapping stage backed by the masking engine. The set is closed;
// the pipeline matches exhaustively.
type Preset int

const (
	PresetCustomMapping Preset = iota
	PresetFullwidthToHalfwidth
	PresetHalfwidthToFullwidth
	PresetLowercase
	PresetUppercase
	PresetBase64Encode
	PresetBase64Decode
	PresetURLEncode
	PresetURLDecode
	PresetQREncode
	PresetQRDecode
)

var presetKinds = map[Preset]Kind{
	PresetFullwidthToHalfwidth: FullwidthToHalfwidth,
	PresetHalfwidthToFullwidth: HalfwidthToFullwidth,
	PresetLowercase:            Lowercase,
	PresetUppercase:            Uppercase,
	PresetBase64Encode:         Base64Encode,
	PresetBase64Decode:         Base64Decode,
	PresetURLEncode:            URLEncode,
	PresetURLDecode:            URLDecode,
	PresetQREncode:             QREncode,
	PresetQRDecode:             QRDecode,
}

// builtin returns the transform behind a built-in preset, or false for the
// custom-mapping preset.
func (p Preset) builtin() (Kind, bool) {
	kind, ok := presetKinds[p]
	return kind, ok
}

func (p Preset) String() string {
	if p == PresetCustomMapping {
		return "customMapping"
	}
	if kind, ok := presetKinds[p]; ok {
		return kind.String()
	}
	return "unknown"
}

// ParsePreset converts a preset name back to its value.
func ParsePreset(name string) (Preset, error) {
	if name == "customMapping" {
		return PresetCustomMapping, nil
	}
	for preset, kind := range presetKinds {
		if kind.String() == name {
			return preset, nil
		}
	}
	return 0, fmt.Errorf("unknown preset: %s", name)
}

// MarshalText implements encoding.TextMarshaler.
func (p Preset) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Preset) UnmarshalText(data []byte) error {
	parsed, err := ParsePreset(string(data))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Group is a named mutually-exclusive preset set. Exclusivity is enforced by
// the selection layer; the pipeline applies whatever ordered list it is
// given verbatim.
type Group struct {
	Name    string   `json:"name"`
	Presets []Preset `json:"presets"`
}

// Groups lists the built-in preset groups.
func Groups() []Group {
	return []Group{
		{Name: "mapping", Presets: []Preset{PresetCustomMapping}},
		{Name: "case", Presets: []Preset{PresetLowercase, PresetUppercase}},
		{Name: "width", Presets: []Preset{PresetFullwidthToHalfwidth, PresetHalfwidthToFullwidth}},
		{Name: "base64", Presets: []Preset{PresetBase64Encode, PresetBase64Decode}},
		{Name: "url", Presets: []Preset{PresetURLEncode, PresetURLDecode}},
		{Name: "qr", Presets: []Preset{PresetQREncode, PresetQRDecode}},
	}
}
