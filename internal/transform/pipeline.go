package transform

import (
	"go.uber.org/zap"

	"github.com/textveil/textveil/internal/masking"
)

// Output is the result of one pipeline run. RecordSourceText and
// RecordTargetText are what the history sink should persist; RecordSourceText
// is nil when the run had no meaningful source (QR decode).
type Output struct {
	OutputText       string            `json:"outputText"`
	QRImage          []byte            `json:"qrImage,omitempty"`
	RecordSourceText *string           `json:"recordSourceText,omitempty"`
	RecordTargetText string            `json:"recordTargetText"`
	Mappings         []masking.Mapping `json:"mappings,omitempty"`
}

// Pipeline composes an ordered list of presets into a single run.
type Pipeline struct {
	engine *masking.Engine
	logger *zap.Logger
}

// NewPipeline creates a pipeline around a masking engine.
func NewPipeline(engine *masking.Engine, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{engine: engine, logger: logger}
}

// Run executes the presets in list order over source. Two short-circuits are
// checked first: a qrEncode preset anywhere ignores every other preset and
// produces only an image; otherwise a qrDecode preset decodes imageData and
// produces only text. In the regular fold the first failure aborts the run;
// transforms are pure, so nothing needs rolling back.
func (p *Pipeline) Run(source string, presets []Preset, rules []masking.Rule, opts masking.Options, imageData []byte) (*Output, error) {
	if containsPreset(presets, PresetQREncode) {
		img, err := EncodeQR(source)
		if err != nil {
			return nil, err
		}
		src := source
		return &Output{QRImage: img, RecordSourceText: &src}, nil
	}

	if containsPreset(presets, PresetQRDecode) {
		if len(imageData) == 0 {
			return nil, ErrMissingImageData
		}
		decoded, err := DecodeQR(imageData)
		if err != nil {
			return nil, err
		}
		return &Output{OutputText: decoded, RecordTargetText: decoded}, nil
	}

	text := source
	out := &Output{}

	for _, preset := range presets {
		if preset == PresetCustomMapping {
			result := p.engine.Anonymize(text, rules, opts)
			text = result.MaskedText
			out.Mappings = append(out.Mappings, result.Mappings...)
			continue
		}

		kind, ok := preset.builtin()
		if !ok {
			continue
		}

		next, err := kind.Apply(text)
		if err != nil {
			p.logger.Debug("pipeline stage failed",
				zap.String("preset", preset.String()),
				zap.Error(err),
			)
			return nil, err
		}
		text = next
	}

	src := source
	out.OutputText = text
	out.RecordSourceText = &src
	out.RecordTargetText = text
	return out, nil
}

func containsPreset(presets []Preset, want Preset) bool {
	for _, p := range presets {
		if p == want {
			return true
		}
	}
	return false
}
