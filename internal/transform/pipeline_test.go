package transform

import (
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/textveil/textveil/internal/masking"
)

func newTestPipeline() *Pipeline {
	return NewPipeline(masking.NewEngine(zap.NewNop()), zap.NewNop())
}

func TestPipelineRun(t *testing.T) {
	p := newTestPipeline()

	t.Run("FoldInListOrder", func(t *testing.T) {
		out, err := p.Run("Hello World", []Preset{PresetLowercase, PresetBase64Encode}, nil, masking.Options{}, nil)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		// base64("hello world"); lowercase must run first.
		if out.OutputText != "aGVsbG8gd29ybGQ=" {
			t.Errorf("Expected 'aGVsbG8gd29ybGQ=', got '%s'", out.OutputText)
		}
		if out.RecordSourceText == nil || *out.RecordSourceText != "Hello World" {
			t.Errorf("Record source should be the original input, got %v", out.RecordSourceText)
		}
		if out.RecordTargetText != out.OutputText {
			t.Error("Record target should equal the output text")
		}
	})

	t.Run("CustomMappingStage", func(t *testing.T) {
		rules := []masking.Rule{{Original: "Acme", Masked: "Client A", Kind: masking.CategoryCompany, Enabled: true}}
		out, err := p.Run("Acme wrote to a@x.com", []Preset{PresetCustomMapping}, rules, masking.Options{DetectEmails: true}, nil)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if out.OutputText != "Client A wrote to Email(1)" {
			t.Errorf("Unexpected output: %s", out.OutputText)
		}
		if len(out.Mappings) != 2 {
			t.Errorf("Expected 2 mappings, got %d", len(out.Mappings))
		}
	})

	t.Run("FirstFailureAborts", func(t *testing.T) {
		_, err := p.Run("%%%", []Preset{PresetBase64Decode, PresetUppercase}, nil, masking.Options{}, nil)
		if !errors.Is(err, ErrInvalidBase64) {
			t.Errorf("Expected ErrInvalidBase64, got %v", err)
		}
	})

	t.Run("EmptyPresetsIsIdentity", func(t *testing.T) {
		out, err := p.Run("unchanged", nil, nil, masking.Options{}, nil)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if out.OutputText != "unchanged" {
			t.Errorf("Expected identity, got '%s'", out.OutputText)
		}
	})
}

func TestPipelineQRShortCircuits(t *testing.T) {
	p := newTestPipeline()

	t.Run("QREncodeIgnoresOtherPresets", func(t *testing.T) {
		out, err := p.Run("payload", []Preset{PresetUppercase, PresetQREncode, PresetBase64Encode}, nil, masking.Options{}, nil)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if len(out.QRImage) == 0 {
			t.Fatal("Expected QR image bytes")
		}
		if out.OutputText != "" {
			t.Errorf("QR encode run should produce no output text, got '%s'", out.OutputText)
		}
		if out.RecordSourceText == nil || *out.RecordSourceText != "payload" {
			t.Errorf("Record source should be the source text, got %v", out.RecordSourceText)
		}
		if out.RecordTargetText != "" {
			t.Errorf("Record target should be empty, got '%s'", out.RecordTargetText)
		}
	})

	t.Run("QRDecodeRequiresImage", func(t *testing.T) {
		_, err := p.Run("ignored", []Preset{PresetQRDecode}, nil, masking.Options{}, nil)
		if !errors.Is(err, ErrMissingImageData) {
			t.Errorf("Expected ErrMissingImageData, got %v", err)
		}
	})

	t.Run("QRRoundTrip", func(t *testing.T) {
		encoded, err := p.Run("round trip text", []Preset{PresetQREncode}, nil, masking.Options{}, nil)
		if err != nil {
			t.Fatalf("Encode run failed: %v", err)
		}

		decoded, err := p.Run("", []Preset{PresetQRDecode}, nil, masking.Options{}, encoded.QRImage)
		if err != nil {
			t.Fatalf("Decode run failed: %v", err)
		}
		if decoded.OutputText != "round trip text" {
			t.Errorf("Expected 'round trip text', got '%s'", decoded.OutputText)
		}
		if decoded.RecordSourceText != nil {
			t.Error("QR decode run should carry no record source")
		}
		if decoded.RecordTargetText != "round trip text" {
			t.Errorf("Record target should be the decoded text, got '%s'", decoded.RecordTargetText)
		}
	})

	t.Run("QRDecodeGarbage", func(t *testing.T) {
		_, err := p.Run("", []Preset{PresetQRDecode}, nil, masking.Options{}, []byte("not an image"))
		if !errors.Is(err, ErrQRNotDetected) {
			t.Errorf("Expected ErrQRNotDetected, got %v", err)
		}
	})
}
