// Package transform holds the closed set of single-purpose text transforms
// and the pipeline that composes them with the masking engine.
package transform

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/text/width"
)

// Typed failure kinds. Transform failures are returned as values so pipeline
// composition short-circuits deterministically.
var (
	ErrInvalidBase64    = errors.New("invalid base64 input")
	ErrInvalidURL       = errors.New("invalid percent-encoded input")
	ErrQRNotDetected    = errors.New("no QR code detected")
	ErrMissingImageData = errors.New("image data required for QR decode")
)

// Kind identifies one built-in text transform.
type Kind int

const (
	FullwidthToHalfwidth Kind = iota
	HalfwidthToFullwidth
	Lowercase
	Uppercase
	Base64Encode
	Base64Decode
	URLEncode
	URLDecode
	QREncode
	QRDecode
)

var kindNames = map[Kind]string{
	FullwidthToHalfwidth: "fullwidthToHalfwidth",
	HalfwidthToFullwidth: "halfwidthToFullwidth",
	Lowercase:            "lowercase",
	Uppercase:            "uppercase",
	Base64Encode:         "base64Encode",
	Base64Decode:         "base64Decode",
	URLEncode:            "urlEncode",
	URLDecode:            "urlDecode",
	QREncode:             "qrEncode",
	QRDecode:             "qrDecode",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Apply runs a text-to-text transform. The QR kinds are image-valued and
// handled by the pipeline short-circuits, not here.
func (k Kind) Apply(text string) (string, error) {
	switch k {
	case FullwidthToHalfwidth:
		// Narrows fullwidth alphanumerics, digits, spaces and katakana.
		return width.Narrow.String(text), nil
	case HalfwidthToFullwidth:
		return width.Widen.String(text), nil
	case Lowercase:
		return strings.ToLower(text), nil
	case Uppercase:
		return strings.ToUpper(text), nil
	case Base64Encode:
		return base64.StdEncoding.EncodeToString([]byte(text)), nil
	case Base64Decode:
		decoded, err := base64.StdEncoding.DecodeString(text)
		if err != nil {
			return "", ErrInvalidBase64
		}
		return string(decoded), nil
	case URLEncode:
		return url.QueryEscape(text), nil
	case URLDecode:
		decoded, err := url.QueryUnescape(text)
		if err != nil {
			return "", ErrInvalidURL
		}
		return decoded, nil
	case QREncode, QRDecode:
		return "", fmt.Errorf("%s is image-valued and must run through the pipeline", k)
	}
	return "", fmt.Errorf("unknown transform: %d", k)
}
