package transform

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/makiuchi-d/gozxing"
	zxqrcode "github.com/makiuchi-d/gozxing/qrcode"
	qrcode "github.com/skip2/go-qrcode"
)

const qrImageSize = 256

// EncodeQR renders text as a QR code and returns the PNG bytes. The pixel
// rendering is delegated entirely to the imaging library; this package only
// fixes the contract.
func EncodeQR(text string) ([]byte, error) {
	png, err := qrcode.Encode(text, qrcode.Medium, qrImageSize)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}

// DecodeQR extracts the text payload from a PNG or JPEG image containing a
// QR code. Any failure to locate a code reports ErrQRNotDetected.
func DecodeQR(data []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", ErrQRNotDetected
	}

	bitmap, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", ErrQRNotDetected
	}

	result, err := zxqrcode.NewQRCodeReader().Decode(bitmap, nil)
	if err != nil {
		return "", ErrQRNotDetected
	}

	return result.GetText(), nil
}
