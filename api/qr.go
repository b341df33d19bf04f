package api

import (
	"encoding/base64"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

const qrImageSize = 256

// qrDataURI renders the provisioning URL as a PNG data URI suitable for an
// <img> tag, so the browser never needs a separate image request during
// enrollment.
func qrDataURI(provisioningURL string) (string, error) {
	png, err := qrcode.Encode(provisioningURL, qrcode.Medium, qrImageSize)
	if err != nil {
		return "", fmt.Errorf("encoding provisioning qr code: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
