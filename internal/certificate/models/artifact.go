package models

import (
	"encoding/base64"
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	id "civreg/pkg/domain"
)

// VerificationURL returns the public verification address for a certificate.
// Pure given its inputs so handlers and the artifact generator agree.
func VerificationURL(baseURL string, certID id.CertificateID) string {
	return strings.TrimRight(baseURL, "/") + "/" + certID.String()
}

// GenerateArtifact renders the verification URL into a QR PNG and returns it
// base64-encoded. The artifact is attached to a certificate on approval and
// is what printed certificates carry for public verification.
func GenerateArtifact(baseURL string, certID id.CertificateID) (string, error) {
	png, err := qrcode.Encode(VerificationURL(baseURL, certID), qrcode.Medium, 256)
	if err != nil {
		return "", fmt.Errorf("encode verification QR: %w", err)
	}
	return base64.StdEncoding.EncodeToString(png), nil
}
