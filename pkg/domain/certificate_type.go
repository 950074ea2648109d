package domain

import dErrors "civreg/pkg/domain-errors"

// CertificateType is the closed set of vital-record certificate kinds.
type CertificateType string

const (
	CertificateTypeBirth    CertificateType = "BIRTH"
	CertificateTypeDeath    CertificateType = "DEATH"
	CertificateTypeMarriage CertificateType = "MARRIAGE"
	CertificateTypeDivorce  CertificateType = "DIVORCE"
	CertificateTypeAdoption CertificateType = "ADOPTION"
)

var validCertificateTypes = map[CertificateType]bool{
	CertificateTypeBirth:    true,
	CertificateTypeDeath:    true,
	CertificateTypeMarriage: true,
	CertificateTypeDivorce:  true,
	CertificateTypeAdoption: true,
}

// ParseCertificateType constructs a CertificateType from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParseCertificateType(s string) (CertificateType, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "certificate type cannot be empty")
	}
	t := CertificateType(s)
	if !t.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid certificate type")
	}
	return t, nil
}

// IsValid checks if the type is one of the supported enum values.
func (t CertificateType) IsValid() bool {
	return validCertificateTypes[t]
}

func (t CertificateType) String() string {
	return string(t)
}
