package util

import (
	"math/big"

	"github.com/google/uuid"
)

// uidRoot is the UUID derived UID root from PS3.5 B.2.
const uidRoot = "2.25."

// NewUID returns a fresh DICOM UID built from a random UUID.
func NewUID() string {
	u := uuid.New()
	return uidRoot + new(big.Int).SetBytes(u[:]).String()
}
