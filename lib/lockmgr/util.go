package lockmgr

import (
	"crypto/rand"
)

const (
	ownerIDSize = 32 // 256 bit
)

// generateOwnerID creates a new random owner ID
func generateOwnerID() ([]byte, error) {
	randomBytes := make([]byte, ownerIDSize)
	_, err := rand.Read(randomBytes)
	return randomBytes, err
}
