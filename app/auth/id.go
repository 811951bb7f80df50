package auth

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	userIDPrefix  = "usr"
	tokenIDPrefix = "tok"
)

// generateID returns prefix-nanoid, e.g. "usr-V1StGXR8_Z5jdHi6B-myT".
func generateID(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}
