package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
)

// RandomPassword returns a random 8-digit numeric password.
func RandomPassword() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(90000000))
	if err != nil {
		return "", fmt.Errorf("generate password: %w", err)
	}
	return strconv.FormatInt(n.Int64()+10000000, 10), nil
}
