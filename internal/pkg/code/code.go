package code

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
)

// New returns a one-time verification code: 6 decimal digits drawn
// uniformly from 100000–999999.
func New() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return strconv.FormatInt(100000+n.Int64(), 10), nil
}
