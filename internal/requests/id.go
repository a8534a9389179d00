package requests

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/triarqhealth/iam-portal/params"
)

var requestIDSpace = big.NewInt(999999)

// generateRequestID draws a random id of the form REQ-NNNNNN. Ids are short
// so collisions are possible; callers retry against the primary key on
// duplicate.
func generateRequestID() (string, error) {
	n, err := rand.Int(rand.Reader, requestIDSpace)
	if err != nil {
		return "", fmt.Errorf("failed to generate request id: %w", err)
	}
	return fmt.Sprintf("%s%0*d", params.RequestIDPrefix, params.RequestIDDigits, n.Int64()+1), nil
}
