package certificate

import (
	"fmt"
	"regexp"
	"time"

	"github.com/certforge/certforge/internal/util"
)

// IDPattern is the stable certificate identifier format: issuer prefix,
// issue year, six hex characters of randomness. Changing it would break
// existing verification links.
var IDPattern = regexp.MustCompile(`^[A-Z]{2,4}-\d{4}-[0-9A-F]{6}$`)

var idPrefixPattern = regexp.MustCompile(`^[A-Z]{2,4}$`)

// NewID mints a certificate identifier of the form <PREFIX>-<YEAR>-<RANDOM6HEX>.
// It never checks the store for collisions; callers retry with a fresh ID when
// the store rejects a duplicate key.
func NewID(prefix string, now time.Time) (string, error) {
	if !idPrefixPattern.MatchString(prefix) {
		return "", validationErrorf("ID prefix %q must be 2-4 uppercase letters", prefix)
	}
	suffix, err := util.RandomHexUpper(3)
	if err != nil {
		return "", fmt.Errorf("minting certificate ID: %w", err)
	}
	return fmt.Sprintf("%s-%d-%s", prefix, now.Year(), suffix), nil
}

// ValidID reports whether id matches the certificate identifier format.
func ValidID(id string) bool {
	return IDPattern.MatchString(id)
}
