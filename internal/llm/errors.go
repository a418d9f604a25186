package llm

import (
	"errors"
	"strings"
)

var unavailableSignatures = []string{"404", "not found", "v1beta", "is not supported", "deprecated"}

// IsModelUnavailable reports whether err looks like the model identifier is
// unknown to the provider or its API version.
func IsModelUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrMissingAPIKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range unavailableSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}
