package llm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/raphaelgruber/docchat/internal/retry"
)

// ErrFatalAPI indicates a provider error that no retry can fix (bad
// credentials, exhausted quota or billing). It always also matches
// retry.ErrCapabilityUnavailable.
var ErrFatalAPI = fmt.Errorf("fatal API error: %w", retry.ErrCapabilityUnavailable)

var errNoChoices = errors.New("no response choices")

var fatalMarkers = []string{
	"credit balance",
	"rate limit",
	"quota",
	"billing",
	"invalid api key",
	"authentication",
	"unauthorized",
	"401",
	"403",
}

func isFatalAPIError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range fatalMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func wrapFatalError(err error) error {
	if isFatalAPIError(err) {
		return fmt.Errorf("%w: %w", ErrFatalAPI, err)
	}
	return err
}
