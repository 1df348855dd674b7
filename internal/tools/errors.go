package tools

import (
	"errors"
	"fmt"

	"github.com/raphaelgruber/docchat/internal/retry"
)

var (
	ErrUnknownTool      = errors.New("unknown tool")
	ErrInvalidArguments = errors.New("invalid tool arguments")
	ErrSearchDisabled   = fmt.Errorf("web search is not configured: %w", retry.ErrCapabilityUnavailable)
)
