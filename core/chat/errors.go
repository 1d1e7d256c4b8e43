package chat

import (
	"errors"
	"fmt"
)

// ErrUnsupportedModel is returned when no registration covers a requested
// model and no default provider is configured.
var ErrUnsupportedModel = errors.New("unsupported model")

// ConfigurationError reports a provider that is known to the registry but was
// not usable at startup, typically because its credential is missing. Only the
// named provider is affected; routing to other providers keeps working.
type ConfigurationError struct {
	Provider string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("provider %s is not configured: %s", e.Provider, e.Reason)
}
