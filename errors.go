package cobalt

import (
	"errors"

	"github.com/Winder2006/COBALT/registry"
)

// Registry errors surface under the root package so callers need not
// import the subpackage to classify failures.
var (
	// ErrSiteNotFound is returned when a site ID has no matching registry record.
	ErrSiteNotFound = registry.ErrNotFound

	// ErrRegistryUnavailable is returned on network or timeout failures
	// talking to the registry. No automatic retry is performed.
	ErrRegistryUnavailable = registry.ErrUnavailable

	// ErrInvalidSiteID is returned when a site ID or document reference
	// cannot be parsed.
	ErrInvalidSiteID = registry.ErrInvalidID
)

var (
	// ErrNoQuestion is returned by Chat when the question is empty.
	ErrNoQuestion = errors.New("cobalt: question is required")

	// ErrNoText is returned by Summarize when there is no combined text.
	ErrNoText = errors.New("cobalt: no document text to summarize")

	// ErrAIUnavailable is returned when the language-model endpoint fails.
	// It is a soft failure: extraction and risk results computed in the
	// same request remain valid.
	ErrAIUnavailable = errors.New("cobalt: AI provider unavailable")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("cobalt: invalid configuration")
)
