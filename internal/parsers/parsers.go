// Package parsers imports all parser packages to trigger their init() registration.
// Import this package for side effects only.
package parsers

import (
	// Import all parser packages to register them with the registry.
	_ "swim_feed/internal/parsers/apds"
	_ "swim_feed/internal/parsers/ismc"
	_ "swim_feed/internal/parsers/sfdps"
	_ "swim_feed/internal/parsers/smes"
	_ "swim_feed/internal/parsers/tais"
	_ "swim_feed/internal/parsers/tdes"
)
