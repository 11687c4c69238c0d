package servicenow

import (
	"net/url"
	"strings"
)

// Config is the persisted ServiceNow integration configuration.
// Invariant: Enabled implies InstanceURL passed NormalizeInstanceURL.
type Config struct {
	Enabled     bool   `json:"enabled"`
	InstanceURL string `json:"instanceUrl"`
}

// NormalizeInstanceURL validates raw as a bare HTTPS origin and returns the
// canonical origin string. It returns "" unless the input is an absolute
// https URL with no path (beyond "/"), query, fragment, or credentials.
func NormalizeInstanceURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if parsed.Scheme != "https" || parsed.Host == "" {
		return ""
	}
	if parsed.Path != "" && parsed.Path != "/" {
		return ""
	}
	if parsed.RawQuery != "" || parsed.Fragment != "" || parsed.User != nil {
		return ""
	}

	return "https://" + parsed.Host
}
