package device

import (
	"strings"

	"github.com/mssola/useragent"
)

const unknownDevice = "Unknown Device"

// ParseUserAgent turns a User-Agent header into a short display label such as
// "Chrome on Linux x86_64" or "Safari on iPhone".
func ParseUserAgent(userAgent string) string {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return unknownDevice
	}
	ua := useragent.New(userAgent)

	browser, _ := ua.Browser()
	browser = strings.TrimSpace(browser)
	if browser == "" {
		browser = "Unknown Browser"
	}

	platform := strings.TrimSpace(ua.OS())
	if ua.Mobile() && ua.Platform() != "" {
		platform = strings.TrimSpace(ua.Platform())
	}
	if platform == "" {
		platform = "Unknown OS"
	}
	return browser + " on " + platform
}

// IsBot reports whether the agent identifies as a crawler.
func IsBot(userAgent string) bool {
	if strings.TrimSpace(userAgent) == "" {
		return false
	}
	return useragent.New(userAgent).Bot()
}
