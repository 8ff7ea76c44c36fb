// Package share produces the forms a generated report leaves the service in:
// a WhatsApp share link, a printable PDF and a spreadsheet.
package share

import (
	"net/url"
	"strings"
)

const whatsAppBase = "https://wa.me/?text="

// encodeURIComponent leaves these unescaped; url.QueryEscape does not.
var componentFixups = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// EncodeComponent percent-encodes s the way browsers encode a URI component.
func EncodeComponent(s string) string {
	return componentFixups.Replace(url.QueryEscape(s))
}

// WhatsAppURL returns the link that opens WhatsApp with text prefilled.
func WhatsAppURL(text string) string {
	return whatsAppBase + EncodeComponent(text)
}
