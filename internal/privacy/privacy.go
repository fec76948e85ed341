// Package privacy scrubs network identifiers from text that leaves the
// system through external notification channels.
package privacy

import (
	"regexp"
)

// RedactedPlaceholder replaces every IPv4 literal in outbound text.
const RedactedPlaceholder = "[IP REDACTED]"

// ipv4WithPort matches a dotted-quad IPv4 literal with an optional attached
// port. The port is only consumed when it directly follows the address, so
// timestamps and other colon-separated values are left alone.
var ipv4WithPort = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}(?::\d{1,5})?\b`)

// RedactNetworkLiterals replaces IPv4 addresses, including any attached
// port, with RedactedPlaceholder. It is applied to every subject and body
// before handing a message to an external channel. Internal channels (the
// log sink) receive the unredacted text.
func RedactNetworkLiterals(s string) string {
	if s == "" {
		return s
	}
	return ipv4WithPort.ReplaceAllString(s, RedactedPlaceholder)
}

// ContainsNetworkLiteral reports whether the text still carries an IPv4
// literal. Used as a final guard before external dispatch.
func ContainsNetworkLiteral(s string) bool {
	return ipv4WithPort.MatchString(s)
}
