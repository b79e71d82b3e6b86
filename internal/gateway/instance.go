package gateway

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Instance is a logical outbound channel, each backed by its own gateway
// credential.
type Instance string

const (
	InstancePrincipal Instance = "Principal"
	InstanceLeads     Instance = "Leads"
	InstanceCobranca  Instance = "Cobranca"
)

// Credentials maps each instance to its gateway API key.
type Credentials map[Instance]string

var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// ParseInstance resolves a channel name to one of the fixed instances.
// Accented spellings ("Cobrança") fold to their plain form; anything
// unrecognized resolves to Principal.
func ParseInstance(name string) Instance {
	folded, _, err := transform.String(foldDiacritics, strings.TrimSpace(name))
	if err != nil {
		return InstancePrincipal
	}
	switch {
	case strings.EqualFold(folded, string(InstanceLeads)):
		return InstanceLeads
	case strings.EqualFold(folded, string(InstanceCobranca)):
		return InstanceCobranca
	default:
		return InstancePrincipal
	}
}
