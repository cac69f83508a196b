package mail

import (
	"fmt"
	netmail "net/mail"
	"strings"

	"github.com/pkg/errors"
)

// Address represents an email address.
type Address struct {
	Name    string // "John Doe"
	Address string // "john@example.com"
}

// nameSpecials are the characters that force a display name into a quoted-string.
const nameSpecials = `()<>[]:;@\,."`

// String renders the address as "Name <address>", or the bare address when no name is known.
// Names holding specials are quoted and non-ASCII names are RFC 2047 encoded.
func (a Address) String() string {
	if a.Name == "" {
		return a.Address
	}
	if strings.ContainsAny(a.Name, nameSpecials) || !isPlainASCII(a.Name) {
		return (&netmail.Address{Name: a.Name, Address: a.Address}).String()
	}
	return fmt.Sprintf("%s <%s>", a.Name, a.Address)
}

func isPlainASCII(s string) bool {
	for _, r := range s {
		if r < ' ' || r > '~' {
			return false
		}
	}
	return true
}

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool {
	return a.Address == ""
}

// JoinAddresses renders addrs and joins them with ", ", preserving order.
func JoinAddresses(addrs []Address) string {
	formatted := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		if addr.IsZero() {
			continue
		}
		formatted = append(formatted, addr.String())
	}
	return strings.Join(formatted, ", ")
}

// ParseAddress parses a single address such as "Jane <jane@example.com>".
func ParseAddress(spec string) (Address, error) {
	parsed, err := netmail.ParseAddress(strings.TrimSpace(spec))
	if err != nil {
		return Address{}, errors.Wrapf(err, "invalid address %q", spec)
	}
	return Address{Name: parsed.Name, Address: parsed.Address}, nil
}

// ParseAddressList parses every spec, each holding one address or a comma separated list.
// Blank specs are skipped.
func ParseAddressList(specs ...string) ([]Address, error) {
	var result []Address
	for _, spec := range specs {
		if strings.TrimSpace(spec) == "" {
			continue
		}
		list, err := netmail.ParseAddressList(spec)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid address list %q", spec)
		}
		for _, parsed := range list {
			result = append(result, Address{Name: parsed.Name, Address: parsed.Address})
		}
	}
	return result, nil
}

// MustParseAddressList is like ParseAddressList but panics on error.
func MustParseAddressList(specs ...string) []Address {
	addrs, err := ParseAddressList(specs...)
	if err != nil {
		panic(err)
	}
	return addrs
}
