package dispatch

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownAccount is returned when no participant owns an account number.
var ErrUnknownAccount = errors.New("no participant owns this account")

// Directory resolves which participant service owns an account. It is an
// injected capability, not a process-wide registry; service discovery proper
// lives outside the orchestrator.
type Directory interface {
	ResolveParticipant(accountNumber string) (string, error)
}

// PrefixDirectory routes by account-number prefix. Longer prefixes win when
// several match.
type PrefixDirectory struct {
	prefixes []string
	routes   map[string]string
}

func NewPrefixDirectory(routes map[string]string) *PrefixDirectory {
	prefixes := make([]string, 0, len(routes))
	for p := range routes {
		prefixes = append(prefixes, p)
	}
	sort.Slice(prefixes, func(i, j int) bool { return len(prefixes[i]) > len(prefixes[j]) })
	return &PrefixDirectory{prefixes: prefixes, routes: routes}
}

func (d *PrefixDirectory) ResolveParticipant(accountNumber string) (string, error) {
	for _, prefix := range d.prefixes {
		if len(accountNumber) >= len(prefix) && accountNumber[:len(prefix)] == prefix {
			return d.routes[prefix], nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownAccount, accountNumber)
}
