package harvest

import (
	"sort"
	"strings"
)

// sessionNameFragments are the name fragments that mark a key as a likely
// session token, tested as case-insensitive substrings. Containment
// rather than equality: real-world key names decorate these fragments
// ("XSRF-TOKEN", "_session_id"), and a false positive is acceptable
// because the single returned candidate is reviewed downstream.
var sessionNameFragments = []string{
	"session", "sessionid", "session_id", "sessiontoken", "session_token",
	"phpsessid", "jsessionid", "aspsessionid", "sid", "connect.sid",
	"auth_token", "authtoken", "authorization", "x-auth-token",
}

// Identifier selects the most likely session token from a snapshot.
type Identifier struct{}

// NewIdentifier creates an identifier with the built-in fragment list.
func NewIdentifier() *Identifier {
	return &Identifier{}
}

// Identify searches the snapshot surfaces in fixed priority order:
// cookies, then localStorage, then sessionStorage. Meta tags and script
// variables are collected but never searched here; those surfaces are too
// noisy for automatic name matching and are left to manual review of the
// snapshot dump. Within a surface, keys are visited in sorted order so
// first-match-wins is deterministic. Returns nil when nothing matches,
// which is a normal outcome, not an error.
func (id *Identifier) Identify(snap *Snapshot) *Candidate {
	for _, name := range sortedKeys(snap.Cookies) {
		if matchesSessionName(name) {
			cookie := snap.Cookies[name]
			return &Candidate{
				Source: SourceCookie,
				Name:   name,
				Value:  cookie.Value,
				Cookie: &cookie,
			}
		}
	}

	for _, key := range sortedKeys(snap.LocalStorage) {
		if matchesSessionName(key) {
			return &Candidate{
				Source: SourceLocalStorage,
				Name:   key,
				Value:  snap.LocalStorage[key],
			}
		}
	}

	for _, key := range sortedKeys(snap.SessionStorage) {
		if matchesSessionName(key) {
			return &Candidate{
				Source: SourceSessionStorage,
				Name:   key,
				Value:  snap.SessionStorage[key],
			}
		}
	}

	return nil
}

func matchesSessionName(name string) bool {
	lower := strings.ToLower(name)
	for _, fragment := range sessionNameFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
