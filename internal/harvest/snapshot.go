// Package harvest implements the extraction-and-identification engine:
// it pulls authentication artifacts out of a logged-in browser session
// and picks the most likely session token.
package harvest

import (
	"time"

	"github.com/chromedp/cdproto/network"
)

// Cookie is the normalized form of a browser cookie.
type Cookie struct {
	Value    string     `json:"value"`
	Domain   string     `json:"domain"`
	Path     string     `json:"path"`
	Expires  *time.Time `json:"expires,omitempty"`
	HTTPOnly bool       `json:"httpOnly"`
	Secure   bool       `json:"secure"`
}

// Snapshot holds everything extracted from a single login session.
// Every field is always a non-nil map: a storage surface that failed or
// was empty degrades to an empty map, so consumers never branch on
// presence. A Snapshot is not modified after construction.
type Snapshot struct {
	Cookies         map[string]Cookie `json:"cookies"`
	LocalStorage    map[string]string `json:"localStorage"`
	SessionStorage  map[string]string `json:"sessionStorage"`
	MetaTags        map[string]string `json:"metaTags"`
	ScriptVariables map[string]string `json:"scriptVariables"`
}

// NewSnapshot returns a Snapshot with all surfaces initialized empty.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Cookies:         map[string]Cookie{},
		LocalStorage:    map[string]string{},
		SessionStorage:  map[string]string{},
		MetaTags:        map[string]string{},
		ScriptVariables: map[string]string{},
	}
}

// SourceKind names the storage surface a candidate was found in.
type SourceKind string

const (
	SourceCookie         SourceKind = "cookie"
	SourceLocalStorage   SourceKind = "localStorage"
	SourceSessionStorage SourceKind = "sessionStorage"
)

// Candidate is the (surface, name, value) triple selected as the most
// likely session token. Cookie is set only for cookie candidates and
// carries the full source record.
type Candidate struct {
	Source SourceKind `json:"source"`
	Name   string     `json:"name"`
	Value  string     `json:"value"`
	Cookie *Cookie    `json:"cookie,omitempty"`
}

// normalizeCookie converts a CDP cookie to the snapshot's cookie shape.
// CDP reports Expires as seconds since epoch, negative for session cookies.
func normalizeCookie(c *network.Cookie) Cookie {
	out := Cookie{
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		HTTPOnly: c.HTTPOnly,
		Secure:   c.Secure,
	}

	if c.Expires > 0 {
		t := time.Unix(int64(c.Expires), 0).UTC()
		out.Expires = &t
	}

	return out
}
