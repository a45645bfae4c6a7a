// Package cookies provides the durable cookie jar shared by all renders.
package cookies

import (
	"github.com/go-rod/rod/lib/proto"
)

// SameSite values carried on a cookie record.
const (
	SameSiteStrict = "Strict"
	SameSiteLax    = "Lax"
	SameSiteNone   = "None"
)

// Record is a single persisted cookie.
type Record struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain,omitempty"`
	Path     string  `json:"path,omitempty"`
	Expires  float64 `json:"expires,omitempty"` // epoch seconds, 0 = session cookie
	HTTPOnly bool    `json:"httpOnly,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	SameSite string  `json:"sameSite,omitempty"`
}

// Key identifies a record for merge purposes. Two cookies with the same name
// on different domains are distinct records.
type Key struct {
	Name   string
	Domain string
}

// Identity returns the (name, domain) merge key for the record.
func (r Record) Identity() Key {
	return Key{Name: r.Name, Domain: r.Domain}
}

// FromNetworkCookies converts cookies harvested from a browser session into
// records.
func FromNetworkCookies(in []*proto.NetworkCookie) []Record {
	out := make([]Record, 0, len(in))
	for _, c := range in {
		if c == nil {
			continue
		}
		r := Record{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: sameSiteString(c.SameSite),
		}
		if c.Expires > 0 {
			r.Expires = float64(c.Expires)
		}
		out = append(out, r)
	}
	return out
}

// ToCookieParams converts records into browser set-cookie parameters.
func ToCookieParams(in []Record) []*proto.NetworkCookieParam {
	out := make([]*proto.NetworkCookieParam, 0, len(in))
	for _, r := range in {
		p := &proto.NetworkCookieParam{
			Name:     r.Name,
			Value:    r.Value,
			Domain:   r.Domain,
			Path:     r.Path,
			HTTPOnly: r.HTTPOnly,
			Secure:   r.Secure,
			SameSite: sameSiteProto(r.SameSite),
		}
		if r.Expires > 0 {
			p.Expires = proto.TimeSinceEpoch(r.Expires)
		}
		out = append(out, p)
	}
	return out
}

func sameSiteString(s proto.NetworkCookieSameSite) string {
	switch s {
	case proto.NetworkCookieSameSiteStrict:
		return SameSiteStrict
	case proto.NetworkCookieSameSiteLax:
		return SameSiteLax
	case proto.NetworkCookieSameSiteNone:
		return SameSiteNone
	default:
		return ""
	}
}

func sameSiteProto(s string) proto.NetworkCookieSameSite {
	switch s {
	case SameSiteStrict:
		return proto.NetworkCookieSameSiteStrict
	case SameSiteLax:
		return proto.NetworkCookieSameSiteLax
	case SameSiteNone:
		return proto.NetworkCookieSameSiteNone
	default:
		return ""
	}
}
