package rfc9111

import (
	"strings"
	"time"
)

// §  5.2.  Cache-Control
// §
// §    Cache-Control   = #cache-directive
// §
// §    cache-directive = token [ "=" ( token / quoted-string ) ]
// §
// §  Cache directives are identified by a token, to be compared
// §  case-insensitively, and have an optional argument that can use both
// §  token and quoted-string syntax.

// CacheControl holds the directives of one or more Cache-Control field
// lines. Names are lower-cased and quoted arguments unquoted.
type CacheControl struct {
	directives map[string]string
}

// ParseCacheControl parses Cache-Control field lines. The first occurrence
// of a repeated directive wins.
func ParseCacheControl(lines []string) CacheControl {
	cc := CacheControl{directives: make(map[string]string)}
	for _, line := range lines {
		p := directiveParser{s: line}
		for {
			name, arg, more := p.next()
			if name != "" {
				if _, seen := cc.directives[name]; !seen {
					cc.directives[name] = arg
				}
			}
			if !more {
				break
			}
		}
	}
	return cc
}

type directiveParser struct {
	s string
	i int
}

// next reads one list element. more is false once the line is consumed.
func (p *directiveParser) next() (name, arg string, more bool) {
	p.skip(" \t,")
	if p.i >= len(p.s) {
		return "", "", false
	}
	start := p.i
	for p.i < len(p.s) && !strings.ContainsRune("=,", rune(p.s[p.i])) {
		p.i++
	}
	name = strings.ToLower(strings.TrimSpace(p.s[start:p.i]))
	if p.i < len(p.s) && p.s[p.i] == '=' {
		p.i++
		p.skip(" \t")
		arg = p.argument()
	}
	return name, arg, p.i < len(p.s)
}

func (p *directiveParser) argument() string {
	if p.i < len(p.s) && p.s[p.i] == '"' {
		var b strings.Builder
		for p.i++; p.i < len(p.s); p.i++ {
			switch c := p.s[p.i]; c {
			case '\\':
				if p.i+1 < len(p.s) {
					p.i++
					b.WriteByte(p.s[p.i])
				}
			case '"':
				p.i++
				return b.String()
			default:
				b.WriteByte(c)
			}
		}
		// unterminated, take what we have
		return b.String()
	}
	start := p.i
	for p.i < len(p.s) && p.s[p.i] != ',' {
		p.i++
	}
	return strings.TrimSpace(p.s[start:p.i])
}

func (p *directiveParser) skip(chars string) {
	for p.i < len(p.s) && strings.IndexByte(chars, p.s[p.i]) >= 0 {
		p.i++
	}
}

// Get returns the argument of a directive and whether it is present.
func (c CacheControl) Get(directive string) (string, bool) {
	arg, ok := c.directives[directive]
	return arg, ok
}

func (c CacheControl) HasDirective(directive string) bool {
	_, ok := c.directives[directive]
	return ok
}

// MaxAge returns the max-age directive (§5.2.2.1).
func (c CacheControl) MaxAge() (time.Duration, bool) {
	return c.getDeltaSeconds("max-age")
}

// §  5.2.2.2.  must-revalidate
// §
// §     [...] once the response has become stale, a cache MUST NOT reuse that
// §     response to satisfy another request until it has been successfully
// §     validated by the origin [...]
//
// proxy-revalidate is honored too; a client cache gains nothing by
// serving stale content the origin asked intermediaries not to.
func (c CacheControl) MustRevalidate() bool {
	return c.HasDirective("must-revalidate") || c.HasDirective("proxy-revalidate")
}

// NoCache reports the no-cache directive, qualified or not.
func (c CacheControl) NoCache() bool {
	return c.HasDirective("no-cache")
}

// NoStore reports the no-store directive (§5.2.2.5).
func (c CacheControl) NoStore() bool {
	return c.HasDirective("no-store")
}

// SMaxAge returns the s-maxage directive (§5.2.2.10).
func (c CacheControl) SMaxAge() (time.Duration, bool) {
	return c.getDeltaSeconds("s-maxage")
}

// StaleWhileRevalidate returns the RFC 5861 extension directive.
func (c CacheControl) StaleWhileRevalidate() (time.Duration, bool) {
	return c.getDeltaSeconds("stale-while-revalidate")
}

// getDeltaSeconds reports a directive argument as a duration. A directive
// without a valid delta-seconds argument counts as absent.
func (c CacheControl) getDeltaSeconds(directive string) (time.Duration, bool) {
	arg, ok := c.Get(directive)
	if !ok {
		return 0, false
	}
	return deltaSeconds(arg)
}
