// Package version implements semantic-version bumping and requirement
// rewriting for manifest edits.
package version

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// InvalidReqError reports a version requirement that could not be parsed.
type InvalidReqError struct {
	Req string
}

func (e *InvalidReqError) Error() string {
	return fmt.Sprintf("invalid version requirement `%s`", e.Req)
}

// comparator is a single predicate of a requirement, e.g. `>=0.4` or `1.2`.
// A bare comparator (no operator) carries caret semantics.
type comparator struct {
	op       string // "", "=", ">", ">=", "<", "<=", "~", "^"
	major    uint64
	minor    *uint64
	patch    *uint64
	pre      string
	star     bool // bare `*`, admits everything
	wildcard bool // `1.*`, `1.2.*`
}

// Req is a parsed version requirement: one or more comma-separated
// comparators that must all hold.
type Req struct {
	raw  string
	cmps []comparator
	seps []string // separators between comparators, as written
}

// ParseReq parses a version requirement string.
func ParseReq(raw string) (*Req, error) {
	req := &Req{raw: raw}
	rest := raw
	for {
		idx := strings.IndexByte(rest, ',')
		var part string
		if idx < 0 {
			part = rest
		} else {
			part = rest[:idx]
		}
		cmp, err := parseComparator(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		req.cmps = append(req.cmps, cmp)
		if idx < 0 {
			break
		}
		// Keep the separator spelling so rewrites preserve it.
		sep := ","
		rest = rest[idx+1:]
		for len(rest) > 0 && (rest[0] == ' ' || rest[0] == '\t') {
			sep += string(rest[0])
			rest = rest[1:]
		}
		req.seps = append(req.seps, sep)
	}
	return req, nil
}

func parseComparator(s string) (comparator, error) {
	var c comparator
	orig := s
	for _, op := range []string{">=", "<=", ">", "<", "=", "~", "^"} {
		if strings.HasPrefix(s, op) {
			c.op = op
			s = strings.TrimSpace(s[len(op):])
			break
		}
	}
	if s == "*" {
		if c.op != "" {
			return c, &InvalidReqError{Req: orig}
		}
		c.star = true
		return c, nil
	}
	if i := strings.IndexByte(s, '+'); i >= 0 {
		s = s[:i]
	}
	if i := strings.IndexByte(s, '-'); i >= 0 {
		c.pre = s[i+1:]
		s = s[:i]
	}
	parts := strings.Split(s, ".")
	if len(parts) == 0 || len(parts) > 3 {
		return c, &InvalidReqError{Req: orig}
	}
	for i, part := range parts {
		if part == "*" || part == "x" || part == "X" {
			if i == 0 || c.pre != "" {
				return c, &InvalidReqError{Req: orig}
			}
			c.wildcard = true
			break
		}
		n, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return c, &InvalidReqError{Req: orig}
		}
		switch i {
		case 0:
			c.major = n
		case 1:
			v := n
			c.minor = &v
		case 2:
			v := n
			c.patch = &v
		}
	}
	return c, nil
}

// String renders the requirement as written (or as rewritten).
func (r *Req) String() string {
	var sb strings.Builder
	for i, c := range r.cmps {
		if i > 0 {
			if i-1 < len(r.seps) {
				sb.WriteString(r.seps[i-1])
			} else {
				sb.WriteString(", ")
			}
		}
		sb.WriteString(c.String())
	}
	return sb.String()
}

func (c comparator) String() string {
	var sb strings.Builder
	sb.WriteString(c.op)
	if c.star {
		sb.WriteString("*")
		return sb.String()
	}
	sb.WriteString(strconv.FormatUint(c.major, 10))
	if c.minor != nil {
		sb.WriteString(".")
		sb.WriteString(strconv.FormatUint(*c.minor, 10))
		if c.patch != nil {
			sb.WriteString(".")
			sb.WriteString(strconv.FormatUint(*c.patch, 10))
		} else if c.wildcard {
			sb.WriteString(".*")
		}
	} else if c.wildcard {
		sb.WriteString(".*")
	}
	if c.pre != "" {
		sb.WriteString("-")
		sb.WriteString(c.pre)
	}
	return sb.String()
}

// constraint translates a comparator to Masterminds syntax with Cargo
// semantics: a bare requirement is a caret requirement.
func (c comparator) constraint() string {
	if c.star {
		return "*"
	}
	if c.wildcard {
		return c.String()
	}
	op := c.op
	if op == "" {
		op = "^"
	}
	return op + strings.TrimPrefix(c.String(), c.op)
}

// Matches reports whether the requirement admits v.
func (r *Req) Matches(v *semver.Version) bool {
	parts := make([]string, len(r.cmps))
	for i, c := range r.cmps {
		parts[i] = c.constraint()
	}
	cons, err := semver.NewConstraint(strings.Join(parts, ", "))
	if err != nil {
		return false
	}
	return cons.Check(v)
}

func (c comparator) matches(v *semver.Version) bool {
	cons, err := semver.NewConstraint(c.constraint())
	if err != nil {
		return false
	}
	return cons.Check(v)
}

// UpgradeRequirement rewrites req so it admits newVersion, relaxing only the
// comparators that exclude it and keeping each comparator's precision. It
// returns "" when req already admits newVersion.
func UpgradeRequirement(req string, newVersion *semver.Version) (string, error) {
	r, err := ParseReq(req)
	if err != nil {
		return "", err
	}
	if r.Matches(newVersion) {
		return "", nil
	}
	for i := range r.cmps {
		if r.cmps[i].matches(newVersion) {
			continue
		}
		r.cmps[i].assign(newVersion)
	}
	return r.String(), nil
}

// assign rewrites the comparator around version at its existing precision.
func (c *comparator) assign(v *semver.Version) {
	if c.star {
		return
	}
	if v.Prerelease() != "" {
		// Admitting a pre-release needs the full version spelled out.
		c.major = v.Major()
		mi, pa := v.Minor(), v.Patch()
		c.minor, c.patch = &mi, &pa
		c.pre = v.Prerelease()
		c.wildcard = false
		return
	}
	c.pre = ""
	switch c.op {
	case "<":
		// Move the exclusive bound just above the new version.
		switch {
		case c.minor == nil:
			c.major = v.Major() + 1
		case c.patch == nil:
			c.major = v.Major()
			mi := v.Minor() + 1
			c.minor = &mi
		default:
			c.major = v.Major()
			mi, pa := v.Minor(), v.Patch()+1
			c.minor, c.patch = &mi, &pa
		}
	default:
		c.major = v.Major()
		if c.minor != nil {
			mi := v.Minor()
			c.minor = &mi
		}
		if c.patch != nil {
			pa := v.Patch()
			c.patch = &pa
		}
	}
}
