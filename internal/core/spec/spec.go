// Package spec parses user-supplied crate identifiers: either a package name
// with an optional version requirement (`serde@1.0`) or a filesystem path.
package spec

import (
	"fmt"
	"os"
	"strings"

	"github.com/cargoctl/cargoctl/internal/core/version"
)

// CrateSpec is a parsed crate identifier. Exactly one of Path or Name is set.
type CrateSpec struct {
	Name       string
	VersionReq string
	Path       string
}

// IsPath reports whether the spec names a filesystem location.
func (s *CrateSpec) IsPath() bool { return s.Path != "" }

// InvalidNameError reports disallowed characters in a crate name.
type InvalidNameError struct {
	Name  string
	Chars []rune
}

func (e *InvalidNameError) Error() string {
	quoted := make([]string, len(e.Chars))
	for i, r := range e.Chars {
		quoted[i] = fmt.Sprintf("`%c`", r)
	}
	return fmt.Sprintf("invalid character(s) %s in crate name `%s`", strings.Join(quoted, ", "), e.Name)
}

// InvalidVersionReqError reports an unparseable version requirement in a spec.
type InvalidVersionReqError struct {
	Req string
	Err error
}

func (e *InvalidVersionReqError) Error() string {
	return fmt.Sprintf("invalid version requirement `%s` in crate spec", e.Req)
}

func (e *InvalidVersionReqError) Unwrap() error { return e.Err }

// Parse interprets a user string as a crate spec. Strings containing a path
// separator, or naming an existing filesystem entry, are path specs;
// everything else is `name[@version-req]`.
func Parse(raw string) (*CrateSpec, error) {
	if strings.ContainsAny(raw, `/\`) {
		return &CrateSpec{Path: raw}, nil
	}
	if _, err := os.Stat(raw); err == nil {
		return &CrateSpec{Path: raw}, nil
	}

	name := raw
	req := ""
	if i := strings.Index(raw, "@"); i >= 0 {
		name = raw[:i]
		req = raw[i+1:]
	}
	if err := validateName(name); err != nil {
		return nil, err
	}
	if req != "" {
		if _, err := version.ParseReq(req); err != nil {
			return nil, &InvalidVersionReqError{Req: req, Err: err}
		}
	}
	return &CrateSpec{Name: name, VersionReq: req}, nil
}

func validateName(name string) error {
	var bad []rune
	for _, r := range name {
		ok := r == '-' || r == '_' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !ok {
			bad = append(bad, r)
		}
	}
	if name == "" || len(bad) > 0 {
		return &InvalidNameError{Name: name, Chars: bad}
	}
	return nil
}
