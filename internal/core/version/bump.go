package version

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ReleaseLevel names a relative version bump.
type ReleaseLevel string

const (
	LevelMajor   ReleaseLevel = "major"
	LevelMinor   ReleaseLevel = "minor"
	LevelPatch   ReleaseLevel = "patch"
	LevelRelease ReleaseLevel = "release"
	LevelRc      ReleaseLevel = "rc"
	LevelBeta    ReleaseLevel = "beta"
	LevelAlpha   ReleaseLevel = "alpha"
)

// ParseLevel recognizes a release level name.
func ParseLevel(s string) (ReleaseLevel, error) {
	switch ReleaseLevel(strings.ToLower(s)) {
	case LevelMajor, LevelMinor, LevelPatch, LevelRelease, LevelRc, LevelBeta, LevelAlpha:
		return ReleaseLevel(strings.ToLower(s)), nil
	}
	return "", fmt.Errorf("unknown release level `%s`", s)
}

// Target is either an absolute version or a relative release level.
type Target struct {
	Absolute *semver.Version
	Relative ReleaseLevel
}

// DowngradeError reports an absolute target below the current version.
type DowngradeError struct {
	From *semver.Version
	To   *semver.Version
}

func (e *DowngradeError) Error() string {
	return fmt.Sprintf("cannot downgrade from %s to %s", e.From, e.To)
}

// InvalidReleaseLevelError reports a pre-release bump that would move
// backward in the alpha < beta < rc chain.
type InvalidReleaseLevelError struct {
	From string
	To   ReleaseLevel
}

func (e *InvalidReleaseLevelError) Error() string {
	return fmt.Sprintf("cannot move from `%s` pre-release to earlier `%s`", e.From, e.To)
}

// preOrder positions a pre-release identifier in the alpha < beta < rc chain.
// Unknown identifiers sort before alpha so any chain level may follow them.
func preOrder(id string) int {
	switch id {
	case "alpha":
		return 1
	case "beta":
		return 2
	case "rc":
		return 3
	}
	return 0
}

// Bump computes the next version for current under target, with optional
// build metadata. It returns nil when the bump is a no-op.
func Bump(current *semver.Version, target Target, metadata string) (*semver.Version, error) {
	var next semver.Version
	switch {
	case target.Absolute != nil:
		v := target.Absolute
		if v.LessThan(current) {
			return nil, &DowngradeError{From: current, To: v}
		}
		if v.Equal(current) && v.Prerelease() == current.Prerelease() {
			return nil, nil
		}
		next = *v
		if metadata == "" && next.Metadata() == "" {
			metadata = current.Metadata()
		}
	case target.Relative == LevelMajor:
		next = current.IncMajor()
	case target.Relative == LevelMinor:
		next = current.IncMinor()
	case target.Relative == LevelPatch:
		next = current.IncPatch()
	case target.Relative == LevelRelease:
		if current.Prerelease() == "" {
			return nil, nil
		}
		var err error
		next, err = current.SetPrerelease("")
		if err != nil {
			return nil, err
		}
	case target.Relative == LevelRc || target.Relative == LevelBeta || target.Relative == LevelAlpha:
		var err error
		next, err = bumpPre(current, string(target.Relative))
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("no bump target given")
	}
	if metadata != "" {
		var err error
		next, err = next.SetMetadata(metadata)
		if err != nil {
			return nil, err
		}
	}
	return &next, nil
}

func bumpPre(current *semver.Version, id string) (semver.Version, error) {
	pre := current.Prerelease()
	if pre == "" {
		return current.IncPatch().SetPrerelease(id + ".1")
	}
	fields := strings.Split(pre, ".")
	curID := fields[0]
	if curID == id {
		// Same chain level: increment the trailing counter.
		last := fields[len(fields)-1]
		if n, err := strconv.Atoi(last); err == nil && len(fields) > 1 {
			fields[len(fields)-1] = strconv.Itoa(n + 1)
			return current.SetPrerelease(strings.Join(fields, "."))
		}
		return current.SetPrerelease(pre + ".1")
	}
	if preOrder(curID) > preOrder(id) {
		return semver.Version{}, &InvalidReleaseLevelError{From: pre, To: ReleaseLevel(id)}
	}
	return current.SetPrerelease(id + ".1")
}
