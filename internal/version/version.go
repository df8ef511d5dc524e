// Package version models platform releases and the ordered sequence of
// releases a catalog is resolved against.
package version

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// Version is a platform release such as "7.4" or "8.1". Ordering follows
// semantic versioning with "major.minor" treated as "major.minor.0".
type Version string

// Zero sorts before every real release. A declaration whose upper bound
// resolves to Zero is available in no known version.
const Zero Version = "0.0"

// Parse validates s and returns it as a Version.
func Parse(s string) (Version, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("version: empty")
	}
	if !semver.IsValid("v" + s) {
		return "", fmt.Errorf("version: invalid %q", s)
	}
	return Version(s), nil
}

// Compare returns -1, 0 or +1 depending on whether v sorts before, equal to
// or after o.
func (v Version) Compare(o Version) int {
	return semver.Compare("v"+string(v), "v"+string(o))
}

// Less reports whether v sorts strictly before o.
func (v Version) Less(o Version) bool {
	return v.Compare(o) < 0
}

func (v Version) String() string { return string(v) }

// Lower returns the smaller of a and b.
func Lower(a, b Version) Version {
	if b.Less(a) {
		return b
	}
	return a
}

// Intersects reports whether two ordered version windows share a version.
func Intersects(a, b []Version) bool {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch c := a[i].Compare(b[j]); {
		case c == 0:
			return true
		case c < 0:
			i++
		default:
			j++
		}
	}
	return false
}
