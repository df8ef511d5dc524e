package version

import "fmt"

// KnownReleases is the default release history, oldest first.
var KnownReleases = []string{
	"5.3", "5.4", "5.5", "5.6",
	"7.0", "7.1", "7.2", "7.3", "7.4",
	"8.0", "8.1", "8.2", "8.3", "8.4",
}

// Sequence is an immutable, strictly increasing list of releases. It is
// shared read-only by every resolver in a process.
type Sequence struct {
	versions []Version
}

// NewSequence parses and validates the given releases. They must be
// strictly increasing.
func NewSequence(releases ...string) (*Sequence, error) {
	if len(releases) == 0 {
		return nil, fmt.Errorf("version: empty sequence")
	}
	seq := &Sequence{versions: make([]Version, 0, len(releases))}
	for i, r := range releases {
		v, err := Parse(r)
		if err != nil {
			return nil, err
		}
		if i > 0 && !seq.versions[i-1].Less(v) {
			return nil, fmt.Errorf("version: sequence not increasing at %q", r)
		}
		seq.versions = append(seq.versions, v)
	}
	return seq, nil
}

// MustSequence is NewSequence that panics on invalid input.
func MustSequence(releases ...string) *Sequence {
	seq, err := NewSequence(releases...)
	if err != nil {
		panic(err)
	}
	return seq
}

// Default returns the sequence of KnownReleases.
func Default() *Sequence {
	return MustSequence(KnownReleases...)
}

// Versions returns a copy of the releases, oldest first.
func (s *Sequence) Versions() []Version {
	out := make([]Version, len(s.versions))
	copy(out, s.versions)
	return out
}

func (s *Sequence) Len() int { return len(s.versions) }

func (s *Sequence) Min() Version { return s.versions[0] }

func (s *Sequence) Max() Version { return s.versions[len(s.versions)-1] }

// At returns the release at index i.
func (s *Sequence) At(i int) Version { return s.versions[i] }

// Index returns the position of v, or -1 if v is not a member.
func (s *Sequence) Index(v Version) int {
	for i, x := range s.versions {
		if x.Compare(v) == 0 {
			return i
		}
	}
	return -1
}

func (s *Sequence) Contains(v Version) bool { return s.Index(v) >= 0 }

// Before returns the newest release strictly older than v. For a member of
// the sequence this is its predecessor.
func (s *Sequence) Before(v Version) (Version, bool) {
	for i := len(s.versions) - 1; i >= 0; i-- {
		if s.versions[i].Less(v) {
			return s.versions[i], true
		}
	}
	return "", false
}

// Between returns the releases r with lo <= r <= hi, oldest first.
func (s *Sequence) Between(lo, hi Version) []Version {
	var out []Version
	for _, v := range s.versions {
		if v.Less(lo) || hi.Less(v) {
			continue
		}
		out = append(out, v)
	}
	return out
}
