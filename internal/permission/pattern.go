package permission

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidPattern is returned when a path pattern cannot be parsed
	ErrInvalidPattern = errors.New("invalid path pattern")

	// ErrUnknownOperation is returned for operation names outside READ, CHANGE and DELETE
	ErrUnknownOperation = errors.New("unknown operation")
)

// SegmentKind classifies a single path pattern segment.
type SegmentKind int

const (
	SegmentLiteral SegmentKind = iota
	SegmentWildcard
	SegmentParameter
)

// Segment is one slash-separated element of a Pattern.
type Segment struct {
	Kind  SegmentKind
	Value string // literal text, or the parameter name
}

// Pattern is a parsed URL path pattern. Segments are literals, "*" or "{name}".
type Pattern struct {
	raw      string
	segments []Segment
}

// ParsePattern parses a slash-separated pattern. Leading, trailing and
// repeated slashes are ignored, so "/a/b/" and "a/b" are the same pattern.
func ParsePattern(raw string) (Pattern, error) {
	parts := splitPath(raw)
	segments := make([]Segment, 0, len(parts))
	for _, part := range parts {
		switch {
		case part == "*":
			segments = append(segments, Segment{Kind: SegmentWildcard, Value: part})
		case strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}"):
			name := strings.TrimSuffix(strings.TrimPrefix(part, "{"), "}")
			if name == "" || strings.ContainsAny(name, "{}") {
				return Pattern{}, fmt.Errorf("%w: empty or nested parameter in %q", ErrInvalidPattern, raw)
			}
			segments = append(segments, Segment{Kind: SegmentParameter, Value: name})
		case strings.ContainsAny(part, "{}"):
			return Pattern{}, fmt.Errorf("%w: unbalanced braces in %q", ErrInvalidPattern, raw)
		default:
			segments = append(segments, Segment{Kind: SegmentLiteral, Value: part})
		}
	}
	return Pattern{raw: "/" + strings.Join(parts, "/"), segments: segments}, nil
}

// MustParsePattern is ParsePattern for patterns known at compile time.
func MustParsePattern(raw string) Pattern {
	p, err := ParsePattern(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the normalized pattern, always with a leading slash.
func (p Pattern) String() string {
	return p.raw
}

// HasParameter reports whether the pattern contains a named segment.
func (p Pattern) HasParameter() bool {
	for _, s := range p.segments {
		if s.Kind == SegmentParameter {
			return true
		}
	}
	return false
}

// Match reports whether path matches the pattern. When selfOnly is set every
// named segment must equal identity.
func (p Pattern) Match(path, identity string, selfOnly bool) bool {
	parts := splitPath(path)
	if len(parts) != len(p.segments) {
		return false
	}
	for i, seg := range p.segments {
		switch seg.Kind {
		case SegmentLiteral:
			if parts[i] != seg.Value {
				return false
			}
		case SegmentParameter:
			if selfOnly && parts[i] != identity {
				return false
			}
		}
	}
	return true
}

func splitPath(path string) []string {
	fields := strings.Split(path, "/")
	parts := fields[:0]
	for _, f := range fields {
		if f != "" {
			parts = append(parts, f)
		}
	}
	return parts
}
