// Package keys composes the store keys used by the throttling policies.
//
// Every component of a key is query-escaped, so components never contain the
// ':' separator or glob metacharacters. This keeps keys unambiguous and lets
// admin operations build SCAN patterns from user-supplied subjects without
// matching other subjects.
package keys

import (
	"net/url"
	"strings"
)

const (
	counterSegment  = "rl"
	failedSegment   = "lf"
	blockSegment    = "lb"
	anonymousMarker = "ip"
	subjectMarker   = "sub"
	markerSuffix    = "block"
)

// Space composes keys under one prefix.
type Space struct {
	prefix string
}

// NewSpace returns a Space rooted at prefix.
func NewSpace(prefix string) Space {
	return Space{prefix: escape(prefix)}
}

// Prefix returns the escaped prefix.
func (s Space) Prefix() string {
	return s.prefix
}

// Counter identifies one fixed-window counter. Subject is optional; an empty
// subject yields the anonymous key shape.
type Counter struct {
	Limiter string
	Client  string
	Subject string
}

// Counter returns the hash key of a request counter.
func (s Space) Counter(c Counter) string {
	if c.Subject == "" {
		return join(s.prefix, counterSegment, anonymousMarker, escape(c.Limiter), escape(c.Client))
	}
	return join(s.prefix, counterSegment, subjectMarker, escape(c.Subject), escape(c.Limiter), escape(c.Client))
}

// Marker returns the block-marker key paired with a request counter.
func (s Space) Marker(c Counter) string {
	return s.Counter(c) + ":" + markerSuffix
}

// Failed returns the failed-login counter key for a subject and client.
func (s Space) Failed(subject, client string) string {
	return join(s.prefix, failedSegment, escape(subject), escape(client))
}

// Block returns the login block key for a subject and client.
func (s Space) Block(subject, client string) string {
	return join(s.prefix, blockSegment, escape(subject), escape(client))
}

// SubjectCounters matches every request counter and block marker that embeds
// subject, across all limiters and clients.
func (s Space) SubjectCounters(subject string) string {
	return join(s.prefix, counterSegment, subjectMarker, escape(subject), "*")
}

// SubjectFailed matches every failed-login counter of subject.
func (s Space) SubjectFailed(subject string) string {
	return join(s.prefix, failedSegment, escape(subject), "*")
}

// SubjectBlocks matches every login block of subject.
func (s Space) SubjectBlocks(subject string) string {
	return join(s.prefix, blockSegment, escape(subject), "*")
}

func escape(component string) string {
	return url.QueryEscape(component)
}

func join(parts ...string) string {
	return strings.Join(parts, ":")
}
