// Package streamparser extracts in-content tool-call JSON objects from
// a token stream that is still being written to, per spec.md §4.2.
package streamparser

import "strings"

// Candidate is one `{name, arguments}` object recognized in the
// accumulated stream content.
type Candidate struct {
	Name      string
	Arguments string // raw JSON text of the "arguments" value
	Start     int    // offset of '{' in the accumulated buffer
	End       int    // offset just past the matching '}'
}

// Scanner accumulates streamed text chunks and extracts self-contained
// `{"name": ..., "arguments": ...}` JSON objects as they complete,
// without waiting for the whole stream to end. It never re-scans text
// it has already resolved into a Candidate or ruled out.
//
// Object boundaries are found with a brace-balanced scan that
// respects string literals and backslash escapes: a quote toggles the
// "inside string" flag, and a backslash inside a string skips the
// next character so an escaped quote doesn't end the string early.
type Scanner struct {
	buf                 strings.Builder
	lastProcessed       int
	consecutiveFailures int
	maxFailures         int
}

// DefaultMaxParseAttempts bounds consecutive failed parse attempts
// before the scanner gives up on the remainder of the turn (spec.md
// §4.2: "Bound consecutive parse failures at maxStreamingParseAttempts
// (e.g., 100)").
const DefaultMaxParseAttempts = 100

// New builds a Scanner with the default parse-attempt bound.
func New() *Scanner {
	return &Scanner{maxFailures: DefaultMaxParseAttempts}
}

// Feed appends chunk to the accumulated buffer and returns any
// complete tool-call candidates newly found. lastProcessed advances
// past every complete object, whether or not it parsed as a tool call;
// an object that is still open is left in place, so a later chunk that
// completes it is handled on the next Feed call.
func (s *Scanner) Feed(chunk string) []Candidate {
	s.buf.WriteString(chunk)
	content := s.buf.String()

	if s.consecutiveFailures >= s.maxFailures {
		return nil
	}

	var found []Candidate
	for {
		if !looksLikeToolCall(content, s.lastProcessed) {
			return found
		}

		start := strings.IndexByte(content[s.lastProcessed:], '{')
		if start < 0 {
			return found
		}
		start += s.lastProcessed

		end, ok := matchingBrace(content, start)
		if !ok {
			// Object not yet complete; wait for more chunks.
			return found
		}

		cand, err := parseCandidate(content[start : end+1])
		if err != nil {
			s.consecutiveFailures++
			if s.consecutiveFailures >= s.maxFailures {
				return found
			}
			// Skip past this unparseable object and keep scanning;
			// it won't become valid no matter how much more streams in.
			s.lastProcessed = end + 1
			continue
		}

		s.consecutiveFailures = 0
		cand.Start = start
		cand.End = end + 1
		s.lastProcessed = end + 1
		found = append(found, cand)
	}
}

// looksLikeToolCall reports whether both "name" and "arguments" appear
// in content at or beyond offset — the cheap pre-check before
// attempting the more expensive brace-balanced scan.
func looksLikeToolCall(content string, offset int) bool {
	if offset > len(content) {
		return false
	}
	tail := content[offset:]
	return strings.Contains(tail, `"name"`) && strings.Contains(tail, `"arguments"`)
}

// matchingBrace finds the index of the '}' that closes the '{' at
// start, honoring string literals and backslash escapes. Returns
// ok=false if the object is not yet complete in content.
func matchingBrace(content string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(content); i++ {
		c := content[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
