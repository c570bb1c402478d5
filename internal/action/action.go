// Package action implements Component E: the four inert action variants
// the scheduler interprets, and the action-text grammar from spec §6.
package action

import (
	"fmt"
	"strings"
)

// Kind tags which of the four action variants a value holds.
type Kind int

const (
	Ask Kind = iota
	Reply
	Unlock
	Scratch
)

func (k Kind) String() string {
	switch k {
	case Ask:
		return "ask"
	case Reply:
		return "reply"
	case Unlock:
		return "unlock"
	case Scratch:
		return "scratch"
	default:
		return "unknown"
	}
}

// Action is a tagged, inert value the scheduler interprets. It carries no
// behaviour of its own.
type Action struct {
	Kind Kind
	// Text holds the hypertext payload for Ask, Reply, and Scratch.
	Text string
	// PointerID holds the pointer-ID text for Unlock, without the leading
	// "$" (e.g. "3", "q1").
	PointerID string
}

// ParseError reports malformed action text.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("action parse error in %q: %s", e.Input, e.Reason)
}

// Parse parses a line of action text per spec §6's grammar:
//
//	ask <hypertext>
//	reply <hypertext>
//	unlock <pointer-id>
//	scratch <hypertext>
func Parse(line string) (Action, error) {
	trimmed := strings.TrimSpace(line)
	verb, rest, _ := strings.Cut(trimmed, " ")
	verb = strings.ToLower(verb)
	rest = strings.TrimSpace(rest)

	switch verb {
	case "ask":
		if rest == "" {
			return Action{}, &ParseError{Input: line, Reason: "ask requires hypertext"}
		}
		return Action{Kind: Ask, Text: rest}, nil
	case "reply":
		if rest == "" {
			return Action{}, &ParseError{Input: line, Reason: "reply requires hypertext"}
		}
		return Action{Kind: Reply, Text: rest}, nil
	case "unlock":
		if rest == "" || !strings.HasPrefix(rest, "$") {
			return Action{}, &ParseError{Input: line, Reason: "unlock requires a $<pointer-id>"}
		}
		return Action{Kind: Unlock, PointerID: strings.TrimPrefix(rest, "$")}, nil
	case "scratch":
		return Action{Kind: Scratch, Text: rest}, nil
	default:
		return Action{}, &ParseError{Input: line, Reason: fmt.Sprintf("unknown verb %q", verb)}
	}
}
