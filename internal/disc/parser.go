package disc

import (
	"regexp"
	"strconv"
)

var (
	titleMarker  = regexp.MustCompile(`\+ title (\d+):`)
	durationLine = regexp.MustCompile(`^\s+\+ duration:\s+(\d+:\d+:\d+)`)
)

// State is the scan parser's position: either no title has been opened yet,
// or the most recent line opened the title returned by Current.
type State struct {
	ordinal int
}

// NoCurrentTitle is the initial parser state.
var NoCurrentTitle = State{}

// Current returns the ordinal of the open title, if any.
func (s State) Current() (int, bool) {
	return s.ordinal, s.ordinal > 0
}

// TransitionKind says what a line did to the record list.
type TransitionKind int

const (
	// Ignored lines leave records untouched.
	Ignored TransitionKind = iota
	// OpenTitle appends a new record.
	OpenTitle
	// SetDuration sets the duration of the last record.
	SetDuration
)

// Transition is the effect of one line.
type Transition struct {
	Kind     TransitionKind
	Ordinal  int
	Duration string
}

// Step is the pure transition function of the scan parser. A title marker
// anywhere in the line opens a record; an indented duration line applies to
// the open record; everything else is ignored.
func Step(state State, line string) (State, Transition) {
	if m := titleMarker.FindStringSubmatch(line); m != nil {
		ordinal, err := strconv.Atoi(m[1])
		if err != nil || ordinal < 1 {
			return state, Transition{Kind: Ignored}
		}
		return State{ordinal: ordinal}, Transition{Kind: OpenTitle, Ordinal: ordinal}
	}
	if m := durationLine.FindStringSubmatch(line); m != nil {
		ordinal, open := state.Current()
		if !open {
			return state, Transition{Kind: Ignored}
		}
		return state, Transition{Kind: SetDuration, Ordinal: ordinal, Duration: m[1]}
	}
	return state, Transition{Kind: Ignored}
}

// Parser accumulates Title records from scanner output. It is not safe for
// concurrent use; feed it from a single goroutine.
type Parser struct {
	state  State
	titles []Title
	// OnTitle, when set, observes each record as soon as it opens.
	OnTitle func(Title)
}

// Feed applies one line of scanner output.
func (p *Parser) Feed(line string) {
	next, tr := Step(p.state, line)
	p.state = next
	switch tr.Kind {
	case OpenTitle:
		p.titles = append(p.titles, Title{Ordinal: tr.Ordinal})
		if p.OnTitle != nil {
			p.OnTitle(p.titles[len(p.titles)-1])
		}
	case SetDuration:
		// Duplicate ordinals are kept as separate records; the duration
		// always belongs to the most recently opened one.
		p.titles[len(p.titles)-1].Duration = tr.Duration
	}
}

// Titles returns a copy of the records parsed so far.
func (p *Parser) Titles() []Title {
	out := make([]Title, len(p.titles))
	copy(out, p.titles)
	return out
}

// ParseLines runs a fresh Parser over lines.
func ParseLines(lines []string) []Title {
	var p Parser
	for _, line := range lines {
		p.Feed(line)
	}
	return p.Titles()
}
