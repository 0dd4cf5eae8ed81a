package disc_test

import (
	"reflect"
	"testing"

	"isoconvert/internal/disc"
)

func TestParseLinesExtractsTitlesAndDurations(t *testing.T) {
	lines := []string{
		"[12:00:01] hb_init: starting libhb thread",
		"+ title 1:",
		"  + vts 1, ttn 1, cells 0->12 (4109432 blocks)",
		"  + duration: 01:52:30",
		"  + size: 720x480, pixel aspect: 32/27",
		"+ title 2:",
		"  + duration: 00:45:00",
		"HandBrake has exited.",
	}
	got := disc.ParseLines(lines)
	want := []disc.Title{{Ordinal: 1, Duration: "01:52:30"}, {Ordinal: 2, Duration: "00:45:00"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ParseLines = %+v, want %+v", got, want)
	}
}

func TestDurationBeforeAnyTitleIsDropped(t *testing.T) {
	got := disc.ParseLines([]string{
		"  + duration: 00:10:00",
		"+ title 1:",
	})
	want := []disc.Title{{Ordinal: 1}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ParseLines = %+v, want %+v", got, want)
	}
}

func TestDuplicateOrdinalsArePreserved(t *testing.T) {
	got := disc.ParseLines([]string{
		"+ title 3:",
		"  + duration: 00:01:00",
		"+ title 3:",
		"  + duration: 00:02:00",
	})
	want := []disc.Title{{Ordinal: 3, Duration: "00:01:00"}, {Ordinal: 3, Duration: "00:02:00"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ParseLines = %+v, want %+v", got, want)
	}
}

func TestTitleMarkerMatchesAnywhereInLine(t *testing.T) {
	got := disc.ParseLines([]string{"[scan] + title 7: found", "\t+ duration: 99:99:99"})
	want := []disc.Title{{Ordinal: 7, Duration: "99:99:99"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ParseLines = %+v, want %+v", got, want)
	}
}

func TestUnparseableOrdinalsAreIgnored(t *testing.T) {
	got := disc.ParseLines([]string{
		"+ title 0:",
		"+ title 99999999999999999999:",
		"  + duration: 00:00:05",
	})
	if len(got) != 0 {
		t.Fatalf("expected no titles, got %+v", got)
	}
}

func TestDurationRequiresLeadingWhitespace(t *testing.T) {
	got := disc.ParseLines([]string{"+ title 1:", "+ duration: 01:00:00"})
	if got[0].Duration != "" {
		t.Fatalf("unindented duration should be ignored, got %q", got[0].Duration)
	}
}

func TestStepIsPure(t *testing.T) {
	state, tr := disc.Step(disc.NoCurrentTitle, "+ title 4:")
	if tr.Kind != disc.OpenTitle || tr.Ordinal != 4 {
		t.Fatalf("unexpected transition %+v", tr)
	}
	if ordinal, open := state.Current(); !open || ordinal != 4 {
		t.Fatalf("state = %d,%v", ordinal, open)
	}
	if _, open := disc.NoCurrentTitle.Current(); open {
		t.Fatal("initial state mutated")
	}

	same, tr := disc.Step(state, "  + duration: 00:30:00")
	if same != state || tr.Kind != disc.SetDuration || tr.Duration != "00:30:00" || tr.Ordinal != 4 {
		t.Fatalf("unexpected duration step %+v %+v", same, tr)
	}

	_, tr = disc.Step(disc.NoCurrentTitle, "  + duration: 00:30:00")
	if tr.Kind != disc.Ignored {
		t.Fatalf("duration without title should be ignored, got %+v", tr)
	}
}

func TestParserNotifiesOnTitleOpen(t *testing.T) {
	var seen []int
	p := disc.Parser{OnTitle: func(title disc.Title) { seen = append(seen, title.Ordinal) }}
	p.Feed("+ title 1:")
	if len(seen) != 1 {
		t.Fatalf("OnTitle not invoked before scan finished: %v", seen)
	}
	p.Feed("  + duration: 00:01:00")
	p.Feed("+ title 2:")
	if !reflect.DeepEqual(seen, []int{1, 2}) {
		t.Fatalf("seen = %v", seen)
	}
	titles := p.Titles()
	titles[0].Duration = "mutated"
	if p.Titles()[0].Duration != "00:01:00" {
		t.Fatal("Titles should return a copy")
	}
}

func TestSummary(t *testing.T) {
	got := disc.Summary([]disc.Title{{Ordinal: 1, Duration: "01:52:30"}, {Ordinal: 2}})
	if got != "1 (01:52:30), 2" {
		t.Fatalf("Summary = %q", got)
	}
	if !reflect.DeepEqual(disc.Ordinals([]disc.Title{{Ordinal: 2}, {Ordinal: 5}}), []int{2, 5}) {
		t.Fatal("Ordinals mismatch")
	}
}
