package position

import "testing"

func TestPositionOrdering(t *testing.T) {
	a := Position{Filename: "counter.sl", Line: 1, Column: 1, Offset: 0}
	b := Position{Filename: "counter.sl", Line: 2, Column: 5, Offset: 24}

	if !a.Before(b) {
		t.Error("expected a to come before b")
	}
	if !b.After(a) {
		t.Error("expected b to come after a")
	}
	if a.Before(a) {
		t.Error("position should not come before itself")
	}
}

func TestPositionString(t *testing.T) {
	p := Position{Filename: "src/actors/counter.sl", Line: 3, Column: 7, Offset: 42}
	if got := p.String(); got != "counter.sl:3:7" {
		t.Errorf("unexpected position string: %s", got)
	}

	anon := Position{Line: 3, Column: 7}
	if got := anon.String(); got != "3:7" {
		t.Errorf("unexpected anonymous position string: %s", got)
	}
}

func TestSpanValidity(t *testing.T) {
	valid := Span{
		Start: Position{Filename: "a.sl", Line: 1, Column: 1, Offset: 0},
		End:   Position{Filename: "a.sl", Line: 1, Column: 8, Offset: 7},
	}
	if !valid.IsValid() {
		t.Error("span should be valid")
	}
	if valid.Length() != 7 {
		t.Errorf("expected length 7, got %d", valid.Length())
	}

	crossFile := valid
	crossFile.End.Filename = "b.sl"
	if crossFile.IsValid() {
		t.Error("span crossing files should be invalid")
	}
}

func TestSpanContainsAndOverlaps(t *testing.T) {
	span := Span{
		Start: Position{Filename: "a.sl", Line: 1, Column: 1, Offset: 10},
		End:   Position{Filename: "a.sl", Line: 1, Column: 11, Offset: 20},
	}

	inside := Position{Filename: "a.sl", Line: 1, Column: 5, Offset: 14}
	if !span.Contains(inside) {
		t.Error("span should contain inner position")
	}

	pastEnd := Position{Filename: "a.sl", Line: 1, Column: 11, Offset: 20}
	if span.Contains(pastEnd) {
		t.Error("span end is exclusive")
	}

	other := Span{
		Start: Position{Filename: "a.sl", Line: 1, Column: 8, Offset: 17},
		End:   Position{Filename: "a.sl", Line: 1, Column: 15, Offset: 24},
	}
	if !span.Overlaps(other) {
		t.Error("spans should overlap")
	}
}

func TestSpanUnion(t *testing.T) {
	first := Span{
		Start: Position{Filename: "a.sl", Line: 1, Column: 1, Offset: 0},
		End:   Position{Filename: "a.sl", Line: 1, Column: 5, Offset: 4},
	}
	second := Span{
		Start: Position{Filename: "a.sl", Line: 2, Column: 1, Offset: 10},
		End:   Position{Filename: "a.sl", Line: 2, Column: 9, Offset: 18},
	}

	union := first.Union(second)
	if union.Start != first.Start {
		t.Error("union should start at the earlier span")
	}
	if union.End != second.End {
		t.Error("union should end at the later span")
	}

	if got := first.Union(Span{}); got != first {
		t.Error("union with invalid span should return the valid span")
	}
}
