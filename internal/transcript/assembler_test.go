package transcript

import (
	"math/rand"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/MizukiMachine/discord-VC-minutes/internal/transcribe"
)

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func seg(source string, seq uint64, offset time.Duration, text string) transcribe.Segment {
	return transcribe.Segment{
		SessionID: "s1",
		SourceID:  source,
		StartTime: base.Add(offset),
		EndTime:   base.Add(offset + 15*time.Second),
		Text:      text,
		Sequence:  seq,
	}
}

func TestAssembleInterleavesSourcesByTime(t *testing.T) {
	// Source A at 0s, 30s, 60s and source B at 10s, 40s.
	input := []transcribe.Segment{
		seg("alice", 3, 60*time.Second, "a3"),
		seg("bob", 1, 10*time.Second, "b1"),
		seg("alice", 1, 0, "a1"),
		seg("bob", 2, 40*time.Second, "b2"),
		seg("alice", 2, 30*time.Second, "a2"),
	}

	got := Assemble("s1", input, nil)
	want := []string{"a1", "b1", "a2", "b2", "a3"}
	if len(got.Segments) != len(want) {
		t.Fatalf("expected %d segments, got %d", len(want), len(got.Segments))
	}
	for i, text := range want {
		if got.Segments[i].Text != text {
			t.Errorf("position %d: expected %s, got %s", i, text, got.Segments[i].Text)
		}
	}
}

func TestAssembleIsOrderIndependent(t *testing.T) {
	input := []transcribe.Segment{
		seg("alice", 1, 0, "a1"),
		seg("bob", 1, 0, "b1"), // same timestamp, tie broken by source ID
		seg("alice", 2, 5*time.Second, "a2"),
		seg("carol", 1, 5*time.Second, "c1"),
		seg("bob", 2, 20*time.Second, "b2"),
	}

	reference := Assemble("s1", input, nil)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := append([]transcribe.Segment(nil), input...)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})

		got := Assemble("s1", shuffled, nil)
		if !reflect.DeepEqual(got.Segments, reference.Segments) {
			t.Fatalf("permutation %d produced a different order:\n got %v\nwant %v", i, got.Segments, reference.Segments)
		}
	}
}

func TestAssembleSameTimestampKeepsBothSegments(t *testing.T) {
	input := []transcribe.Segment{
		seg("bob", 1, 0, "b"),
		seg("alice", 1, 0, "a"),
	}

	got := Assemble("s1", input, nil)
	if len(got.Segments) != 2 {
		t.Fatalf("tie-break must never lose data, got %d segments", len(got.Segments))
	}
	if got.Segments[0].SourceID != "alice" || got.Segments[1].SourceID != "bob" {
		t.Errorf("expected alice before bob on equal timestamps, got %s then %s",
			got.Segments[0].SourceID, got.Segments[1].SourceID)
	}
}

func TestAssembleEmptyInput(t *testing.T) {
	got := Assemble("s1", nil, nil)
	if !got.Empty() {
		t.Fatal("expected empty transcript")
	}
	if got.Render() != "" {
		t.Errorf("expected empty render, got %q", got.Render())
	}
	start, end := got.Window()
	if !start.IsZero() || !end.IsZero() {
		t.Errorf("expected zero window, got %s-%s", start, end)
	}
}

func TestTranscriptWindowSpansSegments(t *testing.T) {
	got := Assemble("s1", []transcribe.Segment{
		seg("alice", 1, 0, "a1"),
		seg("bob", 1, 10*time.Second, "b1"),
		seg("alice", 2, 60*time.Second, "a2"),
	}, nil)

	start, end := got.Window()
	if !start.Equal(base) {
		t.Errorf("expected window start %s, got %s", base, start)
	}
	if want := base.Add(75 * time.Second); !end.Equal(want) {
		t.Errorf("expected window end %s, got %s", want, end)
	}
}

func TestRenderMergesConsecutiveTurns(t *testing.T) {
	got := Assemble("s1", []transcribe.Segment{
		seg("alice", 1, 0, "Hello."),
		seg("alice", 2, 16*time.Second, "Anyone here?"),
		seg("bob", 1, 30*time.Second, "Yes."),
	}, nil)

	rendered := got.Render()
	lines := strings.Split(rendered, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 turns, got %d: %q", len(lines), rendered)
	}
	if !strings.Contains(lines[0], "alice: Hello. Anyone here?") {
		t.Errorf("unexpected first turn: %q", lines[0])
	}
	if !strings.Contains(lines[1], "bob: Yes.") {
		t.Errorf("unexpected second turn: %q", lines[1])
	}
}

func TestRenderIncludesGaps(t *testing.T) {
	got := Assemble("s1", []transcribe.Segment{seg("alice", 1, 0, "Hi.")}, []Gap{
		{SourceID: "bob", StartTime: base.Add(30 * time.Second), EndTime: base.Add(45 * time.Second), Reason: "unsupported format"},
	})

	rendered := got.Render()
	if !strings.Contains(rendered, "could not be transcribed") {
		t.Errorf("expected gap note in render, got %q", rendered)
	}
	if len(got.Gaps) != 1 {
		t.Fatalf("expected 1 recorded gap, got %d", len(got.Gaps))
	}
}

func TestSliceBounds(t *testing.T) {
	full := Assemble("s1", []transcribe.Segment{
		seg("alice", 1, 0, "a1"),
		seg("bob", 1, 10*time.Second, "b1"),
		seg("alice", 2, 30*time.Second, "a2"),
	}, nil)

	first := full.Slice(0, 2)
	if len(first.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(first.Segments))
	}
	rest := full.Slice(2, 10)
	if len(rest.Segments) != 1 || rest.Segments[0].Text != "a2" {
		t.Fatalf("unexpected tail slice: %+v", rest.Segments)
	}
	if empty := full.Slice(3, 2); !empty.Empty() {
		t.Fatal("expected empty slice for inverted range")
	}
}

func TestSliceCarriesGapsIntoSubRanges(t *testing.T) {
	gap := func(offset time.Duration) Gap {
		return Gap{
			SourceID:  "bob",
			StartTime: base.Add(offset),
			EndTime:   base.Add(offset + 15*time.Second),
			Reason:    "untranscribable audio",
		}
	}
	full := Assemble("s1", []transcribe.Segment{
		seg("alice", 1, 0, "a1"),
		seg("bob", 1, 10*time.Second, "b1"),
		seg("alice", 2, 30*time.Second, "a2"),
		seg("alice", 3, 60*time.Second, "a3"),
	}, []Gap{gap(15 * time.Second), gap(45 * time.Second), gap(2 * time.Hour)})

	first := full.Slice(0, 2)
	second := full.Slice(2, 4)

	if len(first.Gaps) != 1 || !first.Gaps[0].StartTime.Equal(base.Add(15*time.Second)) {
		t.Fatalf("expected the t=15 gap in the first sub-range, got %+v", first.Gaps)
	}
	// The last sub-range absorbs gaps past the final segment.
	if len(second.Gaps) != 2 {
		t.Fatalf("expected 2 gaps in the second sub-range, got %+v", second.Gaps)
	}
	if len(first.Gaps)+len(second.Gaps) != len(full.Gaps) {
		t.Fatalf("contiguous slices must partition the gaps, got %d + %d of %d",
			len(first.Gaps), len(second.Gaps), len(full.Gaps))
	}

	// Gap notes survive into the rendered sub-range text.
	if !strings.Contains(first.Render(), "could not be transcribed") {
		t.Errorf("expected gap note in first sub-range render, got %q", first.Render())
	}
	if !strings.Contains(second.Render(), "could not be transcribed") {
		t.Errorf("expected gap note in second sub-range render, got %q", second.Render())
	}
}

func TestAssembleOrdersUtterancesSplitFromOneChunk(t *testing.T) {
	// Utterances split from one chunk share source, sequence and start time.
	split := func(end time.Duration, text string) transcribe.Segment {
		return transcribe.Segment{
			SessionID: "s1",
			SourceID:  "alice",
			StartTime: base,
			EndTime:   base.Add(end),
			Text:      text,
			Sequence:  1,
		}
	}
	input := []transcribe.Segment{
		split(9*time.Second, "third"),
		split(4*time.Second, "second"),
		split(4*time.Second, "first"), // equal end time, tie broken by text
	}

	reference := Assemble("s1", input, nil)
	want := []string{"first", "second", "third"}
	for i, text := range want {
		if reference.Segments[i].Text != text {
			t.Fatalf("position %d: expected %s, got %s", i, text, reference.Segments[i].Text)
		}
	}

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := append([]transcribe.Segment(nil), input...)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})

		got := Assemble("s1", shuffled, nil)
		if !reflect.DeepEqual(got.Segments, reference.Segments) {
			t.Fatalf("permutation %d produced a different order:\n got %v\nwant %v", i, got.Segments, reference.Segments)
		}
	}
}
