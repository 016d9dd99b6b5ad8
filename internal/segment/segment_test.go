package segment

import (
	"fmt"
	"strings"
	"testing"
)

func TestSplitPreservesWordSequence(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 257; i++ {
		fmt.Fprintf(&b, "word%d ", i)
	}
	text := b.String()
	want := strings.Fields(text)

	segments := Split(text, 100)
	if len(segments) != 3 {
		t.Fatalf("len(segments) = %d, want 3", len(segments))
	}
	var got []string
	for i, seg := range segments {
		words := strings.Fields(seg)
		if i < len(segments)-1 && len(words) != 100 {
			t.Fatalf("segment %d has %d words, want 100", i, len(words))
		}
		got = append(got, words...)
	}
	if len(got) != len(want) {
		t.Fatalf("reassembled %d words, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("word %d = %q, want %q", i, got[i], want[i])
		}
	}
	if n := len(strings.Fields(segments[2])); n != 57 {
		t.Fatalf("last segment has %d words, want 57", n)
	}
}

func TestSplitDeterministic(t *testing.T) {
	text := "the quick brown fox jumps over the lazy dog"
	a := Split(text, 3)
	b := Split(text, 3)
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("segment %d differs: %q vs %q", i, a[i], b[i])
		}
	}
	if a[0] != "the quick brown" {
		t.Fatalf("segments[0] = %q", a[0])
	}
}

func TestSplitCollapsesWhitespace(t *testing.T) {
	segments := Split("one\t two\n\nthree  four", 2)
	if len(segments) != 2 {
		t.Fatalf("len(segments) = %d, want 2", len(segments))
	}
	if segments[0] != "one two" || segments[1] != "three four" {
		t.Fatalf("segments = %q", segments)
	}
}

func TestSplitEmptyInput(t *testing.T) {
	if got := Split("", 100); got != nil {
		t.Fatalf("Split(\"\") = %v, want nil", got)
	}
	if got := Split("   \n\t ", 100); got != nil {
		t.Fatalf("Split(whitespace) = %v, want nil", got)
	}
}

func TestSplitDefaultSize(t *testing.T) {
	words := strings.Repeat("w ", 150)
	segments := Split(words, 0)
	if len(segments) != 2 {
		t.Fatalf("len(segments) = %d, want 2 with default size", len(segments))
	}
}

func TestWordCount(t *testing.T) {
	segments := Split("a b c d e", 2)
	if n := WordCount(segments); n != 5 {
		t.Fatalf("WordCount = %d, want 5", n)
	}
}
