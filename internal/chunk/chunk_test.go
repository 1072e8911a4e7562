package chunk

import (
	"strings"
	"testing"

	"github.com/kabinet-ai/kabinet/internal/extract"
)

func TestSplitEmpty(t *testing.T) {
	if got := Split("", 100, 10); got != nil {
		t.Errorf("Split(\"\") = %+v, want nil", got)
	}
}

func TestSplitShortText(t *testing.T) {
	passages := Split("short", 100, 10)
	if len(passages) != 1 {
		t.Fatalf("expected 1 passage, got %d", len(passages))
	}
	if passages[0].Text != "short" || passages[0].Ordinal != 0 {
		t.Errorf("passage = %+v", passages[0])
	}
}

func TestSplitLongText(t *testing.T) {
	// 3000 characters, size 1200, overlap 200: three passages with ordinals
	// 0,1,2, the first two exactly 1200 long sharing 200 characters.
	text := strings.Repeat("abcdefghij", 300)
	passages := Split(text, 1200, 200)

	if len(passages) != 3 {
		t.Fatalf("expected 3 passages, got %d", len(passages))
	}
	for i, p := range passages {
		if p.Ordinal != i {
			t.Errorf("passage %d has ordinal %d", i, p.Ordinal)
		}
	}
	if len(passages[0].Text) != 1200 || len(passages[1].Text) != 1200 {
		t.Errorf("first two lengths = %d, %d; want 1200, 1200",
			len(passages[0].Text), len(passages[1].Text))
	}
	if len(passages[2].Text) > 1200 {
		t.Errorf("final passage length %d exceeds size", len(passages[2].Text))
	}
	if passages[0].Text[1000:] != passages[1].Text[:200] {
		t.Error("passages 0 and 1 do not share exactly 200 characters")
	}
	if passages[1].Text[1000:] != passages[2].Text[:200] {
		t.Error("passages 1 and 2 do not share exactly 200 characters")
	}
}

func TestSplitRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		size    int
		overlap int
	}{
		{"uniform", strings.Repeat("x", 5000), 1200, 150},
		{"zero overlap", strings.Repeat("y", 1000), 100, 0},
		{"sentences", strings.Repeat("One sentence here. Another follows! A question? ", 100), 200, 40},
		{"multibyte runes", strings.Repeat("данные о возвратах средств. ", 120), 180, 30},
		{"exact boundary", strings.Repeat("z", 600), 200, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			passages := Split(tt.text, tt.size, tt.overlap)
			if got := Reassemble(passages, tt.overlap); got != tt.text {
				t.Errorf("round trip failed: got %d runes, want %d",
					len([]rune(got)), len([]rune(tt.text)))
			}
		})
	}
}

func TestSplitBounds(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 200)
	size, overlap := 300, 60

	passages := Split(text, size, overlap)
	if len(passages) < 2 {
		t.Fatalf("expected multiple passages, got %d", len(passages))
	}

	for i, p := range passages {
		if n := len([]rune(p.Text)); n > size {
			t.Errorf("passage %d has %d runes, exceeds size %d", i, n, size)
		}
		if i == 0 {
			continue
		}
		prev := []rune(passages[i-1].Text)
		cur := []rune(p.Text)
		if string(prev[len(prev)-overlap:]) != string(cur[:overlap]) {
			t.Errorf("passages %d and %d do not share exactly %d runes", i-1, i, overlap)
		}
	}
}

func TestSplitPrefersSentenceBreak(t *testing.T) {
	// A sentence ends within the breakpoint window before the size limit;
	// the cut should land right after the period instead of mid-word.
	text := strings.Repeat("w", 90) + ". " + strings.Repeat("v", 100)
	passages := Split(text, 100, 10)

	if len(passages) < 2 {
		t.Fatalf("expected multiple passages, got %d", len(passages))
	}
	if !strings.HasSuffix(passages[0].Text, ".") {
		t.Errorf("first passage should end at sentence break, got %q...", passages[0].Text[len(passages[0].Text)-10:])
	}
}

func TestSplitAlwaysAdvances(t *testing.T) {
	// Breakpoint runes right at the overlap edge must not stall progress.
	text := strings.Repeat(".", 50) + strings.Repeat("a", 500)
	passages := Split(text, 100, 40)

	for i := 1; i < len(passages); i++ {
		if passages[i].Start <= passages[i-1].Start {
			t.Fatalf("passage %d does not advance: start %d after %d",
				i, passages[i].Start, passages[i-1].Start)
		}
	}
	if got := Reassemble(passages, 40); got != text {
		t.Error("round trip failed")
	}
}

func TestJoinAndLocations(t *testing.T) {
	fragments := []extract.Fragment{
		{Text: "page one text", Loc: extract.Location{Page: 1}},
		{Text: "page two text", Loc: extract.Location{Page: 2}},
	}

	text, spans := Join(fragments)
	if text != "page one text\npage two text" {
		t.Fatalf("joined text = %q", text)
	}
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}

	// A passage entirely inside the first fragment.
	p := Passage{Start: 0, End: 8}
	locs := Locations(p, spans)
	if len(locs) != 1 || locs[0].Page != 1 {
		t.Errorf("locations = %+v, want page 1 only", locs)
	}

	// A passage straddling the fragment boundary reports both pages.
	p = Passage{Start: 10, End: 20}
	locs = Locations(p, spans)
	if len(locs) != 2 || locs[0].Page != 1 || locs[1].Page != 2 {
		t.Errorf("locations = %+v, want pages 1 and 2", locs)
	}
}

func FuzzSplitRoundTrip(f *testing.F) {
	f.Add("hello world. this is a test of chunking text into passages.", 20, 5)
	f.Add(strings.Repeat("abc ", 300), 100, 30)
	f.Add("короткий текст", 10, 3)

	f.Fuzz(func(t *testing.T, text string, size, overlap int) {
		if size < 1 || size > 10000 || overlap < 0 || overlap >= size {
			t.Skip()
		}

		passages := Split(text, size, overlap)
		if text == "" {
			if passages != nil {
				t.Fatal("empty text must yield no passages")
			}
			return
		}

		if got := Reassemble(passages, overlap); got != text {
			t.Fatalf("round trip failed for size=%d overlap=%d", size, overlap)
		}
		for i, p := range passages {
			if i < len(passages)-1 && len([]rune(p.Text)) > size {
				t.Fatalf("passage %d exceeds size", i)
			}
			if p.Ordinal != i {
				t.Fatalf("passage %d has ordinal %d", i, p.Ordinal)
			}
		}
	})
}
