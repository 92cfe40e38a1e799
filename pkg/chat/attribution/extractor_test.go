package attribution

import (
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestValidate(t *testing.T) {
	known := []int{1, 2, 3}

	tests := []struct {
		name           string
		raw            string
		wantAttributed bool
		wantEntries    []Entry
	}{
		{
			name:           "nil payload",
			raw:            "",
			wantAttributed: false,
		},
		{
			name:           "unparseable payload",
			raw:            `{"not": "a list"}`,
			wantAttributed: false,
		},
		{
			name:           "empty list",
			raw:            `[]`,
			wantAttributed: false,
		},
		{
			name:           "valid entries",
			raw:            `[{"source_number":1,"used":true,"reason":"defines the term"},{"source_number":2,"used":false}]`,
			wantAttributed: true,
			wantEntries: []Entry{
				{SourceNumber: 1, Used: true, Reason: "defines the term"},
				{SourceNumber: 2, Used: false, Reason: ""},
			},
		},
		{
			name:           "unknown source numbers dropped",
			raw:            `[{"source_number":7,"used":true,"reason":"x"},{"source_number":2,"used":true,"reason":"y"}]`,
			wantAttributed: true,
			wantEntries: []Entry{
				{SourceNumber: 2, Used: true, Reason: "y"},
			},
		},
		{
			name:           "only unknown numbers degrades",
			raw:            `[{"source_number":7,"used":true,"reason":"x"}]`,
			wantAttributed: false,
		},
		{
			name:           "duplicates collapse to first",
			raw:            `[{"source_number":1,"used":true,"reason":"first"},{"source_number":1,"used":false}]`,
			wantAttributed: true,
			wantEntries: []Entry{
				{SourceNumber: 1, Used: true, Reason: "first"},
			},
		},
		{
			name:           "used without reason skipped",
			raw:            `[{"source_number":1,"used":true,"reason":"  "},{"source_number":2,"used":false}]`,
			wantAttributed: true,
			wantEntries: []Entry{
				{SourceNumber: 2, Used: false, Reason: ""},
			},
		},
		{
			name:           "reason on unused entry cleared",
			raw:            `[{"source_number":3,"used":false,"reason":"irrelevant"}]`,
			wantAttributed: true,
			wantEntries: []Entry{
				{SourceNumber: 3, Used: false, Reason: ""},
			},
		},
	}

	extractor := NewExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := extractor.Validate(json.RawMessage(tt.raw), known)

			if outcome.Attributed != tt.wantAttributed {
				t.Fatalf("Attributed = %v, want %v", outcome.Attributed, tt.wantAttributed)
			}
			if !tt.wantAttributed {
				return
			}
			if len(outcome.Entries) != len(tt.wantEntries) {
				t.Fatalf("len(Entries) = %d, want %d", len(outcome.Entries), len(tt.wantEntries))
			}
			for i, want := range tt.wantEntries {
				if outcome.Entries[i] != want {
					t.Errorf("Entries[%d] = %+v, want %+v", i, outcome.Entries[i], want)
				}
			}
		})
	}
}

func TestValidateCapsReasonLength(t *testing.T) {
	extractor := NewExtractor()
	long := strings.Repeat("a", 600)
	raw := json.RawMessage(`[{"source_number":1,"used":true,"reason":"` + long + `"}]`)

	outcome := extractor.Validate(raw, []int{1})
	if !outcome.Attributed {
		t.Fatal("expected an attributed outcome")
	}
	if got := len([]rune(outcome.Entries[0].Reason)); got != 500 {
		t.Errorf("rune len(Reason) = %d, want 500", got)
	}
}

func TestValidateCapsReasonWithoutSplittingRunes(t *testing.T) {
	extractor := NewExtractor()
	// The 500th byte lands inside a multibyte rune; the cap must count runes
	// so the result stays valid UTF-8.
	long := strings.Repeat("a", 499) + "日本語の理由"
	raw := json.RawMessage(`[{"source_number":1,"used":true,"reason":"` + long + `"}]`)

	outcome := extractor.Validate(raw, []int{1})
	if !outcome.Attributed {
		t.Fatal("expected an attributed outcome")
	}
	reason := outcome.Entries[0].Reason
	if !utf8.ValidString(reason) {
		t.Fatalf("capped reason is not valid UTF-8: %q", reason)
	}
	if got := len([]rune(reason)); got != 500 {
		t.Errorf("rune len(Reason) = %d, want 500", got)
	}
	if !strings.HasSuffix(reason, "日") {
		t.Errorf("Reason tail = %q, want it to end at the 500th rune %q", reason[len(reason)-8:], "日")
	}
}

func TestValidateTrimsReason(t *testing.T) {
	extractor := NewExtractor()
	raw := json.RawMessage(`[{"source_number":1,"used":true,"reason":"  padded  "}]`)

	outcome := extractor.Validate(raw, []int{1})
	if !outcome.Attributed {
		t.Fatal("expected an attributed outcome")
	}
	if outcome.Entries[0].Reason != "padded" {
		t.Errorf("Reason = %q, want %q", outcome.Entries[0].Reason, "padded")
	}
}
