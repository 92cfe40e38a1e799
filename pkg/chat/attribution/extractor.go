package attribution

import (
	"encoding/json"
	"strings"

	"kb-chat-be/internal/constant"
)

// Entry is one validated attribution claim: the model reports whether it used
// the passage with the given source number, and why.
type Entry struct {
	SourceNumber int    `json:"source_number"`
	Used         bool   `json:"used"`
	Reason       string `json:"reason"`
}

// Outcome is a tagged variant: either the structured attribution validated
// (Attributed true, Entries populated) or it did not and the message degrades
// to unattributed sources. There is no error path out of this package —
// malformed input is a first-class outcome, not an exception.
type Outcome struct {
	Attributed bool
	Entries    []Entry
}

// Unattributed is the fallback outcome: every source keeps a nil is_used.
func Unattributed() Outcome {
	return Outcome{Attributed: false}
}

type Extractor struct {
	maxReasonLen int
}

func NewExtractor() *Extractor {
	return &Extractor{maxReasonLen: constant.UsageReasonMaxLen}
}

// Validate normalizes the raw attribution list against the message's known
// source numbers. Entries referencing unknown numbers are dropped, duplicates
// collapse to the first occurrence, and reasons are trimmed and capped. A nil,
// empty, or unparseable payload yields Unattributed.
func (e *Extractor) Validate(raw json.RawMessage, knownSourceNumbers []int) Outcome {
	if len(raw) == 0 {
		return Unattributed()
	}

	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return Unattributed()
	}
	if len(entries) == 0 {
		return Unattributed()
	}

	known := make(map[int]bool, len(knownSourceNumbers))
	for _, n := range knownSourceNumbers {
		known[n] = true
	}

	seen := make(map[int]bool, len(entries))
	valid := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if !known[entry.SourceNumber] {
			continue
		}
		if seen[entry.SourceNumber] {
			continue
		}
		seen[entry.SourceNumber] = true

		entry.Reason = strings.TrimSpace(entry.Reason)
		// Cap by runes, not bytes; a byte slice could split a multibyte
		// character and leave invalid UTF-8 behind.
		if runes := []rune(entry.Reason); len(runes) > e.maxReasonLen {
			entry.Reason = string(runes[:e.maxReasonLen])
		}
		// A usage claim without a reason is unusable; skip the entry so the
		// source falls back to "not used".
		if entry.Used && entry.Reason == "" {
			continue
		}
		// A reason only accompanies a positive usage claim.
		if !entry.Used {
			entry.Reason = ""
		}
		valid = append(valid, entry)
	}

	if len(valid) == 0 {
		return Unattributed()
	}

	return Outcome{Attributed: true, Entries: valid}
}
