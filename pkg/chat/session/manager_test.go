package session

import (
	"strings"
	"testing"

	"kb-chat-be/internal/constant"
)

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		name     string
		question string
		want     string
	}{
		{
			name:     "short question kept as is",
			question: "What is the refund policy?",
			want:     "What is the refund policy?",
		},
		{
			name:     "surrounding whitespace trimmed",
			question: "  spaced out  ",
			want:     "spaced out",
		},
		{
			name:     "blank question falls back to default",
			question: "   ",
			want:     constant.DefaultSessionTitle,
		},
		{
			name:     "long question truncated",
			question: strings.Repeat("a", 80),
			want:     strings.Repeat("a", constant.SessionTitleMaxLen),
		},
		{
			name:     "multibyte runes not split",
			question: strings.Repeat("日", 80),
			want:     strings.Repeat("日", constant.SessionTitleMaxLen),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveTitle(tt.question); got != tt.want {
				t.Errorf("DeriveTitle(%q) = %q, want %q", tt.question, got, tt.want)
			}
		})
	}
}
