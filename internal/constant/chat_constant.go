package constant

// Generation modes selectable by the caller, mapped to temperatures.
const (
	ChatModeStrict   = "strict"
	ChatModeBalanced = "balanced"
	ChatModeCreative = "creative"
)

const (
	TemperatureStrict   = 0.1
	TemperatureBalanced = 0.5
	TemperatureCreative = 0.9
)

const (
	// DefaultSessionTitle is used until the first question sets the real title.
	DefaultSessionTitle = "New Chat"
	// SessionTitleMaxLen caps the auto-derived session title.
	SessionTitleMaxLen = 50

	// RetrievalTopK passages are requested per question.
	RetrievalTopK = 20
	// HistoryLimit prior messages are supplied to generation, chronological.
	HistoryLimit = 5

	// QuestionMaxLen rejects oversized questions before any network call.
	QuestionMaxLen = 4000
	// UsageReasonMaxLen caps a model-reported usage reason.
	UsageReasonMaxLen = 500
)

// TemperatureForMode maps a chat mode to its generation temperature.
// Unknown modes fall back to balanced.
func TemperatureForMode(mode string) float64 {
	switch mode {
	case ChatModeStrict:
		return TemperatureStrict
	case ChatModeCreative:
		return TemperatureCreative
	default:
		return TemperatureBalanced
	}
}
