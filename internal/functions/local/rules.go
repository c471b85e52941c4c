package local

// Rules holds every keyword list and threshold the local functions use.
// It is built once from configuration and passed by value; nothing in this
// package mutates it.
type Rules struct {
	HighKeywords     []string `json:"high_keywords" yaml:"high_keywords"`
	MediumKeywords   []string `json:"medium_keywords" yaml:"medium_keywords"`
	HighSenders      []string `json:"high_senders" yaml:"high_senders"`
	UrgentKeywords   []string `json:"urgent_keywords" yaml:"urgent_keywords"`
	ActionKeywords   []string `json:"action_keywords" yaml:"action_keywords"`
	PositiveKeywords []string `json:"positive_keywords" yaml:"positive_keywords"`
	NegativeKeywords []string `json:"negative_keywords" yaml:"negative_keywords"`

	HighThreshold   float64 `json:"high_threshold" yaml:"high_threshold" validate:"gt=0,lte=1,gtfield=MediumThreshold"`
	MediumThreshold float64 `json:"medium_threshold" yaml:"medium_threshold" validate:"gt=0,lte=1"`
}

// Default thresholds for the tier of a score
const (
	DefaultHighThreshold   = 0.5
	DefaultMediumThreshold = 0.2
)

// DefaultRules returns the built-in rule set
func DefaultRules() Rules {
	high := []string{"긴급", "urgent", "asap", "즉시", "오늘까지", "deadline", "미팅", "회의", "프레젠테이션", "발표"}
	return Rules{
		HighKeywords:     high,
		MediumKeywords:   []string{"요청", "request", "검토", "review", "확인", "check"},
		HighSenders:      []string{"boss@company.com", "manager@company.com", "hr@company.com"},
		UrgentKeywords:   append([]string(nil), high...),
		ActionKeywords:   []string{"요청", "부탁", "미팅", "회의", "보고서", "제출", "검토", "확인", "please", "review", "submit", "send"},
		PositiveKeywords: []string{"감사", "좋", "잘", "성공", "완료", "수고", "thanks", "great"},
		NegativeKeywords: []string{"문제", "오류", "실패", "늦", "미완료", "불만", "problem", "error", "fail"},
		HighThreshold:    DefaultHighThreshold,
		MediumThreshold:  DefaultMediumThreshold,
	}
}

// WithDefaults fills empty lists and zero thresholds from DefaultRules
func (r Rules) WithDefaults() Rules {
	d := DefaultRules()
	if len(r.HighKeywords) == 0 {
		r.HighKeywords = d.HighKeywords
	}
	if len(r.MediumKeywords) == 0 {
		r.MediumKeywords = d.MediumKeywords
	}
	if len(r.HighSenders) == 0 {
		r.HighSenders = d.HighSenders
	}
	if len(r.UrgentKeywords) == 0 {
		r.UrgentKeywords = append([]string(nil), r.HighKeywords...)
	}
	if len(r.ActionKeywords) == 0 {
		r.ActionKeywords = d.ActionKeywords
	}
	if len(r.PositiveKeywords) == 0 {
		r.PositiveKeywords = d.PositiveKeywords
	}
	if len(r.NegativeKeywords) == 0 {
		r.NegativeKeywords = d.NegativeKeywords
	}
	if r.HighThreshold == 0 {
		r.HighThreshold = d.HighThreshold
	}
	if r.MediumThreshold == 0 {
		r.MediumThreshold = d.MediumThreshold
	}
	return r
}
