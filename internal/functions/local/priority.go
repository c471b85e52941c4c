package local

import (
	"net/mail"
	"sort"
	"strings"

	"github.com/dragon-zzuni/smart-assistant/internal/domain"
)

// Signal names reported in a score breakdown
const (
	SignalHighKeyword   = "high_keyword"
	SignalMediumKeyword = "medium_keyword"
	SignalHighSender    = "high_sender"
	SignalUrgency       = "urgency_marker"
)

// Signal weights. The first keyword of a class carries the base weight and
// each further distinct keyword adds the step, up to the cap.
const (
	highKeywordBase   = 0.5
	highKeywordStep   = 0.05
	highKeywordCap    = 0.65
	mediumKeywordBase = 0.2
	mediumKeywordStep = 0.05
	mediumKeywordCap  = 0.3
	highSenderWeight  = 0.4
	urgencyHighWeight = 0.5
	urgencyMedWeight  = 0.2
)

// Ranker scores messages and sorts them by urgency
type Ranker struct {
	rules   Rules
	senders map[string]bool
}

// NewRanker creates a new Ranker instance
func NewRanker(rules Rules) *Ranker {
	rules = rules.WithDefaults()
	senders := make(map[string]bool, len(rules.HighSenders))
	for _, s := range rules.HighSenders {
		senders[strings.ToLower(strings.TrimSpace(s))] = true
	}
	return &Ranker{rules: rules, senders: senders}
}

// Rank scores every message and returns them sorted by descending score.
// Ties keep input order. No message is ever dropped.
func (r *Ranker) Rank(messages []domain.Message) []domain.RankedMessage {
	ranked := make([]domain.RankedMessage, len(messages))
	for i, msg := range messages {
		ranked[i] = domain.RankedMessage{Message: msg, Priority: r.Score(msg)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Priority.Score > ranked[j].Priority.Score
	})
	return ranked
}

// Score computes the priority of one message. It depends only on the
// message's own sender, subject, body and urgency hint.
func (r *Ranker) Score(msg domain.Message) domain.PriorityScore {
	score := domain.PriorityScore{MessageID: msg.ID}
	text := strings.ToLower(msg.Sender + " " + msg.Subject + " " + msg.Body)

	if hits := matchedKeywords(text, r.rules.HighKeywords); len(hits) > 0 {
		score.Signals = append(score.Signals, domain.Signal{
			Name:   SignalHighKeyword,
			Weight: stepped(len(hits), highKeywordBase, highKeywordStep, highKeywordCap),
			Detail: strings.Join(hits, ","),
		})
	}

	if hits := matchedKeywords(text, r.rules.MediumKeywords); len(hits) > 0 {
		score.Signals = append(score.Signals, domain.Signal{
			Name:   SignalMediumKeyword,
			Weight: stepped(len(hits), mediumKeywordBase, mediumKeywordStep, mediumKeywordCap),
			Detail: strings.Join(hits, ","),
		})
	}

	if addr := senderAddress(msg.Sender); addr != "" && r.senders[addr] {
		score.Signals = append(score.Signals, domain.Signal{
			Name:   SignalHighSender,
			Weight: highSenderWeight,
			Detail: addr,
		})
	}

	switch msg.UrgencyHint {
	case domain.UrgencyHigh:
		score.Signals = append(score.Signals, domain.Signal{Name: SignalUrgency, Weight: urgencyHighWeight, Detail: string(msg.UrgencyHint)})
	case domain.UrgencyMedium:
		score.Signals = append(score.Signals, domain.Signal{Name: SignalUrgency, Weight: urgencyMedWeight, Detail: string(msg.UrgencyHint)})
	}

	for _, s := range score.Signals {
		score.Score += s.Weight
	}
	if score.Score > 1 {
		score.Score = 1
	}
	score.Tier = r.TierFor(score.Score)

	return score
}

// TierFor maps a score to its tier against the fixed thresholds
func (r *Ranker) TierFor(score float64) domain.Tier {
	switch {
	case score >= r.rules.HighThreshold:
		return domain.TierHigh
	case score >= r.rules.MediumThreshold:
		return domain.TierMedium
	default:
		return domain.TierLow
	}
}

// matchedKeywords returns the distinct keywords found in text, in list order
func matchedKeywords(text string, keywords []string) []string {
	var hits []string
	seen := make(map[string]bool, len(keywords))
	for _, keyword := range keywords {
		k := strings.ToLower(strings.TrimSpace(keyword))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		if strings.Contains(text, k) {
			hits = append(hits, k)
		}
	}
	return hits
}

// containsAny reports whether text contains any keyword
func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if k := strings.ToLower(strings.TrimSpace(keyword)); k != "" && strings.Contains(text, k) {
			return true
		}
	}
	return false
}

func stepped(hits int, base, step, limit float64) float64 {
	w := base + float64(hits-1)*step
	if w > limit {
		return limit
	}
	return w
}

// senderAddress extracts the lowercased address from "Name <addr>" forms
func senderAddress(sender string) string {
	sender = strings.TrimSpace(sender)
	if sender == "" {
		return ""
	}
	if addr, err := mail.ParseAddress(sender); err == nil {
		return strings.ToLower(addr.Address)
	}
	return strings.ToLower(sender)
}
