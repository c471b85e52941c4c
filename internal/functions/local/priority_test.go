package local

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dragon-zzuni/smart-assistant/internal/domain"
)

func TestProperty_PriorityRanking(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	ranker := NewRanker(DefaultRules())

	textGen := gen.SliceOfN(40, gen.AlphaLowerChar()).Map(func(chars []rune) string {
		return string(chars)
	})

	properties.Property("urgent_keyword_is_high_tier", prop.ForAll(
		func(prefix, suffix string) bool {
			msg := domain.Message{ID: "m", Sender: "someone", Body: prefix + " 긴급 " + suffix}
			score := ranker.Score(msg)
			return score.Tier == domain.TierHigh && score.Score >= DefaultHighThreshold
		},
		textGen,
		textGen,
	))

	properties.Property("score_is_deterministic_and_bounded", prop.ForAll(
		func(subject, body string) bool {
			msg := domain.Message{ID: "m", Sender: "boss@company.com", Subject: subject, Body: body, UrgencyHint: domain.UrgencyHigh}
			a, b := ranker.Score(msg), ranker.Score(msg)
			return a.Score == b.Score && a.Tier == b.Tier && a.Score >= 0 && a.Score <= 1
		},
		textGen,
		textGen,
	))

	properties.Property("rank_keeps_every_message", prop.ForAll(
		func(bodies []string) bool {
			msgs := make([]domain.Message, len(bodies))
			for i, b := range bodies {
				msgs[i] = domain.Message{ID: string(rune('a' + i%26)), Body: b}
			}
			ranked := ranker.Rank(msgs)
			if len(ranked) != len(msgs) {
				return false
			}
			for i := 1; i < len(ranked); i++ {
				if ranked[i-1].Priority.Score < ranked[i].Priority.Score {
					return false
				}
			}
			return true
		},
		gen.SliceOf(textGen),
	))

	properties.TestingRun(t)
}

func TestRanker_Signals(t *testing.T) {
	ranker := NewRanker(DefaultRules())

	score := ranker.Score(domain.Message{ID: "x", Sender: "Boss <Boss@Company.com>", Body: "검토 부탁드립니다"})
	assert.Equal(t, domain.TierHigh, score.Tier)
	assert.InDelta(t, 0.6, score.Score, 1e-9)
	names := make([]string, 0, len(score.Signals))
	for _, s := range score.Signals {
		names = append(names, s.Name)
	}
	assert.ElementsMatch(t, []string{SignalMediumKeyword, SignalHighSender}, names)
}

func TestRanker_MissingFields(t *testing.T) {
	ranker := NewRanker(DefaultRules())

	score := ranker.Score(domain.Message{ID: "empty"})
	assert.Equal(t, domain.TierLow, score.Tier)
	assert.Zero(t, score.Score)
	assert.Empty(t, score.Signals)
}

func TestRanker_StableTies(t *testing.T) {
	ranker := NewRanker(DefaultRules())
	msgs := []domain.Message{
		{ID: "1", Body: "hello"},
		{ID: "2", Body: "긴급"},
		{ID: "3", Body: "world"},
	}
	ranked := ranker.Rank(msgs)
	require.Len(t, ranked, 3)
	assert.Equal(t, "2", ranked[0].Message.ID)
	assert.Equal(t, "1", ranked[1].Message.ID)
	assert.Equal(t, "3", ranked[2].Message.ID)
}

func TestRanker_UrgencyHint(t *testing.T) {
	ranker := NewRanker(DefaultRules())
	score := ranker.Score(domain.Message{ID: "x", Body: "fyi", UrgencyHint: domain.UrgencyHigh})
	assert.Equal(t, domain.TierHigh, score.Tier)
}
