package digest

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/dragon-zzuni/smart-assistant/internal/domain"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

func chat(id, sender, platform string, at time.Duration, body string) domain.Message {
	return domain.Message{
		ID:        id,
		Sender:    sender,
		Platform:  platform,
		Source:    domain.SourceChat,
		Body:      body,
		Timestamp: base.Add(at),
	}
}

// messagesFromSeeds decodes generated integers into a message batch with a
// small set of senders and platforms so merges actually happen.
func messagesFromSeeds(seeds []int) []domain.Message {
	senders := []string{"김과장", "lee", "park"}
	platforms := []string{"slack", "teams"}
	out := make([]domain.Message, 0, len(seeds))
	for i, v := range seeds {
		out = append(out, chat(
			fmt.Sprintf("m%d", i),
			senders[v%3],
			platforms[(v/3)%2],
			time.Duration((v/6)%400)*time.Second,
			fmt.Sprintf("body %d", i),
		))
	}
	return out
}

func TestCoalesce_MergesBurstFromSameSender(t *testing.T) {
	c := NewCoalescer(CoalesceOptions{Window: 90 * time.Second})

	out := c.Coalesce([]domain.Message{
		chat("a", "김과장", "slack", time.Minute, "회의 자료 공유드립니다"),
		chat("b", "김과장", "slack", 0, "안녕하세요"),
	})

	require.Len(t, out, 1)
	assert.Equal(t, "안녕하세요\n회의 자료 공유드립니다", out[0].Body)
	assert.Equal(t, "b+a", out[0].ID)
	assert.Equal(t, []string{"b", "a"}, out[0].Parts)
	assert.Equal(t, base.Add(time.Minute), out[0].Timestamp)
	assert.True(t, out[0].IsCoalesced())
}

func TestCoalesce_WindowIsMeasuredFromLatestMerged(t *testing.T) {
	c := NewCoalescer(CoalesceOptions{Window: 90 * time.Second})

	out := c.Coalesce([]domain.Message{
		chat("a", "kim", "slack", 0, "1"),
		chat("b", "kim", "slack", 80*time.Second, "2"),
		chat("c", "kim", "slack", 160*time.Second, "3"),
		chat("d", "kim", "slack", 300*time.Second, "4"),
	})

	require.Len(t, out, 2)
	assert.Equal(t, "a+b+c", out[0].ID)
	assert.Equal(t, "d", out[1].ID)
}

func TestCoalesce_NeverMergesAcrossSendersOrPlatforms(t *testing.T) {
	c := NewCoalescer(CoalesceOptions{})

	out := c.Coalesce([]domain.Message{
		chat("a", "A", "slack", 0, "x"),
		chat("b", "B", "slack", time.Second, "y"),
	})
	assert.Len(t, out, 2)

	out = c.Coalesce([]domain.Message{
		chat("a", "A", "slack", 0, "x"),
		chat("b", "A", "teams", time.Second, "y"),
	})
	assert.Len(t, out, 2)
}

func TestCoalesce_NeverMergesMail(t *testing.T) {
	c := NewCoalescer(CoalesceOptions{})
	first := chat("a", "boss@company.com", "email", 0, "x")
	first.Source = domain.SourceMail
	second := chat("b", "boss@company.com", "email", time.Second, "y")
	second.Source = domain.SourceMail

	assert.Len(t, c.Coalesce([]domain.Message{first, second}), 2)
}

func TestCoalesce_TruncatesOnlyMergedBodies(t *testing.T) {
	c := NewCoalescer(CoalesceOptions{MaxChars: 5})

	long := strings.Repeat("가", 20)
	out := c.Coalesce([]domain.Message{chat("solo", "kim", "slack", 0, long)})
	require.Len(t, out, 1)
	assert.Equal(t, long, out[0].Body)

	out = c.Coalesce([]domain.Message{
		chat("a", "kim", "slack", 0, "abc"),
		chat("b", "kim", "slack", time.Second, "defgh"),
	})
	require.Len(t, out, 1)
	assert.Equal(t, "abc\nd"+TruncationMarker, out[0].Body)
}

func TestCoalesce_DoesNotMutateInput(t *testing.T) {
	c := NewCoalescer(CoalesceOptions{})
	in := []domain.Message{
		chat("b", "kim", "slack", time.Second, "2"),
		chat("a", "kim", "slack", 0, "1"),
	}
	_ = c.Coalesce(in)
	assert.Equal(t, "b", in[0].ID)
	assert.Nil(t, c.Coalesce(nil))
}

func TestProperty_Coalescing(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	seedsGen := gen.SliceOf(gen.IntRange(0, 1<<20))

	// coalesce(coalesce(M)) == coalesce(M)
	properties.Property("coalescing_is_idempotent", prop.ForAll(
		func(seeds []int) bool {
			c := NewCoalescer(CoalesceOptions{Window: 90 * time.Second, MaxChars: 24})
			once := c.Coalesce(messagesFromSeeds(seeds))
			twice := c.Coalesce(once)
			return reflect.DeepEqual(once, twice)
		},
		seedsGen,
	))

	properties.Property("merged_turns_share_sender_and_platform", prop.ForAll(
		func(seeds []int) bool {
			in := messagesFromSeeds(seeds)
			byID := make(map[string]domain.Message, len(in))
			for _, m := range in {
				byID[m.ID] = m
			}
			c := NewCoalescer(CoalesceOptions{})
			for _, out := range c.Coalesce(in) {
				for _, id := range out.Parts {
					orig := byID[id]
					if orig.Sender != out.Sender || orig.Platform != out.Platform {
						return false
					}
				}
			}
			return true
		},
		seedsGen,
	))

	properties.Property("no_message_is_lost", prop.ForAll(
		func(seeds []int) bool {
			in := messagesFromSeeds(seeds)
			count := 0
			for _, out := range NewCoalescer(CoalesceOptions{}).Coalesce(in) {
				if out.IsCoalesced() {
					count += len(out.Parts)
				} else {
					count++
				}
			}
			return count == len(in)
		},
		seedsGen,
	))

	properties.TestingRun(t)
}
