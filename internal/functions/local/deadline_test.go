package local

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Wednesday
var deadlineRef = time.Date(2024, 3, 13, 10, 0, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestFirstDeadline(t *testing.T) {
	cases := []struct {
		text  string
		class DeadlineClass
		match string
		due   time.Time
	}{
		{"오늘까지 부탁해요", DeadlineRelative, "오늘까지", day(2024, 3, 13)},
		{"내일까지 보내주세요", DeadlineRelative, "내일까지", day(2024, 3, 14)},
		{"이번 주까지 정리", DeadlineRelative, "이번 주까지", day(2024, 3, 15)},
		{"다음주까지 제출", DeadlineRelative, "다음주까지", day(2024, 3, 22)},
		{"금요일까지 회신", DeadlineWeekday, "금요일까지", day(2024, 3, 15)},
		{"수요일까지 회신", DeadlineWeekday, "수요일까지", day(2024, 3, 13)},
		{"3월 20일 발표", DeadlineKoDate, "3월 20일", day(2024, 3, 20)},
		{"마감은 4/2 입니다", DeadlineSlashDate, "4/2", day(2024, 4, 2)},
		{"due 2024-04-01 please", DeadlineISODate, "2024-04-01", day(2024, 4, 1)},
		{"send it by Friday", DeadlineByPhrase, "by Friday", day(2024, 3, 15)},
		{"reply by tomorrow", DeadlineByPhrase, "by tomorrow", day(2024, 3, 14)},
	}

	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			d, ok := FirstDeadline(tc.text, deadlineRef)
			require.True(t, ok)
			assert.Equal(t, tc.class, d.Class)
			assert.Equal(t, tc.match, d.Text)
			require.NotNil(t, d.Due)
			assert.True(t, tc.due.Equal(*d.Due), "got %s", d.Due)
		})
	}
}

func TestFindDeadlines_OnePerClass(t *testing.T) {
	found := FindDeadlines("3월 20일 또는 3월 21일, 늦어도 내일까지", deadlineRef)
	require.Len(t, found, 2)
	assert.Equal(t, DeadlineKoDate, found[0].Class)
	assert.Equal(t, "3월 20일", found[0].Text)
	assert.Equal(t, DeadlineRelative, found[1].Class)
}

func TestFindDeadlines_InvalidDate(t *testing.T) {
	d, ok := FirstDeadline("2/30 까지", deadlineRef)
	require.True(t, ok)
	assert.Equal(t, "2/30", d.Text)
	assert.Nil(t, d.Due)
}

func TestFindDeadlines_YearRollover(t *testing.T) {
	ref := time.Date(2024, 12, 20, 9, 0, 0, 0, time.UTC)
	d, ok := FirstDeadline("1월 3일까지", ref)
	require.True(t, ok)
	require.NotNil(t, d.Due)
	assert.True(t, day(2025, 1, 3).Equal(*d.Due))
}

func TestFindDeadlines_None(t *testing.T) {
	assert.Empty(t, FindDeadlines("", deadlineRef))
	assert.Empty(t, FindDeadlines("그냥 안부 인사입니다", deadlineRef))
	assert.Empty(t, FindDeadlines("2024/03/05 기록", deadlineRef))
}
