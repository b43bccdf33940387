package chat

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/giriraj-roy-7723/wellnest-chat/internal/models"
)

func msgs(n int) []models.Message {
	out := make([]models.Message, n)
	for i := range out {
		out[i] = models.Message{Body: fmt.Sprintf("m%d", i)}
	}
	return out
}

func bodies(ms []models.Message) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Body
	}
	return out
}

func TestPageNewestFirst(t *testing.T) {
	tests := []struct {
		name  string
		total int
		page  int
		size  int
		want  []string
	}{
		{"single page", 3, 1, 10, []string{"m2", "m1", "m0"}},
		{"exact fit", 4, 2, 2, []string{"m1", "m0"}},
		{"partial last page", 5, 3, 2, []string{"m0"}},
		{"page beyond end", 5, 4, 2, []string{}},
		{"empty log", 0, 1, 50, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pageNewestFirst(msgs(tt.total), tt.page, tt.size)
			assert.Equal(t, tt.want, bodies(got))
		})
	}
}

func TestSearchNewestFirstIsCaseInsensitive(t *testing.T) {
	log := []models.Message{
		{Body: "take the tablets"},
		{Body: "TABLET dosage?"},
		{Body: "see you tomorrow"},
		{Body: "one tablet daily"},
	}

	got := searchNewestFirst(log, "TaBlEt", 10)
	assert.Equal(t, []string{"one tablet daily", "TABLET dosage?", "take the tablets"}, bodies(got))
}

func TestSearchNewestFirstHonorsLimit(t *testing.T) {
	log := []models.Message{
		{Body: "hello a"},
		{Body: "hello b"},
		{Body: "hello c"},
	}

	got := searchNewestFirst(log, "hello", 2)
	// the two most recent matches, newest first
	assert.Equal(t, []string{"hello c", "hello b"}, bodies(got))
}

func TestSearchNewestFirstNoMatches(t *testing.T) {
	got := searchNewestFirst(msgs(5), "absent", 10)
	assert.Empty(t, got)
}
