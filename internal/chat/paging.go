package chat

import (
	"strings"

	"github.com/giriraj-roy-7723/wellnest-chat/internal/models"
)

// pageNewestFirst pages the messages array from the end: page 1 holds the
// newest `size` messages, and every page is returned newest first.
func pageNewestFirst(msgs []models.Message, page, size int) []models.Message {
	total := len(msgs)
	start := total - page*size
	if start < 0 {
		start = 0
	}
	end := total - (page-1)*size
	if end < start {
		end = start
	}
	out := make([]models.Message, end-start)
	copy(out, msgs[start:end])
	reverse(out)
	return out
}

// searchNewestFirst returns at most `limit` case-insensitive substring
// matches, most recent first.
func searchNewestFirst(msgs []models.Message, term string, limit int) []models.Message {
	needle := strings.ToLower(term)
	var matches []models.Message
	for _, m := range msgs {
		if strings.Contains(strings.ToLower(m.Body), needle) {
			matches = append(matches, m)
		}
	}
	if limit > 0 && len(matches) > limit {
		matches = matches[len(matches)-limit:]
	}
	out := make([]models.Message, len(matches))
	copy(out, matches)
	reverse(out)
	return out
}

func reverse(msgs []models.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
