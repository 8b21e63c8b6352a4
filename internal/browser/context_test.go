package browser

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionContext_HistoryTruncates(t *testing.T) {
	c := NewSessionContext()
	for i := 0; i < historyLimit+5; i++ {
		c.Record("click", fmt.Sprintf("button-%d", i))
	}

	h := c.History()
	require.Len(t, h, historyLimit)
	assert.Equal(t, "button-5", h[0].Detail)
	assert.Equal(t, fmt.Sprintf("button-%d", historyLimit+4), h[len(h)-1].Detail)

	for _, rec := range h {
		assert.NotEmpty(t, rec.ID)
		assert.False(t, rec.Time.IsZero())
	}
}

func TestSessionContext_ObserveReturnsPrevious(t *testing.T) {
	c := NewSessionContext()

	prevURL, prevTitle := c.Observe("http://a", "A")
	assert.Empty(t, prevURL)
	assert.Empty(t, prevTitle)

	prevURL, prevTitle = c.Observe("http://b", "B")
	assert.Equal(t, "http://a", prevURL)
	assert.Equal(t, "A", prevTitle)

	url, title := c.Last()
	assert.Equal(t, "http://b", url)
	assert.Equal(t, "B", title)
}

func TestSessionContext_Summarize(t *testing.T) {
	c := NewSessionContext()
	c.Record("navigate", "http://a")
	c.Record("click", "submit")
	c.Record("type", "login form")

	assert.Equal(t, "click submit; type login form", c.Summarize(2))
	assert.Equal(t, "navigate http://a; click submit; type login form", c.Summarize(10))
	assert.Equal(t, "", NewSessionContext().Summarize(3))
}
