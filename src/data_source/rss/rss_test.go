package rss

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Markets</title>
<item><title>Older</title><link>https://example.com/1</link><guid>g1</guid><pubDate>Wed, 12 Mar 2025 01:00:00 GMT</pubDate></item>
<item><title>Newer</title><link>https://example.com/2</link><pubDate>Wed, 12 Mar 2025 02:00:00 GMT</pubDate></item>
</channel></rss>`

func TestParseOrdersNewestFirst(t *testing.T) {
	items, err := Parse([]byte(sample))
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "Newer", items[0].Title)
	assert.Equal(t, "https://example.com/2", ItemKey(items[0]))
	assert.Equal(t, "g1", ItemKey(items[1]))
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse([]byte("not a feed"))
	assert.Error(t, err)
}
