package akshare

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"market-pulse/src/helpers"
	"market-pulse/src/models"
)

// FetchQuotes reads the whole A-share spot table as one snapshot item keyed
// by a digest of the payload.
func (c *Client) FetchQuotes(ctx context.Context, feed models.MFeedConfig) ([]models.MQuoteSnapshot, error) {
	body, err := c.getRaw(ctx, feed.Path, feed.Params)
	if err != nil {
		return nil, err
	}

	var quotes []models.MQuote
	if err := json.Unmarshal(body, &quotes); err != nil {
		return nil, helpers.NewDataSourceError(feed.Path+": decode", err)
	}
	if len(quotes) == 0 {
		return nil, nil
	}

	sum := sha256.Sum256(body)
	return []models.MQuoteSnapshot{{
		Digest:    hex.EncodeToString(sum[:]),
		FetchedAt: c.Now(),
		Quotes:    quotes,
	}}, nil
}

func QuoteSnapshotKey(s models.MQuoteSnapshot) string {
	return s.Digest
}

// FilterQuotes keeps the rows whose code is in codes. An empty list keeps all.
func FilterQuotes(quotes []models.MQuote, codes []string) []models.MQuote {
	if len(codes) == 0 {
		return quotes
	}
	want := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		want[c] = struct{}{}
	}
	out := make([]models.MQuote, 0, len(codes))
	for _, q := range quotes {
		if _, ok := want[q.Code]; ok {
			out = append(out, q)
		}
	}
	return out
}
