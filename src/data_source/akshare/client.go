package akshare

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"market-pulse/src/helpers"
	"market-pulse/src/interfaces"
	"market-pulse/src/logger"
)

// Client reads list endpoints of an AKShare HTTP bridge.
type Client struct {
	BaseURL  string
	Network  interfaces.INetworkManager
	Location *time.Location
	Logger   *logger.Logger

	// now is replaceable in tests.
	now func() time.Time
}

// -----------------------------------------------------------------------------

func NewClient(baseURL string, network interfaces.INetworkManager, loc *time.Location, log *logger.Logger) *Client {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Client{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Network:  network,
		Location: loc,
		Logger:   log,
		now:      time.Now,
	}
}

// -----------------------------------------------------------------------------

// Now returns the current time in the exchange timezone.
func (c *Client) Now() time.Time {
	return c.now().In(c.Location)
}

// -----------------------------------------------------------------------------

// getList fetches path and decodes the JSON array into out.
func (c *Client) getList(ctx context.Context, path string, params map[string]string, out interface{}) error {
	body, err := c.getRaw(ctx, path, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return helpers.NewDataSourceError(path+": decode", err)
	}
	return nil
}

// getRaw fetches path and returns the body when it is a JSON array. Any other
// payload shape is a DataSourceError.
func (c *Client) getRaw(ctx context.Context, path string, params map[string]string) ([]byte, error) {
	url := c.BaseURL + "/" + strings.TrimLeft(path, "/")
	body, err := c.Network.Get(ctx, url, params)
	if err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, helpers.NewDataSourceError(fmt.Sprintf("%s: expected a list, got %s", path, preview(trimmed)), nil)
	}
	return trimmed, nil
}

func preview(b []byte) string {
	if len(b) == 0 {
		return "empty body"
	}
	if len(b) > 64 {
		return string(b[:64]) + "..."
	}
	return string(b)
}
