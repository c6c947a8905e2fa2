package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"realtopia/internal/game"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type StateView struct {
	State          game.GameState `json:"state"`
	NetWorthMicros int64          `json:"net_worth_micros"`
	NextUnlock     *struct {
		Type            game.PropertyType `json:"type"`
		NetWorthMicros  int64             `json:"net_worth_micros"`
		RemainingMicros int64             `json:"remaining_micros"`
	} `json:"next_unlock,omitempty"`
}

func (c *Client) State(ctx context.Context) (StateView, error) {
	var out StateView
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/state", nil, &out)
	return out, err
}

func (c *Client) Market(ctx context.Context) (game.MarketInfo, error) {
	var out game.MarketInfo
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/market", nil, &out)
	return out, err
}

// Properties lists the grid. An empty typ matches every category.
func (c *Client) Properties(ctx context.Context, filter game.PropertyFilter, typ game.PropertyType) ([]game.Property, error) {
	q := url.Values{}
	if filter != "" && filter != game.FilterAll {
		q.Set("filter", string(filter))
	}
	if typ != "" {
		q.Set("type", string(typ))
	}
	path := "/v1/properties"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out struct {
		Properties []game.Property `json:"properties"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, path, nil, &out)
	return out.Properties, err
}

func (c *Client) Property(ctx context.Context, id string) (game.PropertyDetail, error) {
	var out game.PropertyDetail
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/properties/"+url.PathEscape(id), nil, &out)
	return out, err
}

func (c *Client) Buy(ctx context.Context, id string) (game.TradeResult, error) {
	var out game.TradeResult
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/properties/"+url.PathEscape(id)+"/buy", nil, &out)
	return out, err
}

func (c *Client) Sell(ctx context.Context, id string) (game.TradeResult, error) {
	var out game.TradeResult
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/properties/"+url.PathEscape(id)+"/sell", nil, &out)
	return out, err
}

func (c *Client) Events(ctx context.Context) ([]game.MarketEvent, error) {
	var out struct {
		Events []game.MarketEvent `json:"events"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/events", nil, &out)
	return out.Events, err
}

func (c *Client) StartEvent(ctx context.Context, code string) (game.MarketEvent, error) {
	var out game.MarketEvent
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/events", map[string]any{"code": code}, &out)
	return out, err
}

func (c *Client) Achievements(ctx context.Context, unlockedOnly bool) ([]game.Achievement, error) {
	path := "/v1/achievements"
	if unlockedOnly {
		path += "?unlocked=1"
	}
	var out struct {
		Achievements []game.Achievement `json:"achievements"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, path, nil, &out)
	return out.Achievements, err
}

// SetPaused sets the paused flag, or toggles it when paused is nil.
func (c *Client) SetPaused(ctx context.Context, paused *bool) (game.GameState, error) {
	var in any
	if paused != nil {
		in = map[string]any{"paused": *paused}
	}
	var out game.GameState
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/game/pause", in, &out)
	return out, err
}

func (c *Client) Reset(ctx context.Context) (game.GameState, error) {
	var out game.GameState
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/game/reset", nil, &out)
	return out, err
}

// Stream calls fn for every update pushed by the server until ctx is done
// or the connection drops.
func (c *Client) Stream(ctx context.Context, fn func(game.Update)) error {
	wsURL, err := streamURL(c.BaseURL)
	if err != nil {
		return err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial stream: %w", err)
	}
	defer conn.Close()

	// closer exits when ctx ends or the read loop returns, whichever is first
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
		}
	}()
	defer func() {
		close(done)
		<-exited
	}()

	for {
		var u game.Update
		if err := conn.ReadJSON(&u); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("read stream: %w", err)
		}
		fn(u)
	}
}

func streamURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", errors.New("base url must be http or https")
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/v1/stream"
	return u.String(), nil
}

func (c *Client) jsonRequest(ctx context.Context, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("api status %d: %s", resp.StatusCode, errorMessage(raw))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func errorMessage(raw []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(raw))
}
