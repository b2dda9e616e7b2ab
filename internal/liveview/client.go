package liveview

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/rallyhq/scoreboard/internal/broker"
	"github.com/rallyhq/scoreboard/internal/models"
)

// ClientConfig holds settings for a live leaderboard client
type ClientConfig struct {
	BaseURL        string        // e.g. http://localhost:8080
	StreamPath     string        // WebSocket endpoint, default /ws
	SnapshotPath   string        // ranking endpoint, default /participants
	ResyncBackoff  time.Duration // wait between reconnect attempts
	MaxResyncTries int           // consecutive failures before the client reports degraded
}

// DefaultClientConfig returns default client settings
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL:        baseURL,
		StreamPath:     "/ws",
		SnapshotPath:   "/participants",
		ResyncBackoff:  2 * time.Second,
		MaxResyncTries: 5,
	}
}

// Client keeps a Reconciler synchronized with a leaderboard server.
//
// Each session follows the snapshot/stream protocol: attach the event
// stream first, let events buffer, fetch the snapshot, apply it, replay
// whatever buffered, then stay live. A lost connection restarts the whole
// protocol; resuming from an unknown point is not supported.
type Client struct {
	config     ClientConfig
	clock      clockwork.Clock
	dialer     *websocket.Dialer
	httpClient *http.Client
	reconciler *Reconciler

	// OnUpdate, when set, is invoked with the freshly sorted view after
	// every applied event and after every snapshot.
	OnUpdate func([]Entry)

	mu       sync.Mutex
	degraded bool
	lastErr  error
}

// NewClient creates a client around a fresh Reconciler
func NewClient(config ClientConfig, clock clockwork.Clock) *Client {
	if config.StreamPath == "" {
		config.StreamPath = "/ws"
	}
	if config.SnapshotPath == "" {
		config.SnapshotPath = "/participants"
	}
	if config.ResyncBackoff <= 0 {
		config.ResyncBackoff = 2 * time.Second
	}
	if config.MaxResyncTries <= 0 {
		config.MaxResyncTries = 5
	}
	return &Client{
		config:     config,
		clock:      clock,
		dialer:     websocket.DefaultDialer,
		httpClient: http.DefaultClient,
		reconciler: NewReconciler(),
	}
}

// View returns the client's current reconciled ranking
func (c *Client) View() []Entry {
	return c.reconciler.View()
}

// Degraded reports whether resynchronization has repeatedly failed.
// The client keeps retrying; the flag clears on the next good session.
func (c *Client) Degraded() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.degraded, c.lastErr
}

// Run keeps the client synchronized until ctx is cancelled. Connection
// loss is recovered internally with a full re-initialization; Run only
// returns on cancellation.
func (c *Client) Run(ctx context.Context) error {
	failures := 0
	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		failures++
		c.recordFailure(failures, err)
		log.Warn().
			Err(err).
			Int("consecutive_failures", failures).
			Msg("live connection lost, resynchronizing")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.clock.After(c.config.ResyncBackoff):
		}
	}
}

// session runs one full initialize-then-stream cycle. It returns when the
// stream drops or ctx is cancelled.
func (c *Client) session(ctx context.Context) error {
	wsURL := websocketURL(c.config.BaseURL) + c.config.StreamPath

	conn, resp, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// Close the socket on cancellation so the read loop unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	// Stream first: events that arrive while the snapshot is in flight
	// pile up here and replay after the snapshot applies.
	events := make(chan broker.Event, broker.DefaultBacklog)
	readErr := make(chan error, 1)
	go func() {
		defer close(events)
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			var event broker.Event
			if err := json.Unmarshal(message, &event); err != nil {
				log.Warn().Err(err).Msg("skipping malformed event frame")
				continue
			}
			// A full buffer with a finished session would otherwise pin
			// this goroutine forever.
			select {
			case events <- event:
			case <-done:
				return
			}
		}
	}()

	snapshot, err := c.fetchSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("fetch snapshot: %w", err)
	}
	c.reconciler.ApplySnapshot(snapshot)
	c.clearFailure()
	c.notify()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				return <-readErr
			}
			if err := c.reconciler.Apply(event); err != nil {
				log.Warn().Err(err).Str("event_id", event.ID).Msg("skipping unappliable event")
				continue
			}
			c.notify()
		}
	}
}

type rankingResponse struct {
	Success      bool                 `json:"success"`
	Message      string               `json:"message"`
	Participants []models.Participant `json:"participants"`
}

func (c *Client) fetchSnapshot(ctx context.Context) ([]models.Participant, error) {
	url := c.config.BaseURL + c.config.SnapshotPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("snapshot request returned %d", resp.StatusCode)
	}

	var body rankingResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if !body.Success {
		return nil, fmt.Errorf("snapshot request failed: %s", body.Message)
	}
	return body.Participants, nil
}

func (c *Client) notify() {
	if c.OnUpdate != nil {
		c.OnUpdate(c.reconciler.View())
	}
}

func (c *Client) recordFailure(failures int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = err
	if failures >= c.config.MaxResyncTries {
		c.degraded = true
	}
}

func (c *Client) clearFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.degraded = false
	c.lastErr = nil
}

func websocketURL(baseURL string) string {
	switch {
	case strings.HasPrefix(baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(baseURL, "https://")
	case strings.HasPrefix(baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(baseURL, "http://")
	default:
		return baseURL
	}
}
