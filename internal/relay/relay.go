// Package relay republishes leaderboard events onto NATS JetStream so
// systems outside this process can follow the score stream. It is an
// egress feed only; observer fan-out stays on the in-process broker.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/rallyhq/scoreboard/internal/broker"
)

// Config holds JetStream relay settings
type Config struct {
	URL             string
	StreamName      string
	SubjectPrefix   string
	MaxReconnects   int
	ReconnectWait   time.Duration
	MaxAge          time.Duration // How long to keep messages
	MaxMsgs         int64         // Max number of messages to keep
	Replicas        int           // Number of replicas for the stream
	DuplicateWindow time.Duration // Window for duplicate detection
}

// DefaultConfig returns default relay settings
func DefaultConfig() Config {
	return Config{
		URL:             nats.DefaultURL,
		StreamName:      "SCORE_EVENTS",
		SubjectPrefix:   "scores.events",
		MaxReconnects:   -1, // Infinite
		ReconnectWait:   2 * time.Second,
		MaxAge:          7 * 24 * time.Hour,
		MaxMsgs:         -1, // No limit
		Replicas:        1,
		DuplicateWindow: 2 * time.Hour,
	}
}

// Relay forwards events from a broker subscription to JetStream
type Relay struct {
	broker *broker.Broker
	nc     *nats.Conn
	js     jetstream.JetStream
	config Config
}

// New connects to NATS and ensures the event stream exists
func New(b *broker.Broker, cfg Config) (*Relay, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	r := &Relay{broker: b, nc: nc, js: js, config: cfg}

	if err := r.ensureStream(context.Background()); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	return r, nil
}

func (r *Relay) ensureStream(ctx context.Context) error {
	sc := jetstream.StreamConfig{
		Name:        r.config.StreamName,
		Description: "Leaderboard score event stream",
		Subjects:    []string{fmt.Sprintf("%s.>", r.config.SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      r.config.MaxAge,
		MaxMsgs:     r.config.MaxMsgs,
		Storage:     jetstream.FileStorage,
		Replicas:    r.config.Replicas,
		Duplicates:  r.config.DuplicateWindow,
	}

	if _, err := r.js.Stream(ctx, r.config.StreamName); err != nil {
		if _, err = r.js.CreateStream(ctx, sc); err != nil {
			return fmt.Errorf("create stream: %w", err)
		}
		log.Info().
			Str("stream", r.config.StreamName).
			Msg("created JetStream stream")
	}
	return nil
}

// Run subscribes to the broker and forwards events until ctx is cancelled.
// If the broker drops the relay's subscription it resubscribes and keeps
// going; JetStream consumers reconcile exactly like any other observer.
func (r *Relay) Run(ctx context.Context) {
	sub := r.broker.Subscribe()
	defer func() { r.broker.Unsubscribe(sub) }()

	log.Info().
		Str("stream", r.config.StreamName).
		Str("subject_prefix", r.config.SubjectPrefix).
		Msg("relay started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("relay shutting down")
			return
		case event, ok := <-sub.Events():
			if !ok {
				log.Warn().Msg("relay subscription dropped, resubscribing")
				sub = r.broker.Subscribe()
				continue
			}
			if err := r.publish(ctx, event); err != nil {
				log.Error().Err(err).Str("event_id", event.ID).Msg("failed to relay event")
			}
		}
	}
}

func (r *Relay) publish(ctx context.Context, event broker.Event) error {
	subject := fmt.Sprintf("%s.%s", r.config.SubjectPrefix, event.Type)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ack, err := r.js.PublishMsg(ctx, &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"Event-Type": []string{string(event.Type)},
			"Event-ID":   []string{event.ID},
		},
	},
		jetstream.WithMsgID(event.ID),
		jetstream.WithExpectStream(r.config.StreamName),
	)
	if err != nil {
		return fmt.Errorf("publish to JetStream: %w", err)
	}

	log.Debug().
		Str("subject", subject).
		Str("event_id", event.ID).
		Uint64("sequence", ack.Sequence).
		Msg("relayed to JetStream")

	return nil
}

// Close closes the NATS connection
func (r *Relay) Close() {
	if r.nc != nil {
		r.nc.Close()
	}
}
