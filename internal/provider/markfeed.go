package provider

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"time"

	"github.com/fzheng/SigmaPilot/internal/domain"

	"github.com/gorilla/websocket"
)

const hyperWSURL = "wss://api.hyperliquid.xyz/ws"

type allMidsEnvelope struct {
	Channel string `json:"channel"`
	Data    struct {
		Mids map[string]string `json:"mids"`
	} `json:"data"`
}

// MarkFeed streams mid updates over the Hyperliquid websocket and hands
// each usable mid to the apply callback. The feed reconnects with capped
// backoff until its context ends, so the poller remains the fallback when
// the venue is flapping.
type MarkFeed struct {
	url   string
	apply func(asset string, mid float64, ts time.Time)
}

func NewMarkFeed(url string, apply func(asset string, mid float64, ts time.Time)) *MarkFeed {
	if url == "" {
		url = hyperWSURL
	}
	return &MarkFeed{url: url, apply: apply}
}

func (f *MarkFeed) Run(ctx context.Context) error {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := f.consume(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("Mark feed disconnected, retrying in %s: %v", backoff, err)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (f *MarkFeed) consume(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	sub := map[string]any{
		"method":       "subscribe",
		"subscription": map[string]string{"type": "allMids"},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return err
	}
	log.Printf("Mark feed connected to %s", f.url)

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(25 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-ctx.Done():
				// Closing the connection unblocks ReadMessage below.
				conn.Close()
				return
			case <-done:
				return
			}
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var env allMidsEnvelope
		if err := json.Unmarshal(message, &env); err != nil {
			log.Printf("Mark feed decode error: %v", err)
			continue
		}
		if env.Channel != "allMids" {
			continue
		}

		now := time.Now()
		for asset, str := range env.Data.Mids {
			if !domain.IsSupportedAsset(asset) {
				continue
			}
			mid, err := strconv.ParseFloat(str, 64)
			if err != nil || mid <= 0 {
				continue
			}
			f.apply(asset, mid, now)
		}
	}
}
