// Package wa adapts whatsmeow to the bot's Transport interface: session
// pairing, the event loop, and outbound operations with rate limiting and
// retries.
package wa

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mdp/qrterminal"
	"golang.org/x/term"
	"golang.org/x/time/rate"

	wm "go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"
)

type Config struct {
	SessionDBPath      string
	MaxConnAttempts    int
	ReconnectBaseDelay time.Duration
}

type Client struct {
	wm           *wm.Client
	log          waLog.Logger
	limiterSend  *rate.Limiter
	limiterMedia *rate.Limiter
}

func useANSI() bool { return term.IsTerminal(int(os.Stdout.Fd())) }

// Connect opens (or creates) the device session and brings the socket up.
// A fresh device prints a pairing QR to the terminal and blocks until it is
// scanned.
func Connect(ctx context.Context, cfg Config, logger waLog.Logger) (*Client, error) {
	dbLog := waLog.Stdout("Database", "WARN", useANSI())
	container, err := sqlstore.New(ctx, "sqlite3", "file:"+cfg.SessionDBPath+"?_foreign_keys=on", dbLog)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	device, err := container.GetFirstDevice(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		device = container.NewDevice()
	} else if err != nil {
		return nil, fmt.Errorf("load device: %w", err)
	}

	c := &Client{
		wm:           wm.NewClient(device, logger),
		log:          logger,
		limiterSend:  rate.NewLimiter(rate.Every(50*time.Millisecond), 5),
		limiterMedia: rate.NewLimiter(rate.Every(150*time.Millisecond), 2),
	}

	if c.wm.Store.ID == nil {
		qrChan, _ := c.wm.GetQRChannel(ctx)
		if err := c.wm.Connect(); err != nil {
			return nil, fmt.Errorf("connect for pairing: %w", err)
		}
		for evt := range qrChan {
			switch evt.Event {
			case "code":
				logger.Infof("Scan the QR code to link this device")
				qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, os.Stdout)
			case "success":
				logger.Infof("Device linked")
			}
			if evt.Event == "success" {
				break
			}
		}
	} else if err := c.wm.Connect(); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	if err := c.connectWithRetry(ctx, cfg.MaxConnAttempts, cfg.ReconnectBaseDelay); err != nil {
		return nil, err
	}
	_ = c.wm.SendPresence(ctx, types.PresenceAvailable)
	return c, nil
}

func (c *Client) connectWithRetry(ctx context.Context, attempts int, delay time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if c.wm.IsConnected() {
			return nil
		}
		if err = c.wm.Connect(); err == nil && c.wm.IsConnected() {
			return nil
		}
		select {
		case <-time.After(delay + time.Duration(i)*250*time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err == nil {
		err = errors.New("not connected")
	}
	return fmt.Errorf("connect after %d attempts: %w", attempts, err)
}

func (c *Client) Disconnect() { c.wm.Disconnect() }

// BotPhone is the bot's own phone number, for membership checks.
func (c *Client) BotPhone() string {
	if c.wm.Store.ID == nil {
		return ""
	}
	return c.wm.Store.ID.User
}

// parseJID turns a raw chat identifier into a types.JID, tolerating lid
// forms some parser versions reject.
func parseJID(raw string) (types.JID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return types.JID{}, errors.New("empty jid")
	}
	if !strings.Contains(raw, "@") {
		return types.JID{User: raw, Server: types.DefaultUserServer}, nil
	}
	if j, err := types.ParseJID(raw); err == nil {
		return j, nil
	}
	parts := strings.SplitN(raw, "@", 2)
	return types.JID{User: parts[0], Server: parts[1]}, nil
}
