package wa

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	wm "go.mau.fi/whatsmeow"
	waProto "go.mau.fi/whatsmeow/binary/proto"
	"go.mau.fi/whatsmeow/types"
	"google.golang.org/protobuf/proto"

	"github.com/idokatz/vaultbot/internal/bot"
)

const (
	ansiReset = "\x1b[0m"
	ansiBold  = "\x1b[1m"
	ansiIN    = "\x1b[38;5;39m"
	ansiOUT   = "\x1b[38;5;208m"
)

func colorize(c, s string) string {
	if !useANSI() || s == "" {
		return s
	}
	return c + s + ansiReset
}

func short(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

type sendFunc func(ctx context.Context, to types.JID) error

func withRateLimit(lim *rate.Limiter, next sendFunc) sendFunc {
	return func(ctx context.Context, to types.JID) error {
		if err := lim.Wait(ctx); err != nil {
			return err
		}
		return next(ctx, to)
	}
}

func withRetry(attempts int, delay time.Duration, next sendFunc) sendFunc {
	return func(ctx context.Context, to types.JID) error {
		var err error
		d := delay
		for i := 0; i < attempts; i++ {
			if err = next(ctx, to); err == nil {
				return nil
			}
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return ctx.Err()
			}
			if d < 5*time.Second {
				d *= 2
			}
		}
		return err
	}
}

func (c *Client) SendText(ctx context.Context, to, text string) error {
	jid, err := parseJID(to)
	if err != nil {
		return err
	}
	base := func(ctx context.Context, to types.JID) error {
		msg := &waProto.Message{Conversation: proto.String(text)}
		resp, err := c.wm.SendMessage(ctx, to, msg)
		if err != nil {
			return err
		}
		c.log.Infof(colorize(ansiOUT, "[OUT]")+" To:%s | ID:%s | Text:%q",
			colorize(ansiBold, to.String()), resp.ID, short(text, 80))
		return nil
	}
	return withRetry(3, 250*time.Millisecond, withRateLimit(c.limiterSend, base))(ctx, jid)
}

func (c *Client) SendImage(ctx context.Context, to string, data []byte, caption string) error {
	jid, err := parseJID(to)
	if err != nil {
		return err
	}
	base := func(ctx context.Context, to types.JID) error {
		up, err := c.wm.Upload(ctx, data, wm.MediaImage)
		if err != nil {
			return fmt.Errorf("upload image: %w", err)
		}
		msg := &waProto.Message{ImageMessage: &waProto.ImageMessage{
			Caption:       proto.String(caption),
			Mimetype:      proto.String("image/jpeg"),
			URL:           &up.URL,
			DirectPath:    &up.DirectPath,
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    &up.FileLength,
		}}
		resp, err := c.wm.SendMessage(ctx, to, msg)
		if err != nil {
			return err
		}
		c.log.Infof(colorize(ansiOUT, "[OUT]")+" To:%s | ID:%s | IMAGE | Caption:%q",
			colorize(ansiBold, to.String()), resp.ID, short(caption, 60))
		return nil
	}
	return withRetry(3, 400*time.Millisecond, withRateLimit(c.limiterMedia, base))(ctx, jid)
}

// downloadable adapts a bot.MediaRef to whatsmeow's download interface.
type downloadable struct{ ref *bot.MediaRef }

func (d *downloadable) GetDirectPath() string      { return d.ref.DirectPath }
func (d *downloadable) GetURL() string             { return d.ref.URL }
func (d *downloadable) GetMediaKey() []byte        { return d.ref.MediaKey }
func (d *downloadable) GetFileLength() uint64      { return d.ref.FileLength }
func (d *downloadable) GetFileSHA256() []byte      { return d.ref.FileSHA256 }
func (d *downloadable) GetFileEncSHA256() []byte   { return d.ref.FileEncSHA256 }
func (d *downloadable) GetMediaType() wm.MediaType { return wm.MediaImage }

func (c *Client) DownloadImage(ctx context.Context, ref *bot.MediaRef) ([]byte, error) {
	data, err := c.wm.Download(ctx, &downloadable{ref: ref})
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}
	return data, nil
}

func (c *Client) CreateGroup(ctx context.Context, name string, memberPhones []string) (string, error) {
	participants := make([]types.JID, 0, len(memberPhones))
	for _, phone := range memberPhones {
		participants = append(participants, types.JID{User: phone, Server: types.DefaultUserServer})
	}
	info, err := c.wm.CreateGroup(ctx, wm.ReqCreateGroup{
		Name:         name,
		Participants: participants,
	})
	if err != nil {
		return "", err
	}
	return info.JID.String(), nil
}

// GroupMembers returns the user parts of every participant JID, so callers
// can match against phone numbers.
func (c *Client) GroupMembers(ctx context.Context, groupID string) ([]string, error) {
	jid, err := parseJID(groupID)
	if err != nil {
		return nil, err
	}
	info, err := c.wm.GetGroupInfo(ctx, jid)
	if err != nil {
		return nil, err
	}
	users := make([]string, 0, len(info.Participants))
	for _, p := range info.Participants {
		users = append(users, p.JID.User)
	}
	return users, nil
}

func (c *Client) SetGroupLocked(ctx context.Context, groupID string, locked bool) error {
	jid, err := parseJID(groupID)
	if err != nil {
		return err
	}
	return c.wm.SetGroupLocked(ctx, jid, locked)
}

func (c *Client) SetGroupAnnounce(ctx context.Context, groupID string, announce bool) error {
	jid, err := parseJID(groupID)
	if err != nil {
		return err
	}
	return c.wm.SetGroupAnnounce(ctx, jid, announce)
}

func (c *Client) LeaveGroup(ctx context.Context, groupID string) error {
	jid, err := parseJID(groupID)
	if err != nil {
		return err
	}
	return c.wm.LeaveGroup(ctx, jid)
}
