package wa

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/idokatz/vaultbot/internal/bot"
)

// Handler receives the decoded events the bot cares about. Everything else
// (receipts, presence, history sync) is dropped at this layer.
type Handler interface {
	HandleMessage(ctx context.Context, m *bot.Message)
	HandleGroupUpdate(ctx context.Context, upd *bot.GroupUpdate)
	HandleConnected(ctx context.Context)
	Learn(ephemeralID, phone string)
}

func (c *Client) Subscribe(h Handler) {
	c.wm.AddEventHandler(func(evt interface{}) {
		ctx := context.Background()
		switch e := evt.(type) {
		case *events.Message:
			c.learnFrom(h, e.Info)
			m := convertMessage(e)
			if m == nil {
				return
			}
			c.log.Infof(colorize(ansiIN, "[IN]")+" From:%s | Chat:%s | Text:%q",
				colorize(ansiBold, e.Info.Sender.String()), e.Info.Chat.String(), short(m.Text, 80))
			h.HandleMessage(ctx, m)
		case *events.GroupInfo:
			if len(e.Leave) == 0 {
				return
			}
			upd := &bot.GroupUpdate{GroupID: e.JID.String()}
			for _, jid := range e.Leave {
				upd.Left = append(upd.Left, jid.String())
			}
			h.HandleGroupUpdate(ctx, upd)
		case *events.Connected:
			c.log.Infof("connected, presence available")
			_ = c.wm.SendPresence(ctx, types.PresenceAvailable)
			h.HandleConnected(ctx)
		case *events.LoggedOut:
			c.log.Warnf("logged out by server, session must be re-paired")
		}
	})
}

// learnFrom records the ephemeral→stable pairing WhatsApp hands us on lid
// senders, so later lid-only messages still resolve.
func (c *Client) learnFrom(h Handler, info types.MessageInfo) {
	if info.Sender.Server != types.HiddenUserServer {
		return
	}
	alt := info.SenderAlt
	if alt.IsEmpty() || alt.Server != types.DefaultUserServer {
		return
	}
	h.Learn(info.Sender.String(), alt.User)
}

func convertMessage(e *events.Message) *bot.Message {
	m := &bot.Message{
		Chat:    e.Info.Chat.String(),
		Sender:  e.Info.Sender.String(),
		IsGroup: e.Info.IsGroup,
		FromMe:  e.Info.IsFromMe,
	}
	msg := e.Message
	if msg == nil {
		return nil
	}
	switch {
	case msg.GetConversation() != "":
		m.Text = msg.GetConversation()
	case msg.GetExtendedTextMessage().GetText() != "":
		m.Text = msg.GetExtendedTextMessage().GetText()
	}
	if img := msg.GetImageMessage(); img != nil {
		m.Image = &bot.MediaRef{
			URL:           img.GetURL(),
			DirectPath:    img.GetDirectPath(),
			MediaKey:      img.GetMediaKey(),
			FileSHA256:    img.GetFileSHA256(),
			FileEncSHA256: img.GetFileEncSHA256(),
			FileLength:    img.GetFileLength(),
			Mimetype:      img.GetMimetype(),
			Caption:       img.GetCaption(),
		}
		if m.Text == "" {
			m.Text = img.GetCaption()
		}
	}
	if m.Text == "" && m.Image == nil {
		return nil
	}
	return m
}

// Run blocks until SIGINT or SIGTERM, then disconnects cleanly.
func (c *Client) Run() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	c.log.Infof("shutting down")
	c.Disconnect()
}
