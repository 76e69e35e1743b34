// Package bot routes inbound chat events: wizard state first, then commands,
// then the group or private menu. All per-event failures are contained here;
// no single message may stall the event loop.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	waLog "go.mau.fi/whatsmeow/util/log"

	"github.com/idokatz/vaultbot/internal/group"
	"github.com/idokatz/vaultbot/internal/identity"
	"github.com/idokatz/vaultbot/internal/session"
	"github.com/idokatz/vaultbot/internal/vault"
)

type Dispatcher struct {
	tx       Transport
	resolver *identity.Resolver
	sessions *session.Store
	vault    *vault.Vault
	groups   *group.Service
	log      waLog.Logger
	repoURL  string
}

func NewDispatcher(tx Transport, resolver *identity.Resolver, sessions *session.Store,
	vlt *vault.Vault, groups *group.Service, log waLog.Logger, repoURL string) *Dispatcher {
	return &Dispatcher{
		tx:       tx,
		resolver: resolver,
		sessions: sessions,
		vault:    vlt,
		groups:   groups,
		log:      log,
		repoURL:  repoURL,
	}
}

// send logs outbound failures instead of propagating them; one bad send must
// not abort processing of the event, let alone the loop.
func (d *Dispatcher) send(ctx context.Context, to, text string) {
	if err := d.tx.SendText(ctx, to, text); err != nil {
		d.log.Warnf("Failed to send to %s: %v", to, err)
	}
}

func (d *Dispatcher) sendMenu(ctx context.Context, chat string, isGroup bool, banner string) {
	menu := PrivateMenu
	if isGroup {
		menu = GroupMenu
	}
	if banner != "" {
		menu = banner + "\n\n" + menu
	}
	d.send(ctx, chat, menu)
}

// HandleMessage classifies one inbound message and routes it.
func (d *Dispatcher) HandleMessage(ctx context.Context, m *Message) {
	// Echoes of our own sends and group system notices with no author are
	// not user traffic.
	if m.FromMe {
		return
	}
	if m.IsGroup && m.Sender == "" {
		return
	}

	raw := m.Sender
	if !m.IsGroup {
		raw = m.Chat
	}
	phone, err := d.resolver.Resolve(raw)
	if err != nil {
		if errors.Is(err, identity.ErrNotResolvable) {
			// No mapping learned; replying would leak our presence to an
			// unaddressable sender, so drop with a warning only.
			d.log.Warnf("Ignoring message from unresolvable sender %s", raw)
		} else {
			d.log.Errorf("Identity resolution for %s: %v", raw, err)
		}
		return
	}
	if err := identity.Validate(phone); err != nil {
		d.log.Debugf("Dropping message: %v", err)
		return
	}

	text := strings.TrimSpace(m.Text)
	d.log.Infof("📩 Message from %s (%s): %q", phone, chatKind(m.IsGroup), short(text, 80))

	// A pending wizard state owns the message outright.
	if st, ok := d.sessions.Get(phone); ok {
		if err := d.handleState(ctx, phone, st, m, text); err != nil {
			// A handler that blew up must not wedge the user in a dead
			// state.
			d.sessions.Clear(phone)
			d.log.Errorf("State handler for %s: %v", phone, err)
		}
		return
	}

	if isCommand(text) {
		d.handleCommand(ctx, m.Chat, text)
		return
	}

	if m.IsGroup {
		d.handleGroupMenu(ctx, phone, m.Chat, text)
	} else {
		d.handlePrivateMenu(ctx, phone, m.Chat, text)
	}
}

// Learn records an ephemeral/stable identity pair observed on the wire (or
// seeded from config).
func (d *Dispatcher) Learn(ephemeralID, phone string) {
	if err := d.resolver.Learn(ephemeralID, phone); err != nil {
		d.log.Errorf("Learning mapping for %s: %v", ephemeralID, err)
	}
}

// HandleGroupUpdate reacts to participants leaving managed groups.
func (d *Dispatcher) HandleGroupUpdate(ctx context.Context, upd *GroupUpdate) {
	if len(upd.Left) == 0 {
		return
	}
	phones := make([]string, 0, len(upd.Left))
	for _, raw := range upd.Left {
		phone, err := d.resolver.Resolve(raw)
		if err != nil {
			// Unresolvable leavers can still never match a creator phone.
			continue
		}
		phones = append(phones, phone)
	}
	if err := d.groups.HandleDeparture(ctx, upd.GroupID, phones); err != nil {
		d.log.Errorf("Handling departure from %s: %v", upd.GroupID, err)
	}
}

// HandleConnected sweeps the registry once per connection: every active group
// is reconciled against the transport, menus are refreshed where both parties
// are still in, and stale records are deactivated.
func (d *Dispatcher) HandleConnected(ctx context.Context) {
	active, err := d.groups.ListActive()
	if err != nil {
		d.log.Errorf("Startup sweep: %v", err)
		return
	}
	for _, rec := range active {
		if d.groups.Reconcile(ctx, rec.GroupID, rec.CreatorPhone).Both() {
			d.sendMenu(ctx, rec.GroupID, true, "")
			continue
		}
		if err := d.groups.MarkInactive(rec.GroupID, "membership lost while offline"); err != nil {
			d.log.Errorf("Deactivating %s: %v", rec.GroupID, err)
		}
	}
}

//
// ===== State handlers =====
//
// Every terminal branch clears the state before returning, failure branches
// included; HandleMessage force-clears if a handler returns an error.
//

func (d *Dispatcher) handleState(ctx context.Context, phone string, st session.State, m *Message, text string) error {
	switch st := st.(type) {
	case session.AwaitingImage:
		return d.stateAwaitingImage(ctx, phone, m)
	case session.AwaitingText:
		d.sessions.Set(phone, session.AwaitingTextName{Buffer: m.Text})
		d.send(ctx, m.Chat, promptTextName)
		return nil
	case session.AwaitingTextName:
		return d.stateAwaitingTextName(ctx, phone, st.Buffer, m, text)
	case session.AwaitingImageSelection:
		return d.stateSelection(ctx, phone, vault.KindImage, m, text)
	case session.AwaitingTextSelection:
		return d.stateSelection(ctx, phone, vault.KindText, m, text)
	default:
		d.sessions.Clear(phone)
		return fmt.Errorf("unknown session state %T", st)
	}
}

func (d *Dispatcher) stateAwaitingImage(ctx context.Context, phone string, m *Message) error {
	if m.Image == nil || strings.TrimSpace(m.Image.Caption) == "" {
		// Not what we asked for; re-prompt and keep waiting.
		d.send(ctx, m.Chat, promptImageAgain)
		return nil
	}
	defer d.sessions.Clear(phone)

	data, err := d.tx.DownloadImage(ctx, m.Image)
	if err != nil {
		d.log.Warnf("Image download for %s: %v", phone, err)
		d.sendMenu(ctx, m.Chat, m.IsGroup, noticeSaveFailed)
		return nil
	}
	handle, err := d.vault.SaveImage(phone, strings.TrimSpace(m.Image.Caption), data)
	if err != nil {
		d.log.Warnf("Image save for %s: %v", phone, err)
		d.sendMenu(ctx, m.Chat, m.IsGroup, noticeSaveFailed)
		return nil
	}
	d.sendMenu(ctx, m.Chat, m.IsGroup, fmt.Sprintf(noticeImageSaved, handle))
	return nil
}

func (d *Dispatcher) stateAwaitingTextName(ctx context.Context, phone, buffer string, m *Message, text string) error {
	defer d.sessions.Clear(phone)

	handle, err := d.vault.SaveText(phone, text, buffer)
	if err != nil {
		d.log.Warnf("Text save for %s: %v", phone, err)
		d.sendMenu(ctx, m.Chat, m.IsGroup, noticeSaveFailed)
		return nil
	}
	d.sendMenu(ctx, m.Chat, m.IsGroup, fmt.Sprintf(noticeTextSaved, handle))
	return nil
}

// stateSelection resolves a numeric ordinal against the current listing and
// sends the artifact. Out-of-range or junk input notifies and clears, it does
// not re-prompt.
func (d *Dispatcher) stateSelection(ctx context.Context, phone string, kind vault.Kind, m *Message, text string) error {
	defer d.sessions.Clear(phone)

	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		d.sendMenu(ctx, m.Chat, m.IsGroup, noticeBadSelection)
		return nil
	}
	name, data, err := d.vault.GetByOrdinal(phone, kind, n)
	if err != nil {
		if !errors.Is(err, vault.ErrSelectionOutOfRange) {
			d.log.Warnf("Artifact read for %s: %v", phone, err)
		}
		d.sendMenu(ctx, m.Chat, m.IsGroup, noticeBadSelection)
		return nil
	}

	if kind == vault.KindImage {
		if err := d.tx.SendImage(ctx, m.Chat, data, "📷 "+name); err != nil {
			d.log.Warnf("Failed to send image to %s: %v", m.Chat, err)
			d.sendMenu(ctx, m.Chat, m.IsGroup, noticeBadSelection)
			return nil
		}
		d.sendMenu(ctx, m.Chat, m.IsGroup, fmt.Sprintf(noticeImageSent, name))
		return nil
	}
	d.send(ctx, m.Chat, fmt.Sprintf("📄 %s:\n\n%s", name, data))
	d.sendMenu(ctx, m.Chat, m.IsGroup, fmt.Sprintf(noticeTextSent, name))
	return nil
}

//
// ===== Menus =====
//

func (d *Dispatcher) handleGroupMenu(ctx context.Context, phone, chat, text string) {
	switch text {
	case "1":
		d.sessions.Set(phone, session.AwaitingImage{})
		d.send(ctx, chat, promptImage)
	case "2":
		d.sessions.Set(phone, session.AwaitingText{})
		d.send(ctx, chat, promptText)
	case "3":
		d.offerListing(ctx, phone, chat, vault.KindImage)
	case "4":
		d.offerListing(ctx, phone, chat, vault.KindText)
	default:
		if d.replyKeyword(ctx, chat, text) {
			return
		}
		d.sendMenu(ctx, chat, true, "")
	}
}

// offerListing shows the numbered artifact list and parks the user in the
// matching selection state. An empty vault bounces straight back to the menu.
func (d *Dispatcher) offerListing(ctx context.Context, phone, chat string, kind vault.Kind) {
	names, err := d.vault.List(phone, kind)
	if err != nil {
		d.log.Warnf("Listing %s artifacts for %s: %v", kind, phone, err)
		d.sendMenu(ctx, chat, true, noticeSaveFailed)
		return
	}
	empty, header, footer := noticeNoTexts, listTextsHeader, promptSelectText
	if kind == vault.KindImage {
		empty, header, footer = noticeNoImages, listImagesHeader, promptSelectImage
	}
	if len(names) == 0 {
		d.sendMenu(ctx, chat, true, empty)
		return
	}

	var b strings.Builder
	b.WriteString(header)
	for i, name := range names {
		fmt.Fprintf(&b, "%d️⃣ %s\n", i+1, name)
	}
	b.WriteString(footer)

	if kind == vault.KindImage {
		d.sessions.Set(phone, session.AwaitingImageSelection{})
	} else {
		d.sessions.Set(phone, session.AwaitingTextSelection{})
	}
	d.send(ctx, chat, b.String())
}

func (d *Dispatcher) handlePrivateMenu(ctx context.Context, phone, chat, text string) {
	switch text {
	case "1":
		if _, err := d.groups.Provision(ctx, phone, chat); err != nil {
			d.log.Errorf("Provisioning group for %s: %v", phone, err)
			d.send(ctx, chat, noticeGroupFailed)
		}
	case "2":
		d.send(ctx, chat, PrivateMenu+"\n\n"+BotInfo)
	default:
		if d.replyKeyword(ctx, chat, text) {
			return
		}
		d.sendMenu(ctx, chat, false, "")
	}
}

func (d *Dispatcher) replyKeyword(ctx context.Context, chat, text string) bool {
	lower := strings.ToLower(text)
	for _, kr := range keywordReplies {
		if strings.Contains(lower, kr.keyword) {
			d.send(ctx, chat, kr.reply)
			return true
		}
	}
	return false
}

func chatKind(isGroup bool) string {
	if isGroup {
		return "group"
	}
	return "private"
}

func short(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
