// Package group owns the lifecycle of bot-managed groups: provisioning,
// membership reconciliation against the live transport, and deactivation.
package group

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	waLog "go.mau.fi/whatsmeow/util/log"

	"github.com/idokatz/vaultbot/internal/registry"
)

// Transport is the slice of the messaging client this service needs.
type Transport interface {
	SendText(ctx context.Context, to, text string) error
	CreateGroup(ctx context.Context, name string, memberPhones []string) (string, error)
	GroupMembers(ctx context.Context, groupID string) ([]string, error)
	SetGroupLocked(ctx context.Context, groupID string, locked bool) error
	SetGroupAnnounce(ctx context.Context, groupID string, announce bool) error
	LeaveGroup(ctx context.Context, groupID string) error
	BotPhone() string
}

// Membership is the result of reconciling a group against the transport.
type Membership struct {
	CreatorPresent bool
	BotPresent     bool
}

func (m Membership) Both() bool { return m.CreatorPresent && m.BotPresent }

// Texts carries the user-facing strings the provisioning flow sends, injected
// at wiring time so this package stays free of menu copy.
type Texts struct {
	AlreadyActive string // fmt: group name
	Created       string // fmt: group name
	Welcome       string // sent to the new group
	Ready         string // sent to the creator after hardening
	Menu          string // main menu, re-sent to the creator after Ready
}

type Config struct {
	// OperatorJID receives hardening-failure reports. Empty disables them.
	OperatorJID string
	// HardenInitialDelay and HardenStepDelay pace the post-creation setting
	// sequence; the transport needs a moment before accepting setting
	// changes on a fresh group.
	HardenInitialDelay time.Duration
	HardenStepDelay    time.Duration
	Texts              Texts
}

type Service struct {
	store *registry.Store
	tx    Transport
	log   waLog.Logger
	cfg   Config
	now   func() time.Time
	// detach schedules the hardening task; swapped for an inline runner in
	// tests.
	detach func(fn func())
}

func New(store *registry.Store, tx Transport, log waLog.Logger, cfg Config) *Service {
	return &Service{
		store:  store,
		tx:     tx,
		log:    log,
		cfg:    cfg,
		now:    time.Now,
		detach: func(fn func()) { go fn() },
	}
}

// Reconcile asks the transport who is actually in the group. A transport
// failure is treated as nobody present: the caller then recreates rather
// than trusting a stale record, which beats leaving the user stuck.
func (s *Service) Reconcile(ctx context.Context, groupID, creatorPhone string) Membership {
	members, err := s.tx.GroupMembers(ctx, groupID)
	if err != nil {
		s.log.Warnf("Could not check membership of %s: %v", groupID, err)
		return Membership{}
	}
	var m Membership
	bot := s.tx.BotPhone()
	for _, u := range members {
		if u == creatorPhone {
			m.CreatorPresent = true
		}
		if u == bot {
			m.BotPresent = true
		}
	}
	return m
}

// MarkInactive transitions a group record to inactive.
func (s *Service) MarkInactive(groupID, reason string) error {
	if err := s.store.MarkGroupInactive(groupID, s.now()); err != nil {
		return err
	}
	s.log.Infof("Group %s marked inactive: %s", groupID, reason)
	return nil
}

// ListActive returns the active group records.
func (s *Service) ListActive() ([]*registry.GroupRecord, error) {
	return s.store.ListActiveGroups()
}

// Provision ensures the creator has a usable group and messages them about
// the outcome. Calling it twice with no membership change returns the same
// group both times; a group whose creator or bot is gone is deactivated and
// replaced with a fresh one.
func (s *Service) Provision(ctx context.Context, creatorPhone, creatorJID string) (*registry.GroupRecord, error) {
	existing, err := s.store.FindActiveGroupFor(creatorPhone)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if s.Reconcile(ctx, existing.GroupID, creatorPhone).Both() {
			if err := s.tx.SendText(ctx, creatorJID, fmt.Sprintf(s.cfg.Texts.AlreadyActive, existing.Name)); err != nil {
				s.log.Warnf("Failed to send already-active notice to %s: %v", creatorJID, err)
			}
			return existing, nil
		}
		if err := s.MarkInactive(existing.GroupID, "creator or bot no longer a member"); err != nil {
			return nil, err
		}
	}

	name := fmt.Sprintf("בוט %s - %s", creatorPhone, s.now().Format("02/01/2006"))
	groupID, err := s.tx.CreateGroup(ctx, name, []string{creatorPhone})
	if err != nil {
		return nil, fmt.Errorf("create group for %s: %w", creatorPhone, err)
	}
	rec, err := s.store.CreateGroup(groupID, name, creatorPhone, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.tx.SendText(ctx, creatorJID, fmt.Sprintf(s.cfg.Texts.Created, name)); err != nil {
		s.log.Warnf("Failed to send creation notice to %s: %v", creatorJID, err)
	}
	if err := s.tx.SendText(ctx, groupID, s.cfg.Texts.Welcome); err != nil {
		s.log.Warnf("Failed to send welcome to %s: %v", groupID, err)
	}

	// Hardening runs detached so a slow transport never blocks the event
	// loop; its failure leaves the group usable, only unhardened.
	s.detach(func() { s.harden(context.Background(), groupID, creatorJID) })

	s.log.Infof("Created group %s for %s", groupID, creatorPhone)
	return rec, nil
}

// harden applies the post-creation setting sequence: lock group metadata,
// then make sure everyone may post. Fresh groups reject setting changes for
// a moment, hence the fixed delays between steps.
func (s *Service) harden(ctx context.Context, groupID, creatorJID string) {
	sleep := func(d time.Duration) bool {
		if d <= 0 {
			return true
		}
		select {
		case <-time.After(d):
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !sleep(s.cfg.HardenInitialDelay) {
		return
	}
	err := s.tx.SetGroupLocked(ctx, groupID, true)
	if err == nil {
		if !sleep(s.cfg.HardenStepDelay) {
			return
		}
		err = s.tx.SetGroupAnnounce(ctx, groupID, false)
	}
	if err != nil {
		s.log.Warnf("Could not apply settings to group %s: %v", groupID, err)
		s.reportToOperator(ctx, fmt.Sprintf("group %s left unhardened: %v", groupID, err))
		return
	}

	if err := s.tx.SendText(ctx, creatorJID, s.cfg.Texts.Ready); err != nil {
		s.log.Warnf("Failed to send ready notice to %s: %v", creatorJID, err)
	}
	if s.cfg.Texts.Menu != "" {
		if err := s.tx.SendText(ctx, creatorJID, s.cfg.Texts.Menu); err != nil {
			s.log.Warnf("Failed to send menu to %s: %v", creatorJID, err)
		}
	}
	s.log.Infof("Applied settings to group %s", groupID)
}

func (s *Service) reportToOperator(ctx context.Context, text string) {
	if s.cfg.OperatorJID == "" {
		return
	}
	if err := s.tx.SendText(ctx, s.cfg.OperatorJID, "⚠️ "+text); err != nil {
		s.log.Warnf("Failed to report to operator: %v", err)
	}
}

// HandleDeparture reacts to participants leaving a managed group: when the
// creator goes, the bot leaves too and the record is deactivated.
func (s *Service) HandleDeparture(ctx context.Context, groupID string, leftPhones []string) error {
	rec, err := s.store.GetGroup(groupID)
	if errors.Is(err, sql.ErrNoRows) {
		// Not one of ours.
		return nil
	}
	if err != nil {
		return err
	}
	if !rec.Active() {
		return nil
	}
	for _, phone := range leftPhones {
		if phone != rec.CreatorPhone {
			continue
		}
		s.log.Infof("Creator %s left group %s", phone, rec.Name)
		if err := s.tx.LeaveGroup(ctx, groupID); err != nil {
			s.log.Warnf("Failed to leave group %s: %v", groupID, err)
		}
		return s.MarkInactive(groupID, "creator left")
	}
	return nil
}
