package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/intake/internal/store"
)

// Logical keys of the persisted state.
const (
	KeyConversations = "conversations"
	KeyActiveID      = "activeConversationId"
	KeyAppointments  = "appointments"
)

// Snapshot is the durable part of the engine state.
type Snapshot struct {
	Conversations []Conversation `json:"conversations" yaml:"conversations"`
	ActiveID      string         `json:"activeConversationId" yaml:"activeConversationId"`
	Appointments  []Appointment  `json:"appointments" yaml:"appointments"`
}

// Persistence maps a Snapshot onto three entries of a key-value store.
type Persistence struct {
	kv     store.Store
	prefix string
	logger *slog.Logger
}

func NewPersistence(kv store.Store, keyPrefix string, logger *slog.Logger) *Persistence {
	if logger == nil {
		logger = slog.Default()
	}
	return &Persistence{kv: kv, prefix: keyPrefix, logger: logger}
}

func (p *Persistence) key(name string) string { return p.prefix + name }

// Save writes all three entries in one batch.
func (p *Persistence) Save(ctx context.Context, snap Snapshot) error {
	convs := snap.Conversations
	if convs == nil {
		convs = []Conversation{}
	}
	appts := snap.Appointments
	if appts == nil {
		appts = []Appointment{}
	}

	convJSON, err := json.Marshal(convs)
	if err != nil {
		return fmt.Errorf("marshal conversations: %w", err)
	}
	apptJSON, err := json.Marshal(appts)
	if err != nil {
		return fmt.Errorf("marshal appointments: %w", err)
	}

	if err := p.kv.PutAll(ctx, []store.Entry{
		{Key: p.key(KeyConversations), Value: string(convJSON)},
		{Key: p.key(KeyActiveID), Value: snap.ActiveID},
		{Key: p.key(KeyAppointments), Value: string(apptJSON)},
	}); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// Load reads the persisted state. It never fails: missing or corrupt entries
// fall back to defaults. newID and now are used to build the default
// conversation.
func (p *Persistence) Load(ctx context.Context, newID func() string, now func() time.Time) Snapshot {
	var snap Snapshot

	convs, ok := p.loadConversations(ctx)
	if !ok {
		convs = []Conversation{defaultConversation(newID(), now())}
	}
	snap.Conversations = convs

	snap.ActiveID = p.loadActiveID(ctx, convs)
	snap.Appointments = p.loadAppointments(ctx)
	return snap
}

func (p *Persistence) loadConversations(ctx context.Context) ([]Conversation, bool) {
	raw, err := p.kv.Get(ctx, p.key(KeyConversations))
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			p.logger.Warn("failed to read conversations, starting fresh", "error", err)
		}
		return nil, false
	}

	var convs []Conversation
	if err := json.Unmarshal([]byte(raw), &convs); err != nil {
		p.logger.Warn("conversations entry is corrupt, starting fresh", "error", err)
		return nil, false
	}

	seen := make(map[string]bool, len(convs))
	out := convs[:0]
	for _, c := range convs {
		if c.ID == "" || seen[c.ID] {
			p.logger.Warn("dropping conversation with missing or duplicate id", "conversation_id", c.ID)
			continue
		}
		seen[c.ID] = true
		if c.Messages == nil {
			c.Messages = []Message{}
		}
		if c.Title == "" {
			c.Title = PlaceholderTitle
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, false
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, true
}

// loadActiveID falls back to the most recently created conversation when the
// stored id is missing or dangling. convs must be sorted newest first.
func (p *Persistence) loadActiveID(ctx context.Context, convs []Conversation) string {
	raw, err := p.kv.Get(ctx, p.key(KeyActiveID))
	if err == nil {
		// JSON-encoded strings are accepted as well as the bare form.
		if strings.HasPrefix(raw, `"`) {
			if id := decodeID(json.RawMessage(raw)); id != "" {
				raw = id
			}
		}
		for _, c := range convs {
			if c.ID == raw {
				return raw
			}
		}
		p.logger.Warn("active conversation no longer exists", "conversation_id", raw)
	}
	return convs[0].ID
}

func (p *Persistence) loadAppointments(ctx context.Context) []Appointment {
	raw, err := p.kv.Get(ctx, p.key(KeyAppointments))
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			p.logger.Warn("failed to read appointments", "error", err)
		}
		return []Appointment{}
	}

	var appts []Appointment
	if err := json.Unmarshal([]byte(raw), &appts); err != nil {
		p.logger.Warn("appointments entry is corrupt, starting with an empty ledger", "error", err)
		return []Appointment{}
	}
	if appts == nil {
		appts = []Appointment{}
	}
	return appts
}

func defaultConversation(id string, now time.Time) Conversation {
	date := now.Format(dateLayout)
	return Conversation{
		ID:          id,
		Title:       PlaceholderTitle,
		LastMessage: WelcomeMessage,
		Date:        date,
		Messages:    []Message{{Role: RoleAssistant, Content: WelcomeMessage}},
	}
}
