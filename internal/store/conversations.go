package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ChatMessage is one persisted message inside a conversation. Role is
// either "user" or an expert id.
type ChatMessage struct {
	ID               string    `json:"id"`
	Role             string    `json:"role"`
	Content          string    `json:"content"`
	Timestamp        time.Time `json:"timestamp"`
	MetaAgent        string    `json:"metaAgent,omitempty"`
	IsSafetyOverride bool      `json:"isSafetyOverride,omitempty"`
}

// DefaultVoiceSettings maps each expert to its default synthesis voice.
var DefaultVoiceSettings = map[string]string{
	"ontological": "Charon",
	"renaissance": "Puck",
	"crisis":      "Orus",
	"operational": "Fenrir",
}

// Conversation is a stored chat thread with its full message history.
type Conversation struct {
	ID            int64             `json:"id"`
	Title         string            `json:"title"`
	Messages      []ChatMessage     `json:"messages"`
	VoiceSettings map[string]string `json:"voiceSettings"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// CreateConversation inserts a conversation and returns the stored row.
func (s *Store) CreateConversation(ctx context.Context, title string, messages []ChatMessage) (*Conversation, error) {
	if messages == nil {
		messages = []ChatMessage{}
	}
	msgJSON, err := json.Marshal(messages)
	if err != nil {
		return nil, fmt.Errorf("marshal messages: %w", err)
	}
	voiceJSON, _ := json.Marshal(DefaultVoiceSettings)

	row := s.db.QueryRow(ctx,
		`INSERT INTO conversations (title, messages, voice_settings)
		 VALUES ($1, $2, $3)
		 RETURNING id, title, messages, voice_settings, created_at, updated_at`,
		title, msgJSON, voiceJSON)
	return scanConversation(row)
}

// GetConversation returns one conversation by id.
func (s *Store) GetConversation(ctx context.Context, id int64) (*Conversation, error) {
	row := s.db.QueryRow(ctx,
		`SELECT id, title, messages, voice_settings, created_at, updated_at
		 FROM conversations WHERE id=$1`, id)
	conv, err := scanConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return conv, err
}

// UpdateConversationMessages replaces the message history.
func (s *Store) UpdateConversationMessages(ctx context.Context, id int64, messages []ChatMessage) error {
	msgJSON, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}
	_, err = s.db.Exec(ctx,
		`UPDATE conversations SET messages=$1, updated_at=NOW() WHERE id=$2`,
		msgJSON, id)
	if err != nil {
		return fmt.Errorf("update conversation messages: %w", err)
	}
	return nil
}

// UpdateVoiceSettings replaces the per-expert voice map.
func (s *Store) UpdateVoiceSettings(ctx context.Context, id int64, settings map[string]string) error {
	voiceJSON, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal voice settings: %w", err)
	}
	_, err = s.db.Exec(ctx,
		`UPDATE conversations SET voice_settings=$1, updated_at=NOW() WHERE id=$2`,
		voiceJSON, id)
	if err != nil {
		return fmt.Errorf("update voice settings: %w", err)
	}
	return nil
}

// ListConversations returns all conversations, most recently updated first.
func (s *Store) ListConversations(ctx context.Context) ([]*Conversation, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, title, messages, voice_settings, created_at, updated_at
		 FROM conversations ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var convs []*Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}
	return convs, rows.Err()
}

// DeleteConversation removes a conversation by id.
func (s *Store) DeleteConversation(ctx context.Context, id int64) error {
	_, err := s.db.Exec(ctx, `DELETE FROM conversations WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}

func scanConversation(row pgx.Row) (*Conversation, error) {
	var c Conversation
	var msgJSON, voiceJSON []byte
	if err := row.Scan(&c.ID, &c.Title, &msgJSON, &voiceJSON, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan conversation: %w", err)
	}
	if err := json.Unmarshal(msgJSON, &c.Messages); err != nil {
		return nil, fmt.Errorf("unmarshal messages: %w", err)
	}
	_ = json.Unmarshal(voiceJSON, &c.VoiceSettings)
	if c.VoiceSettings == nil {
		// Copy so caller mutations never reach the shared defaults.
		c.VoiceSettings = maps.Clone(DefaultVoiceSettings)
	}
	return &c, nil
}
