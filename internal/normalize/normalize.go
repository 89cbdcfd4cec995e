// Package normalize flattens a ChatGPT conversations.json export into
// ordered, linear conversations. An export stores each conversation as a
// mapping tree of message nodes with a current_node pointer; the canonical
// branch is recovered by walking parents from current_node to the root.
package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrNoCurrentNode marks a conversation whose current_node is missing or
// does not resolve into the mapping.
var ErrNoCurrentNode = errors.New("conversation has no resolvable current_node")

// Message is one normalized chat message. Attachments counts non-text parts
// (image pointers and the like) that could not be rendered.
type Message struct {
	Role        string    `json:"role"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	Attachments int       `json:"attachments,omitempty"`
}

// Conversation is one normalized conversation, oldest message first.
type Conversation struct {
	ID        string    `json:"id,omitempty"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	Messages  []Message `json:"messages"`
}

// Stats counts what the normalizer kept and dropped.
type Stats struct {
	Conversations        int `json:"conversations"`
	Messages             int `json:"messages"`
	SkippedConversations int `json:"skipped_conversations"`
	SkippedMessages      int `json:"skipped_messages"`
}

// Raw export shapes. Only the fields the normalizer needs are declared;
// everything else in the export is ignored.

type rawExport []rawConversation

type rawConversation struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	CreateTime  float64            `json:"create_time"`
	Mapping     map[string]rawNode `json:"mapping"`
	CurrentNode string             `json:"current_node"`
}

type rawNode struct {
	ID      string      `json:"id"`
	Message *rawMessage `json:"message"`
	Parent  string      `json:"parent"`
}

type rawMessage struct {
	Author struct {
		Role string `json:"role"`
	} `json:"author"`
	CreateTime float64 `json:"create_time"`
	Content    struct {
		ContentType string            `json:"content_type"`
		Parts       []json.RawMessage `json:"parts"`
	} `json:"content"`
}

// Reader decodes and normalizes an export stream. Conversations that cannot
// be linearized are dropped and counted in Stats; only a malformed stream is
// an error.
func Reader(r io.Reader) ([]Conversation, Stats, error) {
	var export rawExport
	dec := json.NewDecoder(r)
	if err := dec.Decode(&export); err != nil {
		return nil, Stats{}, fmt.Errorf("failed to decode export: %w", err)
	}

	var (
		out   []Conversation
		stats Stats
	)
	for _, raw := range export {
		conv, skipped, err := linearize(raw)
		if err != nil {
			stats.SkippedConversations++
			continue
		}
		stats.SkippedMessages += skipped
		stats.Conversations++
		stats.Messages += len(conv.Messages)
		out = append(out, conv)
	}
	return out, stats, nil
}

// linearize walks the mapping tree from current_node up to the root and
// reverses the chain into chronological order.
func linearize(raw rawConversation) (Conversation, int, error) {
	node, ok := raw.Mapping[raw.CurrentNode]
	if raw.CurrentNode == "" || !ok {
		return Conversation{}, 0, ErrNoCurrentNode
	}

	var chain []rawNode
	visited := make(map[string]bool)
	for {
		if visited[node.ID] {
			// Cycle in the mapping; the export is corrupt past this point.
			break
		}
		visited[node.ID] = true
		chain = append(chain, node)
		if node.Parent == "" {
			break
		}
		parent, ok := raw.Mapping[node.Parent]
		if !ok {
			break
		}
		node = parent
	}

	conv := Conversation{
		ID:        raw.ID,
		Title:     raw.Title,
		CreatedAt: fromUnixSeconds(raw.CreateTime),
	}
	skipped := 0
	for i := len(chain) - 1; i >= 0; i-- {
		msg, ok := render(chain[i].Message)
		if !ok {
			if chain[i].Message != nil {
				skipped++
			}
			continue
		}
		conv.Messages = append(conv.Messages, msg)
	}
	return conv, skipped, nil
}

// render turns a raw message into a normalized one. Root placeholders,
// system scaffolding, and messages without any text part are dropped.
func render(m *rawMessage) (Message, bool) {
	if m == nil {
		return Message{}, false
	}
	role := m.Author.Role
	if role == "" || role == "system" {
		return Message{}, false
	}
	if m.Content.ContentType != "text" && m.Content.ContentType != "multimodal_text" {
		return Message{}, false
	}

	text := ""
	attachments := 0
	for _, part := range m.Content.Parts {
		var s string
		if err := json.Unmarshal(part, &s); err != nil {
			attachments++
			continue
		}
		if s == "" {
			continue
		}
		if text != "" {
			text += "\n"
		}
		text += s
	}
	if text == "" {
		return Message{}, false
	}
	return Message{
		Role:        role,
		Text:        text,
		CreatedAt:   fromUnixSeconds(m.CreateTime),
		Attachments: attachments,
	}, true
}

func fromUnixSeconds(sec float64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(int64(sec), int64((sec-float64(int64(sec)))*1e9)).UTC()
}

// WriteJSONL emits one conversation per line.
func WriteJSONL(w io.Writer, convs []Conversation) error {
	enc := json.NewEncoder(w)
	for i := range convs {
		if err := enc.Encode(&convs[i]); err != nil {
			return fmt.Errorf("failed to encode conversation %q: %w", convs[i].Title, err)
		}
	}
	return nil
}
