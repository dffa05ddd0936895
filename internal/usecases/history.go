package usecases

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"waflow/internal/entities"
)

// Conversation timelines are rebuilt from the "_meta.history" log inside
// each session's context blob. Historical blobs come in many shapes
// (payloads written by different engine versions), so every field is
// parsed defensively: unknown directions become "system", broken
// timestamps fall back to the session's updated_at, and sessions without
// any history still contribute a synthesized status entry.

const previewMaxLen = 280

type sessionMeta struct {
	Meta struct {
		History []historyEntry `json:"history"`
	} `json:"_meta"`
}

type historyEntry struct {
	Direction string          `json:"direction"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp json.RawMessage `json:"timestamp"`
}

// BuildConversations merges sessions into one summary per contact: flow
// tags unioned, messages re-sorted globally by timestamp, unread counts
// summed, and last activity taken as the maximum across sessions — folding
// order never moves it backward.
func BuildConversations(sessions []entities.SessionView) []entities.ConversationSummary {
	byContact := map[string]*entities.ConversationSummary{}
	var order []string

	for i := range sessions {
		sv := &sessions[i]
		messages, unread, last := buildSessionTimeline(sv)

		summary, ok := byContact[sv.ContactID]
		if !ok {
			summary = &entities.ConversationSummary{
				ContactID: sv.ContactID,
				WaID:      sv.ContactWaID,
				Name:      sv.ContactName,
			}
			byContact[sv.ContactID] = summary
			order = append(order, sv.ContactID)
		}

		if sv.FlowName != "" && !containsString(summary.Flows, sv.FlowName) {
			summary.Flows = append(summary.Flows, sv.FlowName)
		}
		summary.Messages = append(summary.Messages, messages...)
		summary.UnreadCount += unread
		if last.After(summary.LastActivity) {
			summary.LastActivity = last
		}
	}

	result := make([]entities.ConversationSummary, 0, len(order))
	for _, contactID := range order {
		summary := byContact[contactID]
		sort.SliceStable(summary.Messages, func(i, j int) bool {
			return summary.Messages[i].Timestamp.Before(summary.Messages[j].Timestamp)
		})
		if n := len(summary.Messages); n > 0 {
			summary.LastMessage = summary.Messages[n-1].Preview
		}
		result = append(result, *summary)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].LastActivity.After(result[j].LastActivity)
	})
	return result
}

// buildSessionTimeline parses one session's history into timeline messages
// plus its unread count and latest timestamp.
func buildSessionTimeline(sv *entities.SessionView) ([]entities.TimelineMessage, int, time.Time) {
	entries := parseHistory(sv.Context)

	if len(entries) == 0 {
		// Every session contributes at least one timeline event.
		synth := entities.TimelineMessage{
			Direction: entities.DirectionSystem,
			Type:      "session_status",
			Preview:   fmt.Sprintf("Session %s (%s)", string(sv.Status), sv.FlowName),
			Timestamp: sv.UpdatedAt,
			FlowName:  sv.FlowName,
		}
		return []entities.TimelineMessage{synth}, 0, sv.UpdatedAt
	}

	messages := make([]entities.TimelineMessage, 0, len(entries))
	lastOut := -1
	last := sv.UpdatedAt
	for i, entry := range entries {
		tm := entities.TimelineMessage{
			Direction: normalizeDirection(entry.Direction),
			Type:      entry.Type,
			Preview:   previewOf(entry.Payload),
			Timestamp: parseHistoryTimestamp(entry.Timestamp, sv.UpdatedAt),
			FlowName:  sv.FlowName,
		}
		if tm.Direction == entities.DirectionOut {
			lastOut = i
		}
		if tm.Timestamp.After(last) {
			last = tm.Timestamp
		}
		messages = append(messages, tm)
	}

	// Inbound entries after the last outbound are the unanswered ones.
	unread := 0
	for i := lastOut + 1; i < len(messages); i++ {
		if messages[i].Direction == entities.DirectionIn {
			unread++
		}
	}
	return messages, unread, last
}

func parseHistory(blob json.RawMessage) []historyEntry {
	if len(blob) == 0 {
		return nil
	}
	var meta sessionMeta
	if err := json.Unmarshal(blob, &meta); err != nil {
		return nil
	}
	return meta.Meta.History
}

func normalizeDirection(dir string) entities.MessageDirection {
	switch strings.ToLower(strings.TrimSpace(dir)) {
	case "in", "inbound", "incoming":
		return entities.DirectionIn
	case "out", "outbound", "outgoing":
		return entities.DirectionOut
	default:
		return entities.DirectionSystem
	}
}

// previewPayload covers the payload shapes seen across history versions.
type previewPayload struct {
	Text        json.RawMessage `json:"text"`
	Body        string          `json:"body"`
	Caption     string          `json:"caption"`
	Title       string          `json:"title"`
	Interactive *struct {
		Title string `json:"title"`
	} `json:"interactive"`
	Reply *struct {
		Title string `json:"title"`
	} `json:"reply"`
	URL      string `json:"url"`
	Link     string `json:"link"`
	FlowName string `json:"flowName"`
	Flow     *struct {
		Name string `json:"name"`
	} `json:"flow"`
}

// previewOf derives a short human-readable string from a heterogeneous
// payload: plain text, then caption, then interactive-reply title, then a
// link, then a referenced flow name, else truncated JSON.
func previewOf(payload json.RawMessage) string {
	if len(payload) == 0 {
		return ""
	}

	// A bare JSON string is already the preview.
	var s string
	if err := json.Unmarshal(payload, &s); err == nil {
		return truncatePreview(s)
	}

	var p previewPayload
	if err := json.Unmarshal(payload, &p); err == nil {
		if text := textOf(p.Text); text != "" {
			return truncatePreview(text)
		}
		if p.Body != "" {
			return truncatePreview(p.Body)
		}
		if p.Caption != "" {
			return truncatePreview(p.Caption)
		}
		if p.Title != "" {
			return truncatePreview(p.Title)
		}
		if p.Interactive != nil && p.Interactive.Title != "" {
			return truncatePreview(p.Interactive.Title)
		}
		if p.Reply != nil && p.Reply.Title != "" {
			return truncatePreview(p.Reply.Title)
		}
		if p.URL != "" {
			return truncatePreview(p.URL)
		}
		if p.Link != "" {
			return truncatePreview(p.Link)
		}
		if p.FlowName != "" {
			return truncatePreview(p.FlowName)
		}
		if p.Flow != nil && p.Flow.Name != "" {
			return truncatePreview(p.Flow.Name)
		}
	}
	return truncatePreview(string(payload))
}

// textOf handles both {"text":"hi"} and the Cloud API {"text":{"body":"hi"}}.
func textOf(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Body string `json:"body"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Body
	}
	return ""
}

func truncatePreview(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= previewMaxLen {
		return s
	}
	cut := s[:previewMaxLen]
	// Don't split a multibyte rune at the boundary.
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut + "…"
}

// parseHistoryTimestamp accepts RFC3339 strings, unix seconds and unix
// milliseconds; anything else falls back to the session's updated_at.
func parseHistoryTimestamp(raw json.RawMessage, fallback time.Time) time.Time {
	if len(raw) == 0 {
		return fallback
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t
		}
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t
		}
		return fallback
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil && n > 0 {
		// Heuristic: values past the year-3000 mark in seconds are millis.
		if n > 32503680000 {
			return time.UnixMilli(int64(n)).UTC()
		}
		return time.Unix(int64(n), 0).UTC()
	}
	return fallback
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
