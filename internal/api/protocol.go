// Package api is the transport layer: the HTTP server, the WebSocket
// protocol, and the per-connection orchestrator that drives workflows
// from inbound messages.
package api

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/slidewise/deckd/internal/core"
)

// MaxInputLength bounds user_input text.
const MaxInputLength = 5000

// Inbound message types.
const (
	TypeUserInput      = "user_input"
	TypeFrontendAction = "frontend_action"
	TypeConnection     = "connection"
)

// Outbound message types.
const (
	TypeDirectorMessage = "director_message"
	TypeSystem          = "system"
)

// envelope is the tagged wrapper every inbound message shares.
type envelope struct {
	Type      string `json:"type"`
	MessageID string `json:"message_id"`
	SessionID string `json:"session_id"`
}

// UserInputData is the payload of a user_input message. ResponseTo set
// means the text answers an open clarification round.
type UserInputData struct {
	Text             string            `json:"text"`
	Attachments      []json.RawMessage `json:"attachments,omitempty"`
	UIReferences     []string          `json:"ui_references,omitempty"`
	ResponseTo       string            `json:"response_to,omitempty"`
	Responses        map[string]string `json:"responses,omitempty"`
	SkippedQuestions []string          `json:"skipped_questions,omitempty"`
}

// InboundMessage is one parsed client message.
type InboundMessage struct {
	Type      string
	MessageID string
	SessionID string

	// Populated for user_input.
	Input UserInputData

	// Populated for frontend_action.
	Action  string
	Payload map[string]interface{}

	// Populated for connection.
	Status string
}

// ParseMessage validates and decodes a raw inbound frame. Failures are
// validation-category domain errors suited for a structured reply; the
// caller never sees a raw decode error.
func ParseMessage(raw []byte) (*InboundMessage, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, core.ErrValidation(core.CodeMalformedMessage, "message is not valid JSON")
	}

	msg := &InboundMessage{
		Type:      env.Type,
		MessageID: env.MessageID,
		SessionID: env.SessionID,
	}

	switch env.Type {
	case TypeUserInput:
		var body struct {
			Data UserInputData `json:"data"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, core.ErrValidation(core.CodeMalformedMessage, "user_input payload is malformed")
		}
		if body.Data.Text == "" && len(body.Data.Responses) == 0 && len(body.Data.SkippedQuestions) == 0 {
			return nil, core.ErrValidation(core.CodeEmptyInput, "user_input requires text")
		}
		if len(body.Data.Text) > MaxInputLength {
			return nil, core.ErrValidation(core.CodeInputTooLong,
				fmt.Sprintf("text exceeds %d characters", MaxInputLength))
		}
		msg.Input = body.Data

	case TypeFrontendAction:
		var body struct {
			Action  string                 `json:"action"`
			Payload map[string]interface{} `json:"payload"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, core.ErrValidation(core.CodeMalformedMessage, "frontend_action payload is malformed")
		}
		if body.Action == "" {
			return nil, core.ErrValidation(core.CodeMalformedMessage, "frontend_action requires an action")
		}
		msg.Action = body.Action
		msg.Payload = body.Payload

	case TypeConnection:
		var body struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, core.ErrValidation(core.CodeMalformedMessage, "connection payload is malformed")
		}
		msg.Status = body.Status

	case "":
		return nil, core.ErrValidation(core.CodeMalformedMessage, "message has no type")
	default:
		return nil, core.ErrValidation(core.CodeUnknownMessage,
			fmt.Sprintf("unknown message type %q", env.Type))
	}

	return msg, nil
}

// baseMessage carries the common outbound fields.
type baseMessage struct {
	MessageID string    `json:"message_id"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id"`
	Type      string    `json:"type"`
}

func newBaseMessage(msgType, sessionID string) baseMessage {
	return baseMessage{
		MessageID: "msg_" + uuid.NewString()[:12],
		Timestamp: time.Now().UTC(),
		SessionID: sessionID,
		Type:      msgType,
	}
}

// ConnectionMessage acknowledges connection lifecycle events.
type ConnectionMessage struct {
	baseMessage
	Status   string                 `json:"status"`
	UserID   string                 `json:"user_id,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// NewConnectionMessage builds a connection status frame.
func NewConnectionMessage(status, sessionID, userID string) ConnectionMessage {
	return ConnectionMessage{
		baseMessage: newBaseMessage(TypeConnection, sessionID),
		Status:      status,
		UserID:      userID,
		Metadata: map[string]interface{}{
			"server_time": time.Now().UTC().Format(time.RFC3339),
		},
	}
}

// ChatAction is an interactive affordance attached to a chat message.
type ChatAction struct {
	ActionID      string `json:"action_id"`
	Type          string `json:"type"`
	Label         string `json:"label"`
	Primary       bool   `json:"primary,omitempty"`
	RequiresInput bool   `json:"requires_input,omitempty"`
}

// ChatData is the conversational half of a director message.
type ChatData struct {
	Type     string                 `json:"type"` // question|suggestion|summary|error|info
	Content  map[string]interface{} `json:"content"`
	Actions  []ChatAction           `json:"actions,omitempty"`
	Progress *ProgressUpdate        `json:"progress,omitempty"`
}

// ProgressUpdate reports pipeline progress for the UI.
type ProgressUpdate struct {
	Stage         string            `json:"stage"`
	Percentage    int               `json:"percentage"`
	AgentStatuses map[string]string `json:"agentStatuses,omitempty"`
}

// SlideData is the presentation half of a director message.
type SlideData struct {
	Type     string                 `json:"type"` // complete|incremental
	Slides   []SlidePayload         `json:"slides"`
	Metadata map[string]interface{} `json:"presentation_metadata,omitempty"`
}

// SlidePayload is the wire form of one slide.
type SlidePayload struct {
	SlideID      string                   `json:"slide_id"`
	SlideNumber  int                      `json:"slide_number"`
	Title        string                   `json:"title"`
	Subtitle     string                   `json:"subtitle,omitempty"`
	BodyContent  []map[string]interface{} `json:"body_content"`
	LayoutType   string                   `json:"layout_type"`
	SpeakerNotes string                   `json:"speaker_notes,omitempty"`
}

// DirectorMessage carries chat and/or slide content to the client. At
// least one of ChatData/SlideData must be set.
type DirectorMessage struct {
	baseMessage
	Source    string     `json:"source"` // director_inbound|director_outbound
	ChatData  *ChatData  `json:"chat_data,omitempty"`
	SlideData *SlideData `json:"slide_data,omitempty"`
}

// NewDirectorMessage builds a director frame, enforcing the
// at-least-one-payload invariant.
func NewDirectorMessage(sessionID, source string, chat *ChatData, slides *SlideData) (DirectorMessage, error) {
	if chat == nil && slides == nil {
		return DirectorMessage{}, core.ErrValidation(core.CodeMalformedMessage,
			"director message requires chat_data or slide_data")
	}
	return DirectorMessage{
		baseMessage: newBaseMessage(TypeDirectorMessage, sessionID),
		Source:      source,
		ChatData:    chat,
		SlideData:   slides,
	}, nil
}

// SystemMessage reports server-side conditions to the client.
type SystemMessage struct {
	baseMessage
	Level         string `json:"level"` // info|warning|error|debug
	Code          string `json:"code,omitempty"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// NewSystemMessage builds a system frame.
func NewSystemMessage(sessionID, level, code, message string) SystemMessage {
	return SystemMessage{
		baseMessage: newBaseMessage(TypeSystem, sessionID),
		Level:       level,
		Code:        code,
		Message:     message,
	}
}

// SlidesPayload converts a presentation into its wire form.
func SlidesPayload(p *core.Presentation) *SlideData {
	slides := make([]SlidePayload, 0, len(p.Slides))
	for _, s := range p.Slides {
		body := make([]map[string]interface{}, 0, len(s.Components))
		for _, c := range s.Components {
			body = append(body, map[string]interface{}{
				"type":    c.Type,
				"content": c.Content,
				"source":  string(c.Source),
			})
		}
		slides = append(slides, SlidePayload{
			SlideID:      s.SlideID,
			SlideNumber:  s.SlideNumber,
			Title:        s.Title,
			Subtitle:     s.Subtitle,
			BodyContent:  body,
			LayoutType:   string(s.LayoutType),
			SpeakerNotes: s.SpeakerNotes,
		})
	}
	return &SlideData{
		Type:   "complete",
		Slides: slides,
		Metadata: map[string]interface{}{
			"title":        p.Title,
			"total_slides": len(p.Slides),
			"theme":        p.Theme.Name,
		},
	}
}

// agentProgress builds per-agent UI statuses for a progress update.
func agentProgress(stage string, percentage int, active, completed []core.AgentName) *ProgressUpdate {
	statuses := make(map[string]string, len(core.AllAgents))
	for _, a := range core.AllAgents {
		statuses[string(a)] = "pending"
	}
	for _, a := range active {
		statuses[string(a)] = "active"
	}
	for _, a := range completed {
		statuses[string(a)] = "completed"
	}
	return &ProgressUpdate{
		Stage:         stage,
		Percentage:    percentage,
		AgentStatuses: statuses,
	}
}
