package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zhouzirui/claude-code-chat/backend/internal/model/stream"
)

type record struct {
	Type         string          `json:"type"`
	Subtype      string          `json:"subtype"`
	Message      json.RawMessage `json:"message,omitempty"`
	Usage        json.RawMessage `json:"usage,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
	CostUSD      json.RawMessage `json:"cost_usd,omitempty"`
	TotalCostUSD json.RawMessage `json:"total_cost_usd,omitempty"`
	DurationMS   json.RawMessage `json:"duration_ms,omitempty"`
}

// Fields are decoded only by the branch that uses them, so a record of a
// kind we ignore never fails on a field shape we do not care about.
type messageBody struct {
	Content json.RawMessage `json:"content"`
	Usage   json.RawMessage `json:"usage,omitempty"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Interpret translates one stream-json line into at most one client event.
// A line that is not a JSON object yields an error; a well-formed record of
// an unknown kind yields ok=false and no error. Interpret keeps no state.
func Interpret(line []byte, sessionID string) (ev stream.Event, ok bool, err error) {
	var rec record
	if err := json.Unmarshal(line, &rec); err != nil {
		return stream.Event{}, false, fmt.Errorf("decode stream line: %w", err)
	}

	switch rec.Type {
	case "system":
		if rec.Subtype != "init" {
			return stream.Event{}, false, nil
		}
		return stream.Event{
			Type:      stream.EventSystem,
			Message:   MessageInitializing,
			SessionID: sessionID,
			Details:   json.RawMessage(append([]byte(nil), line...)),
		}, true, nil

	case "assistant":
		if len(rec.Message) == 0 {
			return stream.Event{}, false, nil
		}
		var msg messageBody
		if err := json.Unmarshal(rec.Message, &msg); err != nil {
			return stream.Event{}, false, fmt.Errorf("decode assistant message: %w", err)
		}
		var blocks []contentBlock
		if err := json.Unmarshal(msg.Content, &blocks); err != nil {
			// plain string content carries no text blocks
			return stream.Event{}, false, nil
		}
		var b strings.Builder
		for _, block := range blocks {
			if block.Type == "text" {
				b.WriteString(block.Text)
			}
		}
		if b.Len() == 0 {
			return stream.Event{}, false, nil
		}
		usage := rec.Usage
		if len(usage) == 0 {
			usage = msg.Usage
		}
		return stream.Event{
			Type:      stream.EventAssistant,
			Content:   b.String(),
			SessionID: sessionID,
			Usage:     usage,
		}, true, nil

	case "result":
		if rec.Subtype != "success" {
			return stream.Event{}, false, nil
		}
		var text string
		if len(rec.Result) > 0 {
			if err := json.Unmarshal(rec.Result, &text); err != nil {
				return stream.Event{}, false, fmt.Errorf("decode result text: %w", err)
			}
		}
		cost := firstNumber(rec.TotalCostUSD, rec.CostUSD)
		duration := firstNumber(rec.DurationMS)
		return stream.Event{
			Type:      stream.EventResult,
			Message:   MessageCompleted,
			Content:   text,
			SessionID: sessionID,
			Cost:      &cost,
			Duration:  &duration,
		}, true, nil
	}

	return stream.Event{}, false, nil
}

// firstNumber returns the first field that decodes as a number, else 0.
func firstNumber(fields ...json.RawMessage) float64 {
	for _, raw := range fields {
		var v *float64
		if len(raw) == 0 || json.Unmarshal(raw, &v) != nil || v == nil {
			continue
		}
		return *v
	}
	return 0
}
