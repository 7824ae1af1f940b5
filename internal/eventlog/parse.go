package eventlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotEventLine marks lines that are not part of the event stream
// (rotation artifacts, hour headers, partial writes). Readers skip
// them rather than failing the file.
var ErrNotEventLine = errors.New("not an event line")

// Parsed is one decoded log line with fields normalized to the
// key=value vocabulary (page, title) regardless of input form.
type Parsed struct {
	Time   time.Time
	Level  string
	Type   Type
	Fields map[string]string
	Raw    string
}

// ParseLine decodes one event log line. The message segment may be a
// JSON object (attempted first) or key=value tokens; both forms may
// appear anywhere in the same file.
func ParseLine(line string) (Parsed, error) {
	raw := strings.TrimRight(line, "\r\n")
	parts := strings.SplitN(raw, " | ", 3)
	if len(parts) < 3 {
		return Parsed{}, ErrNotEventLine
	}
	ts, err := time.ParseInLocation(TimeLayout, parts[0], time.Local)
	if err != nil {
		return Parsed{}, ErrNotEventLine
	}
	p := Parsed{Time: ts, Level: parts[1], Fields: map[string]string{}, Raw: raw}

	message := strings.TrimSpace(parts[2])
	if strings.HasPrefix(message, "{") {
		if ok := p.parseJSON(message); ok {
			return p, nil
		}
		// Fall through: a brace-leading message that is not valid
		// JSON is still tokenized as key=value.
	}
	if err := p.parseKV(message); err != nil {
		return Parsed{}, err
	}
	return p, nil
}

func (p *Parsed) parseJSON(message string) bool {
	var m map[string]any
	if err := json.Unmarshal([]byte(message), &m); err != nil {
		return false
	}
	et, _ := m["event_type"].(string)
	if et == "" {
		return false
	}
	p.Type = Type(et)
	for k, v := range m {
		if k == "event_type" {
			continue
		}
		if kv, ok := jsonToKVKey[k]; ok {
			k = kv
		}
		switch val := v.(type) {
		case string:
			p.Fields[k] = val
		case float64:
			p.Fields[k] = strings.TrimSuffix(fmt.Sprintf("%v", val), ".0")
		default:
			p.Fields[k] = fmt.Sprintf("%v", val)
		}
	}
	return true
}

func (p *Parsed) parseKV(message string) error {
	tokens := strings.Fields(message)
	if len(tokens) == 0 {
		return ErrNotEventLine
	}
	p.Type = Type(tokens[0])
	rest := tokens[1:]
	for i := 0; i < len(rest); i++ {
		tok := rest[i]
		eq := strings.IndexByte(tok, '=')
		if eq <= 0 {
			continue
		}
		key, value := tok[:eq], tok[eq+1:]
		// Timestamp values are written verbatim and contain one space:
		// rejoin "ts=2025-10-29 19:00:00" split across two tokens.
		if (key == "ts" || key == "started_at") && value != Absent && i+1 < len(rest) && !strings.Contains(rest[i+1], "=") {
			value = value + " " + rest[i+1]
			i++
		}
		if value == Absent {
			continue
		}
		p.Fields[key] = value
	}
	return nil
}

// EventTime returns the event's own timestamp: the ts field when
// present, otherwise the line timestamp.
func (p *Parsed) EventTime() time.Time {
	if v, ok := p.Fields["ts"]; ok {
		if t, err := time.ParseInLocation(TimeLayout, v, time.Local); err == nil {
			return t
		}
	}
	return p.Time
}
