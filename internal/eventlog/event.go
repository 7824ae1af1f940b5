// Package eventlog defines the activity event model, the line codec
// shared with offline consumers, and the rotating segment writer.
package eventlog

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Type identifies the kind of an event.
type Type string

const (
	TypeProcStart    Type = "proc_start"
	TypeProcStop     Type = "proc_stop"
	TypeActiveWindow Type = "active_window"
	TypeHeartbeat    Type = "heartbeat"
	TypeSnapshot     Type = "snapshot"

	// Loop lifecycle markers. They ride the same log so that a
	// segment records why its writer went away.
	TypeMonitorStart Type = "monitor_start"
	TypeMonitorStop  Type = "monitor_stop"
	TypeMonitorCrash Type = "monitor_crash"
)

// Absent renders a missing value on the wire.
const Absent = "?"

// TimeLayout is the wall-clock format used in log lines.
const TimeLayout = "2006-01-02 15:04:05"

// Field is one key=value pair. Fields keep insertion order so that
// rendered lines are reproducible.
type Field struct {
	Key   string
	Value string
}

// Event is a single timestamped record destined for the activity log.
type Event struct {
	Time   time.Time
	Type   Type
	Fields []Field
}

// New builds an event of the given type stamped now.
func New(t Type) *Event { return &Event{Time: time.Now(), Type: t} }

// Set appends a field. Empty values render as Absent.
func (e *Event) Set(key, value string) *Event {
	if value == "" {
		value = Absent
	}
	e.Fields = append(e.Fields, Field{Key: key, Value: value})
	return e
}

// SetInt appends an integer field.
func (e *Event) SetInt(key string, v int64) *Event {
	return e.Set(key, strconv.FormatInt(v, 10))
}

// SetTime appends a timestamp field, or Absent for the zero time.
func (e *Event) SetTime(key string, t time.Time) *Event {
	if t.IsZero() {
		return e.Set(key, "")
	}
	return e.Set(key, t.Format(TimeLayout))
}

// Get returns the first value for key, or "" when missing.
func (e *Event) Get(key string) string {
	for _, f := range e.Fields {
		if f.Key == key {
			return f.Value
		}
	}
	return ""
}

// sanitize keeps the key=value tokenizer space-delimited: values must
// never contain unescaped spaces.
func sanitize(v string) string {
	return strings.ReplaceAll(v, " ", "_")
}

// FormatKV renders the message segment in key=value form, e.g.
// "proc_start pid=200 name=notepad.exe exe=? user=alice".
func (e *Event) FormatKV() string {
	var b strings.Builder
	b.WriteString(string(e.Type))
	for _, f := range e.Fields {
		b.WriteByte(' ')
		b.WriteString(f.Key)
		b.WriteByte('=')
		if f.Key == "ts" || f.Key == "started_at" {
			// Timestamp values keep their canonical layout verbatim;
			// consumers match them with a fixed-format parse.
			b.WriteString(f.Value)
		} else {
			b.WriteString(sanitize(f.Value))
		}
	}
	return b.String()
}

// JSON message field names. The structured form uses page_title and
// window_title where the key=value form uses page and title.
var kvToJSONKey = map[string]string{
	"page":  "page_title",
	"title": "window_title",
}

var jsonToKVKey = map[string]string{
	"page_title":   "page",
	"window_title": "title",
}

// FormatJSON renders the message segment as a single JSON object
// carrying the same semantic fields.
func (e *Event) FormatJSON() (string, error) {
	m := make(map[string]any, len(e.Fields)+1)
	m["event_type"] = string(e.Type)
	for _, f := range e.Fields {
		key := f.Key
		if j, ok := kvToJSONKey[key]; ok {
			key = j
		}
		if f.Value == Absent {
			continue
		}
		if key == "pid" || key == "count" {
			if n, err := strconv.ParseInt(f.Value, 10, 64); err == nil {
				m[key] = n
				continue
			}
		}
		m[key] = f.Value
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// FormatLine renders a full log line: "<ts> | <level> | <message>".
func FormatLine(ts time.Time, level, message string) string {
	return ts.Format(TimeLayout) + " | " + level + " | " + message
}
