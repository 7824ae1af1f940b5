package hourly

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// State is the replay tool's persisted position between runs.
type State struct {
	LastHour time.Time
}

type stateFile struct {
	LastHour string `json:"last_hour"`
}

// LoadState reads the state file. A missing or unreadable file yields
// the zero state (emit everything completed), never an error the
// caller must special-case.
func LoadState(path string) (State, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return State{}, nil
	}
	var sf stateFile
	if err := json.Unmarshal(b, &sf); err != nil {
		return State{}, nil
	}
	if sf.LastHour == "" {
		return State{}, nil
	}
	t, err := time.ParseInLocation(HourLayout, sf.LastHour, time.Local)
	if err != nil {
		return State{}, nil
	}
	return State{LastHour: t}, nil
}

// SaveState atomically persists the state file.
func SaveState(path string, st State) error {
	b, err := json.MarshalIndent(stateFile{LastHour: st.LastHour.Format(HourLayout)}, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o640); err != nil {
		return fmt.Errorf("hourly: write state: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("hourly: replace state: %w", err)
	}
	return nil
}
