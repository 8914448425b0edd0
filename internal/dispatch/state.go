package dispatch

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Iron-Ham/agentq/internal/errors"
	"github.com/Iron-Ham/agentq/internal/taskqueue"
)

// StateFileName is the cycle state file under the store root.
const StateFileName = "state.json"

// State is the process-wide dispatch state carried between invocations.
type State struct {
	CycleNumber  int       `json:"cycle_number"`
	LastDispatch time.Time `json:"last_dispatch,omitzero"`
}

// LoadState reads the state file. A store that has never dispatched a cycle
// yields the zero State.
func LoadState(store *taskqueue.Store) (State, error) {
	var state State
	err := store.Exclusive(func() error {
		data, err := store.ReadFile(StateFileName)
		if err != nil {
			if errors.IsNotFound(err) {
				return nil
			}
			return err
		}
		if err := json.Unmarshal(data, &state); err != nil {
			return errors.NewMalformedRecordError(StateFileName, err)
		}
		return nil
	})
	return state, err
}

// SaveState atomically replaces the state file.
func SaveState(store *taskqueue.Store, state State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	return store.Exclusive(func() error {
		return store.WriteFile(StateFileName, append(data, '\n'))
	})
}
