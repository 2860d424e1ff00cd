package orchestrator

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lunacore/luna/internal/atomicfile"
	"github.com/lunacore/luna/internal/budget"
	"github.com/lunacore/luna/internal/cfia"
	"github.com/lunacore/luna/internal/lunaerr"
)

const (
	existentialStateFile = "existential_state.json"
	cfiaStateFile        = "cfia_state.json"
	lessonsDirName       = "lessons"
	statePerm            = 0o644
)

func loadBudgetState(dir string, params budget.Params) (budget.State, error) {
	path := filepath.Join(dir, existentialStateFile)
	data, err := atomicfile.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return budget.NewState(params), nil
	}
	if err != nil {
		return budget.State{}, lunaerr.Wrap(lunaerr.StateIOError, "load existential state", err)
	}

	var s budget.State
	if err := json.Unmarshal(data, &s); err != nil {
		return budget.State{}, lunaerr.Wrap(lunaerr.ParseError, "decode existential state", err)
	}
	return s, nil
}

func saveBudgetState(dir string, s budget.State) error {
	data, err := json.Marshal(s)
	if err != nil {
		return lunaerr.Wrap(lunaerr.StateIOError, "encode existential state", err)
	}
	if err := atomicfile.Write(filepath.Join(dir, existentialStateFile), data, statePerm); err != nil {
		return lunaerr.Wrap(lunaerr.StateIOError, "persist existential state", err)
	}
	return nil
}

func loadCFIAState(dir string, seed int) (cfia.State, error) {
	path := filepath.Join(dir, cfiaStateFile)
	data, err := atomicfile.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfia.NewState(seed, time.Now()), nil
	}
	if err != nil {
		return cfia.State{}, lunaerr.Wrap(lunaerr.StateIOError, "load cfia state", err)
	}

	var s cfia.State
	if err := json.Unmarshal(data, &s); err != nil {
		return cfia.State{}, lunaerr.Wrap(lunaerr.ParseError, "decode cfia state", err)
	}
	return s, nil
}

func saveCFIAState(dir string, s cfia.State) error {
	data, err := json.Marshal(s)
	if err != nil {
		return lunaerr.Wrap(lunaerr.StateIOError, "encode cfia state", err)
	}
	if err := atomicfile.Write(filepath.Join(dir, cfiaStateFile), data, statePerm); err != nil {
		return lunaerr.Wrap(lunaerr.StateIOError, "persist cfia state", err)
	}
	return nil
}

func ensureStateDir(dir string) error {
	if err := os.MkdirAll(filepath.Join(dir, lessonsDirName), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	return nil
}
