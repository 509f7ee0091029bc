package interp

import (
	"context"
	"sync"
)

// ScriptedRunner implements Runner with scripted results for testing.
// All fields may be mutated between calls; access is mutex-guarded so tests
// can adjust behavior while a capture is in flight.
type ScriptedRunner struct {
	mu sync.Mutex

	AvailableResult  bool
	BuildToolsResult bool
	PackifiedResult  bool
	ModeOnResult     bool
	OptionsResult    Options

	// Pending maps action name to the descriptors returned for it.
	Pending map[string][]Action
	// PendingErr, when set, is returned by every PendingActions call.
	PendingErr error

	// CaptureFunc, when set, is invoked by RunCapture. A nil CaptureFunc
	// makes RunCapture succeed immediately.
	CaptureFunc func(ctx context.Context, project string) error

	captureCalls   int
	bootstrapCalls int
	installCalls   int
}

// NewScriptedRunner creates a ScriptedRunner with defaults matching a
// healthy managed project.
func NewScriptedRunner() *ScriptedRunner {
	return &ScriptedRunner{
		AvailableResult:  true,
		BuildToolsResult: true,
		PackifiedResult:  true,
		ModeOnResult:     true,
		OptionsResult:    DefaultOptions(),
		Pending:          make(map[string][]Action),
	}
}

func (s *ScriptedRunner) Available(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.AvailableResult
}

func (s *ScriptedRunner) BuildToolsAvailable(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.BuildToolsResult
}

func (s *ScriptedRunner) IsPackified(ctx context.Context, project string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.PackifiedResult, nil
}

func (s *ScriptedRunner) IsModeOn(ctx context.Context, project string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ModeOnResult, nil
}

func (s *ScriptedRunner) PendingActions(ctx context.Context, action, project string) ([]Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.PendingErr != nil {
		return nil, s.PendingErr
	}
	return s.Pending[action], nil
}

func (s *ScriptedRunner) RunCapture(ctx context.Context, project string) error {
	s.mu.Lock()
	s.captureCalls++
	fn := s.CaptureFunc
	s.mu.Unlock()

	if fn != nil {
		return fn(ctx, project)
	}
	return nil
}

func (s *ScriptedRunner) Bootstrap(ctx context.Context, project string, enter bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bootstrapCalls++
	return nil
}

func (s *ScriptedRunner) InstallManager(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.installCalls++
	return nil
}

func (s *ScriptedRunner) ProjectOptions(ctx context.Context, project string) (Options, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.OptionsResult, nil
}

// CaptureCalls returns how many times RunCapture was invoked.
func (s *ScriptedRunner) CaptureCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.captureCalls
}

// SetPending scripts the descriptors returned for an action.
func (s *ScriptedRunner) SetPending(action string, actions []Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Pending[action] = actions
}
