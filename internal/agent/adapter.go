package agent

import (
	"sync"
)

// OutputMode selects how raw process lines are turned into events.
type OutputMode int

const (
	// PlainText turns every line into an Output event.
	PlainText OutputMode = iota
	// JSONAssistantOnly parses each line as JSON; only
	// {type:"item.completed", item:{type:"agent_message", text:T}} lines
	// become Output(T); every line is still scanned for a session id.
	JSONAssistantOnly
)

// BackendKind names the CLI dialect this adapter speaks.
type BackendKind int

const (
	// BackendCodex speaks the `codex exec` dialect.
	BackendCodex BackendKind = iota
	// BackendClaude speaks the `claude --print` dialect.
	BackendClaude
)

// ArgsBuilder builds argv for a run, given the prompt, any saved session id
// to resume, and whether this is a resume (sessionID != "").
type ArgsBuilder func(prompt, sessionID string) []string

// Config configures one Adapter instance. The same Adapter instance is
// reused across retries of the same branch so its saved session id
// survives (spec.md 3.2's parent_context_key pooling and 4.2's "transfer
// cached session id when an adapter is replaced").
type Config struct {
	Program    string
	BuildArgs  ArgsBuilder
	WorkDir    string
	OutputMode OutputMode
	Backend    BackendKind

	// SkipReaderJoinAfterWait trades the strict ordering guarantee for
	// liveness against descendants that inherit the child's pipes
	// (spec.md 4.2, 9 Open Questions). Default false: readers are always
	// joined before Completed is emitted.
	SkipReaderJoinAfterWait bool

	// Spawn constructs and starts the OS process for one run. Exposed as
	// a field (rather than hardcoded to os/exec) so tests can substitute
	// a fake process, mirroring the teacher's WithCommandFactory option.
	Spawn SpawnFunc
}

// Adapter is one AgentAdapter instance: it owns a saved session id across
// runs and exposes the three-event, non-blocking drain protocol.
type Adapter struct {
	cfg Config

	mu           sync.Mutex
	savedSession string
	events       chan Event
	activeRun    *run
}

// IsRunning reports whether a run spawned by SendPrompt has not yet
// emitted its Completed event.
func (a *Adapter) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.activeRun != nil && !a.activeRun.done.Load()
}

// New creates an Adapter bound to cfg. Config.Spawn must be set (use
// DefaultSpawn in production, a fake in tests).
func New(cfg Config) *Adapter {
	return &Adapter{
		cfg:    cfg,
		events: make(chan Event, 256),
	}
}

// SavedSessionID returns the cached session id, or "" if none.
func (a *Adapter) SavedSessionID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.savedSession
}

// SetSavedSessionID overwrites the cached session id, used to transfer a
// branch's session when its adapter is replaced (spec.md 4.2).
func (a *Adapter) SetSavedSessionID(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.savedSession = id
}

// ResetSession clears the cached session id so the next SendPrompt starts a
// fresh external session.
func (a *Adapter) ResetSession() {
	a.SetSavedSessionID("")
}

// SendPrompt schedules one run of the external CLI. Each run spawns a
// fresh process; the adapter's saved session id (if any) is passed to
// cfg.BuildArgs so the dialect can construct a resume invocation.
func (a *Adapter) SendPrompt(prompt string) {
	a.mu.Lock()
	sessionID := a.savedSession
	a.mu.Unlock()

	args := a.cfg.BuildArgs(prompt, sessionID)
	r := startRun(a, args)
	a.mu.Lock()
	a.activeRun = r
	a.mu.Unlock()
}

// DrainEventsLimited returns up to max events currently queued, without
// blocking. The caller is expected to call this every orchestrator tick
// (spec.md 4.2).
func (a *Adapter) DrainEventsLimited(max int) []Event {
	if max <= 0 {
		return nil
	}
	out := make([]Event, 0, max)
	for len(out) < max {
		select {
		case evt := <-a.events:
			out = append(out, evt)
		default:
			return out
		}
	}
	return out
}

func (a *Adapter) emit(evt Event) {
	a.events <- evt
}

func (a *Adapter) recordSession(id string) {
	if !looksLikeSessionID(id) {
		return
	}
	a.mu.Lock()
	if a.savedSession == "" {
		a.savedSession = id
	}
	a.mu.Unlock()
}

// looksLikeSessionID validates a harvested candidate per spec.md 4.2: at
// least 8 characters, no whitespace, ASCII alphanumeric plus '-' and '_'.
func looksLikeSessionID(s string) bool {
	if len(s) < 8 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			continue
		default:
			return false
		}
	}
	return true
}
