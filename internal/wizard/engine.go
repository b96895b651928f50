// Package wizard drives multi-step forms whose state lives on the server between requests.
package wizard

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/atvirokodosprendimai/inventory/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State is the input collected so far, keyed by field name.
type State map[string]string

func (s State) clone() State {
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

type Choice struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

type Field struct {
	Name     string
	Label    string
	Required bool
	// Choices lists the allowed values given the state so far; nil means free input.
	Choices func(ctx context.Context, state State) ([]Choice, error)
}

// Step validates the accumulated state. It may add derived values to state, which are kept
// only when it returns nil.
type Step struct {
	Name     string
	Title    string
	Fields   []Field
	Validate func(ctx context.Context, state State) error
}

type Result struct {
	Message string `json:"message"`
	Payload any    `json:"payload,omitempty"`
}

type Definition struct {
	ID     string
	Title  string
	Steps  []Step
	Finish func(ctx context.Context, identity domain.Identity, state State) (Result, error)
}

type FieldView struct {
	Name     string   `json:"name"`
	Label    string   `json:"label"`
	Required bool     `json:"required"`
	Value    string   `json:"value"`
	Choices  []Choice `json:"choices,omitempty"`
}

// View is what a client renders for the current step of a session.
type View struct {
	SessionID string      `json:"session_id"`
	Wizard    string      `json:"wizard"`
	Title     string      `json:"title"`
	Step      int         `json:"step"`
	Steps     int         `json:"steps"`
	StepName  string      `json:"step_name"`
	StepTitle string      `json:"step_title"`
	Fields    []FieldView `json:"fields"`
	Last      bool        `json:"last"`
	Message   string      `json:"message,omitempty"`
}

type session struct {
	id      string
	wizard  string
	owner   uint
	step    int
	state   State
	touched time.Time
}

type Engine struct {
	mu       sync.Mutex
	defs     map[string]Definition
	sessions map[string]*session
	ttl      time.Duration
	now      func() time.Time
	log      *zap.Logger
}

func NewEngine(ttl time.Duration, log *zap.Logger) *Engine {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Engine{
		defs:     map[string]Definition{},
		sessions: map[string]*session{},
		ttl:      ttl,
		now:      time.Now,
		log:      log.Named("wizard"),
	}
}

func (e *Engine) Register(def Definition) error {
	if def.ID == "" || len(def.Steps) == 0 || def.Finish == nil {
		return domain.InvalidArgumentf("a wizard needs an id, steps and a finish function")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, dup := e.defs[def.ID]; dup {
		return domain.InvalidArgumentf("wizard %s is already registered", def.ID)
	}
	e.defs[def.ID] = def
	return nil
}

// Wizards lists the registered wizard ids.
func (e *Engine) Wizards() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.defs))
	for id := range e.defs {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Start opens a session on the first step. seed pre-fills state, for example with the object
// a dialog was opened on.
func (e *Engine) Start(ctx context.Context, identity domain.Identity, wizardID string, seed State) (View, error) {
	e.mu.Lock()
	def, ok := e.defs[wizardID]
	if !ok {
		e.mu.Unlock()
		return View{}, domain.NotFoundf("wizard %s not found", wizardID)
	}
	s := &session{
		id:      uuid.NewString(),
		wizard:  wizardID,
		owner:   identity.User.ID,
		state:   seed.clone(),
		touched: e.now(),
	}
	e.sessions[s.id] = s
	snapshot := *s
	e.mu.Unlock()

	e.log.Debug("wizard started", zap.String("wizard", wizardID), zap.String("session", s.id))
	return e.view(ctx, def, &snapshot, "")
}

// Get returns the current step of a session.
func (e *Engine) Get(ctx context.Context, identity domain.Identity, sessionID string) (View, error) {
	def, s, err := e.lookup(identity, sessionID)
	if err != nil {
		return View{}, err
	}
	return e.view(ctx, def, &s, "")
}

// Next merges input into the session state and advances when the current step accepts it.
// A rejected step returns its view with the validation message alongside the error.
func (e *Engine) Next(ctx context.Context, identity domain.Identity, sessionID string, input State) (View, error) {
	def, s, err := e.lookup(identity, sessionID)
	if err != nil {
		return View{}, err
	}
	if s.step == len(def.Steps)-1 {
		return View{}, domain.NotPermittedf("%s is the last step, finish the wizard instead", def.Steps[s.step].Name)
	}
	state, err := e.accept(ctx, def.Steps[s.step], s.state, input)
	if err != nil {
		s.state = merge(s.state, input)
		v, verr := e.view(ctx, def, &s, err.Error())
		if verr != nil {
			return View{}, verr
		}
		return v, err
	}
	s.state = state
	s.step++
	if err := e.store(s); err != nil {
		return View{}, err
	}
	return e.view(ctx, def, &s, "")
}

func (e *Engine) Back(ctx context.Context, identity domain.Identity, sessionID string) (View, error) {
	def, s, err := e.lookup(identity, sessionID)
	if err != nil {
		return View{}, err
	}
	if s.step == 0 {
		return View{}, domain.NotPermittedf("already on the first step")
	}
	s.step--
	if err := e.store(s); err != nil {
		return View{}, err
	}
	return e.view(ctx, def, &s, "")
}

// Finish validates the last step and runs the wizard. The session is closed when the wizard
// succeeds and kept otherwise so the user can correct the input.
func (e *Engine) Finish(ctx context.Context, identity domain.Identity, sessionID string, input State) (Result, error) {
	def, s, err := e.lookup(identity, sessionID)
	if err != nil {
		return Result{}, err
	}
	if s.step != len(def.Steps)-1 {
		return Result{}, domain.NotPermittedf("finish is only allowed on the last step")
	}
	state, err := e.accept(ctx, def.Steps[s.step], s.state, input)
	if err != nil {
		return Result{}, err
	}
	res, err := def.Finish(ctx, identity, state)
	if err != nil {
		s.state = state
		_ = e.store(s)
		return Result{}, err
	}
	e.Cancel(identity, sessionID)
	e.log.Debug("wizard finished", zap.String("wizard", def.ID), zap.String("session", sessionID))
	return res, nil
}

// Cancel drops a session. Unknown sessions are ignored.
func (e *Engine) Cancel(identity domain.Identity, sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.sessions[sessionID]; ok && s.owner == identity.User.ID {
		delete(e.sessions, sessionID)
	}
}

// Sweep removes idle sessions and returns how many were dropped.
func (e *Engine) Sweep() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sweepLocked()
}

func (e *Engine) sweepLocked() int {
	deadline := e.now().Add(-e.ttl)
	n := 0
	for id, s := range e.sessions {
		if s.touched.Before(deadline) {
			delete(e.sessions, id)
			n++
		}
	}
	return n
}

// Run sweeps idle sessions every interval until ctx is done.
func (e *Engine) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := e.Sweep(); n > 0 {
				e.log.Debug("expired wizard sessions", zap.Int("count", n))
			}
		}
	}
}

func (e *Engine) lookup(identity domain.Identity, sessionID string) (Definition, session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sweepLocked()
	s, ok := e.sessions[sessionID]
	if !ok || s.owner != identity.User.ID {
		return Definition{}, session{}, domain.NotFoundf("wizard session %s not found", sessionID)
	}
	s.touched = e.now()
	return e.defs[s.wizard], *s, nil
}

func (e *Engine) store(s session) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.sessions[s.id]; !ok {
		return domain.NotFoundf("wizard session %s not found", s.id)
	}
	s.touched = e.now()
	e.sessions[s.id] = &s
	return nil
}

func (e *Engine) accept(ctx context.Context, step Step, current, input State) (State, error) {
	state := merge(current, input)
	for _, f := range step.Fields {
		if f.Required && state[f.Name] == "" {
			return nil, domain.InvalidArgumentf("%s is required", f.Label)
		}
	}
	if step.Validate != nil {
		if err := step.Validate(ctx, state); err != nil {
			return nil, err
		}
	}
	return state, nil
}

func merge(current, input State) State {
	state := current.clone()
	for k, v := range input {
		state[k] = v
	}
	return state
}

func (e *Engine) view(ctx context.Context, def Definition, s *session, message string) (View, error) {
	step := def.Steps[s.step]
	fields := make([]FieldView, 0, len(step.Fields))
	for _, f := range step.Fields {
		fv := FieldView{Name: f.Name, Label: f.Label, Required: f.Required, Value: s.state[f.Name]}
		if f.Choices != nil {
			choices, err := f.Choices(ctx, s.state)
			if err != nil {
				return View{}, err
			}
			fv.Choices = choices
		}
		fields = append(fields, fv)
	}
	return View{
		SessionID: s.id,
		Wizard:    def.ID,
		Title:     def.Title,
		Step:      s.step,
		Steps:     len(def.Steps),
		StepName:  step.Name,
		StepTitle: step.Title,
		Fields:    fields,
		Last:      s.step == len(def.Steps)-1,
		Message:   message,
	}, nil
}
