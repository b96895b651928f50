// Package actions runs named inventory operations from loosely typed parameter maps and
// announces every completed run on an event bus.
package actions

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/atvirokodosprendimai/inventory/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

type ParameterKind string

const (
	KindString     ParameterKind = "string"
	KindAttributes ParameterKind = "attributes"
	KindFile       ParameterKind = "file"
	KindBool       ParameterKind = "bool"
	KindList       ParameterKind = "list"
)

// ParameterSpec describes one input of an action; dialogs are rendered from it.
type ParameterSpec struct {
	Name     string        `json:"name"`
	Label    string        `json:"label"`
	Kind     ParameterKind `json:"kind"`
	Required bool          `json:"required"`
}

// Parameters is the raw input of an action run, keyed by parameter name.
type Parameters map[string]any

// Call is what a callback receives.
type Call struct {
	Actor  domain.Identity
	Params Parameters
}

func (c Call) actor() *uint { return c.Actor.Actor() }

type Response struct {
	Status  Status `json:"status"`
	Message string `json:"message"`
	Payload any    `json:"payload,omitempty"`
}

type Callback func(ctx context.Context, call Call) (Response, error)

type Action struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Permission  string          `json:"permission"`
	Parameters  []ParameterSpec `json:"parameters"`
	Callback    Callback        `json:"-"`
}

// ActionError is returned by Execute for any failed run. errors.Is matches the domain kind
// of the underlying failure.
type ActionError struct {
	ActionID string
	Err      error
}

func (e *ActionError) Error() string { return e.Err.Error() }

func (e *ActionError) Unwrap() error { return e.Err }

// Authorizer decides whether an identity holds a permission.
type Authorizer interface {
	Can(identity domain.Identity, permission string) bool
}

type Registry struct {
	mu      sync.RWMutex
	actions map[string]Action

	auth    Authorizer
	bus     *Bus
	metrics *Metrics
	log     *zap.Logger
}

type Option func(*Registry)

func WithMetrics(m *Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

func NewRegistry(auth Authorizer, bus *Bus, log *zap.Logger, opts ...Option) *Registry {
	r := &Registry{
		actions: map[string]Action{},
		auth:    auth,
		bus:     bus,
		log:     log.Named("actions"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) Register(a Action) error {
	if strings.TrimSpace(a.ID) == "" || a.Callback == nil {
		return domain.InvalidArgumentf("an action needs an id and a callback")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.actions[a.ID]; dup {
		return domain.InvalidArgumentf("action %s is already registered", a.ID)
	}
	r.actions[a.ID] = a
	return nil
}

func (r *Registry) Get(id string) (Action, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.actions[id]
	return a, ok
}

// List returns the actions the identity may run, ordered by id.
func (r *Registry) List(identity domain.Identity) []Action {
	r.mu.RLock()
	out := make([]Action, 0, len(r.actions))
	for _, a := range r.actions {
		if a.Permission == "" || r.auth.Can(identity, a.Permission) {
			out = append(out, a)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Execute runs an action on behalf of identity and publishes the outcome.
func (r *Registry) Execute(ctx context.Context, identity domain.Identity, actionID string, params Parameters) (Response, error) {
	a, ok := r.Get(actionID)
	if !ok {
		return Response{}, &ActionError{ActionID: actionID, Err: domain.NotFoundf("action %s not found", actionID)}
	}
	if a.Permission != "" && !r.auth.Can(identity, a.Permission) {
		return Response{}, &ActionError{ActionID: actionID, Err: fmt.Errorf("%w: %s requires %s", domain.ErrUnauthorized, actionID, a.Permission)}
	}
	if params == nil {
		params = Parameters{}
	}

	start := time.Now()
	resp, err := a.Callback(ctx, Call{Actor: identity, Params: params})
	elapsed := time.Since(start)

	if err != nil {
		resp = Response{Status: StatusError, Message: err.Error()}
		err = &ActionError{ActionID: actionID, Err: err}
		r.log.Info("action failed", zap.String("action", actionID), zap.String("actor", identity.User.Email), zap.Error(err))
	} else if resp.Status == "" {
		resp.Status = StatusSuccess
	}
	if r.metrics != nil {
		r.metrics.observe(actionID, resp.Status, elapsed)
	}

	event := ActionCompletedEvent{
		ID:         uuid.NewString(),
		ActionID:   actionID,
		Status:     resp.Status,
		Message:    resp.Message,
		ActorID:    identity.Actor(),
		ActorEmail: identity.User.Email,
		Payload:    resp.Payload,
		OccurredAt: time.Now().UTC(),
	}
	if r.bus != nil {
		r.bus.Publish(ctx, event)
	}
	return resp, err
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode fills out from params by json tag name and validates it.
func decode(params Parameters, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(map[string]any(params)); err != nil {
		return domain.InvalidArgumentf("invalid parameters: %v", err)
	}
	if err := validate.Struct(out); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return parameterError(verrs[0])
		}
		return domain.InvalidArgumentf("invalid parameters: %v", err)
	}
	return nil
}

func parameterError(e validator.FieldError) error {
	switch e.Tag() {
	case "required":
		return domain.InvalidArgumentf("missing parameter %s", e.Field())
	case "oneof":
		return domain.InvalidArgumentf("parameter %s must be one of: %s", e.Field(), e.Param())
	case "min":
		return domain.InvalidArgumentf("parameter %s needs at least %s value(s)", e.Field(), e.Param())
	default:
		return domain.InvalidArgumentf("invalid parameter %s", e.Field())
	}
}
