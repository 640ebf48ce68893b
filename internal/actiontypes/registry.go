package actiontypes

import (
	"sort"
	"sync"

	"github.com/casekit/lexflow/pkg/schema"
)

// Registry is the thread-safe handler lookup, keyed by action type.
type Registry struct {
	mu       sync.RWMutex
	handlers map[schema.ActionType]Handler
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[schema.ActionType]Handler),
	}
}

// Defaults returns a Registry with every built-in action variant registered.
func Defaults() *Registry {
	r := NewRegistry()
	for _, h := range []Handler{
		ChecklistHandler{},
		ApprovalHandler{},
		SignatureHandler{},
		RequestDocHandler{},
		PaymentHandler{},
		WriteTextHandler{},
		QuestionnaireHandler{},
		TaskHandler{},
		AutomationEmailHandler{},
		AutomationWebhookHandler{},
	} {
		// Built-ins are distinct by construction.
		_ = r.Register(h)
	}
	return r
}

// Register adds a handler. Returns an error on duplicate action type.
func (r *Registry) Register(h Handler) error {
	if h == nil {
		return schema.NewError(schema.ErrCodeValidation, "handler is nil")
	}
	if h.Type() == "" {
		return schema.NewError(schema.ErrCodeValidation, "handler action type is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[h.Type()]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "action type %q already registered", h.Type())
	}

	r.handlers[h.Type()] = h
	return nil
}

// Get retrieves the handler for an action type.
func (r *Registry) Get(t schema.ActionType) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[t]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "action type %q not registered", t)
	}
	return h, nil
}

// Has reports whether the action type is registered.
func (r *Registry) Has(t schema.ActionType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[t]
	return ok
}

// Types returns the registered action types, sorted.
func (r *Registry) Types() []schema.ActionType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]schema.ActionType, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
