package projection

import (
	"sort"

	"github.com/withObsrvr/asset-graph-indexer/pkg/event"
)

type handlerFunc func(c *Context) error

// Router dispatches events by the emitter's contract kind and the event name.
type Router struct {
	handlers map[event.ContractKind]map[string]handlerFunc
}

func NewRouter() *Router {
	return &Router{handlers: make(map[event.ContractKind]map[string]handlerFunc)}
}

func (r *Router) add(kind event.ContractKind, name string, h handlerFunc) {
	byName, ok := r.handlers[kind]
	if !ok {
		byName = make(map[string]handlerFunc)
		r.handlers[kind] = byName
	}
	byName[name] = h
}

func (r *Router) lookup(kind event.ContractKind, name string) (handlerFunc, bool) {
	h, ok := r.handlers[kind][name]
	return h, ok
}

// Handled returns the sorted event names handled for kind.
func (r *Router) Handled(kind event.ContractKind) []string {
	names := make([]string, 0, len(r.handlers[kind]))
	for name := range r.handlers[kind] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Handle registers a handler that receives the event params decoded into P.
// Params that do not decode skip the event as malformed input.
func Handle[P any](r *Router, name string, fn func(*Context, P) error, kinds ...event.ContractKind) {
	h := func(c *Context) error {
		var params P
		if err := c.Event.Decode(&params); err != nil {
			return Skip(Malformed, "%v", err)
		}
		return fn(c, params)
	}
	for _, kind := range kinds {
		r.add(kind, name, h)
	}
}

// HandleRaw registers a handler that reads no params.
func HandleRaw(r *Router, name string, fn func(*Context) error, kinds ...event.ContractKind) {
	for _, kind := range kinds {
		r.add(kind, name, fn)
	}
}
