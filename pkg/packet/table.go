package packet

import (
	"context"
	"sync"

	"github.com/golang/glog"
)

// Handler is called with a decoded frame.
type Handler interface {
	HandleFrame(context.Context, *Frame)
}

// HandleFrameFunc is func type of Handler.
type HandleFrameFunc func(context.Context, *Frame)

// HandleFrame implements Handler.
func (f HandleFrameFunc) HandleFrame(ctx context.Context, frame *Frame) {
	f(ctx, frame)
}

// Handlers fans a frame out to every handler in order.
type Handlers []Handler

// HandleFrame implements Handler.
func (h Handlers) HandleFrame(ctx context.Context, frame *Frame) {
	for _, handler := range h {
		if handler != nil {
			handler.HandleFrame(ctx, frame)
		}
	}
}

// Table routes frames to handlers by packet id.
type Table struct {
	// Name is used in log records.
	Name string
	// Tap sees every frame before routing, e.g. for mirroring.
	Tap Handler
	// Fallback handles ids without a registered handler.
	Fallback Handler

	lock     sync.RWMutex
	handlers map[ID]Handler
}

// NewTable creates an empty Table.
func NewTable(name string) *Table {
	return &Table{Name: name, handlers: make(map[ID]Handler)}
}

// Register installs the handler for an id, replacing any previous one.
func (t *Table) Register(id ID, h Handler) *Table {
	t.lock.Lock()
	if t.handlers == nil {
		t.handlers = make(map[ID]Handler)
	}
	t.handlers[id] = h
	t.lock.Unlock()
	return t
}

// RegisterFunc is the func form of Register.
func (t *Table) RegisterFunc(id ID, fn func(context.Context, *Frame)) *Table {
	return t.Register(id, HandleFrameFunc(fn))
}

// Lookup returns the handler registered for id.
func (t *Table) Lookup(id ID) (Handler, bool) {
	t.lock.RLock()
	defer t.lock.RUnlock()
	h, ok := t.handlers[id]
	return h, ok
}

// HandleFrame implements Handler.
func (t *Table) HandleFrame(ctx context.Context, frame *Frame) {
	if tap := t.Tap; tap != nil {
		tap.HandleFrame(ctx, frame)
	}
	if h, ok := t.Lookup(frame.ID); ok {
		h.HandleFrame(ctx, frame)
		return
	}
	if fb := t.Fallback; fb != nil {
		fb.HandleFrame(ctx, frame)
		return
	}
	glog.V(2).Infof("%s: no handler for %s (%d bytes)", t.Name, frame.ID, len(frame.Payload))
}
