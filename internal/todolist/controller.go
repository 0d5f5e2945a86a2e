// Package todolist keeps an in-memory todo list in step with a key-value
// store. Local edits are written back as the whole list; the displayed
// state follows store change notifications and a periodic reload.
package todolist

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/Makepad-fr/tada/internal/model"
)

// Key is the store key holding the list.
const Key = "todos"

// DefaultPollInterval is how often the store is reloaded while mounted.
const DefaultPollInterval = time.Second

// Store is the slice of the store the controller depends on.
// *jsonstore.Store satisfies it.
type Store interface {
	Get(key string) (json.RawMessage, bool)
	Set(key string, value any) error
	Reload() error
	OnKeyChange(key string, fn func(json.RawMessage)) (unsubscribe func())
}

// cleanReloader is implemented by stores that can skip a reload while
// they hold unflushed writes.
type cleanReloader interface {
	ReloadIfClean() (bool, error)
}

// Options configure a Controller.
type Options struct {
	PollInterval time.Duration
	Clock        func() time.Time
	Logger       *log.Logger
}

// Controller mirrors the stored list. The zero state is unmounted: every
// operation is a no-op until Mount hands it a store.
type Controller struct {
	pollInterval time.Duration
	now          func() time.Time
	logger       *log.Logger

	mu    sync.RWMutex
	store Store
	todos model.List

	updates chan struct{}

	cancel      context.CancelFunc
	unsubscribe func()
	wg          sync.WaitGroup
}

// New returns an unmounted controller.
func New(opts Options) *Controller {
	c := &Controller{
		pollInterval: opts.PollInterval,
		now:          opts.Clock,
		logger:       opts.Logger,
		todos:        model.List{},
		updates:      make(chan struct{}, 1),
	}
	if c.pollInterval <= 0 {
		c.pollInterval = DefaultPollInterval
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.logger == nil {
		c.logger = log.New(io.Discard)
	}
	c.logger = c.logger.WithPrefix("todolist")
	return c
}

// Mount attaches the controller to s: it reads the current list,
// subscribes to changes of Key and starts the poll loop, which runs until
// ctx is done or Unmount is called. Mounting twice is a no-op.
func (c *Controller) Mount(ctx context.Context, s Store) {
	c.mu.Lock()
	if c.store != nil {
		c.mu.Unlock()
		return
	}
	c.store = s
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	raw, _ := s.Get(Key)
	c.apply(s, raw)

	unsub := s.OnKeyChange(Key, func(v json.RawMessage) {
		c.apply(s, v)
	})
	c.mu.Lock()
	c.unsubscribe = unsub
	c.mu.Unlock()

	c.wg.Add(1)
	go c.poll(ctx, s)
	c.logger.Debug("mounted", "interval", c.pollInterval)
}

// Unmount stops the poll loop and the change listener. Reads already in
// flight finish but no longer affect the displayed list.
func (c *Controller) Unmount() {
	c.mu.Lock()
	if c.store == nil {
		c.mu.Unlock()
		return
	}
	c.store = nil
	cancel, unsub := c.cancel, c.unsubscribe
	c.cancel, c.unsubscribe = nil, nil
	c.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
	c.logger.Debug("unmounted")
}

// Ready reports whether the controller is mounted.
func (c *Controller) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store != nil
}

// Todos returns a copy of the displayed list.
func (c *Controller) Todos() model.List {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(model.List, len(c.todos))
	copy(out, c.todos)
	return out
}

// Updates signals that the displayed list changed. Signals coalesce, so a
// reader should call Todos after each receive.
func (c *Controller) Updates() <-chan struct{} {
	return c.updates
}

// Add appends a new pending item stamped with the current time and writes
// the whole list. It returns the item and false when unmounted.
func (c *Controller) Add(text string) (model.Item, bool) {
	s := c.current()
	if s == nil {
		return model.Item{}, false
	}
	it := model.NewItem(text, c.now())
	c.write(s, c.Todos().Append(it))
	return it, true
}

// Remove writes the list without the item with id. Unknown ids leave the
// content unchanged.
func (c *Controller) Remove(id int64) {
	s := c.current()
	if s == nil {
		return
	}
	c.write(s, c.Todos().Without(id))
}

// Update writes the list with the entry sharing item's id replaced.
// Unknown ids leave the content unchanged.
func (c *Controller) Update(item model.Item) {
	s := c.current()
	if s == nil {
		return
	}
	next, _ := c.Todos().Replace(item)
	c.write(s, next)
}

// Toggle flips Done on the item with id.
func (c *Controller) Toggle(id int64) {
	it, ok := c.Todos().Find(id)
	if !ok {
		return
	}
	c.Update(it.Toggled())
}

func (c *Controller) current() Store {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store
}

// write stores l. The displayed list changes through the key-change
// notification that follows, not here.
func (c *Controller) write(s Store, l model.List) {
	if err := s.Set(Key, l); err != nil {
		c.logger.Warn("write failed", "err", err)
	}
}

func (c *Controller) poll(ctx context.Context, s Store) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		reloaded, err := c.reload(s)
		if err != nil {
			c.logger.Debug("reload failed", "err", err)
			continue
		}
		if !reloaded {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		raw, _ := s.Get(Key)
		c.apply(s, raw)
	}
}

// reload refreshes s from its backing file. Stores that support it keep
// their unflushed writes and report false; the next tick tries again.
func (c *Controller) reload(s Store) (bool, error) {
	if cr, ok := s.(cleanReloader); ok {
		return cr.ReloadIfClean()
	}
	return true, s.Reload()
}

// apply replaces the displayed list if s is still the mounted store.
func (c *Controller) apply(s Store, raw json.RawMessage) {
	l := model.DecodeList(raw)

	c.mu.Lock()
	if c.store != s {
		c.mu.Unlock()
		return
	}
	changed := !c.todos.Equal(l)
	c.todos = l
	c.mu.Unlock()

	if changed {
		select {
		case c.updates <- struct{}{}:
		default:
		}
	}
}
