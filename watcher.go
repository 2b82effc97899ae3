package dbuskit

import (
	"context"
	"sync"

	"github.com/creachadair/mds/mapset"
	"github.com/creachadair/mds/queue"
)

const maxWatcherQueue = 20

// Watch watches the bus for signals from other bus participants.
//
// A newly created Watcher delivers no notifications. The caller must
// use [Watcher.Match] to specify which signals the Watcher should
// provide.
func (c *Conn) Watch() *Watcher {
	w := &Watcher{
		conn:        c,
		sub:         c.Subscribe("", "", ""),
		out:         make(chan *Notification),
		wakePump:    make(chan struct{}, 1),
		stopPump:    make(chan struct{}),
		pumpStopped: make(chan struct{}),
		matches:     mapset.New[*Match](),
	}
	go w.filter()
	go w.pump()
	return w
}

// Notification is a signal received from a bus peer that matched one
// of a Watcher's filters.
type Notification struct {
	// Sender is the unique bus name that emitted the signal.
	Sender string
	// Interface and Name identify the signal.
	Interface string
	Name      string
	// Path is the object path the signal was emitted from.
	Path ObjectPath
	// Args is the signal's decoded argument list.
	Args []HostValue
	// Overflow reports that the watcher discarded some notifications
	// that followed this one, because the caller fell behind draining
	// Chan.
	Overflow bool
}

// A Watcher delivers signals received from the bus that match its
// filters.
type Watcher struct {
	conn *Conn
	sub  *Subscription

	out      chan *Notification
	wakePump chan struct{}

	stopPump    chan struct{}
	pumpStopped chan struct{}

	mu      sync.Mutex
	queue   queue.Queue[*Notification]
	matches mapset.Set[*Match]
}

// Close shuts down the Watcher.
func (w *Watcher) Close() {
	select {
	case <-w.pumpStopped:
		return
	default:
	}
	w.sub.Close()
	close(w.stopPump)
	close(w.wakePump)
	<-w.pumpStopped

	w.mu.Lock()
	defer w.mu.Unlock()
	w.queue.Clear()
}

// Chan returns the channel on which matched signals are delivered.
//
// The caller must drain this channel promptly to avoid overflowing
// the Watcher's receive queue. A discarded notification is indicated
// by the Overflow field of the Notification immediately preceding it.
func (w *Watcher) Chan() <-chan *Notification {
	return w.out
}

// Match requests delivery of signals satisfying m. Matches are
// additive: a signal is delivered if it satisfies any of the
// Watcher's match specifications.
//
// The returned remove function detaches m without affecting the
// Watcher's other matches; using it is optional.
func (w *Watcher) Match(ctx context.Context, m *Match) (remove func(), err error) {
	if err := w.conn.AddMatch(ctx, m.filterString()); err != nil {
		return nil, err
	}
	w.mu.Lock()
	w.matches.Add(m)
	w.mu.Unlock()
	return func() {
		_ = w.conn.RemoveMatch(context.Background(), m.filterString())
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.matches, m)
	}, nil
}

// filter reads every signal the underlying Subscription delivers and
// enqueues the ones that satisfy an active Match.
func (w *Watcher) filter() {
	for sig := range w.sub.C() {
		w.mu.Lock()
		want := false
		for m := range w.matches {
			if m.matches(sig) {
				want = true
				break
			}
		}
		if want {
			w.enqueueLocked(&Notification{
				Sender:    sig.Sender,
				Interface: sig.Interface,
				Name:      sig.Member,
				Path:      sig.Path,
				Args:      sig.Args,
			})
		}
		w.mu.Unlock()
	}
}

func (w *Watcher) enqueueLocked(n *Notification) {
	if w.queue.Len() >= maxWatcherQueue {
		last, _ := w.queue.Peek(-1)
		last.Overflow = true
		return
	}
	w.queue.Add(n)
	if w.queue.Len() == 1 {
		select {
		case w.wakePump <- struct{}{}:
		default:
		}
	}
}

func (w *Watcher) pump() {
	defer close(w.pumpStopped)
	defer close(w.out)
	for {
		sig := func() *Notification {
			w.mu.Lock()
			defer w.mu.Unlock()
			ret, _ := w.queue.Pop()
			return ret
		}()
		if sig == nil {
			select {
			case <-w.stopPump:
				return
			case <-w.wakePump:
				continue
			}
		}
		select {
		case w.out <- sig:
		case <-w.stopPump:
			return
		}
	}
}
