package dbuskit

import "context"

// ClaimOptions are the options for a Claim to a bus name.
type ClaimOptions struct {
	// AllowReplacement is whether to allow another request that sets
	// TryReplace to take over ownership.
	AllowReplacement bool
	// TryReplace is whether to attempt to replace the current owner,
	// if the name already has an owner.
	TryReplace bool
	// NoQueue, if set, causes this claim to never join the backup
	// queue for any reason.
	NoQueue bool
}

func (o ClaimOptions) flags() NameRequestFlags {
	var f NameRequestFlags
	if o.AllowReplacement {
		f |= NameRequestAllowReplacement
	}
	if o.TryReplace {
		f |= NameRequestReplace
	}
	if o.NoQueue {
		f |= NameRequestNoQueue
	}
	return f
}

// Claim is a claim to ownership of a bus name.
//
// Multiple D-Bus clients may claim ownership of the same name; the
// bus tracks a single current owner plus a queue of claimants
// eligible to succeed it. Claiming a name does not guarantee
// ownership: callers must watch Claim.Chan to learn if and when the
// name is actually assigned.
type Claim struct {
	c    *Conn
	sub  *Subscription
	name string
	ch   chan bool

	stop chan struct{}
	done chan struct{}
}

// Claim requests ownership of name on c, and begins tracking
// NameAcquired/NameLost notifications for it.
func (c *Conn) Claim(ctx context.Context, name string, opts ClaimOptions) (*Claim, error) {
	claim := &Claim{
		c:    c,
		sub:  c.Subscribe(ifaceBus, "", ""),
		name: name,
		ch:   make(chan bool, 1),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	if _, err := c.RequestName(ctx, name, opts.flags()); err != nil {
		claim.sub.Close()
		return nil, err
	}
	go claim.pump()
	return claim, nil
}

// Name returns the claim's bus name.
func (c *Claim) Name() string { return c.name }

// Chan returns a channel reporting whether this claim currently owns
// the bus name. It receives a new value each time ownership changes.
func (c *Claim) Chan() <-chan bool { return c.ch }

// Close abandons the claim and releases the name.
func (c *Claim) Close() error {
	select {
	case <-c.done:
		return nil
	default:
	}
	close(c.stop)
	<-c.done
	c.sub.Close()
	return c.c.ReleaseName(context.Background(), c.name)
}

func (c *Claim) pump() {
	defer close(c.done)
	for {
		select {
		case sig, ok := <-c.sub.C():
			if !ok {
				return
			}
			switch sig.Member {
			case "NameAcquired":
				if len(sig.Args) == 1 && sig.Args[0] == c.name {
					c.send(true)
				}
			case "NameLost":
				if len(sig.Args) == 1 && sig.Args[0] == c.name {
					c.send(false)
				}
			}
		case <-c.stop:
			return
		}
	}
}

func (c *Claim) send(owner bool) {
	select {
	case c.ch <- owner:
	case <-c.ch:
		c.ch <- owner
	}
}
