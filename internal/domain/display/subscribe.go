package display

// Subscribe returns a channel receiving a snapshot after every change, plus
// a cancel func that closes it. The channel holds at most one pending
// snapshot: a slow reader skips intermediate states and only sees the latest.
// The current state is delivered immediately.
func (b *Board) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	b.subMu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	ch <- b.Snapshot()
	b.subMu.Unlock()

	cancel := func() {
		b.subMu.Lock()
		defer b.subMu.Unlock()
		if c, ok := b.subs[id]; ok {
			close(c)
			delete(b.subs, id)
		}
	}
	return ch, cancel
}

// Subscribers returns the number of open subscriptions.
func (b *Board) Subscribers() int {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	return len(b.subs)
}

func (b *Board) publish() {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	if len(b.subs) == 0 {
		return
	}

	// Taken under subMu so subscribers see versions in increasing order.
	snap := b.Snapshot()
	for _, ch := range b.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		// Replace the stale pending snapshot. Senders are serialized by
		// subMu, so the buffer is free after the drain.
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}
