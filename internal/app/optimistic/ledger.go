// Package optimistic implements two-phase optimistic writes over an
// in-memory state. A local mutation is staged as a layer of events tagged
// with a correlation id and is visible immediately. When the store rejects
// the write the layer is reverted (dropped), which restores the state the
// layer was staged over. When the store accepts it the layer is confirmed
// but stays in place, in staging order, until the store's own copy of each
// event (its echo) has been reconciled into the base; only then is it
// dropped. A confirmed write therefore never lands on top of newer store
// changes that were reconciled before the confirmation arrived.
package optimistic

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"github.com/jsamuelsen11/stage-tracker/internal/platform/logging"
)

// ErrUnknownLayer is returned when Confirm or Revert names a correlation id
// that is not pending.
var ErrUnknownLayer = errors.New("optimistic: unknown layer")

// Reducer folds one event into a state and returns the new state. It must
// not modify its input.
type Reducer[S, E any] func(S, E) S

// Option configures a Ledger.
type Option[S, E any] func(*Ledger[S, E])

// WithEchoKey identifies the store echo of a local event: an observed event
// echoes a staged one when both have the same non-empty key. Without it a
// confirmed layer is folded into the base as soon as no older layer is
// pending.
func WithEchoKey[S, E any](key func(E) string) Option[S, E] {
	return func(l *Ledger[S, E]) {
		l.key = key
	}
}

type layer[E any] struct {
	id          string
	events      []E
	echoed      []bool
	confirmed   bool
	confirmedAt uint64
}

func (p *layer[E]) settled() bool {
	return !slices.Contains(p.echoed, false)
}

// entry is one reconciled batch, kept while a reload is in flight.
type entry[E any] struct {
	tick   uint64
	events []E
}

type book[S, E any] struct {
	base    S
	layers  []layer[E]
	view    S
	tick    uint64
	marks   map[uint64]int
	journal []entry[E]
}

// Ledger layers pending optimistic writes over a confirmed base state.
// It is safe for concurrent use.
type Ledger[S, E any] struct {
	reduce Reducer[S, E]
	key    func(E) string
	ref    *SafeRef[book[S, E]]
}

// NewLedger creates a Ledger with base as the confirmed state.
func NewLedger[S, E any](base S, reduce Reducer[S, E], opts ...Option[S, E]) *Ledger[S, E] {
	l := &Ledger[S, E]{
		reduce: reduce,
		ref:    NewRef(book[S, E]{base: base, view: base}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// View returns the base state with every layer applied.
func (l *Ledger[S, E]) View() S {
	return Read(l.ref, func(b book[S, E]) S { return b.view })
}

// Base returns the state built from reconciled and settled events only.
func (l *Ledger[S, E]) Base() S {
	return Read(l.ref, func(b book[S, E]) S { return b.base })
}

// Pending returns the correlation ids of unconfirmed layers in staging order.
func (l *Ledger[S, E]) Pending() []string {
	return Read(l.ref, func(b book[S, E]) []string {
		ids := make([]string, 0, len(b.layers))
		for _, p := range b.layers {
			if !p.confirmed {
				ids = append(ids, p.id)
			}
		}
		return ids
	})
}

// Stage adds a tentative layer and returns the new view.
func (l *Ledger[S, E]) Stage(id string, events ...E) S {
	return Modify(l.ref, func(b *book[S, E]) S {
		l.push(b, id, events)
		return b.view
	})
}

// Confirm records that the store accepted the layer.
func (l *Ledger[S, E]) Confirm(id string) error {
	return Modify(l.ref, func(b *book[S, E]) error {
		idx := b.find(id)
		if idx < 0 {
			return ErrUnknownLayer
		}
		b.tick++
		b.layers[idx].confirmed = true
		b.layers[idx].confirmedAt = b.tick
		l.settle(b)
		b.view = l.rebuild(b)
		return nil
	})
}

// Revert drops the layer, restoring what it was staged over.
func (l *Ledger[S, E]) Revert(id string) error {
	return Modify(l.ref, func(b *book[S, E]) error {
		idx := b.find(id)
		if idx < 0 {
			return ErrUnknownLayer
		}
		b.layers = slices.Delete(b.layers, idx, idx+1)
		l.settle(b)
		b.view = l.rebuild(b)
		return nil
	})
}

// Reconcile folds events observed from the store into the base state, in
// the order the store produced them. Each event also counts as the echo of
// the oldest staged event with the same key. Layers are re-applied on top.
func (l *Ledger[S, E]) Reconcile(events ...E) S {
	return Modify(l.ref, func(b *book[S, E]) S {
		b.tick++
		if len(b.marks) > 0 {
			b.journal = append(b.journal, entry[E]{tick: b.tick, events: slices.Clone(events)})
		}
		for _, e := range events {
			l.markEcho(b, e)
		}
		b.base = l.fold(b.base, events)
		l.settle(b)
		b.view = l.rebuild(b)
		return b.view
	})
}

// Mark records the reconcile position before a full reload starts reading
// the store. Every Mark must be passed to Reset or Release.
func (l *Ledger[S, E]) Mark() uint64 {
	return Modify(l.ref, func(b *book[S, E]) uint64 {
		if b.marks == nil {
			b.marks = make(map[uint64]int)
		}
		b.marks[b.tick]++
		return b.tick
	})
}

// Release forgets a mark whose reload was abandoned.
func (l *Ledger[S, E]) Release(mark uint64) {
	Modify(l.ref, func(b *book[S, E]) struct{} {
		b.release(mark)
		return struct{}{}
	})
}

// Reset replaces the base with a state read from the store after mark was
// taken. Events reconciled since the mark are replayed on top, since the
// read may predate them. Layers confirmed before the mark are already part
// of what was read and are dropped; the others stay on top.
func (l *Ledger[S, E]) Reset(mark uint64, base S) S {
	return Modify(l.ref, func(b *book[S, E]) S {
		for _, en := range b.journal {
			if en.tick > mark {
				base = l.fold(base, en.events)
			}
		}
		b.base = base
		b.layers = slices.DeleteFunc(b.layers, func(p layer[E]) bool {
			return p.confirmed && p.confirmedAt <= mark
		})
		b.release(mark)
		l.settle(b)
		b.view = l.rebuild(b)
		return b.view
	})
}

// Builder computes the events of a write from the current view. It runs
// under the ledger lock, so concurrent writers each see the other's layer.
type Builder[S, E any] func(view S) ([]E, error)

// Fixed returns a Builder that always yields events.
func Fixed[S, E any](events ...E) Builder[S, E] {
	return func(S) ([]E, error) { return events, nil }
}

// Begin builds events from the current view and stages them as one layer
// under a fresh correlation id. Nothing is staged when build fails.
func (l *Ledger[S, E]) Begin(build Builder[S, E]) (string, error) {
	var id string
	err := Modify(l.ref, func(b *book[S, E]) error {
		events, err := build(b.view)
		if err != nil {
			return err
		}
		id = uuid.NewString()
		l.push(b, id, events)
		return nil
	})
	return id, err
}

// Apply runs one two-phase write: the built events are staged, persist is
// called, and the layer is confirmed when persist succeeds or reverted when
// it fails. Build and persist errors are returned unchanged.
func (l *Ledger[S, E]) Apply(ctx context.Context, op string, build Builder[S, E], persist func(context.Context) error) error {
	id, err := l.Begin(build)
	if err != nil {
		return err
	}

	if err := persist(ctx); err != nil {
		if rerr := l.Revert(id); rerr != nil {
			logging.FromContext(ctx).ErrorContext(ctx, "optimistic revert failed",
				slog.String("operation", op),
				slog.String("correlation_id", id),
				slog.Any("error", rerr),
			)
		}
		logging.FromContext(ctx).WarnContext(ctx, "optimistic write reverted",
			slog.String("operation", op),
			slog.String("correlation_id", id),
			slog.Any("error", err),
		)
		return err
	}

	if err := l.Confirm(id); err != nil {
		logging.FromContext(ctx).ErrorContext(ctx, "optimistic confirm failed",
			slog.String("operation", op),
			slog.String("correlation_id", id),
			slog.Any("error", err),
		)
	}
	return nil
}

func (l *Ledger[S, E]) push(b *book[S, E], id string, events []E) {
	p := layer[E]{id: id, events: slices.Clone(events), echoed: make([]bool, len(events))}
	if l.key != nil {
		for i, e := range events {
			p.echoed[i] = l.key(e) == ""
		}
	}
	b.layers = append(b.layers, p)
	b.view = l.fold(b.view, events)
}

// markEcho flags the oldest unechoed staged event matching e.
func (l *Ledger[S, E]) markEcho(b *book[S, E], e E) {
	if l.key == nil {
		return
	}
	k := l.key(e)
	if k == "" {
		return
	}
	for i := range b.layers {
		p := &b.layers[i]
		for j, staged := range p.events {
			if !p.echoed[j] && l.key(staged) == k {
				p.echoed[j] = true
				return
			}
		}
	}
}

// settle retires confirmed layers. With an echo key a confirmed layer goes
// once all its events were echoed; the echoes already carry its effect.
// Without one, confirmed layers at the bottom are folded into the base.
func (l *Ledger[S, E]) settle(b *book[S, E]) {
	if l.key != nil {
		b.layers = slices.DeleteFunc(b.layers, func(p layer[E]) bool {
			return p.confirmed && p.settled()
		})
		return
	}
	for len(b.layers) > 0 && b.layers[0].confirmed {
		p := b.layers[0]
		b.base = l.fold(b.base, p.events)
		if len(b.marks) > 0 {
			b.journal = append(b.journal, entry[E]{tick: p.confirmedAt, events: p.events})
		}
		b.layers = slices.Delete(b.layers, 0, 1)
	}
}

func (b *book[S, E]) find(id string) int {
	return slices.IndexFunc(b.layers, func(p layer[E]) bool { return p.id == id && !p.confirmed })
}

// release drops mark and trims journal entries no remaining mark needs.
func (b *book[S, E]) release(mark uint64) {
	if b.marks[mark] > 1 {
		b.marks[mark]--
	} else {
		delete(b.marks, mark)
	}
	if len(b.marks) == 0 {
		b.journal = nil
		return
	}
	oldest := uint64(0)
	first := true
	for m := range b.marks {
		if first || m < oldest {
			oldest, first = m, false
		}
	}
	b.journal = slices.DeleteFunc(b.journal, func(en entry[E]) bool { return en.tick <= oldest })
}

func (l *Ledger[S, E]) rebuild(b *book[S, E]) S {
	view := b.base
	for _, p := range b.layers {
		view = l.fold(view, p.events)
	}
	return view
}

func (l *Ledger[S, E]) fold(s S, events []E) S {
	for _, e := range events {
		s = l.reduce(s, e)
	}
	return s
}
