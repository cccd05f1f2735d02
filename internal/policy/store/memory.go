package store

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"leasecover/internal/policy/models"
	id "leasecover/pkg/domain"
	"leasecover/pkg/platform/sentinel"
	"leasecover/pkg/platform/tx"
)

// Memory keeps every table in maps. Units of work run one at a time against
// a staged copy of the state; commit swaps the copy in, so a failed unit of
// work leaves nothing behind. Stored values are never mutated in place.
type Memory struct {
	txMu sync.Mutex

	mu        sync.RWMutex
	committed *state
	timeout   time.Duration
}

// row pairs a stored value with its insertion order.
type row[T any] struct {
	v   T
	seq uint64
}

type state struct {
	seq            uint64
	policies       map[id.PolicyID]row[*models.Policy]
	numbers        map[string]id.PolicyID
	actors         map[id.ActorID]row[*models.Actor]
	documents      map[id.DocumentID]row[*models.Document]
	references     map[id.ReferenceID]row[*models.Reference]
	investigations map[id.PolicyID]*models.Investigation
	payments       map[id.PaymentID]row[*models.Payment]
	sessions       map[string]id.PaymentID
	contracts      map[id.ContractID]*models.Contract
	activities     []*models.Activity
}

func newState() *state {
	return &state{
		policies:       make(map[id.PolicyID]row[*models.Policy]),
		numbers:        make(map[string]id.PolicyID),
		actors:         make(map[id.ActorID]row[*models.Actor]),
		documents:      make(map[id.DocumentID]row[*models.Document]),
		references:     make(map[id.ReferenceID]row[*models.Reference]),
		investigations: make(map[id.PolicyID]*models.Investigation),
		payments:       make(map[id.PaymentID]row[*models.Payment]),
		sessions:       make(map[string]id.PaymentID),
		contracts:      make(map[id.ContractID]*models.Contract),
	}
}

func (st *state) clone() *state {
	return &state{
		seq:            st.seq,
		policies:       maps.Clone(st.policies),
		numbers:        maps.Clone(st.numbers),
		actors:         maps.Clone(st.actors),
		documents:      maps.Clone(st.documents),
		references:     maps.Clone(st.references),
		investigations: maps.Clone(st.investigations),
		payments:       maps.Clone(st.payments),
		sessions:       maps.Clone(st.sessions),
		contracts:      maps.Clone(st.contracts),
		activities:     slices.Clone(st.activities),
	}
}

func (st *state) next() uint64 {
	st.seq++
	return st.seq
}

type stagedKey struct{}

func NewMemory() *Memory {
	return &Memory{committed: newState(), timeout: tx.DefaultTimeout}
}

// RunInTx runs fn against a staged copy of the state. Nested calls join the
// outer unit of work.
func (m *Memory) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if _, ok := ctx.Value(stagedKey{}).(*state); ok {
		return fn(ctx)
	}
	ctx, cancel, err := tx.Bound(ctx, m.timeout)
	defer cancel()
	if err != nil {
		return err
	}

	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.RLock()
	staged := m.committed.clone()
	m.mu.RUnlock()

	if err := fn(context.WithValue(ctx, stagedKey{}, staged)); err != nil {
		return err
	}
	m.mu.Lock()
	m.committed = staged
	m.mu.Unlock()
	return nil
}

// read runs fn against the staged state of the caller's unit of work, or
// against committed state outside one.
func (m *Memory) read(ctx context.Context, fn func(st *state) error) error {
	if st, ok := ctx.Value(stagedKey{}).(*state); ok {
		return fn(st)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(m.committed)
}

// write outside a unit of work runs as its own.
func (m *Memory) write(ctx context.Context, fn func(st *state) error) error {
	return m.RunInTx(ctx, func(txCtx context.Context) error {
		return fn(txCtx.Value(stagedKey{}).(*state))
	})
}

func copyOf[T any](v *T) *T {
	c := *v
	return &c
}

func sortedRows[T any](rows []row[T]) []T {
	slices.SortFunc(rows, func(a, b row[T]) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.v)
	}
	return out
}

// --- policies ---

func (m *Memory) CreatePolicy(ctx context.Context, p *models.Policy) error {
	return m.write(ctx, func(st *state) error {
		if _, taken := st.numbers[p.Number]; taken {
			return sentinel.ErrAlreadyUsed
		}
		if _, exists := st.policies[p.ID]; exists {
			return sentinel.ErrAlreadyUsed
		}
		st.policies[p.ID] = row[*models.Policy]{v: copyOf(p), seq: st.next()}
		st.numbers[p.Number] = p.ID
		return nil
	})
}

func (m *Memory) GetPolicy(ctx context.Context, policyID id.PolicyID) (*models.Policy, error) {
	var out *models.Policy
	err := m.read(ctx, func(st *state) error {
		r, ok := st.policies[policyID]
		if !ok {
			return sentinel.ErrNotFound
		}
		out = copyOf(r.v)
		return nil
	})
	return out, err
}

// LockPolicy is GetPolicy: units of work are already serialized.
func (m *Memory) LockPolicy(ctx context.Context, policyID id.PolicyID) (*models.Policy, error) {
	return m.GetPolicy(ctx, policyID)
}

func (m *Memory) UpdatePolicy(ctx context.Context, p *models.Policy) error {
	return m.write(ctx, func(st *state) error {
		r, ok := st.policies[p.ID]
		if !ok {
			return sentinel.ErrNotFound
		}
		st.policies[p.ID] = row[*models.Policy]{v: copyOf(p), seq: r.seq}
		return nil
	})
}

// ListPolicies returns newest first.
func (m *Memory) ListPolicies(ctx context.Context, filter models.PolicyFilter) ([]*models.Policy, error) {
	out := []*models.Policy{}
	err := m.read(ctx, func(st *state) error {
		rows := make([]row[*models.Policy], 0, len(st.policies))
		for _, r := range st.policies {
			if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, r.v.Status) {
				continue
			}
			if filter.CreatedBy != nil && r.v.CreatedBy != *filter.CreatedBy {
				continue
			}
			rows = append(rows, r)
		}
		all := sortedRows(rows)
		slices.Reverse(all)
		if filter.Offset >= len(all) {
			return nil
		}
		all = all[filter.Offset:]
		if filter.Limit > 0 && len(all) > filter.Limit {
			all = all[:filter.Limit]
		}
		for _, p := range all {
			out = append(out, copyOf(p))
		}
		return nil
	})
	return out, err
}

func (m *Memory) ListDueForExpiry(ctx context.Context, now time.Time, limit int) ([]id.PolicyID, error) {
	var out []id.PolicyID
	err := m.read(ctx, func(st *state) error {
		var due []*models.Policy
		for _, r := range st.policies {
			if r.v.IsExpiredAt(now) {
				due = append(due, r.v)
			}
		}
		slices.SortFunc(due, func(a, b *models.Policy) int { return a.Terms.EndDate.Compare(b.Terms.EndDate) })
		for _, p := range due {
			if limit > 0 && len(out) == limit {
				break
			}
			out = append(out, p.ID)
		}
		return nil
	})
	return out, err
}

// --- actors ---

func (m *Memory) CreateActor(ctx context.Context, a *models.Actor) error {
	return m.write(ctx, func(st *state) error {
		if _, exists := st.actors[a.ID]; exists {
			return sentinel.ErrAlreadyUsed
		}
		if _, ok := st.policies[a.PolicyID]; !ok {
			return sentinel.ErrNotFound
		}
		st.actors[a.ID] = row[*models.Actor]{v: copyOf(a), seq: st.next()}
		return nil
	})
}

func (m *Memory) UpdateActor(ctx context.Context, a *models.Actor) error {
	return m.write(ctx, func(st *state) error {
		r, ok := st.actors[a.ID]
		if !ok {
			return sentinel.ErrNotFound
		}
		st.actors[a.ID] = row[*models.Actor]{v: copyOf(a), seq: r.seq}
		return nil
	})
}

func (m *Memory) GetActor(ctx context.Context, actorID id.ActorID) (*models.Actor, error) {
	var out *models.Actor
	err := m.read(ctx, func(st *state) error {
		r, ok := st.actors[actorID]
		if !ok {
			return sentinel.ErrNotFound
		}
		out = copyOf(r.v)
		return nil
	})
	return out, err
}

func (m *Memory) ListActors(ctx context.Context, policyID id.PolicyID) ([]*models.Actor, error) {
	out := []*models.Actor{}
	err := m.read(ctx, func(st *state) error {
		var rows []row[*models.Actor]
		for _, r := range st.actors {
			if r.v.PolicyID == policyID {
				rows = append(rows, r)
			}
		}
		for _, a := range sortedRows(rows) {
			out = append(out, copyOf(a))
		}
		return nil
	})
	return out, err
}

// --- documents ---

func (m *Memory) CreateDocument(ctx context.Context, d *models.Document) error {
	return m.write(ctx, func(st *state) error {
		if _, ok := st.actors[d.ActorID]; !ok {
			return sentinel.ErrNotFound
		}
		st.documents[d.ID] = row[*models.Document]{v: copyOf(d), seq: st.next()}
		return nil
	})
}

func (m *Memory) GetDocument(ctx context.Context, documentID id.DocumentID) (*models.Document, error) {
	var out *models.Document
	err := m.read(ctx, func(st *state) error {
		r, ok := st.documents[documentID]
		if !ok {
			return sentinel.ErrNotFound
		}
		out = copyOf(r.v)
		return nil
	})
	return out, err
}

func (m *Memory) DeleteDocument(ctx context.Context, documentID id.DocumentID) error {
	return m.write(ctx, func(st *state) error {
		if _, ok := st.documents[documentID]; !ok {
			return sentinel.ErrNotFound
		}
		delete(st.documents, documentID)
		return nil
	})
}

func (m *Memory) ListDocumentsByActor(ctx context.Context, actorID id.ActorID) ([]*models.Document, error) {
	return m.listDocuments(ctx, func(d *models.Document) bool { return d.ActorID == actorID })
}

func (m *Memory) ListDocumentsByPolicy(ctx context.Context, policyID id.PolicyID) ([]*models.Document, error) {
	return m.listDocuments(ctx, func(d *models.Document) bool { return d.PolicyID == policyID })
}

func (m *Memory) listDocuments(ctx context.Context, match func(*models.Document) bool) ([]*models.Document, error) {
	out := []*models.Document{}
	err := m.read(ctx, func(st *state) error {
		var rows []row[*models.Document]
		for _, r := range st.documents {
			if match(r.v) {
				rows = append(rows, r)
			}
		}
		for _, d := range sortedRows(rows) {
			out = append(out, copyOf(d))
		}
		return nil
	})
	return out, err
}

// --- references ---

func (m *Memory) CreateReference(ctx context.Context, ref *models.Reference) error {
	return m.write(ctx, func(st *state) error {
		if _, ok := st.actors[ref.ActorID]; !ok {
			return sentinel.ErrNotFound
		}
		st.references[ref.ID] = row[*models.Reference]{v: copyOf(ref), seq: st.next()}
		return nil
	})
}

func (m *Memory) ListReferencesByActor(ctx context.Context, actorID id.ActorID) ([]*models.Reference, error) {
	return m.listReferences(ctx, func(r *models.Reference) bool { return r.ActorID == actorID })
}

func (m *Memory) ListReferencesByPolicy(ctx context.Context, policyID id.PolicyID) ([]*models.Reference, error) {
	return m.listReferences(ctx, func(r *models.Reference) bool { return r.PolicyID == policyID })
}

func (m *Memory) listReferences(ctx context.Context, match func(*models.Reference) bool) ([]*models.Reference, error) {
	out := []*models.Reference{}
	err := m.read(ctx, func(st *state) error {
		var rows []row[*models.Reference]
		for _, r := range st.references {
			if match(r.v) {
				rows = append(rows, r)
			}
		}
		for _, ref := range sortedRows(rows) {
			out = append(out, copyOf(ref))
		}
		return nil
	})
	return out, err
}

// --- investigations ---

func (m *Memory) CreateInvestigation(ctx context.Context, inv *models.Investigation) error {
	return m.write(ctx, func(st *state) error {
		if _, exists := st.investigations[inv.PolicyID]; exists {
			return sentinel.ErrAlreadyUsed
		}
		st.investigations[inv.PolicyID] = copyOf(inv)
		return nil
	})
}

func (m *Memory) GetInvestigation(ctx context.Context, policyID id.PolicyID) (*models.Investigation, error) {
	var out *models.Investigation
	err := m.read(ctx, func(st *state) error {
		inv, ok := st.investigations[policyID]
		if !ok {
			return sentinel.ErrNotFound
		}
		out = copyOf(inv)
		return nil
	})
	return out, err
}

func (m *Memory) UpdateInvestigation(ctx context.Context, inv *models.Investigation) error {
	return m.write(ctx, func(st *state) error {
		current, ok := st.investigations[inv.PolicyID]
		if !ok || current.ID != inv.ID {
			return sentinel.ErrNotFound
		}
		st.investigations[inv.PolicyID] = copyOf(inv)
		return nil
	})
}

// --- payments ---

func (m *Memory) CreatePayment(ctx context.Context, p *models.Payment) error {
	return m.write(ctx, func(st *state) error {
		if p.GatewaySessionID != "" {
			if _, taken := st.sessions[p.GatewaySessionID]; taken {
				return sentinel.ErrAlreadyUsed
			}
		}
		if _, ok := st.policies[p.PolicyID]; !ok {
			return sentinel.ErrNotFound
		}
		st.payments[p.ID] = row[*models.Payment]{v: copyOf(p), seq: st.next()}
		if p.GatewaySessionID != "" {
			st.sessions[p.GatewaySessionID] = p.ID
		}
		return nil
	})
}

func (m *Memory) GetPayment(ctx context.Context, paymentID id.PaymentID) (*models.Payment, error) {
	var out *models.Payment
	err := m.read(ctx, func(st *state) error {
		r, ok := st.payments[paymentID]
		if !ok {
			return sentinel.ErrNotFound
		}
		out = copyOf(r.v)
		return nil
	})
	return out, err
}

func (m *Memory) GetPaymentBySession(ctx context.Context, sessionID string) (*models.Payment, error) {
	var out *models.Payment
	err := m.read(ctx, func(st *state) error {
		paymentID, ok := st.sessions[sessionID]
		if !ok {
			return sentinel.ErrNotFound
		}
		out = copyOf(st.payments[paymentID].v)
		return nil
	})
	return out, err
}

func (m *Memory) LockPayment(ctx context.Context, paymentID id.PaymentID) (*models.Payment, error) {
	return m.GetPayment(ctx, paymentID)
}

func (m *Memory) UpdatePayment(ctx context.Context, p *models.Payment) error {
	return m.write(ctx, func(st *state) error {
		r, ok := st.payments[p.ID]
		if !ok {
			return sentinel.ErrNotFound
		}
		st.payments[p.ID] = row[*models.Payment]{v: copyOf(p), seq: r.seq}
		return nil
	})
}

func (m *Memory) ListPayments(ctx context.Context, policyID id.PolicyID) ([]*models.Payment, error) {
	out := []*models.Payment{}
	err := m.read(ctx, func(st *state) error {
		var rows []row[*models.Payment]
		for _, r := range st.payments {
			if r.v.PolicyID == policyID {
				rows = append(rows, r)
			}
		}
		for _, p := range sortedRows(rows) {
			out = append(out, copyOf(p))
		}
		return nil
	})
	return out, err
}

// --- contracts ---

func (m *Memory) CreateContractVersion(ctx context.Context, c *models.Contract) error {
	return m.write(ctx, func(st *state) error {
		for _, existing := range st.contracts {
			if existing.PolicyID == c.PolicyID && existing.Version == c.Version {
				return sentinel.ErrConflict
			}
		}
		for cid, existing := range st.contracts {
			if existing.PolicyID == c.PolicyID && existing.IsCurrent {
				cleared := copyOf(existing)
				cleared.IsCurrent = false
				st.contracts[cid] = cleared
			}
		}
		stored := copyOf(c)
		stored.IsCurrent = true
		st.contracts[c.ID] = stored
		return nil
	})
}

func (m *Memory) ListContracts(ctx context.Context, policyID id.PolicyID) ([]*models.Contract, error) {
	out := []*models.Contract{}
	err := m.read(ctx, func(st *state) error {
		for _, c := range st.contracts {
			if c.PolicyID == policyID {
				out = append(out, copyOf(c))
			}
		}
		slices.SortFunc(out, func(a, b *models.Contract) int { return a.Version - b.Version })
		return nil
	})
	return out, err
}

func (m *Memory) CurrentContract(ctx context.Context, policyID id.PolicyID) (*models.Contract, error) {
	var out *models.Contract
	err := m.read(ctx, func(st *state) error {
		for _, c := range st.contracts {
			if c.PolicyID == policyID && c.IsCurrent {
				out = copyOf(c)
				return nil
			}
		}
		return sentinel.ErrNotFound
	})
	return out, err
}

// --- activities ---

func (m *Memory) AppendActivity(ctx context.Context, a *models.Activity) error {
	return m.write(ctx, func(st *state) error {
		stored := copyOf(a)
		stored.Details = maps.Clone(a.Details)
		st.activities = append(st.activities, stored)
		return nil
	})
}

func (m *Memory) ListActivities(ctx context.Context, policyID id.PolicyID) ([]*models.Activity, error) {
	out := []*models.Activity{}
	err := m.read(ctx, func(st *state) error {
		for _, a := range st.activities {
			if a.PolicyID == policyID {
				c := copyOf(a)
				c.Details = maps.Clone(a.Details)
				out = append(out, c)
			}
		}
		return nil
	})
	return out, err
}
