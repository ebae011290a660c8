package ledger

import (
	"context"
	"sync"

	"payment-service/internal/domain"
	"payment-service/internal/xerrors"

	"github.com/shopspring/decimal"
)

// memStore mirrors the repository semantics in memory. It shares
// domain.PlanTransition with the real store so balance rules are not
// duplicated, and serializes everything through one mutex the way the SQL
// store serializes through row locks.
type memStore struct {
	mu      sync.Mutex
	nextID  int64
	txs     map[string]*domain.Transaction // key: op + ":" + ref
	byID    map[int64]*domain.Transaction
	wallets map[int64]*memWallet
}

type memWallet struct {
	available decimal.Decimal
	onHold    decimal.Decimal
}

func newMemStore() *memStore {
	return &memStore{
		txs:     make(map[string]*domain.Transaction),
		byID:    make(map[int64]*domain.Transaction),
		wallets: make(map[int64]*memWallet),
	}
}

func key(op domain.OpType, ref string) string { return string(op) + ":" + ref }

func (m *memStore) wallet(userID int64) *memWallet {
	w, ok := m.wallets[userID]
	if !ok {
		w = &memWallet{available: decimal.Zero, onHold: decimal.Zero}
		m.wallets[userID] = w
	}
	return w
}

func (m *memStore) fund(userID int64, amount string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, _ := decimal.NewFromString(amount)
	m.wallet(userID).available = m.wallet(userID).available.Add(d)
}

func (m *memStore) balance(userID int64) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wallet(userID).available
}

func (m *memStore) CreatePending(_ context.Context, t *domain.Transaction) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key(domain.OpTypeFor(t.Type), t.CorrelationID())
	if existing, ok := m.txs[k]; ok {
		cp := *existing
		return &cp, xerrors.ErrDuplicateCorrelation
	}

	m.nextID++
	cp := *t
	cp.ID = m.nextID
	cp.Status = domain.TxStatusPending
	m.txs[k] = &cp
	m.byID[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memStore) FindByCorrelationID(_ context.Context, ref string, op domain.OpType) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.txs[key(op, ref)]
	if !ok {
		return nil, xerrors.ErrTransactionNotFound
	}
	cp := *tx
	return &cp, nil
}

func (m *memStore) Finalize(_ context.Context, ref string, op domain.OpType, target domain.TxStatus, event domain.ProviderEvent) (*domain.Transaction, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.txs[key(op, ref)]
	if !ok {
		return nil, false, xerrors.ErrTransactionNotFound
	}

	plan, err := domain.PlanTransition(tx, target)
	if err != nil {
		return nil, false, err
	}
	if plan.NoOp {
		cp := *tx
		return &cp, false, nil
	}

	if !plan.Delta.IsZero() {
		w := m.wallet(tx.UserID)
		newAvail := w.available.Add(plan.Delta.Available)
		newHold := w.onHold.Add(plan.Delta.OnHold)
		if newAvail.IsNegative() || newHold.IsNegative() {
			return nil, false, xerrors.ErrInsufficientFunds
		}
		w.available = newAvail
		w.onHold = newHold
	}

	tx.Status = plan.NewStatus
	tx.Applied = plan.Applied
	tx.Metadata = append(tx.Metadata, event)
	cp := *tx
	return &cp, true, nil
}

func (m *memStore) RecordAudit(_ context.Context, t *domain.Transaction) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key(domain.OpTypeFor(t.Type), t.CorrelationID())
	if existing, ok := m.txs[k]; ok {
		cp := *existing
		return &cp, nil
	}
	m.nextID++
	cp := *t
	cp.ID = m.nextID
	m.txs[k] = &cp
	m.byID[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memStore) ListPendingPayouts(_ context.Context) ([]*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*domain.Transaction
	for _, tx := range m.txs {
		if tx.Type == domain.TxTypeWithdrawal && tx.Status == domain.TxStatusPending {
			cp := *tx
			out = append(out, &cp)
		}
	}
	return out, nil
}

// recordingNotifier captures PaymentUpdate calls for assertions.
type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) PaymentUpdate(userID int64, message string, tx *domain.Transaction) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, message)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}
