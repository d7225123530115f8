package memory

import "context"

type journalCtxKey struct{}

// journal collects undo steps of one transaction.
type journal struct {
	undo []func()
}

func journalFromCtx(ctx context.Context) *journal {
	j, _ := ctx.Value(journalCtxKey{}).(*journal)
	return j
}

// TxManager runs callbacks as all-or-nothing units over a Store. Writes are
// applied immediately and reverted in reverse order on error or panic.
// Isolation between concurrent transactions touching the same records is the
// caller's job; the report service serializes per signal and per tile.
type TxManager struct{}

// NewTxManager creates a TxManager.
func NewTxManager() *TxManager { return &TxManager{} }

// RunInTx executes fn within a transaction.
func (m *TxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if journalFromCtx(ctx) != nil {
		return fn(ctx)
	}

	j := &journal{}
	defer func() {
		if r := recover(); r != nil {
			j.rollback()
			panic(r)
		}
	}()

	if err := fn(context.WithValue(ctx, journalCtxKey{}, j)); err != nil {
		j.rollback()
		return err
	}
	return nil
}

func (j *journal) rollback() {
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i]()
	}
	j.undo = nil
}

// record registers an undo step when ctx carries a transaction.
func record(ctx context.Context, undo func()) {
	if j := journalFromCtx(ctx); j != nil {
		j.undo = append(j.undo, undo)
	}
}
