package deposit

import (
	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rotisserie/eris"
)

// Journal records ledger effects so a multi-step operation can be rolled back as a whole.
type Journal struct {
	ledger *Ledger
	undo   []func() error
	closed bool
}

func (j *Journal) Hold(reason Reason, account common.Address, amount math.Int) error {
	if err := j.ledger.Hold(reason, account, amount); err != nil {
		return err
	}
	j.undo = append(j.undo, func() error {
		return j.ledger.Release(reason, account, amount)
	})
	return nil
}

func (j *Journal) Release(reason Reason, account common.Address, amount math.Int) error {
	if err := j.ledger.Release(reason, account, amount); err != nil {
		return err
	}
	j.undo = append(j.undo, func() error {
		return j.ledger.Hold(reason, account, amount)
	})
	return nil
}

func (j *Journal) WithdrawNow(account common.Address, amount math.Int) error {
	if err := j.ledger.WithdrawNow(account, amount); err != nil {
		return err
	}
	j.undo = append(j.undo, func() error {
		if amount.IsNil() || amount.IsZero() {
			return nil
		}
		return j.ledger.asset.Transfer(j.ledger.feeSink, account, amount)
	})
	return nil
}

// Revert undoes every recorded effect, most recent first. It keeps going past failures and returns the first one.
func (j *Journal) Revert() error {
	if j.closed {
		return nil
	}
	j.closed = true
	var first error
	for i := len(j.undo) - 1; i >= 0; i-- {
		if err := j.undo[i](); err != nil && first == nil {
			first = eris.Wrap(err, "failed to revert ledger effect")
		}
	}
	j.undo = nil
	return first
}

// Commit keeps every recorded effect. Revert after Commit is a no-op.
func (j *Journal) Commit() {
	j.closed = true
	j.undo = nil
}
