// Package deposit keeps the books for funds held against messages. The Ledger sits on top of an Asset and tracks,
// per account and reason, how much it has held so that releases can be checked and totals audited. The books are
// saved through the kv layer next to the messages they back.
package deposit

import (
	"context"
	"sort"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"

	"pkg.world.dev/world-engine/messaging/kv"
)

const holdsKey = "deposit/holds"

type holdRecord struct {
	Account common.Address `json:"account"`
	Reason  Reason         `json:"reason"`
	Amount  math.Int       `json:"amount"`
}

type Ledger struct {
	asset   Asset
	feeSink common.Address
	held    map[common.Address]map[Reason]math.Int
}

func NewLedger(asset Asset, feeSink common.Address) *Ledger {
	return &Ledger{
		asset:   asset,
		feeSink: feeSink,
		held:    map[common.Address]map[Reason]math.Int{},
	}
}

// Hold holds amount from account for reason. A zero amount is a no-op.
func (l *Ledger) Hold(reason Reason, account common.Address, amount math.Int) error {
	if amount.IsNil() || amount.IsZero() {
		return nil
	}
	if err := l.asset.Hold(reason, account, amount); err != nil {
		return err
	}
	l.adjust(account, reason, amount)
	return nil
}

// Release returns amount held from account for reason. Releasing more than the ledger holds is refused before the
// asset is touched.
func (l *Ledger) Release(reason Reason, account common.Address, amount math.Int) error {
	if amount.IsNil() || amount.IsZero() {
		return nil
	}
	if held := l.Held(account, reason); held.LT(amount) {
		return eris.Wrapf(ErrReleaseExceedsHold, "ledger holds %s for %s of %s, release of %s",
			held, reason, account, amount)
	}
	if err := l.asset.Release(reason, account, amount); err != nil {
		return err
	}
	l.adjust(account, reason, amount.Neg())
	return nil
}

// WithdrawNow moves amount of free balance from account to the fee sink. Withdrawn funds are not tracked as held.
func (l *Ledger) WithdrawNow(account common.Address, amount math.Int) error {
	if amount.IsNil() || amount.IsZero() {
		return nil
	}
	return l.asset.Transfer(account, l.feeSink, amount)
}

// Held is the amount the ledger holds from account for reason.
func (l *Ledger) Held(account common.Address, reason Reason) math.Int {
	if h, ok := l.held[account][reason]; ok {
		return h
	}
	return math.ZeroInt()
}

// TotalHeld is the amount the ledger holds from account across all reasons.
func (l *Ledger) TotalHeld(account common.Address) math.Int {
	total := math.ZeroInt()
	for _, r := range reasons {
		total = total.Add(l.Held(account, r))
	}
	return total
}

// Accounts lists every account with a non-zero hold, in address order.
func (l *Ledger) Accounts() []common.Address {
	accounts := make([]common.Address, 0, len(l.held))
	for account := range l.held {
		accounts = append(accounts, account)
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].Cmp(accounts[j]) < 0
	})
	return accounts
}

// Save writes the hold records through w. The asset is not involved; it keeps its own state.
func (l *Ledger) Save(w kv.Writer) error {
	records := make([]holdRecord, 0, len(l.held))
	for _, account := range l.Accounts() {
		for _, reason := range reasons {
			if amount, ok := l.held[account][reason]; ok {
				records = append(records, holdRecord{Account: account, Reason: reason, Amount: amount})
			}
		}
	}
	if len(records) == 0 {
		w.Delete(holdsKey)
		return nil
	}
	bz, err := json.Marshal(records)
	if err != nil {
		return eris.Wrap(err, "failed to encode hold records")
	}
	w.Set(holdsKey, bz)
	return nil
}

// Load replaces the hold records with the ones last saved through the store r reads from.
func (l *Ledger) Load(ctx context.Context, r kv.Reader) error {
	bz, ok, err := r.Get(ctx, holdsKey)
	if err != nil {
		return err
	}
	held := map[common.Address]map[Reason]math.Int{}
	if ok {
		var records []holdRecord
		if err := json.Unmarshal(bz, &records); err != nil {
			return eris.Wrap(err, "malformed hold records")
		}
		for _, rec := range records {
			if rec.Amount.IsNil() || !rec.Amount.IsPositive() {
				return eris.Errorf("hold record for %s of %s is not positive", rec.Reason, rec.Account)
			}
			if _, ok := held[rec.Account]; !ok {
				held[rec.Account] = map[Reason]math.Int{}
			}
			held[rec.Account][rec.Reason] = rec.Amount
		}
	}
	l.held = held
	return nil
}

func (l *Ledger) adjust(account common.Address, reason Reason, delta math.Int) {
	byReason, ok := l.held[account]
	if !ok {
		byReason = map[Reason]math.Int{}
		l.held[account] = byReason
	}
	next := l.Held(account, reason).Add(delta)
	if next.IsZero() {
		delete(byReason, reason)
		if len(byReason) == 0 {
			delete(l.held, account)
		}
		return
	}
	byReason[reason] = next
}

// Begin opens a journal. Every ledger effect made through the journal can be undone with Revert until the journal
// is committed.
func (l *Ledger) Begin() *Journal {
	return &Journal{ledger: l}
}
