package deposit

import (
	"sync"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rotisserie/eris"
)

var (
	ErrInsufficientBalance = eris.New("insufficient balance")
	ErrReleaseExceedsHold  = eris.New("release exceeds held amount")
	ErrNegativeAmount      = eris.New("amount must not be negative")
)

// Asset is the fungible-asset capability the ledger drives. Held funds stay owned by the account but cannot be
// spent until released.
type Asset interface {
	// Balance is the free, spendable balance of account.
	Balance(account common.Address) math.Int
	// Hold moves amount from the free balance of account into a hold for reason.
	Hold(reason Reason, account common.Address, amount math.Int) error
	// Release moves amount from the hold for reason back to the free balance of account.
	Release(reason Reason, account common.Address, amount math.Int) error
	// Transfer moves amount of free balance between accounts.
	Transfer(from, to common.Address, amount math.Int) error
}

type holdKey struct {
	account common.Address
	reason  Reason
}

// Bank is an in-memory Asset.
type Bank struct {
	mu       sync.Mutex
	balances map[common.Address]math.Int
	holds    map[holdKey]math.Int
}

var _ Asset = &Bank{}

func NewBank() *Bank {
	return &Bank{
		balances: map[common.Address]math.Int{},
		holds:    map[holdKey]math.Int{},
	}
}

// Mint credits amount to the free balance of account.
func (b *Bank) Mint(account common.Address, amount math.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[account] = b.balance(account).Add(amount)
}

func (b *Bank) balance(account common.Address) math.Int {
	if bal, ok := b.balances[account]; ok {
		return bal
	}
	return math.ZeroInt()
}

func (b *Bank) held(key holdKey) math.Int {
	if h, ok := b.holds[key]; ok {
		return h
	}
	return math.ZeroInt()
}

func (b *Bank) Balance(account common.Address) math.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balance(account)
}

// HeldBalance is the amount currently held from account for reason.
func (b *Bank) HeldBalance(reason Reason, account common.Address) math.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.held(holdKey{account: account, reason: reason})
}

func (b *Bank) Hold(reason Reason, account common.Address, amount math.Int) error {
	if amount.IsNegative() {
		return eris.Wrap(ErrNegativeAmount, "")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	free := b.balance(account)
	if free.LT(amount) {
		return eris.Wrapf(ErrInsufficientBalance, "account %s has %s, needs %s", account, free, amount)
	}
	key := holdKey{account: account, reason: reason}
	b.balances[account] = free.Sub(amount)
	b.holds[key] = b.held(key).Add(amount)
	return nil
}

func (b *Bank) Release(reason Reason, account common.Address, amount math.Int) error {
	if amount.IsNegative() {
		return eris.Wrap(ErrNegativeAmount, "")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	key := holdKey{account: account, reason: reason}
	held := b.held(key)
	if held.LT(amount) {
		return eris.Wrapf(ErrReleaseExceedsHold, "account %s holds %s for %s, release of %s", account, held, reason,
			amount)
	}
	b.holds[key] = held.Sub(amount)
	b.balances[account] = b.balance(account).Add(amount)
	return nil
}

func (b *Bank) Transfer(from, to common.Address, amount math.Int) error {
	if amount.IsNegative() {
		return eris.Wrap(ErrNegativeAmount, "")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	free := b.balance(from)
	if free.LT(amount) {
		return eris.Wrapf(ErrInsufficientBalance, "account %s has %s, needs %s", from, free, amount)
	}
	b.balances[from] = free.Sub(amount)
	b.balances[to] = b.balance(to).Add(amount)
	return nil
}
