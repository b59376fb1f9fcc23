package bank

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"linkstake/storage"
)

var (
	// ErrInsufficientBalance is returned when a debit exceeds the account's
	// available funds.
	ErrInsufficientBalance = errors.New("bank: insufficient balance")

	errNegativeAmount = errors.New("bank: negative transfer amount")
)

const balanceKeyPrefix = "bank/a/"

// VaultAddress derives the module custody address. The address is fixed by
// construction so the custodied pool survives restarts.
func VaultAddress() [20]byte {
	digest := ethcrypto.Keccak256([]byte("linkstake/stakes/vault"))
	var addr [20]byte
	copy(addr[:], digest[12:])
	return addr
}

// Book is a minimal account ledger backed by a key-value store. It implements
// the stakes engine's value-transfer capability by moving balances between
// participant accounts and the module vault.
type Book struct {
	mu    sync.Mutex
	db    storage.Database
	vault [20]byte
}

// NewBook wraps the supplied database.
func NewBook(db storage.Database) *Book {
	return &Book{db: db, vault: VaultAddress()}
}

func balanceKey(addr [20]byte) []byte {
	return []byte(balanceKeyPrefix + hex.EncodeToString(addr[:]))
}

func (b *Book) load(addr [20]byte) (*big.Int, error) {
	raw, err := b.db.Get(balanceKey(addr))
	if errors.Is(err, storage.ErrNotFound) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	balance, ok := new(big.Int).SetString(string(raw), 10)
	if !ok {
		return nil, fmt.Errorf("bank: corrupt balance for %x", addr)
	}
	return balance, nil
}

func (b *Book) store(addr [20]byte, balance *big.Int) error {
	return b.db.Put(balanceKey(addr), []byte(balance.String()))
}

// Balance returns the available funds for an account.
func (b *Book) Balance(addr [20]byte) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.load(addr)
}

// Credit adds funds to an account. Used to seed dev-network balances.
func (b *Book) Credit(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errNegativeAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	balance, err := b.load(addr)
	if err != nil {
		return err
	}
	return b.store(addr, balance.Add(balance, amount))
}

// Transfer moves funds between two accounts, failing without any mutation if
// the source balance is insufficient.
func (b *Book) Transfer(from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errNegativeAmount
	}
	if amount.Sign() == 0 || from == to {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	fromBalance, err := b.load(from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	toBalance, err := b.load(to)
	if err != nil {
		return err
	}
	if err := b.store(from, new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	return b.store(to, new(big.Int).Add(toBalance, amount))
}

// Deposit pulls an attached payment from the caller into module custody. It
// satisfies the stakes engine's inbound transfer capability.
func (b *Book) Deposit(from [20]byte, amount *big.Int) error {
	return b.Transfer(from, b.vault, amount)
}

// Send pushes custodied value out to a recipient. It satisfies the stakes
// engine's outbound transfer capability.
func (b *Book) Send(to [20]byte, amount *big.Int) error {
	return b.Transfer(b.vault, to, amount)
}
