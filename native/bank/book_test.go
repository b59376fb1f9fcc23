package bank

import (
	"errors"
	"math/big"
	"testing"

	"linkstake/storage"
)

func testAddr(b byte) [20]byte {
	var a [20]byte
	a[19] = b
	return a
}

func TestVaultAddressIsStable(t *testing.T) {
	if VaultAddress() != VaultAddress() {
		t.Fatal("vault address must be deterministic")
	}
	if VaultAddress() == ([20]byte{}) {
		t.Fatal("vault address must not be zero")
	}
}

func TestCreditAndBalance(t *testing.T) {
	book := NewBook(storage.NewMemDB())
	alice := testAddr(0x01)

	balance, err := book.Balance(alice)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Sign() != 0 {
		t.Fatalf("expected zero opening balance, got %s", balance)
	}
	if err := book.Credit(alice, big.NewInt(1_000)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := book.Credit(alice, big.NewInt(500)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	balance, err = book.Balance(alice)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Int64() != 1_500 {
		t.Fatalf("expected 1500, got %s", balance)
	}
	if err := book.Credit(alice, big.NewInt(-1)); err == nil {
		t.Fatal("expected negative credit to fail")
	}
}

func TestTransferMovesFunds(t *testing.T) {
	book := NewBook(storage.NewMemDB())
	alice, bob := testAddr(0x01), testAddr(0x02)
	if err := book.Credit(alice, big.NewInt(1_000)); err != nil {
		t.Fatalf("credit: %v", err)
	}

	if err := book.Transfer(alice, bob, big.NewInt(300)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	aliceBalance, _ := book.Balance(alice)
	bobBalance, _ := book.Balance(bob)
	if aliceBalance.Int64() != 700 || bobBalance.Int64() != 300 {
		t.Fatalf("unexpected balances: alice=%s bob=%s", aliceBalance, bobBalance)
	}
}

func TestTransferInsufficientLeavesNoMutation(t *testing.T) {
	book := NewBook(storage.NewMemDB())
	alice, bob := testAddr(0x01), testAddr(0x02)
	if err := book.Credit(alice, big.NewInt(100)); err != nil {
		t.Fatalf("credit: %v", err)
	}

	err := book.Transfer(alice, bob, big.NewInt(200))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	aliceBalance, _ := book.Balance(alice)
	bobBalance, _ := book.Balance(bob)
	if aliceBalance.Int64() != 100 || bobBalance.Sign() != 0 {
		t.Fatalf("failed transfer must not mutate balances: alice=%s bob=%s", aliceBalance, bobBalance)
	}
}

func TestDepositAndSendUseTheVault(t *testing.T) {
	book := NewBook(storage.NewMemDB())
	alice := testAddr(0x01)
	if err := book.Credit(alice, big.NewInt(1_000)); err != nil {
		t.Fatalf("credit: %v", err)
	}

	if err := book.Deposit(alice, big.NewInt(400)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	vaultBalance, _ := book.Balance(VaultAddress())
	if vaultBalance.Int64() != 400 {
		t.Fatalf("expected vault balance 400, got %s", vaultBalance)
	}
	if err := book.Send(alice, big.NewInt(400)); err != nil {
		t.Fatalf("send: %v", err)
	}
	aliceBalance, _ := book.Balance(alice)
	if aliceBalance.Int64() != 1_000 {
		t.Fatalf("expected round-trip balance 1000, got %s", aliceBalance)
	}
	if err := book.Send(alice, big.NewInt(1)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected empty vault to reject send, got %v", err)
	}
}

func TestSelfAndZeroTransfersAreNoops(t *testing.T) {
	book := NewBook(storage.NewMemDB())
	alice := testAddr(0x01)
	if err := book.Credit(alice, big.NewInt(100)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := book.Transfer(alice, alice, big.NewInt(50)); err != nil {
		t.Fatalf("self transfer: %v", err)
	}
	if err := book.Transfer(alice, testAddr(0x02), big.NewInt(0)); err != nil {
		t.Fatalf("zero transfer: %v", err)
	}
	balance, _ := book.Balance(alice)
	if balance.Int64() != 100 {
		t.Fatalf("expected untouched balance, got %s", balance)
	}
}
