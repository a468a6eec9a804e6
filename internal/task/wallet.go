// ==================================
// File: internal/task/wallet.go
// ==================================
package task

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Wallet представляет участника сценария.
type Wallet struct {
	Name       string
	PrivateKey solana.PrivateKey // пустой для адресов из конфигурации
	PublicKey  solana.PublicKey
	Native     string // начальный баланс в целых единицах native
}

// NewWallet создаёт кошелёк из base58-encoded приватного ключа.
// Пустой ключ генерирует новый.
func NewWallet(name, privateKeyBase58 string) (*Wallet, error) {
	var (
		privateKey solana.PrivateKey
		err        error
	)
	if privateKeyBase58 == "" {
		privateKey, err = solana.NewRandomPrivateKey()
	} else {
		privateKey, err = solana.PrivateKeyFromBase58(privateKeyBase58)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid private key for %s: %w", name, err)
	}

	return &Wallet{
		Name:       name,
		PrivateKey: privateKey,
		PublicKey:  privateKey.PublicKey(),
	}, nil
}

// Wallets maps scenario names to wallets.
type Wallets map[string]*Wallet

// Lookup returns the wallet registered under name.
func (w Wallets) Lookup(name string) (*Wallet, error) {
	wallet, ok := w[name]
	if !ok {
		return nil, fmt.Errorf("unknown wallet %q", name)
	}
	return wallet, nil
}

// Bind registers a fixed address under name unless the scenario already defines it.
func (w Wallets) Bind(name string, key solana.PublicKey) {
	if _, ok := w[name]; ok {
		return
	}
	w[name] = &Wallet{Name: name, PublicKey: key}
}

// String возвращает строковое представление кошелька (его публичный ключ).
func (w *Wallet) String() string {
	return w.PublicKey.String()
}
