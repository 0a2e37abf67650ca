package chain

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrUnknownSigner is returned when an address has no configured key.
var ErrUnknownSigner = errors.New("no signer configured for address")

// KeyRing holds the signing keys the daemon may act for, by address
type KeyRing struct {
	keys  map[common.Address]*ecdsa.PrivateKey
	order []common.Address
}

// ParseKeyRing parses hex private keys (with or without 0x prefix).
func ParseKeyRing(hexKeys []string) (*KeyRing, error) {
	kr := &KeyRing{keys: make(map[common.Address]*ecdsa.PrivateKey)}
	for i, raw := range hexKeys {
		raw = strings.TrimPrefix(strings.TrimSpace(raw), "0x")
		if raw == "" {
			continue
		}
		key, err := crypto.HexToECDSA(raw)
		if err != nil {
			return nil, fmt.Errorf("signer key %d: %w", i, err)
		}
		addr := crypto.PubkeyToAddress(key.PublicKey)
		if _, dup := kr.keys[addr]; !dup {
			kr.order = append(kr.order, addr)
		}
		kr.keys[addr] = key
	}
	return kr, nil
}

// Key returns the key for addr
func (kr *KeyRing) Key(addr common.Address) (*ecdsa.PrivateKey, error) {
	key, ok := kr.keys[addr]
	if !ok {
		return nil, fmt.Errorf("%s: %w", addr.Hex(), ErrUnknownSigner)
	}
	return key, nil
}

// Has reports whether addr can sign
func (kr *KeyRing) Has(addr common.Address) bool {
	_, ok := kr.keys[addr]
	return ok
}

// Addresses lists signer addresses in configuration order
func (kr *KeyRing) Addresses() []common.Address {
	return append([]common.Address(nil), kr.order...)
}

// ParseAddress validates a 0x-prefixed hex address
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}
