// Package eth holds the secp256k1 helpers used for Ethereum accounts:
// address decoding, EIP-191 personal message signing and recovery, and raw
// compact signatures.
package eth

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/bluesky-social/indigo/atproto/crypto"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/sessionkit/core"
)

const (
	// SignatureLength is the size of an r || s || v signature
	SignatureLength = 65

	// CompactSignatureLength is the size of an r || s signature
	CompactSignatureLength = 64

	// recoveryOffset is added to the recovery id of personal signatures
	recoveryOffset = 27
)

// Signature is a recoverable secp256k1 signature
type Signature struct {
	R []byte
	S []byte
	V byte // Recovery id, 0 or 1
}

// Bytes returns r || s || v with v offset by 27
func (s Signature) Bytes() []byte {
	out := make([]byte, 0, SignatureLength)
	out = append(out, s.R...)
	out = append(out, s.S...)
	return append(out, s.V+recoveryOffset)
}

// Hex returns the lowercase hex encoding of Bytes without a 0x prefix
func (s Signature) Hex() string {
	return hex.EncodeToString(s.Bytes())
}

// SignCompact signs the SHA-256 digest of message and returns the 64-byte
// low-S r || s signature.
func SignCompact(message []byte, privateKeyHex string) ([]byte, error) {
	keyBytes, err := decodeHex(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid hex encoding for private key: %v", core.ErrSigning, err)
	}

	key, err := crypto.ParsePrivateBytesK256(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid secp256k1 private key: %v", core.ErrSigning, err)
	}

	sig, err := key.HashAndSign(message)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrSigning, err)
	}
	return sig, nil
}

// SignPersonalMessage applies the EIP-191 prefix
// "\x19Ethereum Signed Message:\n" + len(message), hashes with Keccak256 and
// signs the digest with a recoverable signature.
func SignPersonalMessage(message string, privateKeyHex string) (Signature, error) {
	keyBytes, err := decodeHex(privateKeyHex)
	if err != nil {
		return Signature{}, fmt.Errorf("%w: invalid hex encoding for private key: %v", core.ErrSigning, err)
	}

	key, err := ethcrypto.ToECDSA(keyBytes)
	if err != nil {
		return Signature{}, fmt.Errorf("%w: invalid secp256k1 private key: %v", core.ErrSigning, err)
	}

	sig, err := ethcrypto.Sign(accounts.TextHash([]byte(message)), key)
	if err != nil {
		return Signature{}, fmt.Errorf("%w: %v", core.ErrSigning, err)
	}

	return Signature{R: sig[:32], S: sig[32:64], V: sig[64]}, nil
}

// RecoverPersonalSigner returns the address that produced an EIP-191
// signature over message. The signature is hex with an optional 0x prefix
// and a v of 0/1 or 27/28.
func RecoverPersonalSigner(message string, signatureHex string) (common.Address, error) {
	sig, err := decodeHex(signatureHex)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to decode signature: %w", core.ErrInvalidSignature)
	}
	if len(sig) != SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes: %w", SignatureLength, core.ErrInvalidSignature)
	}

	// Don't modify the caller's bytes
	normalized := make([]byte, SignatureLength)
	copy(normalized, sig)
	if normalized[64] >= recoveryOffset {
		normalized[64] -= recoveryOffset
	}

	pub, err := ethcrypto.SigToPub(accounts.TextHash([]byte(message)), normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", core.ErrInvalidSignature)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

// VerifyPersonalSignature checks an EIP-191 signature against an address
func VerifyPersonalSignature(message string, signatureHex string, expected common.Address) (bool, error) {
	signer, err := RecoverPersonalSigner(message, signatureHex)
	if err != nil {
		return false, err
	}
	return signer == expected, nil
}

// ParseAddress decodes a 20-byte address from hex with or without a 0x prefix
func ParseAddress(s string) (common.Address, error) {
	b, err := decodeHex(s)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: failed to parse '%s' as a hexstring: %v", core.ErrInvalidAddress, s, err)
	}
	if len(b) != common.AddressLength {
		return common.Address{}, fmt.Errorf("%w: '%s' is %d bytes, want %d", core.ErrInvalidAddress, s, len(b), common.AddressLength)
	}
	return common.BytesToAddress(b), nil
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return hex.DecodeString(s)
}
