package crypto

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Header names carried by every signed API request.
const (
	HeaderAddress   = "X-Auction-Address"
	HeaderTimestamp = "X-Auction-Timestamp"
	HeaderSignature = "X-Auction-Signature"
)

// ErrBadSignature is returned when a signature is malformed or does not
// recover to the claimed address.
var ErrBadSignature = errors.New("crypto: bad signature")

// RequestMessage builds the canonical text that is signed for an API request:
//
//	METHOD\nPATH\nTIMESTAMP\nhex(sha256(body))
func RequestMessage(method, path string, timestamp int64, body []byte) []byte {
	sum := sha256.Sum256(body)
	var b strings.Builder
	b.WriteString(strings.ToUpper(method))
	b.WriteByte('\n')
	b.WriteString(path)
	b.WriteByte('\n')
	b.WriteString(strconv.FormatInt(timestamp, 10))
	b.WriteByte('\n')
	b.WriteString(hex.EncodeToString(sum[:]))
	return []byte(b.String())
}

// RequestDigest is the EIP-191 personal-sign hash of RequestMessage.
func RequestDigest(method, path string, timestamp int64, body []byte) []byte {
	return accounts.TextHash(RequestMessage(method, path, timestamp, body))
}

// Signer signs API requests with a secp256k1 key.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewSigner creates a Signer from a hex-encoded secp256k1 private key.
func NewSigner(privateKeyHex string) (*Signer, error) {
	pk, err := ethcrypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key: %w", err)
	}
	return &Signer{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
	}, nil
}

// GenerateKey returns a fresh hex-encoded private key (without 0x prefix).
func GenerateKey() (string, error) {
	pk, err := ethcrypto.GenerateKey()
	if err != nil {
		return "", fmt.Errorf("crypto/signer: generating key: %w", err)
	}
	return hex.EncodeToString(ethcrypto.FromECDSA(pk)), nil
}

// Address returns the address derived from the signer's public key.
func (s *Signer) Address() common.Address { return s.address }

// SignRequest signs the request and returns the 0x-prefixed 65-byte
// signature with V in {27, 28}.
func (s *Signer) SignRequest(method, path string, timestamp int64, body []byte) (string, error) {
	sig, err := ethcrypto.Sign(RequestDigest(method, path, timestamp, body), s.privateKey)
	if err != nil {
		return "", fmt.Errorf("crypto/signer: signing request: %w", err)
	}
	sig[64] += 27
	return "0x" + hex.EncodeToString(sig), nil
}

// Headers returns the authentication headers for a request.
func (s *Signer) Headers(method, path string, timestamp int64, body []byte) (map[string]string, error) {
	sig, err := s.SignRequest(method, path, timestamp, body)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		HeaderAddress:   s.address.Hex(),
		HeaderTimestamp: strconv.FormatInt(timestamp, 10),
		HeaderSignature: sig,
	}, nil
}

// ReplayKey identifies a signed request independently of how its signature
// is encoded: every valid signature by claimed over the same request maps to
// the same key.
func ReplayKey(claimed common.Address, method, path string, timestamp int64, body []byte) string {
	return "sig:" + strings.ToLower(claimed.Hex()) + ":" + hex.EncodeToString(RequestDigest(method, path, timestamp, body))
}

// RecoverAddress returns the address that produced signatureHex over the
// request. V may be encoded as {0, 1} or {27, 28}. High-S signatures are
// rejected.
func RecoverAddress(method, path string, timestamp int64, body []byte, signatureHex string) (common.Address, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(signatureHex, "0x"))
	if err != nil || len(sig) != 65 {
		return common.Address{}, ErrBadSignature
	}
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	r, sv := new(big.Int).SetBytes(sig[:32]), new(big.Int).SetBytes(sig[32:64])
	if !ethcrypto.ValidateSignatureValues(sig[64], r, sv, true) {
		return common.Address{}, ErrBadSignature
	}
	pub, err := ethcrypto.SigToPub(RequestDigest(method, path, timestamp, body), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

// VerifyRequest checks that signatureHex over the request recovers to claimed.
func VerifyRequest(claimed common.Address, method, path string, timestamp int64, body []byte, signatureHex string) error {
	got, err := RecoverAddress(method, path, timestamp, body, signatureHex)
	if err != nil {
		return err
	}
	if got != claimed {
		return ErrBadSignature
	}
	return nil
}
