package crypto

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	// HeaderAddress names the account the request claims to come from.
	HeaderAddress = "X-Swaplace-Address"
	// HeaderTimestamp carries the unix second the request was signed at.
	HeaderTimestamp = "X-Swaplace-Timestamp"
	// HeaderSignature carries the 65-byte secp256k1 signature, hex encoded.
	HeaderSignature = "X-Swaplace-Signature"
)

var ErrSignatureMismatch = errors.New("crypto: signature does not match claimed address")

// RequestDigest hashes the signed request fields. The body is hashed on its
// own so large payloads do not change the preimage layout.
func RequestDigest(method, path string, timestamp int64, body []byte) []byte {
	payload := strings.Join([]string{
		strings.ToUpper(strings.TrimSpace(method)),
		path,
		strconv.FormatInt(timestamp, 10),
		crypto.Keccak256Hash(body).Hex(),
	}, "\n")
	return crypto.Keccak256([]byte(payload))
}

// SignRequest signs the request fields and returns the hex signature.
func SignRequest(key *PrivateKey, method, path string, timestamp int64, body []byte) (string, error) {
	if key == nil || key.PrivateKey == nil {
		return "", errors.New("crypto: nil private key")
	}
	sig, err := crypto.Sign(RequestDigest(method, path, timestamp, body), key.PrivateKey)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(sig), nil
}

// RecoverRequestSigner returns the address that produced signature over the
// request fields.
func RecoverRequestSigner(method, path string, timestamp int64, body []byte, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(strings.TrimSpace(signature))
	if err != nil {
		return common.Address{}, fmt.Errorf("crypto: decode signature: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("crypto: signature must be %d bytes, got %d", crypto.SignatureLength, len(sig))
	}
	pub, err := crypto.SigToPub(RequestDigest(method, path, timestamp, body), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("crypto: recover signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifyRequest checks that claimed signed the request fields.
func VerifyRequest(claimed common.Address, method, path string, timestamp int64, body []byte, signature string) error {
	signer, err := RecoverRequestSigner(method, path, timestamp, body, signature)
	if err != nil {
		return err
	}
	if signer != claimed {
		return fmt.Errorf("%w: recovered %s", ErrSignatureMismatch, signer.Hex())
	}
	return nil
}
