package crypto

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
)

// ScryptParams sets the cost of the keystore key derivation.
type ScryptParams struct {
	N int
	P int
}

var (
	// StandardScrypt is the default for keystore files written to disk.
	StandardScrypt = ScryptParams{N: keystore.StandardScryptN, P: keystore.StandardScryptP}
	// LightScrypt trades KDF strength for speed and memory.
	LightScrypt = ScryptParams{N: keystore.LightScryptN, P: keystore.LightScryptP}
)

// SaveToKeystore writes key to an Ethereum v3 keystore file at path using
// StandardScrypt and returns the stored account address. Missing parent
// directories are created with 0700 permissions.
func SaveToKeystore(path string, key *PrivateKey, passphrase string) (common.Address, error) {
	return SaveToKeystoreWithParams(path, key, passphrase, StandardScrypt)
}

// SaveToKeystoreWithParams is SaveToKeystore with explicit scrypt parameters.
func SaveToKeystoreWithParams(path string, key *PrivateKey, passphrase string, params ScryptParams) (common.Address, error) {
	if key == nil {
		return common.Address{}, errors.New("crypto: nil private key")
	}
	if path == "" {
		return common.Address{}, errors.New("crypto: empty keystore path")
	}
	if params.N <= 0 || params.P <= 0 {
		return common.Address{}, errors.New("crypto: invalid scrypt parameters")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return common.Address{}, err
	}

	tmpDir, err := os.MkdirTemp(dir, "keystore-")
	if err != nil {
		return common.Address{}, err
	}
	defer os.RemoveAll(tmpDir)

	ks := keystore.NewKeyStore(tmpDir, params.N, params.P)
	account, err := ks.ImportECDSA(key.PrivateKey, passphrase)
	if err != nil {
		return common.Address{}, err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return common.Address{}, err
	}
	if err := os.Rename(account.URL.Path, path); err != nil {
		return common.Address{}, err
	}
	return account.Address, os.Chmod(path, 0o600)
}

// LoadFromKeystore decrypts an Ethereum v3 keystore file using the supplied passphrase.
func LoadFromKeystore(path, passphrase string) (*PrivateKey, error) {
	if path == "" {
		return nil, errors.New("crypto: empty keystore path")
	}
	keyJSON, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	decrypted, err := keystore.DecryptKey(keyJSON, passphrase)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{PrivateKey: decrypted.PrivateKey}, nil
}
