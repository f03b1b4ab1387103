package tokens

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var tokenPrefix = []byte("token/")

func tokenKey(contract common.Address, field string, parts ...[]byte) []byte {
	size := len(tokenPrefix) + common.AddressLength + 1 + len(field)
	for _, part := range parts {
		size += 1 + len(part)
	}
	buf := make([]byte, 0, size)
	buf = append(buf, tokenPrefix...)
	buf = append(buf, contract.Bytes()...)
	buf = append(buf, '/')
	buf = append(buf, field...)
	for _, part := range parts {
		buf = append(buf, '/')
		buf = append(buf, part...)
	}
	return buf
}

func idBytes(id *big.Int) []byte {
	return common.BigToHash(id).Bytes()
}

// ContractAddress derives the deterministic address used for a named token
// when none is configured.
func ContractAddress(standard, name string) common.Address {
	digest := ethcrypto.Keccak256([]byte("swaplace/token/" + standard + "/" + name))
	return common.BytesToAddress(digest[12:])
}
