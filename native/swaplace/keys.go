package swaplace

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

var (
	swapRecordPrefix = []byte("swaplace/swap/")
	swapTotalKey     = []byte("swaplace/total")
	quotaPrefix      = []byte("swaplace/quota/")
)

func swapRecordKey(id uint64) []byte {
	return strconv.AppendUint(append([]byte(nil), swapRecordPrefix...), id, 10)
}

func quotaKey(owner common.Address) []byte {
	buf := make([]byte, len(quotaPrefix)+common.AddressLength)
	copy(buf, quotaPrefix)
	copy(buf[len(quotaPrefix):], owner.Bytes())
	return buf
}
