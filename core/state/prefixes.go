package state

import ethcrypto "github.com/ethereum/go-ethereum/crypto"

var (
	tokenPrefix       = []byte("token:")
	tokenListKey      = ethcrypto.Keccak256([]byte("token-list"))
	balancePrefix     = []byte("balance:")
	rolePrefix        = []byte("role:")
	moduleVaultPrefix = []byte("module/")

	poolPrefix   = []byte("donation/pool:")
	poolListKey  = ethcrypto.Keccak256([]byte("donation/pool-list"))
	recordPrefix = []byte("donation/record:")
	recordSeqKey = ethcrypto.Keccak256([]byte("donation/record-seq"))

	orderPrefix   = []byte("exchange/order:")
	orderCountKey = ethcrypto.Keccak256([]byte("exchange/order-count"))

	certPrefix       = []byte("certificate/token:")
	certCountKey     = ethcrypto.Keccak256([]byte("certificate/token-count"))
	certOwnerIdxPfx  = []byte("certificate/owner-idx:")
	donorIdxPrefix   = []byte("donation/donor-idx:")
	poolRecordIdxPfx = []byte("donation/pool-idx:")
)

func tokenMetadataKey(symbol string) []byte {
	return prefixedKey(tokenPrefix, []byte(symbol))
}

func balanceKey(addr []byte, symbol string) []byte {
	buf := make([]byte, 0, len(balancePrefix)+len(symbol)+1+len(addr))
	buf = append(buf, balancePrefix...)
	buf = append(buf, symbol...)
	buf = append(buf, ':')
	buf = append(buf, addr...)
	return ethcrypto.Keccak256(buf)
}

func roleKey(role string) []byte {
	return prefixedKey(rolePrefix, []byte(role))
}

func poolKey(code string) []byte {
	return prefixedKey(poolPrefix, []byte(code))
}

func recordKey(seq uint64) []byte {
	return prefixedKey(recordPrefix, uint64Bytes(seq))
}

func orderKey(id uint64) []byte {
	return prefixedKey(orderPrefix, uint64Bytes(id))
}

func certificateKey(id uint64) []byte {
	return prefixedKey(certPrefix, uint64Bytes(id))
}

func certificateOwnerIndexKey(owner []byte) []byte {
	return prefixedKey(certOwnerIdxPfx, owner)
}

func donorIndexKey(donor []byte) []byte {
	return prefixedKey(donorIdxPrefix, donor)
}

func poolRecordIndexKey(code string) []byte {
	return prefixedKey(poolRecordIdxPfx, []byte(code))
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func prefixedKey(prefix, suffix []byte) []byte {
	buf := make([]byte, 0, len(prefix)+len(suffix))
	buf = append(buf, prefix...)
	buf = append(buf, suffix...)
	return ethcrypto.Keccak256(buf)
}

func uint64Bytes(v uint64) []byte {
	buf := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		buf[i] = byte(v)
		v >>= 8
	}
	return buf
}
