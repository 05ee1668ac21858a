package layout

import (
	"encoding/binary"
	"math/big"
)

// Uint128 is an unsigned little-endian 128-bit size field. It is carried
// for display only and takes part in no arithmetic.
type Uint128 struct {
	Lo uint64
	Hi uint64
}

func uint128At(b []byte) Uint128 {
	return Uint128{
		Lo: binary.LittleEndian.Uint64(b[0:8]),
		Hi: binary.LittleEndian.Uint64(b[8:16]),
	}
}

func (u Uint128) put(b []byte) {
	binary.LittleEndian.PutUint64(b[0:8], u.Lo)
	binary.LittleEndian.PutUint64(b[8:16], u.Hi)
}

// Big returns the value as a big.Int
func (u Uint128) Big() *big.Int {
	v := new(big.Int).SetUint64(u.Hi)
	v.Lsh(v, 64)
	return v.Or(v, new(big.Int).SetUint64(u.Lo))
}

// String returns the decimal representation
func (u Uint128) String() string {
	if u.Hi == 0 {
		return new(big.Int).SetUint64(u.Lo).String()
	}
	return u.Big().String()
}

// MarshalJSON emits the value as a bare JSON number
func (u Uint128) MarshalJSON() ([]byte, error) {
	return []byte(u.String()), nil
}
