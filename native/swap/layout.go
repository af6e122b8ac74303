package swap

import (
	"encoding/binary"
	"fmt"
)

// Reserve layout v1. Offsets are byte positions inside accounts owned by the
// pool and vault programs; every read is bounds checked against them.
const (
	// PoolEnabledOffset locates the pool's enabled flag (bool, 1 byte).
	PoolEnabledOffset = 233
	// VaultTotalAmountOffset locates a vault's total_amount (u64 LE).
	VaultTotalAmountOffset = 11
	// TokenAccountAmountOffset locates an SPL token account's amount (u64 LE).
	TokenAccountAmountOffset = 64
	// MintSupplyOffset locates an SPL mint's supply (u64 LE).
	MintSupplyOffset = 36

	u64Size = 8
)

// RawReserveAccounts holds the undecoded account payloads needed to price the pool.
// Side A is the reward token, side B the settlement currency.
type RawReserveAccounts struct {
	Pool    []byte
	VaultA  []byte
	VaultB  []byte
	PoolLPA []byte
	PoolLPB []byte
	LPMintA []byte
	LPMintB []byte
}

// Reserves are the decoded quantities used by Quote.
type Reserves struct {
	VaultATotal uint64
	VaultBTotal uint64
	LPAAmount   uint64
	LPASupply   uint64
	LPBAmount   uint64
	LPBSupply   uint64
}

func readU64(data []byte, offset int, field string) (uint64, error) {
	if len(data) < offset+u64Size {
		return 0, fmt.Errorf("%w: %w: %s needs %d bytes, have %d", ErrReserveRead, ErrReserveDataTooShort, field, offset+u64Size, len(data))
	}
	return binary.LittleEndian.Uint64(data[offset : offset+u64Size]), nil
}

// PoolEnabled reads the enabled flag from a pool account payload.
func PoolEnabled(data []byte) (bool, error) {
	if len(data) < PoolEnabledOffset+1 {
		return false, fmt.Errorf("%w: %w: pool needs %d bytes, have %d", ErrReserveRead, ErrReserveDataTooShort, PoolEnabledOffset+1, len(data))
	}
	return data[PoolEnabledOffset] != 0, nil
}

// DecodeReserves validates and decodes raw reserve payloads.
func DecodeReserves(raw RawReserveAccounts) (Reserves, error) {
	enabled, err := PoolEnabled(raw.Pool)
	if err != nil {
		return Reserves{}, err
	}
	if !enabled {
		return Reserves{}, fmt.Errorf("%w: %w", ErrReserveRead, ErrPoolDisabled)
	}
	var out Reserves
	fields := []struct {
		dst    *uint64
		data   []byte
		offset int
		name   string
	}{
		{&out.VaultATotal, raw.VaultA, VaultTotalAmountOffset, "vault a"},
		{&out.VaultBTotal, raw.VaultB, VaultTotalAmountOffset, "vault b"},
		{&out.LPAAmount, raw.PoolLPA, TokenAccountAmountOffset, "pool lp a"},
		{&out.LPBAmount, raw.PoolLPB, TokenAccountAmountOffset, "pool lp b"},
		{&out.LPASupply, raw.LPMintA, MintSupplyOffset, "lp mint a"},
		{&out.LPBSupply, raw.LPMintB, MintSupplyOffset, "lp mint b"},
	}
	for _, f := range fields {
		value, err := readU64(f.data, f.offset, f.name)
		if err != nil {
			return Reserves{}, err
		}
		*f.dst = value
	}
	return out, nil
}

// EncodeReserves writes reserves into minimal payloads that satisfy the v1
// layout. Simulated pools and tests use it to produce collaborator-owned data.
func EncodeReserves(enabled bool, r Reserves) RawReserveAccounts {
	pool := make([]byte, PoolEnabledOffset+1)
	if enabled {
		pool[PoolEnabledOffset] = 1
	}
	put := func(size, offset int, value uint64) []byte {
		buf := make([]byte, size)
		binary.LittleEndian.PutUint64(buf[offset:], value)
		return buf
	}
	return RawReserveAccounts{
		Pool:    pool,
		VaultA:  put(VaultTotalAmountOffset+u64Size, VaultTotalAmountOffset, r.VaultATotal),
		VaultB:  put(VaultTotalAmountOffset+u64Size, VaultTotalAmountOffset, r.VaultBTotal),
		PoolLPA: put(TokenAccountAmountOffset+u64Size, TokenAccountAmountOffset, r.LPAAmount),
		PoolLPB: put(TokenAccountAmountOffset+u64Size, TokenAccountAmountOffset, r.LPBAmount),
		LPMintA: put(MintSupplyOffset+u64Size, MintSupplyOffset, r.LPASupply),
		LPMintB: put(MintSupplyOffset+u64Size, MintSupplyOffset, r.LPBSupply),
	}
}
