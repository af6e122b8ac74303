package swap

import (
	"errors"
	"testing"
)

func TestDecodeReservesRoundTrip(t *testing.T) {
	want := Reserves{VaultATotal: 1, VaultBTotal: 2, LPAAmount: 3, LPASupply: 4, LPBAmount: 5, LPBSupply: 6}
	got, err := DecodeReserves(EncodeReserves(true, want))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != want {
		t.Fatalf("unexpected reserves: %+v", got)
	}
}

func TestDecodeReservesDisabledPool(t *testing.T) {
	_, err := DecodeReserves(EncodeReserves(false, Reserves{}))
	if !errors.Is(err, ErrReserveRead) || !errors.Is(err, ErrPoolDisabled) {
		t.Fatalf("expected disabled pool read error, got %v", err)
	}
}

func TestDecodeReservesShortPayloads(t *testing.T) {
	base := EncodeReserves(true, Reserves{VaultATotal: 1, VaultBTotal: 1, LPAAmount: 1, LPASupply: 1, LPBAmount: 1, LPBSupply: 1})
	cases := map[string]func(*RawReserveAccounts){
		"pool":      func(r *RawReserveAccounts) { r.Pool = r.Pool[:PoolEnabledOffset] },
		"vault a":   func(r *RawReserveAccounts) { r.VaultA = r.VaultA[:VaultTotalAmountOffset+7] },
		"vault b":   func(r *RawReserveAccounts) { r.VaultB = nil },
		"pool lp a": func(r *RawReserveAccounts) { r.PoolLPA = r.PoolLPA[:TokenAccountAmountOffset] },
		"pool lp b": func(r *RawReserveAccounts) { r.PoolLPB = r.PoolLPB[:1] },
		"lp mint a": func(r *RawReserveAccounts) { r.LPMintA = r.LPMintA[:MintSupplyOffset+4] },
		"lp mint b": func(r *RawReserveAccounts) { r.LPMintB = []byte{} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			raw := base
			mutate(&raw)
			_, err := DecodeReserves(raw)
			if !errors.Is(err, ErrReserveRead) || !errors.Is(err, ErrReserveDataTooShort) {
				t.Fatalf("expected short data error, got %v", err)
			}
		})
	}
}
