package adapters

import (
	"testing"

	"github.com/gagliardetto/solana-go"

	"donutmatrix/native/swap"
)

func key(index byte) solana.PublicKey {
	var out solana.PublicKey
	out[31] = index
	return out
}

func TestAssembleReservesOrder(t *testing.T) {
	accounts := swap.PoolAccounts{
		Pool: key(1), VaultA: key(2), VaultB: key(3), PoolLPA: key(4), PoolLPB: key(5), LPMintA: key(6), LPMintB: key(7),
	}
	order := reserveAccountOrder(accounts)
	data := make([][]byte, len(order))
	for i, k := range order {
		data[i] = []byte{k[31]}
	}
	raw := assembleReserves(data)
	if raw.Pool[0] != 1 || raw.VaultB[0] != 3 || raw.PoolLPB[0] != 5 || raw.LPMintB[0] != 7 {
		t.Fatalf("reserve accounts assembled out of order: %+v", raw)
	}
}
