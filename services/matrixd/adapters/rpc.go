package adapters

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"donutmatrix/native/swap"
)

// RPCReserveReader loads pool reserve accounts from a Solana RPC node in a
// single getMultipleAccounts call.
type RPCReserveReader struct {
	client     *rpc.Client
	commitment rpc.CommitmentType
}

// NewRPCReserveReader dials endpoint lazily; no request is made until the
// first read.
func NewRPCReserveReader(endpoint string, commitment rpc.CommitmentType) *RPCReserveReader {
	if commitment == "" {
		commitment = rpc.CommitmentConfirmed
	}
	return &RPCReserveReader{client: rpc.New(endpoint), commitment: commitment}
}

// reserveAccountOrder lists the accounts fetched for a quote in request order.
func reserveAccountOrder(accounts swap.PoolAccounts) []solana.PublicKey {
	return []solana.PublicKey{
		accounts.Pool,
		accounts.VaultA,
		accounts.VaultB,
		accounts.PoolLPA,
		accounts.PoolLPB,
		accounts.LPMintA,
		accounts.LPMintB,
	}
}

// ReadReserves implements swap.ReserveReader.
func (r *RPCReserveReader) ReadReserves(ctx context.Context, accounts swap.PoolAccounts) (swap.RawReserveAccounts, error) {
	keys := reserveAccountOrder(accounts)
	resp, err := r.client.GetMultipleAccountsWithOpts(ctx, keys, &rpc.GetMultipleAccountsOpts{
		Commitment: r.commitment,
		Encoding:   solana.EncodingBase64,
	})
	if err != nil {
		return swap.RawReserveAccounts{}, fmt.Errorf("get multiple accounts: %w", err)
	}
	if resp == nil || len(resp.Value) != len(keys) {
		return swap.RawReserveAccounts{}, fmt.Errorf("get multiple accounts: expected %d results", len(keys))
	}
	data := make([][]byte, len(keys))
	for i, account := range resp.Value {
		if account == nil || account.Data == nil {
			return swap.RawReserveAccounts{}, fmt.Errorf("account %s not found", keys[i])
		}
		data[i] = account.Data.GetBinary()
	}
	return assembleReserves(data), nil
}

func assembleReserves(data [][]byte) swap.RawReserveAccounts {
	return swap.RawReserveAccounts{
		Pool:    data[0],
		VaultA:  data[1],
		VaultB:  data[2],
		PoolLPA: data[3],
		PoolLPB: data[4],
		LPMintA: data[5],
		LPMintB: data[6],
	}
}
