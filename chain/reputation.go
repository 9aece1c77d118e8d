// kodata-dao/chain/reputation.go
package chain

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/google/uuid"
)

// ReputationClient records contributor reputation on the side chain. The
// result always carries an explicit status: an outage yields a synthesized
// placeholder hash with TxUnavailable, never a fake success.
type ReputationClient interface {
	IncreaseReputation(ctx context.Context, contributor string, points int64) TxResult
	ChainStatus(ctx context.Context) Status
}

type LiskConfig struct {
	RPCURL          string
	ChainID         int64
	ContractAddress string
	Timeout         time.Duration
}

// LiskClient sends increaseReputation transactions to the reputation contract
// on Lisk Sepolia, signed by the platform hot wallet.
type LiskClient struct {
	cfg      LiskConfig
	signer   *Signer
	contract common.Address
	gasLimit uint64
}

func NewLiskClient(cfg LiskConfig, signer *Signer) *LiskClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &LiskClient{
		cfg:      cfg,
		signer:   signer,
		contract: common.HexToAddress(cfg.ContractAddress),
		gasLimit: 150000,
	}
}

func (c *LiskClient) IncreaseReputation(ctx context.Context, contributor string, points int64) TxResult {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	hash, err := c.send(ctx, contributor, points)
	if err != nil {
		mock := "mock-" + uuid.NewString()
		log.Printf("⚠️ [Lisk] reputation update for %s undeliverable, recording placeholder %s: %v", contributor, mock, err)
		return TxResult{Hash: mock, Status: TxUnavailable}
	}

	status := c.awaitReceipt(ctx, hash)
	return TxResult{Hash: hash.Hex(), Status: status}
}

func (c *LiskClient) send(ctx context.Context, contributor string, points int64) (common.Hash, error) {
	client, err := ethclient.DialContext(ctx, c.cfg.RPCURL)
	if err != nil {
		return common.Hash{}, fmt.Errorf("dial %s: %w", c.cfg.RPCURL, err)
	}
	defer client.Close()

	from := c.signer.Address()
	nonce, err := client.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("nonce: %w", err)
	}
	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("gas price: %w", err)
	}

	data := packIncreaseReputation(common.HexToAddress(contributor), big.NewInt(points))
	tx := types.NewTransaction(nonce, c.contract, big.NewInt(0), c.gasLimit, gasPrice, data)

	signed, err := c.signer.SignTx(tx, big.NewInt(c.cfg.ChainID))
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign: %w", err)
	}
	if err := client.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("send: %w", err)
	}
	return signed.Hash(), nil
}

// awaitReceipt polls briefly for one confirmation. Running out of time leaves
// the transaction pending, which the caller records as-is.
func (c *LiskClient) awaitReceipt(ctx context.Context, hash common.Hash) TxStatus {
	client, err := ethclient.DialContext(ctx, c.cfg.RPCURL)
	if err != nil {
		return TxPending
	}
	defer client.Close()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		receipt, err := client.TransactionReceipt(ctx, hash)
		if err == nil {
			if receipt.Status == types.ReceiptStatusSuccessful {
				return TxConfirmed
			}
			return TxFailed
		}
		select {
		case <-ctx.Done():
			return TxPending
		case <-ticker.C:
		}
	}
}

func (c *LiskClient) ChainStatus(ctx context.Context) Status {
	st := Status{ChainID: fmt.Sprintf("%d", c.cfg.ChainID)}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := ethclient.DialContext(ctx, c.cfg.RPCURL)
	if err != nil {
		st.Error = err.Error()
		return st
	}
	defer client.Close()

	block, err := client.BlockNumber(ctx)
	if err != nil {
		st.Error = err.Error()
		return st
	}
	st.BlockNumber = block
	st.Reachable = true
	return st
}

// packIncreaseReputation builds calldata for increaseReputation(address,uint256).
func packIncreaseReputation(contributor common.Address, points *big.Int) []byte {
	selector := crypto.Keccak256([]byte("increaseReputation(address,uint256)"))[:4]
	data := make([]byte, 0, 4+64)
	data = append(data, selector...)
	data = append(data, common.LeftPadBytes(contributor.Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(points.Bytes(), 32)...)
	return data
}
