// kodata-dao/chain/starknet.go
package chain

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// TxStatus is the explicit outcome of a chain write. Callers must branch on
// it instead of assuming a returned hash means the transaction landed.
type TxStatus string

const (
	TxConfirmed   TxStatus = "confirmed"
	TxPending     TxStatus = "pending"
	TxFailed      TxStatus = "failed"
	TxUnavailable TxStatus = "unavailable"
)

type TxResult struct {
	Hash   string   `json:"tx_hash"`
	Status TxStatus `json:"status"`
}

// Status describes one chain endpoint for /api/blockchain/status.
type Status struct {
	Reachable   bool   `json:"reachable"`
	ChainID     string `json:"chain_id,omitempty"`
	BlockNumber uint64 `json:"block_number,omitempty"`
	Error       string `json:"error,omitempty"`
}

type TokenInfo struct {
	Address     string  `json:"address"`
	Name        string  `json:"name"`
	Symbol      string  `json:"symbol"`
	Decimals    uint8   `json:"decimals"`
	TotalSupply float64 `json:"total_supply"`
}

type ContractInfo struct {
	Address         string `json:"address"`
	Admin           string `json:"admin"`
	SubmissionCount int64  `json:"submission_count"`
}

// StarknetClient is the typed surface over the reward token and platform
// contracts. Write operations return the transaction hash; confirmation is a
// separate concern (TransactionStatus, polled by the scheduler).
type StarknetClient interface {
	GetTokenInfo(ctx context.Context) (*TokenInfo, error)
	GetContractInfo(ctx context.Context) (*ContractInfo, error)
	GetBalance(ctx context.Context, address string) (float64, error)

	ApproveSubmission(ctx context.Context, contributor, contentHash string) (string, error)
	Mint(ctx context.Context, recipient string, amount float64) (string, error)
	Transfer(ctx context.Context, recipient string, amount float64) (string, error)
	Stake(ctx context.Context, amount float64) (string, error)
	Unstake(ctx context.Context, amount float64) (string, error)
	ClaimRewards(ctx context.Context) (string, error)

	TransactionStatus(ctx context.Context, txHash string) (TxStatus, error)
	ChainStatus(ctx context.Context) Status
}

type StarkliConfig struct {
	Bin              string
	RPCURL           string
	Account          string // path to the account descriptor
	Keystore         string
	KeystorePassword string
	TokenAddress     string
	PlatformAddress  string
	Timeout          time.Duration
}

// StarkliClient drives the starkli binary. Reads go through `starkli call`,
// writes through `starkli invoke` signed by the platform account.
type StarkliClient struct {
	cfg  StarkliConfig
	HTTP *http.Client

	mu       sync.Mutex
	decimals uint8 // cached after the first token_info read, 0 = unknown
}

func NewStarkliClient(cfg StarkliConfig) *StarkliClient {
	if cfg.Bin == "" {
		cfg.Bin = "starkli"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &StarkliClient{
		cfg: cfg,
		HTTP: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *StarkliClient) GetTokenInfo(ctx context.Context) (*TokenInfo, error) {
	name, err := c.call(ctx, c.cfg.TokenAddress, "name")
	if err != nil {
		return nil, err
	}
	symbol, err := c.call(ctx, c.cfg.TokenAddress, "symbol")
	if err != nil {
		return nil, err
	}
	dec, err := c.call(ctx, c.cfg.TokenAddress, "decimals")
	if err != nil {
		return nil, err
	}
	supply, err := c.call(ctx, c.cfg.TokenAddress, "total_supply")
	if err != nil {
		return nil, err
	}

	info := &TokenInfo{Address: c.cfg.TokenAddress}
	if len(name) > 0 {
		info.Name = decodeShortString(name[0])
	}
	if len(symbol) > 0 {
		info.Symbol = decodeShortString(symbol[0])
	}
	if len(dec) > 0 {
		d, err := parseFeltUint(dec[0])
		if err != nil {
			return nil, callErr(c.cfg.TokenAddress, "decimals", err)
		}
		info.Decimals = uint8(d)
	}
	if len(supply) >= 2 {
		v, err := u256ToFloat(supply[0], supply[1], info.Decimals)
		if err != nil {
			return nil, callErr(c.cfg.TokenAddress, "total_supply", err)
		}
		info.TotalSupply = v
	}

	c.mu.Lock()
	c.decimals = info.Decimals
	c.mu.Unlock()

	return info, nil
}

func (c *StarkliClient) GetContractInfo(ctx context.Context) (*ContractInfo, error) {
	admin, err := c.call(ctx, c.cfg.PlatformAddress, "get_admin")
	if err != nil {
		return nil, err
	}
	count, err := c.call(ctx, c.cfg.PlatformAddress, "get_submission_count")
	if err != nil {
		return nil, err
	}

	info := &ContractInfo{Address: c.cfg.PlatformAddress}
	if len(admin) > 0 {
		info.Admin = admin[0]
	}
	if len(count) > 0 {
		n, err := parseFeltUint(count[0])
		if err != nil {
			return nil, callErr(c.cfg.PlatformAddress, "get_submission_count", err)
		}
		info.SubmissionCount = int64(n)
	}
	return info, nil
}

// GetBalance returns the token balance in whole units. An address the
// contract has never seen holds zero; that is a valid answer, not an error.
func (c *StarkliClient) GetBalance(ctx context.Context, address string) (float64, error) {
	felts, err := c.call(ctx, c.cfg.TokenAddress, "balance_of", address)
	if err != nil {
		return 0, err
	}
	if len(felts) == 0 {
		return 0, nil
	}
	low := felts[0]
	high := "0x0"
	if len(felts) >= 2 {
		high = felts[1]
	}
	v, err := u256ToFloat(low, high, c.tokenDecimals(ctx))
	if err != nil {
		return 0, callErr(c.cfg.TokenAddress, "balance_of", err)
	}
	return v, nil
}

func (c *StarkliClient) ApproveSubmission(ctx context.Context, contributor, contentHash string) (string, error) {
	low, high, err := hashToU256(contentHash)
	if err != nil {
		return "", callErr(c.cfg.PlatformAddress, "approve_submission", err)
	}
	return c.invoke(ctx, c.cfg.PlatformAddress, "approve_submission", contributor, low, high)
}

func (c *StarkliClient) Mint(ctx context.Context, recipient string, amount float64) (string, error) {
	low, high := amountToU256(amount, c.tokenDecimals(ctx))
	return c.invoke(ctx, c.cfg.TokenAddress, "mint", recipient, low, high)
}

func (c *StarkliClient) Transfer(ctx context.Context, recipient string, amount float64) (string, error) {
	low, high := amountToU256(amount, c.tokenDecimals(ctx))
	return c.invoke(ctx, c.cfg.TokenAddress, "transfer", recipient, low, high)
}

func (c *StarkliClient) Stake(ctx context.Context, amount float64) (string, error) {
	low, high := amountToU256(amount, c.tokenDecimals(ctx))
	return c.invoke(ctx, c.cfg.TokenAddress, "stake", low, high)
}

func (c *StarkliClient) Unstake(ctx context.Context, amount float64) (string, error) {
	low, high := amountToU256(amount, c.tokenDecimals(ctx))
	return c.invoke(ctx, c.cfg.TokenAddress, "unstake", low, high)
}

func (c *StarkliClient) ClaimRewards(ctx context.Context) (string, error) {
	return c.invoke(ctx, c.cfg.TokenAddress, "claim_rewards")
}

// TransactionStatus maps starknet_getTransactionStatus onto TxStatus.
func (c *StarkliClient) TransactionStatus(ctx context.Context, txHash string) (TxStatus, error) {
	var res struct {
		FinalityStatus  string `json:"finality_status"`
		ExecutionStatus string `json:"execution_status"`
	}
	if err := c.rpc(ctx, "starknet_getTransactionStatus", []string{txHash}, &res); err != nil {
		return TxUnavailable, err
	}
	if res.ExecutionStatus == "REVERTED" {
		return TxFailed, nil
	}
	switch res.FinalityStatus {
	case "ACCEPTED_ON_L2", "ACCEPTED_ON_L1":
		return TxConfirmed, nil
	default:
		return TxPending, nil
	}
}

func (c *StarkliClient) ChainStatus(ctx context.Context) Status {
	st := Status{}

	var chainID string
	if err := c.rpc(ctx, "starknet_chainId", []string{}, &chainID); err != nil {
		st.Error = err.Error()
		return st
	}
	st.ChainID = decodeShortString(chainID)

	var block uint64
	if err := c.rpc(ctx, "starknet_blockNumber", []string{}, &block); err != nil {
		st.Error = err.Error()
		return st
	}
	st.BlockNumber = block
	st.Reachable = true
	return st
}

func (c *StarkliClient) tokenDecimals(ctx context.Context) uint8 {
	c.mu.Lock()
	d := c.decimals
	c.mu.Unlock()
	if d != 0 {
		return d
	}
	if info, err := c.GetTokenInfo(ctx); err == nil && info.Decimals != 0 {
		return info.Decimals
	}
	return 18
}

// call runs `starkli call` and returns every felt the command printed.
func (c *StarkliClient) call(ctx context.Context, contract, entrypoint string, args ...string) ([]string, error) {
	cmdArgs := append([]string{"call", contract, entrypoint}, args...)
	cmdArgs = append(cmdArgs, "--rpc", c.cfg.RPCURL)

	out, err := c.run(ctx, cmdArgs...)
	if err != nil {
		return nil, callErr(contract, entrypoint, err)
	}
	return parseFelts(out), nil
}

// invoke runs `starkli invoke` signed by the platform account and returns the
// transaction hash (the last felt starkli prints).
func (c *StarkliClient) invoke(ctx context.Context, contract, entrypoint string, args ...string) (string, error) {
	cmdArgs := append([]string{"invoke", contract, entrypoint}, args...)
	cmdArgs = append(cmdArgs,
		"--rpc", c.cfg.RPCURL,
		"--account", c.cfg.Account,
		"--keystore", c.cfg.Keystore,
	)

	out, err := c.run(ctx, cmdArgs...)
	if err != nil {
		log.Printf("❌ [Starknet] invoke %s.%s failed: %v", contract, entrypoint, err)
		return "", callErr(contract, entrypoint, err)
	}

	felts := parseFelts(out)
	if len(felts) == 0 {
		return "", callErr(contract, entrypoint, fmt.Errorf("no transaction hash in starkli output: %q", strings.TrimSpace(out)))
	}
	tx := felts[len(felts)-1]
	log.Printf("✅ [Starknet] %s.%s → %s", shortAddr(contract), entrypoint, tx)
	return tx, nil
}

func (c *StarkliClient) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.cfg.Bin, args...)
	if c.cfg.KeystorePassword != "" {
		cmd.Env = append(cmd.Environ(), "STARKNET_KEYSTORE_PASSWORD="+c.cfg.KeystorePassword)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		return "", fmt.Errorf("starkli %s: %w (%s)", args[0], err, msg)
	}
	return stdout.String(), nil
}

func (c *StarkliClient) rpc(ctx context.Context, method string, params, out any) error {
	body, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
		"id":      1,
	})

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.RPCURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("%s: rpc error %d: %s", method, envelope.Error.Code, envelope.Error.Message)
	}
	if out != nil && envelope.Result != nil {
		return json.Unmarshal(envelope.Result, out)
	}
	return nil
}

// parseFelts pulls every 0x-prefixed token out of starkli output, which
// formats results as a bracketed list of quoted hex felts.
func parseFelts(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		switch r {
		case ' ', '\t', '\n', '\r', '"', ',', '[', ']', '(', ')':
			return true
		}
		return false
	})
	var felts []string
	for _, f := range fields {
		if strings.HasPrefix(f, "0x") && len(f) > 2 {
			felts = append(felts, f)
		}
	}
	return felts
}

func parseFeltUint(felt string) (uint64, error) {
	v, ok := new(big.Int).SetString(strings.TrimPrefix(felt, "0x"), 16)
	if !ok {
		return 0, fmt.Errorf("bad felt %q", felt)
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("felt %s overflows uint64", felt)
	}
	return v.Uint64(), nil
}

// decodeShortString turns a Cairo short-string felt back into ASCII.
func decodeShortString(felt string) string {
	h := strings.TrimPrefix(felt, "0x")
	if len(h)%2 == 1 {
		h = "0" + h
	}
	raw, err := hex.DecodeString(h)
	if err != nil {
		return felt
	}
	printable := make([]byte, 0, len(raw))
	for _, b := range raw {
		if b >= 0x20 && b < 0x7f {
			printable = append(printable, b)
		}
	}
	if len(printable) == 0 {
		return felt
	}
	return string(printable)
}

// u256ToFloat combines the (low, high) felt pair into whole token units.
func u256ToFloat(lowFelt, highFelt string, decimals uint8) (float64, error) {
	low, ok := new(big.Int).SetString(strings.TrimPrefix(lowFelt, "0x"), 16)
	if !ok {
		return 0, fmt.Errorf("bad u256 low %q", lowFelt)
	}
	high, ok := new(big.Int).SetString(strings.TrimPrefix(highFelt, "0x"), 16)
	if !ok {
		return 0, fmt.Errorf("bad u256 high %q", highFelt)
	}

	v := new(big.Int).Lsh(high, 128)
	v.Add(v, low)

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	f := new(big.Float).Quo(new(big.Float).SetInt(v), new(big.Float).SetInt(scale))
	out, _ := f.Float64()
	return out, nil
}

// amountToU256 converts whole token units into the (low, high) calldata pair.
func amountToU256(amount float64, decimals uint8) (low, high string) {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	f := new(big.Float).Mul(big.NewFloat(amount), new(big.Float).SetInt(scale))
	v, _ := f.Int(nil)

	mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
	l := new(big.Int).And(v, mask)
	h := new(big.Int).Rsh(v, 128)
	return "0x" + l.Text(16), "0x" + h.Text(16)
}

// hashToU256 splits a sha256 hex digest into the (low, high) felt pair the
// platform contract stores it as.
func hashToU256(contentHash string) (low, high string, err error) {
	h := strings.TrimPrefix(strings.ToLower(contentHash), "0x")
	raw, err := hex.DecodeString(h)
	if err != nil || len(raw) != 32 {
		return "", "", fmt.Errorf("content hash must be 32 hex-encoded bytes")
	}
	hi := new(big.Int).SetBytes(raw[:16])
	lo := new(big.Int).SetBytes(raw[16:])
	return "0x" + lo.Text(16), "0x" + hi.Text(16), nil
}

func shortAddr(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:8] + "…" + addr[len(addr)-4:]
}
