package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/haasonsaas/stark/internal/register"
	"github.com/haasonsaas/stark/internal/storage"
	"github.com/haasonsaas/stark/internal/tools"
	"github.com/haasonsaas/stark/pkg/models"
)

// RPCClient sends a JSON-RPC request body and returns the raw response
// body, decoupling the web3 tools from any one HTTP client/endpoint setup.
type RPCClient interface {
	Call(ctx context.Context, endpoint string, body []byte) ([]byte, error)
}

// HTTPRPCClient is the default RPCClient, a thin POST over net/http.
type HTTPRPCClient struct {
	Client *http.Client
}

// NewHTTPRPCClient builds an HTTPRPCClient with a sane default timeout.
func NewHTTPRPCClient() *HTTPRPCClient {
	return &HTTPRPCClient{Client: &http.Client{Timeout: 15 * time.Second}}
}

func (c *HTTPRPCClient) Call(ctx context.Context, endpoint string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("rpc endpoint returned %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// BroadcastWeb3TxTool signs and broadcasts a queued transaction. It is the
// canonical irreversible tool: confirmation is required before it runs
// unless the session explicitly opts out.
type BroadcastWeb3TxTool struct {
	rpc      RPCClient
	endpoint string
}

// NewBroadcastWeb3TxTool builds a broadcast_web3_tx tool against endpoint.
func NewBroadcastWeb3TxTool(rpc RPCClient, endpoint string) *BroadcastWeb3TxTool {
	return &BroadcastWeb3TxTool{rpc: rpc, endpoint: endpoint}
}

func (t *BroadcastWeb3TxTool) Spec() models.ToolSpec {
	return models.ToolSpec{
		Name:        "broadcast_web3_tx",
		Group:       models.GroupWeb3,
		Description: "Broadcast a signed, queued transaction to its network. Irreversible once confirmed on-chain.",
		Enabled:     true,
		Timeout:     20 * time.Second,
		SideEffectClass: models.EffectIrreversible,
		ArgumentSchema: []models.ArgumentField{
			{Name: "to", Type: "string", Required: true},
			{Name: "raw_amount", Type: "string", Required: true},
			{Name: "data", Type: "string"},
			{Name: "gas_limit", Type: "integer"},
		},
	}
}

// Describe renders the human-readable confirmation prompt shown before the
// transaction is allowed to broadcast.
func (t *BroadcastWeb3TxTool) Describe(args json.RawMessage) (string, error) {
	var input struct {
		To        string `json:"to"`
		RawAmount string `json:"raw_amount"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	return fmt.Sprintf("Broadcast a transaction sending %s (raw units) to %s. This cannot be undone once confirmed on-chain.", input.RawAmount, input.To), nil
}

func (t *BroadcastWeb3TxTool) Execute(ctx context.Context, args json.RawMessage) (*tools.Result, error) {
	var input struct {
		To        string `json:"to"`
		RawAmount string `json:"raw_amount"`
		Data      string `json:"data"`
		GasLimit  int64  `json:"gas_limit"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if t.rpc == nil || t.endpoint == "" {
		return nil, fmt.Errorf("no RPC endpoint configured")
	}

	body := `{"jsonrpc":"2.0","method":"eth_sendRawTransaction","id":1}`
	body, err := sjson.Set(body, "params.0.to", input.To)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	body, err = sjson.Set(body, "params.0.value", input.RawAmount)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if input.Data != "" {
		body, err = sjson.Set(body, "params.0.data", input.Data)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
	}
	if input.GasLimit > 0 {
		body, err = sjson.Set(body, "params.0.gas", input.GasLimit)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
	}

	raw, err := t.rpc.Call(ctx, t.endpoint, []byte(body))
	if err != nil {
		return nil, fmt.Errorf("broadcast: %w", err)
	}

	if errMsg := gjson.GetBytes(raw, "error.message"); errMsg.Exists() {
		return &tools.Result{Content: errMsg.String(), IsError: true}, nil
	}
	txHash := gjson.GetBytes(raw, "result").String()
	if txHash == "" {
		return nil, fmt.Errorf("rpc response missing result field")
	}
	return &tools.Result{Content: fmt.Sprintf(`{"tx_hash":%q}`, txHash)}, nil
}

// SetAddressTool records a validated address in the register context so a
// later tool in the same turn (erc20_transfer, broadcast_web3_tx) can use
// it without re-parsing free-form text. It holds no register of its own:
// the executor passes in the calling turn's register context on each call.
type SetAddressTool struct{}

// NewSetAddressTool builds a set_address tool.
func NewSetAddressTool() *SetAddressTool {
	return &SetAddressTool{}
}

func (t *SetAddressTool) Spec() models.ToolSpec {
	return models.ToolSpec{
		Name:        "set_address",
		Group:       models.GroupWeb3,
		Description: "Validate and store a 20-byte hex address in the turn's register context under the given name.",
		Enabled:     true,
		Timeout:     2 * time.Second,
		SideEffectClass: models.EffectPureRead,
		ArgumentSchema: []models.ArgumentField{
			{Name: "register", Type: "string", Required: true},
			{Name: "address", Type: "string", Required: true},
		},
	}
}

// Execute satisfies Tool for callers (such as the tools-list CLI) that
// never invoke a register-bearing tool through the executor.
func (t *SetAddressTool) Execute(ctx context.Context, args json.RawMessage) (*tools.Result, error) {
	return t.ExecuteWithRegisters(ctx, args, nil)
}

func (t *SetAddressTool) ExecuteWithRegisters(ctx context.Context, args json.RawMessage, regs *register.Context) (*tools.Result, error) {
	var input struct {
		Register string `json:"register"`
		Address  string `json:"address"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if regs == nil {
		return nil, fmt.Errorf("no register context bound to this turn")
	}
	if err := regs.SetAddress(input.Register, input.Address); err != nil {
		return &tools.Result{Content: err.Error(), IsError: true}, nil
	}
	return &tools.Result{Content: fmt.Sprintf("stored address in register %q", input.Register)}, nil
}

// ToRawAmountTool converts a human decimal amount to its raw integer form
// at a given decimals count and stores it in the register context.
type ToRawAmountTool struct{}

// NewToRawAmountTool builds a to_raw_amount tool.
func NewToRawAmountTool() *ToRawAmountTool {
	return &ToRawAmountTool{}
}

func (t *ToRawAmountTool) Spec() models.ToolSpec {
	return models.ToolSpec{
		Name:        "to_raw_amount",
		Group:       models.GroupWeb3,
		Description: "Convert a human decimal amount to its raw integer representation at the given decimals, exactly.",
		Enabled:     true,
		Timeout:     2 * time.Second,
		SideEffectClass: models.EffectPureRead,
		ArgumentSchema: []models.ArgumentField{
			{Name: "register", Type: "string", Required: true},
			{Name: "amount", Type: "string", Required: true},
			{Name: "decimals", Type: "integer", Required: true},
		},
	}
}

func (t *ToRawAmountTool) Execute(ctx context.Context, args json.RawMessage) (*tools.Result, error) {
	return t.ExecuteWithRegisters(ctx, args, nil)
}

func (t *ToRawAmountTool) ExecuteWithRegisters(ctx context.Context, args json.RawMessage, regs *register.Context) (*tools.Result, error) {
	var input struct {
		Register string `json:"register"`
		Amount   string `json:"amount"`
		Decimals int    `json:"decimals"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if regs == nil {
		return nil, fmt.Errorf("no register context bound to this turn")
	}
	if err := regs.ToRawAmount(input.Register, input.Amount, input.Decimals); err != nil {
		return &tools.Result{Content: err.Error(), IsError: true}, nil
	}
	v, _ := regs.Get(input.Register)
	return &tools.Result{Content: fmt.Sprintf(`{"raw":%q}`, v.Raw)}, nil
}

// TokenRegistry resolves a token symbol to its contract address and
// decimals. Kept as a plain map injected at construction so operators can
// configure the supported token set without code changes.
type TokenRegistry map[string]models.TokenRef

// TokenLookupTool resolves a token symbol into the register context as a
// RegisterTokenRef, the first step of an ERC-20 transfer skill.
type TokenLookupTool struct {
	registry TokenRegistry
}

// NewTokenLookupTool builds a token_lookup tool against registry.
func NewTokenLookupTool(registry TokenRegistry) *TokenLookupTool {
	return &TokenLookupTool{registry: registry}
}

func (t *TokenLookupTool) Spec() models.ToolSpec {
	return models.ToolSpec{
		Name:        "token_lookup",
		Group:       models.GroupWeb3,
		Description: "Resolve a token symbol to its contract address and decimals.",
		Enabled:     true,
		Timeout:     2 * time.Second,
		SideEffectClass: models.EffectPureRead,
		ArgumentSchema: []models.ArgumentField{
			{Name: "register", Type: "string", Required: true},
			{Name: "symbol", Type: "string", Required: true},
		},
	}
}

func (t *TokenLookupTool) Execute(ctx context.Context, args json.RawMessage) (*tools.Result, error) {
	return t.ExecuteWithRegisters(ctx, args, nil)
}

func (t *TokenLookupTool) ExecuteWithRegisters(ctx context.Context, args json.RawMessage, regs *register.Context) (*tools.Result, error) {
	var input struct {
		Register string `json:"register"`
		Symbol   string `json:"symbol"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	ref, ok := t.registry[strings.ToUpper(input.Symbol)]
	if !ok {
		return &tools.Result{Content: fmt.Sprintf("unknown token %q", input.Symbol), IsError: true}, nil
	}
	if regs != nil {
		if err := regs.Set(input.Register, models.RegisterValue{Kind: models.RegisterTokenRef, Token: &ref}); err != nil {
			return &tools.Result{Content: err.Error(), IsError: true}, nil
		}
	}
	payload, err := json.Marshal(ref)
	if err != nil {
		return nil, fmt.Errorf("marshal token ref: %w", err)
	}
	return &tools.Result{Content: string(payload)}, nil
}

// Erc20TransferTool queues an ERC-20 transfer as a pending transaction.
// It is a local_write, not irreversible: queuing does not broadcast.
// broadcast_web3_tx performs the irreversible step.
type Erc20TransferTool struct {
	store   storage.TransactionStore
	network string
}

// NewErc20TransferTool builds an erc20_transfer tool queuing onto store.
func NewErc20TransferTool(store storage.TransactionStore, network string) *Erc20TransferTool {
	return &Erc20TransferTool{store: store, network: network}
}

func (t *Erc20TransferTool) Spec() models.ToolSpec {
	return models.ToolSpec{
		Name:        "erc20_transfer",
		Group:       models.GroupWeb3,
		Description: "Queue an ERC-20 token transfer for confirmation and broadcast.",
		Enabled:     true,
		Timeout:     5 * time.Second,
		SideEffectClass: models.EffectLocalWrite,
		ArgumentSchema: []models.ArgumentField{
			{Name: "session_id", Type: "string", Required: true},
			{Name: "to_register", Type: "string", Required: true},
			{Name: "amount_register", Type: "string", Required: true},
			{Name: "token_register", Type: "string", Required: true},
		},
	}
}

func (t *Erc20TransferTool) Execute(ctx context.Context, args json.RawMessage) (*tools.Result, error) {
	return t.ExecuteWithRegisters(ctx, args, nil)
}

func (t *Erc20TransferTool) ExecuteWithRegisters(ctx context.Context, args json.RawMessage, regs *register.Context) (*tools.Result, error) {
	var input struct {
		SessionID      string `json:"session_id"`
		ToRegister     string `json:"to_register"`
		AmountRegister string `json:"amount_register"`
		TokenRegister  string `json:"token_register"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if regs == nil {
		return nil, fmt.Errorf("no register context bound to this turn")
	}
	toVal, ok := regs.Get(input.ToRegister)
	if !ok || toVal.Kind != models.RegisterAddress {
		return &tools.Result{Content: fmt.Sprintf("register %q does not hold an address", input.ToRegister), IsError: true}, nil
	}
	amountVal, ok := regs.Get(input.AmountRegister)
	if !ok || amountVal.Kind != models.RegisterRawInteger {
		return &tools.Result{Content: fmt.Sprintf("register %q does not hold a raw amount", input.AmountRegister), IsError: true}, nil
	}
	tokenVal, ok := regs.Get(input.TokenRegister)
	if !ok || tokenVal.Kind != models.RegisterTokenRef || tokenVal.Token == nil {
		return &tools.Result{Content: fmt.Sprintf("register %q does not hold a token reference", input.TokenRegister), IsError: true}, nil
	}

	if t.store == nil {
		return nil, fmt.Errorf("no transaction store configured")
	}
	tx := &models.QueuedTransaction{
		ID:        uuid.NewString(),
		SessionID: input.SessionID,
		Network:   t.network,
		To:        tokenVal.Token.Address,
		Value:     "0",
		Data:      buildErc20TransferData(toVal.Address, amountVal.Raw),
		Status:    models.TxPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := t.store.Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("queue transaction: %w", err)
	}
	return &tools.Result{Content: fmt.Sprintf(`{"queued_tx_id":%q}`, tx.ID)}, nil
}

// buildErc20TransferData encodes the calldata for an ERC-20 transfer(address,uint256)
// call: the 4-byte function selector followed by the two arguments, each
// left-padded to a 32-byte word.
func buildErc20TransferData(to, rawAmount string) string {
	const selector = "a9059cbb"
	paddedTo := leftPadHex(strings.ToLower(strings.TrimPrefix(to, "0x")), 64)

	amount, ok := new(big.Int).SetString(rawAmount, 10)
	if !ok {
		amount = big.NewInt(0)
	}
	paddedAmount := leftPadHex(amount.Text(16), 64)

	return "0x" + selector + paddedTo + paddedAmount
}

func leftPadHex(hex string, width int) string {
	if len(hex) >= width {
		return hex[len(hex)-width:]
	}
	return strings.Repeat("0", width-len(hex)) + hex
}
