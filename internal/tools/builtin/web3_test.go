package builtin

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/haasonsaas/stark/internal/register"
	"github.com/haasonsaas/stark/internal/storage"
	"github.com/haasonsaas/stark/pkg/models"
)

type fakeRPCClient struct {
	response []byte
	err      error
	gotBody  string
}

func (f *fakeRPCClient) Call(ctx context.Context, endpoint string, body []byte) ([]byte, error) {
	f.gotBody = string(body)
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func TestBroadcastWeb3TxReturnsTxHash(t *testing.T) {
	rpc := &fakeRPCClient{response: []byte(`{"jsonrpc":"2.0","id":1,"result":"0xdeadbeef"}`)}
	tool := NewBroadcastWeb3TxTool(rpc, "https://rpc.example/")

	args, _ := json.Marshal(map[string]any{"to": "0x1111111111111111111111111111111111111111", "raw_amount": "1000000000000000000"})
	result, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(result.Content, "0xdeadbeef") {
		t.Fatalf("content = %q", result.Content)
	}
	if !strings.Contains(rpc.gotBody, "eth_sendRawTransaction") {
		t.Fatalf("request body = %q", rpc.gotBody)
	}
}

func TestBroadcastWeb3TxSurfacesRPCError(t *testing.T) {
	rpc := &fakeRPCClient{response: []byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"insufficient funds"}}`)}
	tool := NewBroadcastWeb3TxTool(rpc, "https://rpc.example/")

	args, _ := json.Marshal(map[string]any{"to": "0x1111111111111111111111111111111111111111", "raw_amount": "1"})
	result, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.IsError || !strings.Contains(result.Content, "insufficient funds") {
		t.Fatalf("result = %+v", result)
	}
}

func TestBroadcastWeb3TxDescribeIsHumanReadable(t *testing.T) {
	tool := NewBroadcastWeb3TxTool(&fakeRPCClient{}, "https://rpc.example/")
	args, _ := json.Marshal(map[string]any{"to": "0xabc", "raw_amount": "10000000"})
	desc, err := tool.Describe(args)
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if !strings.Contains(desc, "0xabc") || !strings.Contains(desc, "10000000") {
		t.Fatalf("descriptor = %q", desc)
	}
}

func TestBroadcastWeb3TxRequiresRPCConfigured(t *testing.T) {
	tool := NewBroadcastWeb3TxTool(nil, "")
	args, _ := json.Marshal(map[string]any{"to": "0xabc", "raw_amount": "1"})
	if _, err := tool.Execute(context.Background(), args); err == nil {
		t.Fatal("expected error when no RPC endpoint configured")
	}
}

func TestSetAddressToolStoresInRegister(t *testing.T) {
	regs := register.New()
	tool := NewSetAddressTool()

	args, _ := json.Marshal(map[string]any{"register": "send_to", "address": "0x1111111111111111111111111111111111111111"})
	result, err := tool.ExecuteWithRegisters(context.Background(), args, regs)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", result.Content)
	}
	v, ok := regs.Get("send_to")
	if !ok || v.Address != "0x1111111111111111111111111111111111111111" {
		t.Fatalf("register value = %+v, ok=%v", v, ok)
	}
}

func TestSetAddressToolRejectsZeroAddress(t *testing.T) {
	regs := register.New()
	tool := NewSetAddressTool()

	args, _ := json.Marshal(map[string]any{"register": "send_to", "address": "0x0000000000000000000000000000000000000000"})
	result, err := tool.ExecuteWithRegisters(context.Background(), args, regs)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected IsError for zero address")
	}
}

func TestToRawAmountToolStoresExactConversion(t *testing.T) {
	regs := register.New()
	tool := NewToRawAmountTool()

	args, _ := json.Marshal(map[string]any{"register": "amount", "amount": "0.01", "decimals": 18})
	result, err := tool.ExecuteWithRegisters(context.Background(), args, regs)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(result.Content, "10000000000000000") {
		t.Fatalf("content = %q", result.Content)
	}
	v, ok := regs.Get("amount")
	if !ok || v.Raw != "10000000000000000" {
		t.Fatalf("register value = %+v, ok=%v", v, ok)
	}
}

func TestToRawAmountToolNoRegisterContext(t *testing.T) {
	tool := NewToRawAmountTool()
	args, _ := json.Marshal(map[string]any{"register": "amount", "amount": "1", "decimals": 6})
	if _, err := tool.ExecuteWithRegisters(context.Background(), args, nil); err == nil {
		t.Fatal("expected error when no register context bound")
	}
}

func TestTokenLookupResolvesSymbol(t *testing.T) {
	regs := register.New()
	registry := TokenRegistry{"USDC": {Symbol: "USDC", Address: "0x2222222222222222222222222222222222222222", Decimals: 6}}
	tool := NewTokenLookupTool(registry)

	args, _ := json.Marshal(map[string]any{"register": "token", "symbol": "usdc"})
	result, err := tool.ExecuteWithRegisters(context.Background(), args, regs)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(result.Content, "0x2222") {
		t.Fatalf("content = %q", result.Content)
	}
	v, ok := regs.Get("token")
	if !ok || v.Kind != models.RegisterTokenRef || v.Token.Decimals != 6 {
		t.Fatalf("register value = %+v, ok=%v", v, ok)
	}
}

func TestTokenLookupUnknownSymbol(t *testing.T) {
	tool := NewTokenLookupTool(TokenRegistry{})
	args, _ := json.Marshal(map[string]any{"register": "token", "symbol": "ZZZ"})
	result, err := tool.ExecuteWithRegisters(context.Background(), args, register.New())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected IsError for unknown token")
	}
}

func TestErc20TransferQueuesTransaction(t *testing.T) {
	regs := register.New()
	if err := regs.SetAddress("send_to", "0x1111111111111111111111111111111111111111"); err != nil {
		t.Fatalf("set address: %v", err)
	}
	if err := regs.ToRawAmount("amount", "10", 6); err != nil {
		t.Fatalf("to raw amount: %v", err)
	}
	if err := regs.Set("token", models.RegisterValue{Kind: models.RegisterTokenRef, Token: &models.TokenRef{Symbol: "USDC", Address: "0x2222222222222222222222222222222222222222", Decimals: 6}}); err != nil {
		t.Fatalf("set token: %v", err)
	}

	store := storage.NewMemoryStore()
	tool := NewErc20TransferTool(store.Transactions, "ethereum")

	args, _ := json.Marshal(map[string]any{
		"session_id":      "sess-1",
		"to_register":     "send_to",
		"amount_register": "amount",
		"token_register":  "token",
	})
	result, err := tool.ExecuteWithRegisters(context.Background(), args, regs)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(result.Content, "queued_tx_id") {
		t.Fatalf("content = %q", result.Content)
	}

	queued, err := store.Transactions.ClaimNextPending(context.Background())
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if queued.To != "0x2222222222222222222222222222222222222222" {
		t.Fatalf("to = %q", queued.To)
	}
	if !strings.Contains(queued.Data, "a9059cbb") {
		t.Fatalf("data = %q, want to contain erc20 transfer selector", queued.Data)
	}
}

func TestErc20TransferRejectsWrongRegisterKind(t *testing.T) {
	regs := register.New()
	if err := regs.Set("send_to", models.RegisterValue{Kind: models.RegisterBytes, Bytes: []byte("not an address")}); err != nil {
		t.Fatalf("set: %v", err)
	}
	store := storage.NewMemoryStore()
	tool := NewErc20TransferTool(store.Transactions, "ethereum")

	args, _ := json.Marshal(map[string]any{
		"session_id":      "sess-1",
		"to_register":     "send_to",
		"amount_register": "amount",
		"token_register":  "token",
	})
	result, err := tool.ExecuteWithRegisters(context.Background(), args, regs)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected IsError for wrong register kind")
	}
}
