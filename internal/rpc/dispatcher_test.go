package rpc

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/lumenbridge/platform-service/internal/domain"
)

func TestDispatch_UnknownMethod(t *testing.T) {
	deps, _ := newTestDeps(&repoStub{}, nil)
	registry := NewRegistry(deps)

	resp := registry.Dispatch(context.Background(), Envelope{
		ID:     json.RawMessage(`1`),
		Method: "do_teleport",
	})
	if resp.Error == nil || resp.Error.Code != CodeMethodNotFound {
		t.Fatalf("expected method-not-found error, got %+v", resp.Error)
	}
	if resp.Error.Message != "RPC method[do_teleport] is not supported" {
		t.Fatalf("unexpected message %q", resp.Error.Message)
	}
}

func TestDispatch_SuccessReturnsSnapshot(t *testing.T) {
	txn := sep24Deposit("tx-1", domain.StatusIncomplete)
	txn.AmountExpected = domain.Amount{Asset: "stellar:USDC:GA"}
	repo := &repoStub{sep24: map[string]*domain.Transaction{"tx-1": txn}}
	deps, _ := newTestDeps(repo, nil)
	registry := NewRegistry(deps)

	resp := registry.Dispatch(context.Background(), Envelope{
		ID:     json.RawMessage(`"a"`),
		Method: MethodRequestOffchainFunds,
		Params: mustParams(t, RequestOffchainFundsParams{BaseParams: BaseParams{TransactionID: "tx-1"}}),
	})
	if resp.Error != nil {
		t.Fatalf("expected success, got %+v", resp.Error)
	}
	if resp.Result == nil || resp.Result.Status != domain.StatusPendingUserTransferStart {
		t.Fatalf("expected snapshot with new status, got %+v", resp.Result)
	}
	if resp.Result.Sep != domain.ProtocolSep24 || resp.Result.Kind != domain.KindDeposit {
		t.Fatalf("expected protocol and kind on the snapshot, got %+v", resp.Result)
	}

	// A known asset with no amount renders as an asset-only pair.
	body, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	var wire map[string]json.RawMessage
	if err := json.Unmarshal(body, &wire); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if string(wire["amount_expected"]) != `{"amount":null,"asset":"stellar:USDC:GA"}` {
		t.Fatalf("unexpected amount_expected rendering %s", wire["amount_expected"])
	}
}

func TestDispatchBatch_EntriesAreIndependent(t *testing.T) {
	txn := sep24Deposit("tx-1", domain.StatusIncomplete)
	repo := &repoStub{sep24: map[string]*domain.Transaction{"tx-1": txn}}
	deps, _ := newTestDeps(repo, nil)
	registry := NewRegistry(deps)

	resps := registry.DispatchBatch(context.Background(), []Envelope{
		{ID: json.RawMessage(`1`), Method: MethodNotifyTransactionError, Params: mustParams(t, NotifyTransactionErrorParams{
			BaseParams: BaseParams{TransactionID: "missing", Message: "boom"},
		})},
		{ID: json.RawMessage(`2`), Method: MethodRequestOffchainFunds, Params: mustParams(t, RequestOffchainFundsParams{
			BaseParams: BaseParams{TransactionID: "tx-1"},
		})},
	})
	if len(resps) != 2 {
		t.Fatalf("expected two responses, got %d", len(resps))
	}
	if resps[0].Error == nil || resps[0].Error.Code != CodeInvalidRequest {
		t.Fatalf("expected first entry to fail, got %+v", resps[0])
	}
	if resps[1].Error != nil || resps[1].Result == nil {
		t.Fatalf("expected second entry to succeed, got %+v", resps[1])
	}
	if string(resps[0].ID) != "1" || string(resps[1].ID) != "2" {
		t.Fatal("expected responses to carry their request ids in order")
	}
}

func TestDispatch_InvalidParamsJSON(t *testing.T) {
	deps, _ := newTestDeps(&repoStub{}, nil)
	registry := NewRegistry(deps)

	resp := registry.Dispatch(context.Background(), Envelope{
		ID:     json.RawMessage(`3`),
		Method: MethodRequestOffchainFunds,
		Params: json.RawMessage(`{"transaction_id": 42}`),
	})
	if resp.Error == nil || resp.Error.Code != CodeInvalidParams {
		t.Fatalf("expected invalid params error, got %+v", resp.Error)
	}
}
