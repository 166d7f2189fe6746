package dispatch

import (
	"testing"

	"github.com/koinos-go/chain/internal/chainctx"
	"github.com/koinos-go/chain/internal/chainerr"
	"github.com/koinos-go/chain/internal/crypto"
	"github.com/koinos-go/chain/internal/protocol"
	"github.com/koinos-go/chain/internal/statedb"
	"github.com/koinos-go/chain/internal/statedelta"
)

func newTestContext(t *testing.T) *chainctx.Context {
	t.Helper()
	backend := statedb.NewMemoryBackend()
	rootID := crypto.SumSHA256([]byte("root"))
	tree := statedelta.New(backend, rootID)
	child, err := tree.CreateChild(rootID, crypto.SumSHA256([]byte("child")), nil)
	if err != nil {
		t.Fatalf("create child: %v", err)
	}

	ctx := chainctx.New(chainctx.IntentTransactionApplication, chainctx.NewMeter(chainctx.DefaultRates, 1<<20, 1<<20, 1<<20))
	ctx.SetTree(tree)
	ctx.SetStateNode(child)
	_ = ctx.PushFrame(chainctx.Frame{System: true, Privilege: chainctx.KernelMode})
	return ctx
}

func TestInvokeThunkRequiresKernelMode(t *testing.T) {
	r := NewRegistry()
	r.RegisterThunk(1, func(ctx *chainctx.Context, args []byte) ([]byte, error) {
		return []byte("ok"), nil
	})

	ctx := newTestContext(t)
	_ = ctx.PushFrame(chainctx.Frame{System: false, Privilege: chainctx.UserMode})

	if _, err := r.InvokeThunk(ctx, 1, nil); !chainerr.Is(err, chainerr.CodeInsufficientPrivileges) {
		t.Fatalf("want insufficient_privileges, got %v", err)
	}

	_, _ = ctx.PopFrame()
	out, err := r.InvokeThunk(ctx, 1, nil)
	if err != nil || string(out) != "ok" {
		t.Fatalf("got %q,%v want ok,nil", out, err)
	}
}

func TestInvokeSystemCallUsesDefaultThunkWhenNoOverride(t *testing.T) {
	r := NewRegistry()
	r.RegisterThunk(7, func(ctx *chainctx.Context, args []byte) ([]byte, error) {
		return []byte("default"), nil
	})
	r.SetDefaultSystemCall(42, 7)

	ctx := newTestContext(t)
	out, err := r.InvokeSystemCall(ctx, 42, nil)
	if err != nil || string(out) != "default" {
		t.Fatalf("got %q,%v want default,nil", out, err)
	}
}

func TestInvokeSystemCallUnknownFailsWithoutDefault(t *testing.T) {
	r := NewRegistry()
	ctx := newTestContext(t)
	if _, err := r.InvokeSystemCall(ctx, 99, nil); !chainerr.Is(err, chainerr.CodeUnknownSystemCall) {
		t.Fatalf("want unknown_system_call, got %v", err)
	}
}

func TestInvokeSystemCallPrefersOverrideThunk(t *testing.T) {
	r := NewRegistry()
	r.RegisterThunk(1, func(ctx *chainctx.Context, args []byte) ([]byte, error) { return []byte("default"), nil })
	r.RegisterThunk(2, func(ctx *chainctx.Context, args []byte) ([]byte, error) { return []byte("override"), nil })
	r.SetDefaultSystemCall(42, 1)

	ctx := newTestContext(t)
	if err := WriteOverride(ctx, 42, protocol.SystemCallTarget{IsContract: false, ThunkID: 2}); err != nil {
		t.Fatalf("write override: %v", err)
	}

	out, err := r.InvokeSystemCall(ctx, 42, nil)
	if err != nil || string(out) != "override" {
		t.Fatalf("got %q,%v want override,nil", out, err)
	}
}

func TestInvokeSystemCallPreservesCallerPrivilegeForThunks(t *testing.T) {
	r := NewRegistry()
	var sawPrivilege chainctx.Privilege
	r.RegisterThunk(1, func(ctx *chainctx.Context, args []byte) ([]byte, error) {
		sawPrivilege = ctx.GetPrivilege()
		return nil, nil
	})
	r.SetDefaultSystemCall(42, 1)

	ctx := newTestContext(t)
	_ = ctx.PushFrame(chainctx.Frame{System: false, Privilege: chainctx.UserMode})

	if _, err := r.InvokeSystemCall(ctx, 42, nil); err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if sawPrivilege != chainctx.UserMode {
		t.Fatalf("thunk saw privilege %v, want UserMode preserved from caller", sawPrivilege)
	}
}
