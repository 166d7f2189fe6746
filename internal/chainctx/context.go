package chainctx

import (
	"strings"

	"github.com/koinos-go/chain/internal/chainerr"
	"github.com/koinos-go/chain/internal/protocol"
	"github.com/koinos-go/chain/internal/statedb"
	"github.com/koinos-go/chain/internal/statedelta"
)

// Intent describes what kind of apply a Context is serving; thunks
// consult it to reject operations that don't make sense for the
// current scope (e.g. a write inside a read-only call).
type Intent int

const (
	IntentReadOnly Intent = iota
	IntentBlockApplication
	IntentTransactionApplication
)

// Context is the mutable state threaded through one block or
// transaction apply: the call-frame stack, the bound state node, the
// bound block/transaction, the console buffer, and the resource
// meter. A Context is not safe for concurrent use; the controller
// holds exactly one per in-flight apply.
type Context struct {
	stack frameStack

	tree      *statedelta.Tree
	stateNode *statedelta.Node
	intent    Intent

	block       *protocol.Block
	transaction *protocol.Transaction

	console strings.Builder

	meter   *Meter
	session *Session

	blockReceipt *protocol.BlockReceipt
	txReceipt    *protocol.TransactionReceipt

	skipTrxSigCheck bool

	result      []byte
	resultSet   bool
	exitCode    int32
	exitCodeSet bool
}

// New creates a context for the given intent and resource meter.
func New(intent Intent, meter *Meter) *Context {
	return &Context{intent: intent, meter: meter}
}

// Intent reports the scope this context serves.
func (c *Context) Intent() Intent { return c.intent }

// Meter returns the attached resource meter.
func (c *Context) Meter() *Meter { return c.meter }

// PushFrame, PopFrame and WithFrame manage the call stack (spec §4.4).

func (c *Context) PushFrame(f Frame) error {
	return c.stack.push(f)
}

func (c *Context) PopFrame() (Frame, error) {
	return c.stack.pop()
}

// WithFrame pushes f, runs fn, and pops f again on every exit path —
// normal return, error return, or panic — restoring the previous
// user-code flag before returning control to the caller.
func (c *Context) WithFrame(f Frame, fn func() error) error {
	prevUserCode := c.stack.inUserCode
	if err := c.stack.push(f); err != nil {
		return err
	}
	c.stack.inUserCode = !f.System
	defer func() {
		c.stack.inUserCode = prevUserCode
		_, _ = c.stack.pop()
	}()
	return fn()
}

// InUserCode reports whether the top frame is guest (non-system) code.
func (c *Context) InUserCode() bool { return c.stack.inUserCode }

// TopFrame returns the current frame, if any.
func (c *Context) TopFrame() (Frame, bool) { return c.stack.top() }

// CallDepth counts the frames on the stack bound to a contract,
// i.e. the current contract-call nesting.
func (c *Context) CallDepth() int {
	depth := 0
	for _, f := range c.stack.frames {
		if f.ContractID != (protocol.Address{}) {
			depth++
		}
	}
	return depth
}

// GetPrivilege returns the top frame's privilege.
func (c *Context) GetPrivilege() Privilege {
	if f, ok := c.stack.top(); ok {
		return f.Privilege
	}
	return KernelMode
}

// SetPrivilege overwrites the top frame's privilege.
func (c *Context) SetPrivilege(p Privilege) error {
	if len(c.stack.frames) == 0 {
		return chainerr.New(chainerr.CodeInternalError, "set_privilege with no active frame")
	}
	c.stack.frames[len(c.stack.frames)-1].Privilege = p
	return nil
}

// GetCallerPrivilege returns the privilege of the first non-system
// frame from the top of the stack, or KernelMode if the stack holds
// only system frames (the bootstrap case).
func (c *Context) GetCallerPrivilege() Privilege {
	for i := len(c.stack.frames) - 1; i >= 0; i-- {
		if !c.stack.frames[i].System {
			return c.stack.frames[i].Privilege
		}
	}
	return KernelMode
}

// GetContractID returns the contract id of the first frame with a
// non-zero contract id, from the top of the stack, and whether one
// was found; its absence means the caller is the system itself.
func (c *Context) GetContractID() (protocol.Address, bool) {
	for i := len(c.stack.frames) - 1; i >= 0; i-- {
		if c.stack.frames[i].ContractID != (protocol.Address{}) {
			return c.stack.frames[i].ContractID, true
		}
	}
	return protocol.Address{}, false
}

// SetTree binds the state-delta tree that GetObject/PutObject/
// RemoveObject resolve against.
func (c *Context) SetTree(t *statedelta.Tree) { c.tree = t }

// Tree returns the bound state-delta tree, if any. apply_block uses
// this directly (rather than through GetObject/PutObject) to open and
// fold per-transaction scratch nodes around each apply_transaction
// dispatch.
func (c *Context) Tree() *statedelta.Tree { return c.tree }

// GetObject reads key from space relative to the bound state node,
// walking its ancestor deltas down to the backend.
func (c *Context) GetObject(space statedb.Space, key []byte) ([]byte, bool, error) {
	n, ok := c.GetStateNode()
	if !ok {
		return nil, false, chainerr.New(chainerr.CodeUnexpectedAccess, "no state node bound to this context")
	}
	return c.tree.Get(n.ID(), space, key)
}

// PutObject records a write relative to the bound state node. It
// fails read_only_context outside of a write-permitting intent.
func (c *Context) PutObject(space statedb.Space, key, value []byte) error {
	if c.intent == IntentReadOnly {
		return chainerr.New(chainerr.CodeReadOnlyContext, "write attempted in a read-only context")
	}
	n, ok := c.GetStateNode()
	if !ok {
		return chainerr.New(chainerr.CodeUnexpectedAccess, "no state node bound to this context")
	}
	return c.tree.Put(n.ID(), space, key, value)
}

// RemoveObject records a deletion relative to the bound state node. It
// fails read_only_context outside of a write-permitting intent.
func (c *Context) RemoveObject(space statedb.Space, key []byte) error {
	if c.intent == IntentReadOnly {
		return chainerr.New(chainerr.CodeReadOnlyContext, "write attempted in a read-only context")
	}
	n, ok := c.GetStateNode()
	if !ok {
		return chainerr.New(chainerr.CodeUnexpectedAccess, "no state node bound to this context")
	}
	return c.tree.Remove(n.ID(), space, key)
}

// Range returns a merged iterator over space relative to the bound
// state node.
func (c *Context) Range(space statedb.Space, from []byte, dir statedb.Direction) (*statedelta.Iterator, error) {
	n, ok := c.GetStateNode()
	if !ok {
		return nil, chainerr.New(chainerr.CodeUnexpectedAccess, "no state node bound to this context")
	}
	return c.tree.Range(n.ID(), space, from, dir)
}

// SetStateNode binds the node reads and writes are relative to.
func (c *Context) SetStateNode(n *statedelta.Node) { c.stateNode = n }

// GetStateNode returns the bound node, if any.
func (c *Context) GetStateNode() (*statedelta.Node, bool) {
	if c.stateNode == nil {
		return nil, false
	}
	return c.stateNode, true
}

// ClearStateNode unbinds the state node.
func (c *Context) ClearStateNode() { c.stateNode = nil }

// ParentNode returns the bound node's parent, if both exist.
func (c *Context) ParentNode() (*statedelta.Node, bool) {
	if c.stateNode == nil {
		return nil, false
	}
	p := c.stateNode.Parent()
	if p == nil {
		return nil, false
	}
	return p, true
}

// SetBlock binds the block under application.
func (c *Context) SetBlock(b *protocol.Block) { c.block = b }

// GetBlock returns the bound block, if any.
func (c *Context) GetBlock() (*protocol.Block, bool) {
	if c.block == nil {
		return nil, false
	}
	return c.block, true
}

// ClearBlock unbinds the block.
func (c *Context) ClearBlock() { c.block = nil }

// SetTransaction binds the transaction under application.
func (c *Context) SetTransaction(t *protocol.Transaction) { c.transaction = t }

// GetTransaction returns the bound transaction. It fails with
// unexpected_access when called outside transaction application,
// matching the host's refusal to synthesize a transaction context.
func (c *Context) GetTransaction() (*protocol.Transaction, error) {
	if c.transaction == nil {
		return nil, chainerr.New(chainerr.CodeUnexpectedAccess, "no transaction bound to this context")
	}
	return c.transaction, nil
}

// ClearTransaction unbinds the transaction.
func (c *Context) ClearTransaction() { c.transaction = nil }

// ConsoleAppend appends text to the console buffer.
func (c *Context) ConsoleAppend(text string) { c.console.WriteString(text) }

// DrainConsole returns and clears the accumulated console buffer.
func (c *Context) DrainConsole() string {
	s := c.console.String()
	c.console.Reset()
	return s
}

// AttachSession opens a resource-credit session over this context's
// meter, returning the session and a closer the caller must invoke
// once the scope ends.
func (c *Context) AttachSession(rcLimit uint64) (*Session, func()) {
	s := MakeSession(c.meter, rcLimit)
	c.session = s
	return s, func() {
		s.Close(c.meter)
		c.session = nil
	}
}

// Session returns the currently attached resource session, if any.
func (c *Context) Session() (*Session, bool) {
	if c.session == nil {
		return nil, false
	}
	return c.session, true
}

// SetSkipTransactionSignatureCheck controls whether apply_transaction
// re-verifies the payer's signature. apply_block sets this from its
// own check_trx_sigs argument before dispatching each transaction, so
// a caller that has already verified every transaction's signature
// upstream (e.g. replaying a peer-verified block) can skip redoing it
// here.
func (c *Context) SetSkipTransactionSignatureCheck(skip bool) { c.skipTrxSigCheck = skip }

// SkipTransactionSignatureCheck reports whether apply_transaction
// should skip its payer-signature check.
func (c *Context) SkipTransactionSignatureCheck() bool { return c.skipTrxSigCheck }

// SetBlockReceipt binds the receipt a block-application context
// accumulates into.
func (c *Context) SetBlockReceipt(r *protocol.BlockReceipt) { c.blockReceipt = r }

// SetTransactionReceipt binds the receipt a transaction-application
// context accumulates into.
func (c *Context) SetTransactionReceipt(r *protocol.TransactionReceipt) { c.txReceipt = r }

// SetResult records the contract's return payload, written by the
// set_contract_result thunk.
func (c *Context) SetResult(b []byte) {
	c.result = b
	c.resultSet = true
}

// Result returns the payload set_contract_result recorded, if any.
func (c *Context) Result() ([]byte, bool) { return c.result, c.resultSet }

// SetExitCode records the contract's exit code, written by the
// exit_contract thunk.
func (c *Context) SetExitCode(code int32) {
	c.exitCode = code
	c.exitCodeSet = true
}

// ExitCode returns the code exit_contract recorded, if any.
func (c *Context) ExitCode() (int32, bool) { return c.exitCode, c.exitCodeSet }

// ClearResult resets the recorded result and exit code. VM.Run calls
// this before every entry-point invocation so a nested contract call
// sharing this Context cannot leak its result into the caller's.
func (c *Context) ClearResult() {
	c.result = nil
	c.resultSet = false
	c.exitCode = 0
	c.exitCodeSet = false
}

// TransactionReceipt returns the receipt the most recent
// apply_transaction bound, independent of this context's intent; the
// block-apply loop uses this to aggregate each transaction's outcome
// into the block receipt, where Receipt (keyed by intent) would always
// answer with the block receipt instead.
func (c *Context) TransactionReceipt() (*protocol.TransactionReceipt, bool) {
	if c.txReceipt == nil {
		return nil, false
	}
	return c.txReceipt, true
}

// BlockReceipt returns the receipt the most recent apply_block bound,
// independent of this context's intent.
func (c *Context) BlockReceipt() (*protocol.BlockReceipt, bool) {
	if c.blockReceipt == nil {
		return nil, false
	}
	return c.blockReceipt, true
}

// Receipt returns the receipt matching this context's intent.
func (c *Context) Receipt() (interface{}, error) {
	switch c.intent {
	case IntentBlockApplication:
		if c.blockReceipt == nil {
			return nil, chainerr.New(chainerr.CodeInternalError, "no block receipt bound")
		}
		return c.blockReceipt, nil
	case IntentTransactionApplication:
		if c.txReceipt == nil {
			return nil, chainerr.New(chainerr.CodeInternalError, "no transaction receipt bound")
		}
		return c.txReceipt, nil
	default:
		return nil, chainerr.New(chainerr.CodeUnexpectedAccess, "no receipt for a read-only context")
	}
}
