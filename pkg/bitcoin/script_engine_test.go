package bitcoin

import (
	"bytes"
	"testing"
)

// alwaysValidVerifier accepts every signature; used where a test needs a
// CHECKSIG/CHECKMULTISIG to succeed without real key material.
type alwaysValidVerifier struct{}

func (alwaysValidVerifier) VerifySignature(hash [32]byte, derSig, pubKey []byte) bool { return true }

// alwaysInvalidVerifier rejects every signature.
type alwaysInvalidVerifier struct{}

func (alwaysInvalidVerifier) VerifySignature(hash [32]byte, derSig, pubKey []byte) bool { return false }

// stubSigHash returns a fixed hash for any input, enough to exercise
// CHECKSIG/CHECKMULTISIG wiring without a real transaction.
type stubSigHash struct{}

func (stubSigHash) SignatureHash(connectedScript []byte, hashType byte) ([32]byte, error) {
	return [32]byte{0x01}, nil
}

func runScript(t *testing.T, raw []byte, initialStack [][]byte, verifier SignatureVerifier, sigHash SigHashProvider) (*Engine, error) {
	t.Helper()
	parsed, err := ParseScript(raw)
	if err != nil {
		t.Fatalf("failed to parse script: %v", err)
	}
	e := NewEngine(parsed, initialStack, verifier, sigHash)
	return e, e.Execute()
}

// TestEngine_SimpleArithmetic tests a minimal OP_ADD/OP_EQUAL script.
func TestEngine_SimpleArithmetic(t *testing.T) {
	raw := NewScriptBuilder().
		AddInt64(2).
		AddInt64(3).
		AddOp(OP_ADD).
		AddInt64(5).
		AddOp(OP_EQUAL).
		Script()

	e, err := runScript(t, raw, nil, alwaysValidVerifier{}, stubSigHash{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stack := e.Stack()
	if len(stack) != 1 || !castToBool(stack[0]) {
		t.Errorf("expected true top of stack, got %+v", stack)
	}
}

// TestEngine_Conditional tests OP_IF/OP_ELSE/OP_ENDIF branch selection.
func TestEngine_Conditional(t *testing.T) {
	tests := []struct {
		name      string
		condition int64
		wantTop   int64
	}{
		{name: "true branch", condition: 1, wantTop: 111},
		{name: "false branch", condition: 0, wantTop: 222},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := NewScriptBuilder().
				AddInt64(tt.condition).
				AddOp(OP_IF).
				AddInt64(111).
				AddOp(OP_ELSE).
				AddInt64(222).
				AddOp(OP_ENDIF).
				Script()

			e, err := runScript(t, raw, nil, alwaysValidVerifier{}, stubSigHash{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			stack := e.Stack()
			if len(stack) != 1 {
				t.Fatalf("expected 1 stack item, got %d", len(stack))
			}
			got := decodeScriptNum(stack[0])
			if got != tt.wantTop {
				t.Errorf("got %d, want %d", got, tt.wantTop)
			}
		})
	}
}

// TestEngine_UnbalancedConditional tests that an unclosed OP_IF fails at
// end of script, and a stray OP_ELSE/OP_ENDIF fails immediately.
func TestEngine_UnbalancedConditional(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{name: "unclosed IF", raw: []byte{byte(OP_1), byte(OP_IF)}},
		{name: "stray ELSE", raw: []byte{byte(OP_ELSE)}},
		{name: "stray ENDIF", raw: []byte{byte(OP_ENDIF)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runScript(t, tt.raw, nil, alwaysValidVerifier{}, stubSigHash{})
			if !IsScriptErrorCode(err, ErrUnbalancedConditional) {
				t.Errorf("expected ErrUnbalancedConditional, got %v", err)
			}
		})
	}
}

// TestEngine_DisabledOpcodeInUntakenBranch tests that a disabled opcode
// is rejected even when it sits inside a conditional branch that will
// never execute (spec §4.5's unconditional disabled-opcode rule).
func TestEngine_DisabledOpcodeInUntakenBranch(t *testing.T) {
	raw := []byte{
		byte(OP_0), byte(OP_IF),
		byte(OP_CAT), // disabled, inside the not-taken branch
		byte(OP_ENDIF),
	}
	_, err := runScript(t, raw, nil, alwaysValidVerifier{}, stubSigHash{})
	if !IsScriptErrorCode(err, ErrDisabledOp) {
		t.Errorf("expected ErrDisabledOp even in untaken branch, got %v", err)
	}
}

// TestEngine_StackUnderflow tests that popping from an empty stack fails cleanly.
func TestEngine_StackUnderflow(t *testing.T) {
	raw := []byte{byte(OP_ADD)}
	_, err := runScript(t, raw, nil, alwaysValidVerifier{}, stubSigHash{})
	if !IsScriptErrorCode(err, ErrStackUnderflow) {
		t.Errorf("expected ErrStackUnderflow, got %v", err)
	}
}

// TestEngine_OpCountLimit tests that exceeding MaxOpsPerScript fails.
func TestEngine_OpCountLimit(t *testing.T) {
	b := NewScriptBuilder()
	for i := 0; i < MaxOpsPerScript+1; i++ {
		b.AddOp(OP_NOP)
	}
	_, err := runScript(t, b.Script(), nil, alwaysValidVerifier{}, stubSigHash{})
	if !IsScriptErrorCode(err, ErrOpCount) {
		t.Errorf("expected ErrOpCount, got %v", err)
	}
}

// TestEngine_OpCountLimit_SmallIntsExempt tests that OP_0..OP_16 never
// count towards the opcode budget, so a script made entirely of them
// never trips the op-count limit no matter how long it is.
func TestEngine_OpCountLimit_SmallIntsExempt(t *testing.T) {
	b2 := NewScriptBuilder()
	for i := 0; i < MaxOpsPerScript+500; i++ {
		b2.AddOp(OP_1)
	}
	e, err := runScript(t, b2.Script(), nil, alwaysValidVerifier{}, stubSigHash{})
	if err != nil {
		t.Fatalf("unexpected error for small-int-only script: %v", err)
	}
	if len(e.Stack()) != MaxOpsPerScript+500 {
		t.Errorf("expected %d stack items, got %d", MaxOpsPerScript+500, len(e.Stack()))
	}
}

// TestEngine_StackSizeLimit tests that the combined main+alt stack cap is enforced.
func TestEngine_StackSizeLimit(t *testing.T) {
	b := NewScriptBuilder()
	for i := 0; i < MaxStackSize+1; i++ {
		b.AddInt64(1)
	}
	_, err := runScript(t, b.Script(), nil, alwaysValidVerifier{}, stubSigHash{})
	if !IsScriptErrorCode(err, ErrStackSize) {
		t.Errorf("expected ErrStackSize, got %v", err)
	}
}

// TestEngine_PushElementTooLarge tests the 520-byte single-element cap.
func TestEngine_PushElementTooLarge(t *testing.T) {
	raw := serializeDataPush(bytes.Repeat([]byte{0x01}, MaxElementSize+1))
	_, err := runScript(t, raw, nil, alwaysValidVerifier{}, stubSigHash{})
	if !IsScriptErrorCode(err, ErrScriptSize) {
		t.Errorf("expected ErrScriptSize, got %v", err)
	}
}

// TestEngine_OpReturn tests that OP_RETURN always fails the script.
func TestEngine_OpReturn(t *testing.T) {
	raw := []byte{byte(OP_RETURN)}
	_, err := runScript(t, raw, nil, alwaysValidVerifier{}, stubSigHash{})
	if !IsScriptErrorCode(err, ErrOpReturn) {
		t.Errorf("expected ErrOpReturn, got %v", err)
	}
}

// TestEngine_StackShuffleOps tests a representative sample of the
// 2DROP/2DUP/TUCK/ROT family against hand-computed expected stacks.
func TestEngine_StackShuffleOps(t *testing.T) {
	tests := []struct {
		name  string
		raw   []byte
		want  [][]byte
	}{
		{
			name: "OP_2DUP",
			raw: NewScriptBuilder().AddInt64(1).AddInt64(2).AddOp(OP_2DUP).Script(),
			want: [][]byte{encodeScriptNum(1), encodeScriptNum(2), encodeScriptNum(1), encodeScriptNum(2)},
		},
		{
			name: "OP_SWAP",
			raw: NewScriptBuilder().AddInt64(1).AddInt64(2).AddOp(OP_SWAP).Script(),
			want: [][]byte{encodeScriptNum(2), encodeScriptNum(1)},
		},
		{
			name: "OP_ROT",
			raw: NewScriptBuilder().AddInt64(1).AddInt64(2).AddInt64(3).AddOp(OP_ROT).Script(),
			want: [][]byte{encodeScriptNum(2), encodeScriptNum(3), encodeScriptNum(1)},
		},
		{
			name: "OP_TUCK",
			raw: NewScriptBuilder().AddInt64(1).AddInt64(2).AddOp(OP_TUCK).Script(),
			want: [][]byte{encodeScriptNum(2), encodeScriptNum(1), encodeScriptNum(2)},
		},
		{
			name: "OP_NIP",
			raw: NewScriptBuilder().AddInt64(1).AddInt64(2).AddOp(OP_NIP).Script(),
			want: [][]byte{encodeScriptNum(2)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := runScript(t, tt.raw, nil, alwaysValidVerifier{}, stubSigHash{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			stack := e.Stack()
			if len(stack) != len(tt.want) {
				t.Fatalf("stack depth = %d, want %d (%+v)", len(stack), len(tt.want), stack)
			}
			for i := range stack {
				if !bytes.Equal(stack[i], tt.want[i]) {
					t.Errorf("stack[%d] = %x, want %x", i, stack[i], tt.want[i])
				}
			}
		})
	}
}

// TestEngine_HashOps tests that the hash opcodes call through to the
// expected primitive.
func TestEngine_HashOps(t *testing.T) {
	raw := NewScriptBuilder().AddData([]byte("abc")).AddOp(OP_SHA256).Script()
	e, err := runScript(t, raw, nil, alwaysValidVerifier{}, stubSigHash{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stack := e.Stack()
	want := sha256Hash([]byte("abc"))
	if len(stack) != 1 || !bytes.Equal(stack[0], want) {
		t.Errorf("OP_SHA256 result mismatch: got %x, want %x", stack[0], want)
	}
}
