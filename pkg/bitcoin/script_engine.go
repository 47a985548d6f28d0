package bitcoin

import "fmt"

// SignatureVerifier verifies a DER-encoded ECDSA signature (sighash byte
// already stripped) against a message hash and a public key. It is the
// "signature verifier" external collaborator of spec §2: it must never
// throw across this boundary, so implementations should recover from any
// panic themselves and report false instead.
type SignatureVerifier interface {
	VerifySignature(hash [32]byte, derSig []byte, pubKey []byte) bool
}

// SigHashProvider computes the signature hash for a connected script and
// sighash type byte, for whatever (transaction, input index) pair it was
// bound to at construction time — the "signature-hash provider" external
// collaborator of spec §2.
type SigHashProvider interface {
	SignatureHash(connectedScript []byte, hashType byte) ([32]byte, error)
}

// Engine is a single script execution: a main stack, an alt stack, an
// if-stack, and the counters spec §3 requires. It is built fresh for
// every script and discarded at the end of the call — there is no
// persistent engine state across scripts (spec §5).
type Engine struct {
	script   ParsedScript
	stack    [][]byte
	altStack [][]byte
	ifStack  []bool

	opCount           int
	lastCodeSeparator int

	verifier SignatureVerifier
	sigHash  SigHashProvider
}

// NewEngine builds an execution engine for script, continuing from the
// given initial stack (spec §4.7 runs the scriptSig and scriptPubKey
// engines over the same stack in sequence).
func NewEngine(script ParsedScript, initialStack [][]byte, verifier SignatureVerifier, sigHash SigHashProvider) *Engine {
	return &Engine{
		script:   script,
		stack:    initialStack,
		verifier: verifier,
		sigHash:  sigHash,
	}
}

// Stack returns the engine's current main stack. Callers that need to
// snapshot it (e.g. for P2SH recursion, spec §4.7 step 4) should copy the
// returned slice themselves before further execution mutates it.
func (e *Engine) Stack() [][]byte {
	return e.stack
}

// Execute runs every chunk of the bound script in order (spec §4.5). It
// returns nil if execution completed without error; the caller is still
// responsible for interpreting the resulting stack (spec §4.7 steps 6-7
// are not part of Execute itself, since a scriptSig-only run never
// checks the top of stack).
func (e *Engine) Execute() error {
	for _, c := range e.script.Chunks {
		if err := e.step(c); err != nil {
			return err
		}
		if len(e.stack)+len(e.altStack) > MaxStackSize {
			return scriptError(ErrStackSize, "combined stack exceeds maximum size")
		}
	}
	if len(e.ifStack) != 0 {
		return scriptError(ErrUnbalancedConditional, "conditional not closed before end of script")
	}
	return nil
}

// shouldExecute reports whether the if-stack gates execution of ordinary
// opcodes: true iff no element of the if-stack is false (spec §3).
func (e *Engine) shouldExecute() bool {
	for _, b := range e.ifStack {
		if !b {
			return false
		}
	}
	return true
}

func (e *Engine) step(c Chunk) error {
	if c.Kind == ChunkData {
		if len(c.Data) > MaxElementSize {
			return scriptError(ErrScriptSize, fmt.Sprintf("push of %d bytes exceeds %d-byte limit", len(c.Data), MaxElementSize))
		}
		if e.shouldExecute() {
			e.push(c.Data)
		}
		return nil
	}

	op := c.Op

	if op > OP_16 {
		e.opCount++
		if e.opCount > MaxOpsPerScript {
			return scriptError(ErrOpCount, "opcode count exceeds maximum")
		}
	}

	if op == OP_VERIF || op == OP_VERNOTIF {
		return scriptError(ErrReservedOp, "OP_VERIF/OP_VERNOTIF encountered")
	}
	if isDisabled(op) {
		return scriptError(ErrDisabledOp, fmt.Sprintf("opcode 0x%02x is disabled", byte(op)))
	}

	switch op {
	case OP_IF, OP_NOTIF:
		branch := false
		if e.shouldExecute() {
			top, err := e.pop()
			if err != nil {
				return err
			}
			branch = castToBool(top)
			if op == OP_NOTIF {
				branch = !branch
			}
		}
		e.ifStack = append(e.ifStack, branch)
		return nil
	case OP_ELSE:
		if len(e.ifStack) == 0 {
			return scriptError(ErrUnbalancedConditional, "OP_ELSE without matching OP_IF")
		}
		e.ifStack[len(e.ifStack)-1] = !e.ifStack[len(e.ifStack)-1]
		return nil
	case OP_ENDIF:
		if len(e.ifStack) == 0 {
			return scriptError(ErrUnbalancedConditional, "OP_ENDIF without matching OP_IF")
		}
		e.ifStack = e.ifStack[:len(e.ifStack)-1]
		return nil
	}

	if !e.shouldExecute() {
		return nil
	}

	return e.executeOp(op, c)
}

func (e *Engine) executeOp(op ScriptOpcode, c Chunk) error {
	switch {
	case op == OP_1NEGATE:
		e.push(encodeScriptNum(-1))
		return nil
	case isSmallInt(op) && op != OP_0:
		e.push(encodeScriptNum(int64(smallIntValue(op))))
		return nil
	}

	switch op {
	case OP_NOP, OP_NOP1, OP_NOP4, OP_NOP5, OP_NOP6, OP_NOP7, OP_NOP8, OP_NOP9, OP_NOP10,
		OP_CHECKLOCKTIMEVERIFY, OP_CHECKSEQUENCEVERIFY:
		return nil

	case OP_VERIFY:
		top, err := e.pop()
		if err != nil {
			return err
		}
		if !castToBool(top) {
			return scriptError(ErrVerify, "OP_VERIFY failed")
		}
		return nil

	case OP_RETURN:
		return scriptError(ErrOpReturn, "OP_RETURN encountered")

	case OP_TOALTSTACK:
		top, err := e.pop()
		if err != nil {
			return err
		}
		e.altStack = append(e.altStack, top)
		return nil

	case OP_FROMALTSTACK:
		if len(e.altStack) < 1 {
			return scriptError(ErrStackUnderflow, "OP_FROMALTSTACK: alt stack empty")
		}
		top := e.altStack[len(e.altStack)-1]
		e.altStack = e.altStack[:len(e.altStack)-1]
		e.push(top)
		return nil

	case OP_2DROP:
		if err := e.require(2); err != nil {
			return err
		}
		e.stack = e.stack[:len(e.stack)-2]
		return nil

	case OP_2DUP:
		if err := e.require(2); err != nil {
			return err
		}
		n := len(e.stack)
		e.push(e.stack[n-2])
		e.push(e.stack[n-1])
		return nil

	case OP_3DUP:
		if err := e.require(3); err != nil {
			return err
		}
		n := len(e.stack)
		e.push(e.stack[n-3])
		e.push(e.stack[n-2])
		e.push(e.stack[n-1])
		return nil

	case OP_2OVER:
		if err := e.require(4); err != nil {
			return err
		}
		n := len(e.stack)
		e.push(e.stack[n-4])
		e.push(e.stack[n-3])
		return nil

	case OP_2ROT:
		if err := e.require(6); err != nil {
			return err
		}
		n := len(e.stack)
		x1, x2 := e.stack[n-6], e.stack[n-5]
		copy(e.stack[n-6:], e.stack[n-4:])
		e.stack[n-2], e.stack[n-1] = x1, x2
		return nil

	case OP_2SWAP:
		if err := e.require(4); err != nil {
			return err
		}
		n := len(e.stack)
		e.stack[n-4], e.stack[n-2] = e.stack[n-2], e.stack[n-4]
		e.stack[n-3], e.stack[n-1] = e.stack[n-1], e.stack[n-3]
		return nil

	case OP_IFDUP:
		if err := e.require(1); err != nil {
			return err
		}
		top := e.stack[len(e.stack)-1]
		if castToBool(top) {
			e.push(top)
		}
		return nil

	case OP_DEPTH:
		e.push(encodeScriptNum(int64(len(e.stack))))
		return nil

	case OP_DROP:
		if err := e.require(1); err != nil {
			return err
		}
		e.stack = e.stack[:len(e.stack)-1]
		return nil

	case OP_DUP:
		if err := e.require(1); err != nil {
			return err
		}
		e.push(e.stack[len(e.stack)-1])
		return nil

	case OP_NIP:
		if err := e.require(2); err != nil {
			return err
		}
		n := len(e.stack)
		e.stack = append(e.stack[:n-2], e.stack[n-1])
		return nil

	case OP_OVER:
		if err := e.require(2); err != nil {
			return err
		}
		e.push(e.stack[len(e.stack)-2])
		return nil

	case OP_PICK, OP_ROLL:
		if err := e.require(1); err != nil {
			return err
		}
		nBytes, err := e.popNum()
		if err != nil {
			return err
		}
		idx := len(e.stack) - 1 - int(nBytes)
		if nBytes < 0 || idx < 0 {
			return scriptError(ErrStackUnderflow, "OP_PICK/OP_ROLL: index out of range")
		}
		item := e.stack[idx]
		if op == OP_ROLL {
			copy(e.stack[idx:], e.stack[idx+1:])
			e.stack = e.stack[:len(e.stack)-1]
		}
		e.push(item)
		return nil

	case OP_ROT:
		if err := e.require(3); err != nil {
			return err
		}
		n := len(e.stack)
		x1 := e.stack[n-3]
		copy(e.stack[n-3:], e.stack[n-2:])
		e.stack[n-1] = x1
		return nil

	case OP_SWAP:
		if err := e.require(2); err != nil {
			return err
		}
		n := len(e.stack)
		e.stack[n-1], e.stack[n-2] = e.stack[n-2], e.stack[n-1]
		return nil

	case OP_TUCK:
		if err := e.require(2); err != nil {
			return err
		}
		n := len(e.stack)
		top := e.stack[n-1]
		e.stack = append(e.stack, nil)
		copy(e.stack[n-1:], e.stack[n-2:])
		e.stack[n-2] = top
		return nil

	case OP_SIZE:
		if err := e.require(1); err != nil {
			return err
		}
		e.push(encodeScriptNum(int64(len(e.stack[len(e.stack)-1]))))
		return nil

	case OP_EQUAL:
		if err := e.require(2); err != nil {
			return err
		}
		b, _ := e.pop()
		a, _ := e.pop()
		e.pushBool(equalsRange(a, b))
		return nil

	case OP_EQUALVERIFY:
		if err := e.executeOp(OP_EQUAL, c); err != nil {
			return err
		}
		top, _ := e.pop()
		if !castToBool(top) {
			return scriptError(ErrVerify, "OP_EQUALVERIFY failed")
		}
		return nil

	case OP_1ADD, OP_1SUB, OP_NEGATE, OP_ABS, OP_NOT, OP_0NOTEQUAL:
		n, err := e.popNum()
		if err != nil {
			return err
		}
		var result int64
		switch op {
		case OP_1ADD:
			result = n + 1
		case OP_1SUB:
			result = n - 1
		case OP_NEGATE:
			result = -n
		case OP_ABS:
			if n < 0 {
				result = -n
			} else {
				result = n
			}
		case OP_NOT:
			if n == 0 {
				result = 1
			}
		case OP_0NOTEQUAL:
			if n != 0 {
				result = 1
			}
		}
		e.push(encodeScriptNum(result))
		return nil

	case OP_ADD, OP_SUB, OP_BOOLAND, OP_BOOLOR, OP_NUMEQUAL, OP_NUMEQUALVERIFY,
		OP_NUMNOTEQUAL, OP_LESSTHAN, OP_GREATERTHAN, OP_LESSTHANOREQUAL,
		OP_GREATERTHANOREQUAL, OP_MIN, OP_MAX:
		b, err := e.popNum()
		if err != nil {
			return err
		}
		a, err := e.popNum()
		if err != nil {
			return err
		}
		switch op {
		case OP_ADD:
			e.push(encodeScriptNum(a + b))
		case OP_SUB:
			e.push(encodeScriptNum(a - b))
		case OP_BOOLAND:
			e.pushBool(a != 0 && b != 0)
		case OP_BOOLOR:
			e.pushBool(a != 0 || b != 0)
		case OP_NUMEQUAL:
			e.pushBool(a == b)
		case OP_NUMEQUALVERIFY:
			if a != b {
				return scriptError(ErrVerify, "OP_NUMEQUALVERIFY failed")
			}
		case OP_NUMNOTEQUAL:
			e.pushBool(a != b)
		case OP_LESSTHAN:
			e.pushBool(a < b)
		case OP_GREATERTHAN:
			e.pushBool(a > b)
		case OP_LESSTHANOREQUAL:
			e.pushBool(a <= b)
		case OP_GREATERTHANOREQUAL:
			e.pushBool(a >= b)
		case OP_MIN:
			if a < b {
				e.push(encodeScriptNum(a))
			} else {
				e.push(encodeScriptNum(b))
			}
		case OP_MAX:
			if a > b {
				e.push(encodeScriptNum(a))
			} else {
				e.push(encodeScriptNum(b))
			}
		}
		return nil

	case OP_WITHIN:
		hi, err := e.popNum()
		if err != nil {
			return err
		}
		lo, err := e.popNum()
		if err != nil {
			return err
		}
		x, err := e.popNum()
		if err != nil {
			return err
		}
		e.pushBool(lo <= x && x < hi)
		return nil

	case OP_RIPEMD160:
		return e.hashTop(ripemd160Hash)
	case OP_SHA1:
		return e.hashTop(sha1Hash)
	case OP_SHA256:
		return e.hashTop(sha256Hash)
	case OP_HASH160:
		return e.hashTop(func(b []byte) []byte { h := HashPubKey(b); return h[:] })
	case OP_HASH256:
		return e.hashTop(func(b []byte) []byte { h := DoubleHashSHA256(b); return h[:] })

	case OP_CODESEPARATOR:
		e.lastCodeSeparator = c.Offset + 1
		return nil

	case OP_CHECKSIG:
		return e.opCheckSig(false)
	case OP_CHECKSIGVERIFY:
		return e.opCheckSig(true)
	case OP_CHECKMULTISIG:
		return e.opCheckMultisig(false)
	case OP_CHECKMULTISIGVERIFY:
		return e.opCheckMultisig(true)

	default:
		return scriptError(ErrReservedOp, fmt.Sprintf("opcode 0x%02x has no defined semantics", byte(op)))
	}
}

func (e *Engine) hashTop(f func([]byte) []byte) error {
	if err := e.require(1); err != nil {
		return err
	}
	top, _ := e.pop()
	e.push(f(top))
	return nil
}

func (e *Engine) push(b []byte) {
	e.stack = append(e.stack, b)
}

func (e *Engine) pushBool(b bool) {
	if b {
		e.push([]byte{1})
	} else {
		e.push(nil)
	}
}

func (e *Engine) pop() ([]byte, error) {
	if len(e.stack) == 0 {
		return nil, scriptError(ErrStackUnderflow, "pop from empty stack")
	}
	top := e.stack[len(e.stack)-1]
	e.stack = e.stack[:len(e.stack)-1]
	return top, nil
}

func (e *Engine) popNum() (int64, error) {
	top, err := e.pop()
	if err != nil {
		return 0, err
	}
	return castToBigInteger(top)
}

func (e *Engine) require(n int) error {
	if len(e.stack) < n {
		return scriptError(ErrStackUnderflow, fmt.Sprintf("requires %d stack items, have %d", n, len(e.stack)))
	}
	return nil
}
