package bitcoin

import "fmt"

// VerifyScript runs the two-script verification protocol of spec §4.7:
// scriptSig is executed first, its resulting stack is handed to
// scriptPubKey, and — if enforceP2SH is set and scriptPubKey matches the
// P2SH byte template — the redeem script popped from that stack is
// executed as a third pass. It returns nil on acceptance, or the first
// ScriptError encountered; there is no partial acceptance (spec §7).
func VerifyScript(scriptSig, scriptPubKey []byte, verifier SignatureVerifier, sigHash SigHashProvider, enforceP2SH bool) error {
	if len(scriptSig) > MaxScriptSize || len(scriptPubKey) > MaxScriptSize {
		return scriptError(ErrScriptSize, "script exceeds maximum program size")
	}

	sigSigParsed, err := ParseScript(scriptSig)
	if err != nil {
		return err
	}
	pubKeyParsed, err := ParseScript(scriptPubKey)
	if err != nil {
		return err
	}

	sigEngine := NewEngine(sigSigParsed, nil, verifier, sigHash)
	if err := sigEngine.Execute(); err != nil {
		return err
	}

	var p2shStack [][]byte
	if enforceP2SH {
		p2shStack = append([][]byte(nil), sigEngine.Stack()...)
	}

	pubKeyEngine := NewEngine(pubKeyParsed, sigEngine.Stack(), verifier, sigHash)
	if err := pubKeyEngine.Execute(); err != nil {
		return err
	}

	finalStack := pubKeyEngine.Stack()
	if len(finalStack) == 0 {
		return scriptError(ErrEmptyStack, "stack empty after scriptPubKey execution")
	}
	if !castToBool(finalStack[len(finalStack)-1]) {
		return scriptError(ErrNonTrueTop, "top of stack is not true after scriptPubKey execution")
	}

	if !enforceP2SH || !Script(scriptPubKey).IsP2SH() {
		return nil
	}

	for _, c := range sigSigParsed.Chunks {
		if c.Kind == ChunkOpcode && c.Op > OP_16 {
			return scriptError(ErrP2SHNonPush, "scriptSig must be push-only to spend a P2SH output")
		}
	}

	if len(p2shStack) == 0 {
		return scriptError(ErrEmptyStack, "p2sh stack empty before redeem script")
	}
	redeemBytes := p2shStack[len(p2shStack)-1]
	p2shStack = p2shStack[:len(p2shStack)-1]

	redeemParsed, err := ParseScript(redeemBytes)
	if err != nil {
		return err
	}

	redeemEngine := NewEngine(redeemParsed, p2shStack, verifier, sigHash)
	if err := redeemEngine.Execute(); err != nil {
		return err
	}

	redeemStack := redeemEngine.Stack()
	if len(redeemStack) == 0 {
		return scriptError(ErrEmptyStack, "p2sh redeem script left an empty stack")
	}
	if !castToBool(redeemStack[len(redeemStack)-1]) {
		return scriptError(ErrNonTrueTop, "p2sh redeem script top is not true")
	}
	return nil
}

// PrevOutputFetcher resolves the output being spent by a transaction
// input, the "previous output" collaborator needed to locate a
// scriptPubKey from inside a transaction-level verification call. A
// *UTXOSet satisfies this trivially (see utxo.go).
type PrevOutputFetcher interface {
	FetchPrevOutput(outpoint OutPoint) (TxOutput, bool)
}

// VerifyTransactionInput verifies input index of tx against whatever
// output fetcher resolves, wiring the real secp256k1 verifier and legacy
// sighash driver into VerifyScript. A deep copy of tx backs the sighash
// provider so that signature hashing — which rewrites the transaction
// per the active sighash type — never lets the caller observe tx
// changing (spec §4.7 step 1).
func VerifyTransactionInput(tx *Transaction, index int, fetcher PrevOutputFetcher, enforceP2SH bool) error {
	if index < 0 || index >= len(tx.Inputs) {
		return fmt.Errorf("verify: input index %d out of range for %d inputs", index, len(tx.Inputs))
	}
	prevOut, ok := fetcher.FetchPrevOutput(tx.Inputs[index].PreviousOutput)
	if !ok {
		return fmt.Errorf("verify: previous output %s not found", tx.Inputs[index].PreviousOutput)
	}

	txCopy := copyTransactionForSigHash(tx)
	provider := LegacySigHashProvider{Tx: txCopy, Index: index}

	return VerifyScript(tx.Inputs[index].ScriptSig, prevOut.ScriptPubKey, Secp256k1Verifier{}, provider, enforceP2SH)
}
