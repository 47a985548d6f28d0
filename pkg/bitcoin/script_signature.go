package bitcoin

// removeAllInstancesOf walks script one opcode step at a time — exactly
// as the parser does — and removes every step whose raw wire bytes
// exactly match pattern (spec §4.6, §9). Stepping by opcode means a
// push payload that happens to contain bytes coinciding with pattern is
// never torn mid-payload; only a whole matching step is ever dropped.
//
// A truncated trailing opcode (should never happen here, since script is
// always a suffix of an already-successfully-parsed program) is copied
// through verbatim rather than panicking.
func removeAllInstancesOf(script, pattern []byte) []byte {
	out := make([]byte, 0, len(script))
	i := 0
	for i < len(script) {
		start := i
		op := ScriptOpcode(script[i])
		i++

		length := 0
		truncated := false
		switch {
		case op < ScriptOpcode(OP_PUSHDATA1):
			length = int(op)
		case op == OP_PUSHDATA1:
			if i+1 > len(script) {
				truncated = true
			} else {
				length = int(script[i])
				i++
			}
		case op == OP_PUSHDATA2:
			if i+2 > len(script) {
				truncated = true
			} else {
				length = int(script[i]) | int(script[i+1])<<8
				i += 2
			}
		case op == OP_PUSHDATA4:
			if i+4 > len(script) {
				truncated = true
			} else {
				length = int(script[i]) | int(script[i+1])<<8 | int(script[i+2])<<16 | int(script[i+3])<<24
				i += 4
			}
		}
		if truncated || i+length > len(script) {
			out = append(out, script[start:]...)
			break
		}
		i += length

		step := script[start:i]
		if !equalsRange(step, pattern) {
			out = append(out, step...)
		}
	}
	return out
}

// connectedScript returns the slice of the original program from the
// last OP_CODESEPARATOR onward (spec §4.6 step 2, "Connected script" in
// the glossary).
func (e *Engine) connectedScript() []byte {
	if e.lastCodeSeparator >= len(e.script.Raw) {
		return nil
	}
	return e.script.Raw[e.lastCodeSeparator:]
}

// opCheckSig implements OP_CHECKSIG / OP_CHECKSIGVERIFY (spec §4.6).
func (e *Engine) opCheckSig(verify bool) error {
	if err := e.require(2); err != nil {
		return err
	}
	pubKey, _ := e.pop()
	sig, _ := e.pop()

	valid := e.checkSig(sig, pubKey, e.connectedScript())

	if verify {
		if !valid {
			return scriptError(ErrVerify, "OP_CHECKSIGVERIFY failed")
		}
		return nil
	}
	e.pushBool(valid)
	return nil
}

// checkSig verifies one (signature, pubkey) pair against connectedScript
// with the signature's own push encoding stripped out of it first. Any
// decode or hashing failure degrades to false locally, per spec §4.6 and
// §7 — it is never propagated as a script-terminating error.
func (e *Engine) checkSig(sig, pubKey, connectedScript []byte) bool {
	if len(sig) < 1 {
		return false
	}
	hashType := sig[len(sig)-1]
	rawSig := sig[:len(sig)-1]

	cleaned := removeAllInstancesOf(connectedScript, serializeDataPush(sig))

	hash, err := e.sigHash.SignatureHash(cleaned, hashType)
	if err != nil {
		return false
	}
	return e.verifier.VerifySignature(hash, rawSig, pubKey)
}

// opCheckMultisig implements OP_CHECKMULTISIG / OP_CHECKMULTISIGVERIFY
// (spec §4.6), including the historic extra pop at step 5. That pop is
// load-bearing for consensus compatibility and must never be skipped,
// even though it discards a value nothing else uses.
func (e *Engine) opCheckMultisig(verify bool) error {
	pubKeyCountNum, err := e.popNum()
	if err != nil {
		return err
	}
	pubKeyCount := int(pubKeyCountNum)
	if pubKeyCount < 0 || pubKeyCount > MaxPubKeysPerMultisig {
		return scriptError(ErrNumericRange, "OP_CHECKMULTISIG: pubkey count out of range")
	}

	e.opCount += pubKeyCount
	if e.opCount > MaxOpsPerScript {
		return scriptError(ErrOpCount, "opcode count exceeds maximum after multisig expansion")
	}

	if err := e.require(pubKeyCount); err != nil {
		return err
	}
	pubKeys := make([][]byte, pubKeyCount)
	for i := 0; i < pubKeyCount; i++ {
		pubKeys[i], _ = e.pop()
	}

	sigCountNum, err := e.popNum()
	if err != nil {
		return err
	}
	sigCount := int(sigCountNum)
	if sigCount < 0 || sigCount > pubKeyCount {
		return scriptError(ErrNumericRange, "OP_CHECKMULTISIG: signature count out of range")
	}

	if err := e.require(sigCount); err != nil {
		return err
	}
	sigs := make([][]byte, sigCount)
	for i := 0; i < sigCount; i++ {
		sigs[i], _ = e.pop()
	}

	// The reference implementation pops one extra stack item here due to
	// an off-by-one bug that consensus now depends on; it is discarded.
	if _, err := e.pop(); err != nil {
		return err
	}

	connected := e.connectedScript()
	for _, sig := range sigs {
		connected = removeAllInstancesOf(connected, serializeDataPush(sig))
	}

	valid := true
	sigIdx, keyIdx := 0, 0
	for sigIdx < len(sigs) {
		if len(sigs)-sigIdx > len(pubKeys)-keyIdx {
			valid = false
			break
		}
		sig := sigs[sigIdx]
		matched := false
		if len(sig) >= 1 {
			hashType := sig[len(sig)-1]
			rawSig := sig[:len(sig)-1]
			if hash, err := e.sigHash.SignatureHash(connected, hashType); err == nil {
				matched = e.verifier.VerifySignature(hash, rawSig, pubKeys[keyIdx])
			}
		}
		if matched {
			sigIdx++
		}
		keyIdx++
	}

	if verify {
		if !valid {
			return scriptError(ErrVerify, "OP_CHECKMULTISIGVERIFY failed")
		}
		return nil
	}
	e.pushBool(valid)
	return nil
}
