package bitcoin

// Script is the wire-exact byte encoding of a scriptSig or scriptPubKey.
// Template recognizers and extractors operate on the parsed chunk form;
// P2SH recognition additionally has an exact byte-template fast path
// (spec §4.4) since it governs P2SH activation in §4.7 independent of
// whether the bytes happen to also parse as something else.
type Script []byte

// IsP2SH reports whether s matches the exact 23-byte P2SH byte template:
// OP_HASH160 <0x14> <20 bytes> OP_EQUAL. This is the byte-level form that
// governs P2SH activation (spec §4.4, §4.7), independent of parsing.
func (s Script) IsP2SH() bool {
	return len(s) == 23 &&
		s[0] == byte(OP_HASH160) &&
		s[1] == 0x14 &&
		s[22] == byte(OP_EQUAL)
}

// IsP2PKH reports whether the parsed chunks match
// OP_DUP OP_HASH160 <20-byte data> OP_EQUALVERIFY OP_CHECKSIG.
func IsP2PKH(chunks []Chunk) bool {
	if len(chunks) != 5 {
		return false
	}
	return isOp(chunks[0], OP_DUP) &&
		isOp(chunks[1], OP_HASH160) &&
		isDataOfLen(chunks[2], 20) &&
		isOp(chunks[3], OP_EQUALVERIFY) &&
		isOp(chunks[4], OP_CHECKSIG)
}

// IsP2PK reports whether the parsed chunks match [pubkey data >= 2 bytes] OP_CHECKSIG.
func IsP2PK(chunks []Chunk) bool {
	if len(chunks) != 2 {
		return false
	}
	return chunks[0].Kind == ChunkData && len(chunks[0].Data) >= 2 && isOp(chunks[1], OP_CHECKSIG)
}

// IsP2SHChunks reports whether the parsed chunks match
// OP_HASH160 <20-byte data> OP_EQUAL. Kept distinct from the byte-exact
// Script.IsP2SH because a script can parse to this chunk shape without
// matching the 23-byte template (e.g. a non-minimal push of the hash),
// and spec §4.7 requires the byte-exact form for P2SH activation.
func IsP2SHChunks(chunks []Chunk) bool {
	if len(chunks) != 3 {
		return false
	}
	return isOp(chunks[0], OP_HASH160) && isDataOfLen(chunks[1], 20) && isOp(chunks[2], OP_EQUAL)
}

// IsMultisig reports whether the parsed chunks match
// OP_M <pubkey>{N} OP_N OP_CHECKMULTISIG[VERIFY], the standard bare
// multisig template: OP_M is the required signature count, OP_N
// (immediately before OP_CHECKMULTISIG) is the total pubkey count, and
// N must match the number of pubkey pushes actually present, with
// 1 <= M <= N.
func IsMultisig(chunks []Chunk) bool {
	if len(chunks) < 4 {
		return false
	}
	last := chunks[len(chunks)-1]
	if !isOp(last, OP_CHECKMULTISIG) && !isOp(last, OP_CHECKMULTISIGVERIFY) {
		return false
	}
	nChunk := chunks[len(chunks)-2]
	if nChunk.Kind != ChunkOpcode || !isSmallInt(nChunk.Op) {
		return false
	}
	n := smallIntValue(nChunk.Op)
	if n < 1 {
		return false
	}

	mChunk := chunks[0]
	if mChunk.Kind != ChunkOpcode || !isSmallInt(mChunk.Op) {
		return false
	}
	m := smallIntValue(mChunk.Op)
	if m < 1 || m > n {
		return false
	}

	pubkeyChunks := chunks[1 : len(chunks)-2]
	if len(pubkeyChunks) != n {
		return false
	}
	for _, c := range pubkeyChunks {
		if c.Kind != ChunkData {
			return false
		}
	}
	return true
}

// ExtractPubKeyHash returns the 20-byte hash committed to by a P2PKH
// script, if it matches.
func ExtractPubKeyHash(chunks []Chunk) ([]byte, bool) {
	if !IsP2PKH(chunks) {
		return nil, false
	}
	return chunks[2].Data, true
}

// ExtractPubKey returns the pubkey bytes committed to by a P2PK script,
// if it matches.
func ExtractPubKey(chunks []Chunk) ([]byte, bool) {
	if !IsP2PK(chunks) {
		return nil, false
	}
	return chunks[0].Data, true
}

// ExtractScriptHash returns the 20-byte hash committed to by a P2SH
// script, if it matches the byte-exact template.
func ExtractScriptHash(s Script) ([]byte, bool) {
	if !s.IsP2SH() {
		return nil, false
	}
	return s[2:22], true
}

func isOp(c Chunk, op ScriptOpcode) bool {
	return c.Kind == ChunkOpcode && c.Op == op
}

func isDataOfLen(c Chunk, n int) bool {
	return c.Kind == ChunkData && len(c.Data) == n
}

// SigOpCount returns the number of signature operations a scriptPubKey
// (or any script) contributes towards a block's sig-op budget (spec §6).
// OP_CHECKSIG[VERIFY] always counts as 1. OP_CHECKMULTISIG[VERIFY] counts
// as the value of the immediately preceding OP_N when accurate is true
// and that opcode is a small int (OP_1..OP_16); otherwise it counts as
// MaxPubKeysPerMultisig (the conservative worst case).
func SigOpCount(chunks []Chunk, accurate bool) int {
	count := 0
	for i, c := range chunks {
		if c.Kind != ChunkOpcode {
			continue
		}
		switch c.Op {
		case OP_CHECKSIG, OP_CHECKSIGVERIFY:
			count++
		case OP_CHECKMULTISIG, OP_CHECKMULTISIGVERIFY:
			if accurate && i > 0 && chunks[i-1].Kind == ChunkOpcode &&
				chunks[i-1].Op >= OP_1 && chunks[i-1].Op <= OP_16 {
				count += smallIntValue(chunks[i-1].Op)
			} else {
				count += MaxPubKeysPerMultisig
			}
		}
	}
	return count
}

// P2SHSigOpCount parses the last data push of scriptSig as a script and
// returns its accurate sig-op count (spec §6). If scriptSig does not
// parse, or its last chunk is not a data push, it returns 0 — the
// redeem script cannot be recovered, so there is nothing to count.
func P2SHSigOpCount(scriptSig []byte) int {
	parsed, err := ParseScript(scriptSig)
	if err != nil || len(parsed.Chunks) == 0 {
		return 0
	}
	last := parsed.Chunks[len(parsed.Chunks)-1]
	if last.Kind != ChunkData {
		return 0
	}
	redeem, err := ParseScript(last.Data)
	if err != nil {
		return 0
	}
	return SigOpCount(redeem.Chunks, true)
}
