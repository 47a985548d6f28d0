package bitcoin

import (
	"bytes"
	"testing"
)

func mustParse(t *testing.T, raw []byte) ParsedScript {
	t.Helper()
	parsed, err := ParseScript(raw)
	if err != nil {
		t.Fatalf("failed to parse test script: %v", err)
	}
	return parsed
}

// TestScript_IsP2SH tests the byte-exact 23-byte P2SH template.
func TestScript_IsP2SH(t *testing.T) {
	hash := bytes.Repeat([]byte{0x11}, 20)
	valid := append([]byte{byte(OP_HASH160), 0x14}, hash...)
	valid = append(valid, byte(OP_EQUAL))

	tests := []struct {
		name string
		s    Script
		want bool
	}{
		{name: "valid P2SH template", s: Script(valid), want: true},
		{name: "wrong length", s: Script(valid[:22]), want: false},
		{name: "wrong leading opcode", s: func() Script {
			cp := append([]byte(nil), valid...)
			cp[0] = byte(OP_HASH256)
			return Script(cp)
		}(), want: false},
		{name: "wrong push length byte", s: func() Script {
			cp := append([]byte(nil), valid...)
			cp[1] = 0x13
			return Script(cp)
		}(), want: false},
		{name: "wrong trailing opcode", s: func() Script {
			cp := append([]byte(nil), valid...)
			cp[22] = byte(OP_EQUALVERIFY)
			return Script(cp)
		}(), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.s.IsP2SH(); got != tt.want {
				t.Errorf("IsP2SH() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestIsP2PKH tests P2PKH chunk-shape recognition and extraction.
func TestIsP2PKH(t *testing.T) {
	hash := bytes.Repeat([]byte{0x22}, 20)
	raw := append([]byte{byte(OP_DUP), byte(OP_HASH160), 0x14}, hash...)
	raw = append(raw, byte(OP_EQUALVERIFY), byte(OP_CHECKSIG))
	parsed := mustParse(t, raw)

	if !IsP2PKH(parsed.Chunks) {
		t.Fatal("expected script to match P2PKH template")
	}
	got, ok := ExtractPubKeyHash(parsed.Chunks)
	if !ok || !bytes.Equal(got, hash) {
		t.Errorf("ExtractPubKeyHash = (%x, %v), want (%x, true)", got, ok, hash)
	}

	nonP2PKH := mustParse(t, []byte{byte(OP_DUP), byte(OP_HASH160)})
	if IsP2PKH(nonP2PKH.Chunks) {
		t.Error("expected short script not to match P2PKH template")
	}
}

// TestIsP2PK tests P2PK chunk-shape recognition and extraction.
func TestIsP2PK(t *testing.T) {
	pubKey := bytes.Repeat([]byte{0x33}, 33)
	raw := append([]byte{0x21}, pubKey...)
	raw = append(raw, byte(OP_CHECKSIG))
	parsed := mustParse(t, raw)

	if !IsP2PK(parsed.Chunks) {
		t.Fatal("expected script to match P2PK template")
	}
	got, ok := ExtractPubKey(parsed.Chunks)
	if !ok || !bytes.Equal(got, pubKey) {
		t.Errorf("ExtractPubKey = (%x, %v), want (%x, true)", got, ok, pubKey)
	}
}

// TestIsP2SHChunks tests the chunk-shape P2SH recognizer.
func TestIsP2SHChunks(t *testing.T) {
	hash := bytes.Repeat([]byte{0x44}, 20)
	raw := append([]byte{byte(OP_HASH160), 0x14}, hash...)
	raw = append(raw, byte(OP_EQUAL))
	parsed := mustParse(t, raw)

	if !IsP2SHChunks(parsed.Chunks) {
		t.Error("expected script to match P2SH chunk template")
	}
}

// TestIsMultisig tests multisig chunk-shape recognition across bare
// 1-of-1 and 2-of-3 configurations, and rejects malformed shapes.
func TestIsMultisig(t *testing.T) {
	pub := func(b byte) []byte { return bytes.Repeat([]byte{b}, 33) }

	oneOfOne := NewScriptBuilder().
		AddOp(OP_1).
		AddData(pub(0x01)).
		AddOp(OP_1).
		AddOp(OP_CHECKMULTISIG)
	parsed := mustParse(t, oneOfOne.Script())
	if !IsMultisig(parsed.Chunks) {
		t.Error("expected 1-of-1 to match multisig template")
	}

	twoOfThree := NewScriptBuilder().
		AddOp(OP_2).
		AddData(pub(0x01)).
		AddData(pub(0x02)).
		AddData(pub(0x03)).
		AddOp(OP_3).
		AddOp(OP_CHECKMULTISIG)
	parsed = mustParse(t, twoOfThree.Script())
	if !IsMultisig(parsed.Chunks) {
		t.Error("expected 2-of-3 to match multisig template")
	}

	// N claims more keys than are actually present.
	mismatched := NewScriptBuilder().
		AddOp(OP_1).
		AddData(pub(0x01)).
		AddOp(OP_2).
		AddOp(OP_CHECKMULTISIG)
	parsed = mustParse(t, mismatched.Script())
	if IsMultisig(parsed.Chunks) {
		t.Error("expected key-count mismatch to be rejected")
	}

	notMultisig := mustParse(t, []byte{byte(OP_CHECKSIG)})
	if IsMultisig(notMultisig.Chunks) {
		t.Error("expected short script not to match multisig template")
	}
}

// TestExtractScriptHash tests that ExtractScriptHash requires the
// byte-exact P2SH template.
func TestExtractScriptHash(t *testing.T) {
	hash := bytes.Repeat([]byte{0x55}, 20)
	valid := append([]byte{byte(OP_HASH160), 0x14}, hash...)
	valid = append(valid, byte(OP_EQUAL))

	got, ok := ExtractScriptHash(Script(valid))
	if !ok || !bytes.Equal(got, hash) {
		t.Errorf("ExtractScriptHash = (%x, %v), want (%x, true)", got, ok, hash)
	}

	_, ok = ExtractScriptHash(Script{byte(OP_HASH160)})
	if ok {
		t.Error("expected short script to fail extraction")
	}
}

// TestSigOpCount tests accurate vs conservative multisig counting.
func TestSigOpCount(t *testing.T) {
	pub := func(b byte) []byte { return bytes.Repeat([]byte{b}, 33) }

	checksigOnly := mustParse(t, []byte{byte(OP_CHECKSIG)})
	if got := SigOpCount(checksigOnly.Chunks, true); got != 1 {
		t.Errorf("OP_CHECKSIG count = %d, want 1", got)
	}

	twoOfThree := NewScriptBuilder().
		AddOp(OP_2).
		AddData(pub(0x01)).
		AddData(pub(0x02)).
		AddData(pub(0x03)).
		AddOp(OP_3).
		AddOp(OP_CHECKMULTISIG)
	parsed := mustParse(t, twoOfThree.Script())
	if got := SigOpCount(parsed.Chunks, true); got != 3 {
		t.Errorf("accurate multisig count = %d, want 3 (the OP_N before OP_CHECKMULTISIG)", got)
	}

	// Without a small-int OP_N immediately before it (accurate=false, or
	// the preceding chunk isn't a small int), the conservative max applies.
	bareMultisig := mustParse(t, []byte{byte(OP_CHECKMULTISIG)})
	if got := SigOpCount(bareMultisig.Chunks, true); got != MaxPubKeysPerMultisig {
		t.Errorf("conservative multisig count = %d, want %d", got, MaxPubKeysPerMultisig)
	}
}

// TestP2SHSigOpCount tests recovering the redeem script's sig-op count
// from a scriptSig's final data push.
func TestP2SHSigOpCount(t *testing.T) {
	redeem := NewScriptBuilder().
		AddOp(OP_1).
		AddData(bytes.Repeat([]byte{0x01}, 33)).
		AddOp(OP_1).
		AddOp(OP_CHECKMULTISIG).
		Script()

	scriptSig := NewScriptBuilder().
		AddData([]byte{0x30, 0x01}). // dummy signature-shaped push
		AddData(redeem).
		Script()

	if got := P2SHSigOpCount(scriptSig); got != 1 {
		t.Errorf("P2SHSigOpCount = %d, want 1", got)
	}

	// A scriptSig whose last chunk is not a data push yields 0.
	if got := P2SHSigOpCount([]byte{byte(OP_1)}); got != 0 {
		t.Errorf("P2SHSigOpCount for non-push tail = %d, want 0", got)
	}
}
