package bitcoin

import (
	"strings"
	"testing"
)

// newGenesisBlock builds a minimal coinbase-only genesis block whose single
// output carries scriptPubKey, using a nonce in validateBlock's accepted
// test range so proof-of-work is skipped.
func newGenesisBlock(scriptPubKey []byte) *Block {
	header := NewBlockHeader(1, ZeroHash, ZeroHash, 1640995200, 0x1d00ffff, 12345)
	coinbase := Transaction{
		Version: 1,
		Inputs: []TxInput{{
			PreviousOutput: OutPoint{Hash: ZeroHash, Index: 0xffffffff},
			ScriptSig:      []byte("genesis"),
			Sequence:       0xffffffff,
		}},
		Outputs: []TxOutput{{Value: 5000000000, ScriptPubKey: scriptPubKey}},
	}
	return NewBlock(header, []Transaction{coinbase})
}

// newSpendingBlock builds a single-transaction block (plus mandatory
// coinbase) whose non-coinbase input spends genesisHash:0 with scriptSig,
// built atop prevHash so it extends the chain.
func newSpendingBlock(prevHash Hash256, genesisHash Hash256, scriptSig []byte) *Block {
	header := NewBlockHeader(1, prevHash, ZeroHash, 1640995260, 0x1d00ffff, 12346)
	coinbase := Transaction{
		Version: 1,
		Inputs: []TxInput{{
			PreviousOutput: OutPoint{Hash: ZeroHash, Index: 0xffffffff},
			ScriptSig:      []byte("height 1"),
			Sequence:       0xffffffff,
		}},
		Outputs: []TxOutput{{Value: 5000000000, ScriptPubKey: []byte{byte(OP_1)}}},
	}
	spend := Transaction{
		Version: 1,
		Inputs: []TxInput{{
			PreviousOutput: OutPoint{Hash: genesisHash, Index: 0},
			ScriptSig:      scriptSig,
			Sequence:       0xffffffff,
		}},
		Outputs: []TxOutput{{Value: 4999990000, ScriptPubKey: []byte{byte(OP_1)}}},
	}
	return NewBlock(header, []Transaction{coinbase, spend})
}

// TestBlockChain_ScriptVerificationDisabledByDefault tests that, without
// EnableScriptVerification, a block spending an output with a scriptSig
// that would never satisfy its scriptPubKey is still accepted: the chain
// keeps its teacher-inherited "basic" behavior until a caller opts in.
func TestBlockChain_ScriptVerificationDisabledByDefault(t *testing.T) {
	genesis := newGenesisBlock(NewScriptBuilder().AddOp(OP_RETURN).Script())
	bc := NewBlockChain(genesis)

	spending := newSpendingBlock(genesis.Hash(), genesis.Transactions[0].Hash(), []byte{})
	if err := bc.AddBlock(spending); err != nil {
		t.Fatalf("expected block to be accepted with script verification disabled, got %v", err)
	}
	if bc.Height() != 1 {
		t.Errorf("expected height 1, got %d", bc.Height())
	}
}

// TestBlockChain_EnableScriptVerification_RejectsUnauthorizedSpend tests
// that, once enabled, a block spending an OP_RETURN-guarded output (which
// can never produce a true top of stack) is rejected, and that the
// rejected block's would-be spend never mutates the UTXO set.
func TestBlockChain_EnableScriptVerification_RejectsUnauthorizedSpend(t *testing.T) {
	genesisScript := NewScriptBuilder().AddOp(OP_RETURN).Script()
	genesis := newGenesisBlock(genesisScript)
	bc := NewBlockChain(genesis)
	bc.EnableScriptVerification(true)

	genesisTxHash := genesis.Transactions[0].Hash()
	spending := newSpendingBlock(genesis.Hash(), genesisTxHash, []byte{})

	err := bc.AddBlock(spending)
	if err == nil {
		t.Fatal("expected AddBlock to reject an unauthorized spend")
	}
	if !strings.Contains(err.Error(), "transaction 1 input 0") {
		t.Errorf("expected error to name the offending transaction/input, got %v", err)
	}
	if bc.Height() != 0 {
		t.Errorf("expected rejected block to leave height at 0, got %d", bc.Height())
	}
	if _, ok := bc.GetUTXOSet().Find(genesisTxHash, 0); !ok {
		t.Error("expected the unspent genesis output to remain in the UTXO set after rejection")
	}
}

// TestBlockChain_EnableScriptVerification_AcceptsAuthorizedSpend tests that
// a spend whose scriptSig/scriptPubKey pair actually verifies (a trivial
// OP_1 "anyone can spend" scriptPubKey with an empty scriptSig) is
// accepted, and that the spent output is removed from the UTXO set.
func TestBlockChain_EnableScriptVerification_AcceptsAuthorizedSpend(t *testing.T) {
	genesisScript := []byte{byte(OP_1)}
	genesis := newGenesisBlock(genesisScript)
	bc := NewBlockChain(genesis)
	bc.EnableScriptVerification(true)

	genesisTxHash := genesis.Transactions[0].Hash()
	spending := newSpendingBlock(genesis.Hash(), genesisTxHash, []byte{})

	if err := bc.AddBlock(spending); err != nil {
		t.Fatalf("expected authorized spend to be accepted, got %v", err)
	}
	if bc.Height() != 1 {
		t.Errorf("expected height 1, got %d", bc.Height())
	}
	if _, ok := bc.GetUTXOSet().Find(genesisTxHash, 0); ok {
		t.Error("expected the spent genesis output to be removed from the UTXO set")
	}
}
