package bitcoin

import (
	"encoding/binary"
	"fmt"
)

// Sighash type bytes (spec §6 GLOSSARY, "Sighash type").
const (
	SigHashAll          byte = 0x01
	SigHashNone         byte = 0x02
	SigHashSingle       byte = 0x03
	SigHashAnyOneCanPay byte = 0x80
)

// LegacySigHashProvider is the real SigHashProvider collaborator (spec
// §2): the pre-segwit signature hash algorithm, bound to one transaction
// and input index. A fresh copy of Tx is rewritten per call; the caller's
// transaction is never observed changing (spec §4.7 step 1).
type LegacySigHashProvider struct {
	Tx    *Transaction
	Index int
}

// SignatureHash implements SigHashProvider.
func (p LegacySigHashProvider) SignatureHash(connectedScript []byte, hashType byte) ([32]byte, error) {
	return computeLegacySigHash(p.Tx, p.Index, connectedScript, hashType)
}

// computeLegacySigHash rewrites a copy of tx according to hashType,
// substitutes the connected script into the input being signed (every
// other input's scriptSig is blanked), appends the hash type as a
// little-endian uint32, and returns the double-SHA-256 of the result.
func computeLegacySigHash(tx *Transaction, index int, connectedScript []byte, hashType byte) ([32]byte, error) {
	if index < 0 || index >= len(tx.Inputs) {
		return [32]byte{}, fmt.Errorf("sighash: input index %d out of range", index)
	}

	txCopy := copyTransactionForSigHash(tx)

	baseType := hashType &^ SigHashAnyOneCanPay
	switch baseType {
	case SigHashNone:
		txCopy.Outputs = nil
		for i := range txCopy.Inputs {
			if i != index {
				txCopy.Inputs[i].Sequence = 0
			}
		}
	case SigHashSingle:
		if index >= len(txCopy.Outputs) {
			// Reference implementation returns this fixed sentinel hash
			// rather than indexing past the output list.
			var sentinel [32]byte
			sentinel[0] = 1
			return sentinel, nil
		}
		txCopy.Outputs = txCopy.Outputs[:index+1]
		for i := 0; i < index; i++ {
			txCopy.Outputs[i] = TxOutput{Value: ^uint64(0)}
		}
		for i := range txCopy.Inputs {
			if i != index {
				txCopy.Inputs[i].Sequence = 0
			}
		}
	}

	if hashType&SigHashAnyOneCanPay != 0 {
		txCopy.Inputs = []TxInput{txCopy.Inputs[index]}
		index = 0
	}

	for i := range txCopy.Inputs {
		if i == index {
			txCopy.Inputs[i].ScriptSig = connectedScript
		} else {
			txCopy.Inputs[i].ScriptSig = nil
		}
	}

	serialized, err := txCopy.Serialize()
	if err != nil {
		return [32]byte{}, err
	}

	var hashTypeBuf [4]byte
	binary.LittleEndian.PutUint32(hashTypeBuf[:], uint32(hashType))
	serialized = append(serialized, hashTypeBuf[:]...)

	return DoubleHashSHA256(serialized), nil
}

// copyTransactionForSigHash deep-copies the fields the sighash algorithm
// rewrites. Witness data is deliberately dropped: the legacy sighash
// serialization never includes the SegWit marker/flag/witness stack.
func copyTransactionForSigHash(tx *Transaction) *Transaction {
	cp := &Transaction{
		Version:  tx.Version,
		LockTime: tx.LockTime,
		Inputs:   make([]TxInput, len(tx.Inputs)),
		Outputs:  make([]TxOutput, len(tx.Outputs)),
	}
	for i, in := range tx.Inputs {
		cp.Inputs[i] = TxInput{
			PreviousOutput: in.PreviousOutput,
			ScriptSig:      append([]byte(nil), in.ScriptSig...),
			Sequence:       in.Sequence,
		}
	}
	for i, out := range tx.Outputs {
		cp.Outputs[i] = TxOutput{
			Value:        out.Value,
			ScriptPubKey: append([]byte(nil), out.ScriptPubKey...),
		}
	}
	return cp
}
