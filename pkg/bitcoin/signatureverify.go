package bitcoin

import (
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// Secp256k1Verifier is the real SignatureVerifier collaborator (spec §2,
// §6): DER-encoded ECDSA signatures over secp256k1. It is the zero value
// ready to use and holds no state, so a single instance may be shared
// across concurrent verifications (spec §5).
type Secp256k1Verifier struct{}

// VerifySignature implements SignatureVerifier. A malformed public key or
// signature, or a signature that fails to verify, all yield false — none
// of these conditions abort the calling script (spec §4.6, §7).
func (Secp256k1Verifier) VerifySignature(hash [32]byte, derSig []byte, pubKeyBytes []byte) bool {
	pubKey, err := secp256k1.ParsePubKey(pubKeyBytes)
	if err != nil {
		return false
	}
	sig, err := ecdsa.ParseDERSignature(derSig)
	if err != nil {
		return false
	}
	return sig.Verify(hash[:], pubKey)
}
