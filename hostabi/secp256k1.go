package hostabi

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// verifySecp256k1 reports whether sig is a valid secp256k1 signature over
// the Keccak-256 prehash of msg under the SEC1-encoded public key pk,
// mirroring the host import surface's secp256k1_verify semantics:
// prehash with Keccak-256, then verify.
func verifySecp256k1(msg, sig, pk []byte) bool {
	pubKey, err := btcec.ParsePubKey(pk)
	if err != nil {
		return false
	}
	parsedSig, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		// Not DER: accept the 64-byte compact r||s encoding instead.
		if len(sig) != 64 {
			return false
		}
		var r, s btcec.ModNScalar
		if r.SetByteSlice(sig[:32]) || s.SetByteSlice(sig[32:]) {
			return false
		}
		parsedSig = ecdsa.NewSignature(&r, &s)
	}
	digest := keccak256(msg)
	return parsedSig.Verify(digest[:], pubKey)
}
