package chain

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Typed-data domain constants fixed by the settlement contract.
const (
	domainName    = "Sidebet"
	domainVersion = "1"
	primaryType   = "Attestation"
)

var attestationTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	primaryType: {
		{Name: "market", Type: "address"},
		{Name: "outcome", Type: "uint256"},
		{Name: "nonce", Type: "uint256"},
	},
}

// attestationDigest computes the EIP-712 digest a participant signs when
// attesting to an outcome. The market contract is the verifying contract.
func (g *Gateway) attestationDigest(market common.Address, outcome uint8, nonce *big.Int) ([]byte, error) {
	typedData := apitypes.TypedData{
		Types:       attestationTypes,
		PrimaryType: primaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              domainName,
			Version:           domainVersion,
			ChainId:           (*math.HexOrDecimal256)(g.chainID),
			VerifyingContract: market.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"market":  market.Hex(),
			"outcome": (*math.HexOrDecimal256)(new(big.Int).SetUint64(uint64(outcome))),
			"nonce":   (*math.HexOrDecimal256)(nonce),
		},
	}
	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, err
	}
	messageHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, err
	}
	return crypto.Keccak256([]byte("\x19\x01"), domainSeparator, messageHash), nil
}

// VerifyAttestation recovers the signer of an attestation signature and
// compares it to the claimed signer, case-insensitively. Any failure along
// the way reports false; the caller distinguishes nothing finer.
func (g *Gateway) VerifyAttestation(signature []byte, claimedSigner string, market common.Address, outcome uint8, nonce *big.Int) bool {
	if len(signature) != crypto.SignatureLength || nonce == nil || nonce.Sign() < 0 {
		return false
	}
	digest, err := g.attestationDigest(market, outcome, nonce)
	if err != nil {
		return false
	}
	// Wallets produce V as 27/28; go-ethereum expects 0/1.
	sig := make([]byte, crypto.SignatureLength)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return false
	}
	recovered := crypto.PubkeyToAddress(*pub)
	return strings.EqualFold(recovered.Hex(), claimedSigner)
}
