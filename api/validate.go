package api

import (
	"math/big"
	"regexp"
	"strconv"

	"github.com/sidebetlabs/relayer/errcode"
	"github.com/sidebetlabs/relayer/types"
)

// Boundary validation. Identifiers are accepted case-insensitively and
// normalized lower-case before they reach the services.
var (
	addressRe   = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
	signatureRe = regexp.MustCompile(`^0x[a-fA-F0-9]{130}$`)
)

func parseAddressParam(raw, field string) (string, error) {
	if !addressRe.MatchString(raw) {
		return "", errcode.Newf(errcode.Validation, "%s must be a 0x-prefixed 40-hex address", field)
	}
	return raw, nil
}

func parseSignature(raw string) ([]byte, error) {
	if !signatureRe.MatchString(raw) {
		return nil, errcode.New(errcode.Validation, "signature must be a 0x-prefixed 130-hex string")
	}
	sig := make([]byte, 65)
	for i := 0; i < 65; i++ {
		b, err := strconv.ParseUint(raw[2+2*i:4+2*i], 16, 8)
		if err != nil {
			return nil, errcode.New(errcode.Validation, "signature is not valid hex")
		}
		sig[i] = byte(b)
	}
	return sig, nil
}

func parseOutcome(raw string) (uint8, error) {
	switch raw {
	case "0":
		return 0, nil
	case "1":
		return 1, nil
	default:
		return 0, errcode.New(errcode.Validation, `outcome must be "0" or "1"`)
	}
}

func parseNonce(raw string) (*big.Int, error) {
	nonce, ok := new(big.Int).SetString(raw, 10)
	if !ok || nonce.Sign() < 0 {
		return nil, errcode.New(errcode.Validation, "nonce must be a non-negative decimal string")
	}
	return nonce, nil
}

func parseStatusQuery(raw string) (*types.MarketStatus, error) {
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 || n > 4 {
		return nil, errcode.New(errcode.Validation, "status must be an integer in 0..4")
	}
	status := types.MarketStatus(n)
	return &status, nil
}

func parseLimitOffset(rawLimit, rawOffset string) (int, int, error) {
	limit := 20
	offset := 0
	if rawLimit != "" {
		n, err := strconv.Atoi(rawLimit)
		if err != nil || n < 1 || n > 100 {
			return 0, 0, errcode.New(errcode.Validation, "limit must be an integer in 1..100")
		}
		limit = n
	}
	if rawOffset != "" {
		n, err := strconv.Atoi(rawOffset)
		if err != nil || n < 0 {
			return 0, 0, errcode.New(errcode.Validation, "offset must be a non-negative integer")
		}
		offset = n
	}
	return limit, offset, nil
}

func parseThresholdPercent(n int) (uint8, error) {
	if n < 51 || n > 99 {
		return 0, errcode.New(errcode.Validation, "thresholdPercent must be in 51..99")
	}
	return uint8(n), nil
}

func parseAmount(raw, field string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok || v.Sign() < 0 {
		return nil, errcode.Newf(errcode.Validation, "%s must be a non-negative decimal string", field)
	}
	return v, nil
}
