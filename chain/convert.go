package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Output conversion helpers in the style of abigen-generated bindings.

func abiString(v *interface{}) *string {
	return abi.ConvertType(*v, new(string)).(*string)
}

func abiBig(v *interface{}) *big.Int {
	return abi.ConvertType(*v, new(big.Int)).(*big.Int)
}

func abiAddress(v *interface{}) *common.Address {
	return abi.ConvertType(*v, new(common.Address)).(*common.Address)
}

func abiUint8(v *interface{}) *uint8 {
	return abi.ConvertType(*v, new(uint8)).(*uint8)
}

func abiBool(v *interface{}) *bool {
	return abi.ConvertType(*v, new(bool)).(*bool)
}

func abiAddressSlice(v *interface{}) *[]common.Address {
	return abi.ConvertType(*v, new([]common.Address)).(*[]common.Address)
}

func abiBigSlice(v *interface{}) *[]*big.Int {
	return abi.ConvertType(*v, new([]*big.Int)).(*[]*big.Int)
}

func abiBoolSlice(v *interface{}) *[]bool {
	return abi.ConvertType(*v, new([]bool)).(*[]bool)
}
