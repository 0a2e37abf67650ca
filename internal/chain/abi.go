package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ColorSnapABI covers the subset of the contract the session uses.
const ColorSnapABI = `[
  {"type":"function","name":"setPlayerName","stateMutability":"nonpayable",
   "inputs":[{"name":"name","type":"string"}],"outputs":[]},
  {"type":"function","name":"startGame","stateMutability":"nonpayable",
   "inputs":[],"outputs":[]},
  {"type":"function","name":"submitResult","stateMutability":"nonpayable",
   "inputs":[{"name":"gameId","type":"uint256"},{"name":"finalBottles","type":"uint8[]"},{"name":"moves","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"endGame","stateMutability":"nonpayable",
   "inputs":[{"name":"gameId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"getPlayerName","stateMutability":"view",
   "inputs":[{"name":"player","type":"address"}],"outputs":[{"name":"","type":"string"}]},
  {"type":"function","name":"getPlayerPoints","stateMutability":"view",
   "inputs":[{"name":"player","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getPlayerActiveGame","stateMutability":"view",
   "inputs":[{"name":"player","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getGameState","stateMutability":"view",
   "inputs":[{"name":"gameId","type":"uint256"}],
   "outputs":[{"name":"player","type":"address"},{"name":"bottles","type":"uint8[]"},{"name":"target","type":"uint8[]"},{"name":"moves","type":"uint256"},{"name":"isActive","type":"bool"}]}
]`

func parseABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(ColorSnapABI))
}

func outString(out []interface{}, i int) (string, error) {
	if i >= len(out) {
		return "", fmt.Errorf("missing output %d", i)
	}
	s, ok := out[i].(string)
	if !ok {
		return "", fmt.Errorf("output %d: unexpected type %T", i, out[i])
	}
	return s, nil
}

func outUint(out []interface{}, i int) (uint64, error) {
	if i >= len(out) {
		return 0, fmt.Errorf("missing output %d", i)
	}
	n, ok := out[i].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("output %d: unexpected type %T", i, out[i])
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("output %d: %s overflows uint64", i, n)
	}
	return n.Uint64(), nil
}

func outCodes(out []interface{}, i int) ([]uint8, error) {
	if i >= len(out) {
		return nil, fmt.Errorf("missing output %d", i)
	}
	codes, ok := out[i].([]uint8)
	if !ok {
		return nil, fmt.Errorf("output %d: unexpected type %T", i, out[i])
	}
	return codes, nil
}

func outAddress(out []interface{}, i int) (common.Address, error) {
	if i >= len(out) {
		return common.Address{}, fmt.Errorf("missing output %d", i)
	}
	a, ok := out[i].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("output %d: unexpected type %T", i, out[i])
	}
	return a, nil
}

func outBool(out []interface{}, i int) (bool, error) {
	if i >= len(out) {
		return false, fmt.Errorf("missing output %d", i)
	}
	b, ok := out[i].(bool)
	if !ok {
		return false, fmt.Errorf("output %d: unexpected type %T", i, out[i])
	}
	return b, nil
}
