package devchain

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// revertErrorCode is the JSON-RPC error code geth uses for reverts.
const revertErrorCode = 3

var errorSelector = crypto.Keccak256([]byte("Error(string)"))[:4]

// revertError is returned by eth_call and eth_estimateGas when execution
// would revert. Its data carries the ABI-encoded Error(string) reason.
type revertError struct {
	reason string
	data   string
}

func newRevertError(reason string) *revertError {
	stringTy, _ := abi.NewType("string", "", nil)
	packed, err := abi.Arguments{{Type: stringTy}}.Pack(reason)
	if err != nil {
		return &revertError{reason: reason}
	}
	return &revertError{
		reason: reason,
		data:   hexutil.Encode(append(append([]byte{}, errorSelector...), packed...)),
	}
}

func (e *revertError) Error() string {
	return "execution reverted: " + e.reason
}

// ErrorCode implements rpc.Error.
func (e *revertError) ErrorCode() int {
	return revertErrorCode
}

// ErrorData implements rpc.DataError.
func (e *revertError) ErrorData() interface{} {
	return e.data
}

// Reason returns the revert reason.
func (e *revertError) Reason() string {
	return e.reason
}
