// Package contract is the typed gateway to the task tracker contract.
package contract

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Contract entry points and events.
const (
	MethodCreateTask        = "createTask"
	MethodCompleteTask      = "completeTask"
	MethodGetUserTasks      = "getUserTasks"
	MethodGetCompletedCount = "getCompletedCount"

	EventTaskCreated   = "TaskCreated"
	EventTaskCompleted = "TaskCompleted"
)

const taskTrackerABI = `[
	{"type":"function","name":"createTask","stateMutability":"nonpayable",
	 "inputs":[{"name":"description","type":"string"}],"outputs":[]},
	{"type":"function","name":"completeTask","stateMutability":"nonpayable",
	 "inputs":[{"name":"taskId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"getUserTasks","stateMutability":"view",
	 "inputs":[{"name":"user","type":"address"}],
	 "outputs":[{"name":"","type":"tuple[]","internalType":"struct TaskTracker.Task[]","components":[
		{"name":"description","type":"string"},
		{"name":"completed","type":"bool"},
		{"name":"timestamp","type":"uint256"}]}]},
	{"type":"function","name":"getCompletedCount","stateMutability":"view",
	 "inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"event","name":"TaskCreated","anonymous":false,"inputs":[
		{"name":"user","type":"address","indexed":true},
		{"name":"taskId","type":"uint256","indexed":false},
		{"name":"description","type":"string","indexed":false}]},
	{"type":"event","name":"TaskCompleted","anonymous":false,"inputs":[
		{"name":"user","type":"address","indexed":true},
		{"name":"taskId","type":"uint256","indexed":false}]}
]`

// TaskTuple is the ABI shape of one getUserTasks element.
type TaskTuple struct {
	Description string
	Completed   bool
	Timestamp   *big.Int
}

var parsedABI abi.ABI

func init() {
	var err error
	parsedABI, err = abi.JSON(strings.NewReader(taskTrackerABI))
	if err != nil {
		panic("contract: bad task tracker ABI: " + err.Error())
	}
}

// ABI returns the task tracker contract interface.
func ABI() abi.ABI {
	return parsedABI
}
