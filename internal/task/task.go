// =============================================
// File: internal/task/task.go
// =============================================
package task

import (
	"fmt"
	"time"
)

// OperationType defines the supported operation types
type OperationType string

const (
	OperationLaunch            OperationType = "launch"
	OperationLaunchPrefunded   OperationType = "launch_prefunded"
	OperationDeposit           OperationType = "deposit"
	OperationWithdrawDeposit   OperationType = "withdraw_deposit"
	OperationBuy               OperationType = "buy"
	OperationSell              OperationType = "sell"
	OperationAccrue            OperationType = "accrue"
	OperationHarvest           OperationType = "harvest"
	OperationGraduate          OperationType = "graduate"
	OperationSwap              OperationType = "swap"
	OperationAdvance           OperationType = "advance"
	OperationEmergencyWithdraw OperationType = "emergency_withdraw"
)

// Task is one step of a scenario. Amount units depend on the operation:
// source units for launch/deposit/withdraw_deposit, whole wrapper tokens for
// buy/sell, whole native units for accrue and native swaps.
type Task struct {
	ID          int
	TaskName    string
	Operation   OperationType
	WalletName  string
	Source      string // scenario source name
	Amount      string
	Limit       string // buy: max cost, sell/swap: min proceeds (native)
	Deadline    time.Duration
	Duration    time.Duration // advance
	NativeIn    bool          // swap direction
	Asset       string        // emergency_withdraw: "native" or a source name
	Destination string        // emergency_withdraw: wallet name

	// Launch parameters.
	Name           string
	Symbol         string
	BasePrice      string
	PriceIncrement string

	// ExpectError makes the step pass only if it fails with a message containing this text.
	ExpectError string
}

func parseOperation(s string) (OperationType, error) {
	op := OperationType(s)
	switch op {
	case OperationLaunch, OperationLaunchPrefunded, OperationDeposit, OperationWithdrawDeposit,
		OperationBuy, OperationSell, OperationAccrue, OperationHarvest, OperationGraduate,
		OperationSwap, OperationAdvance, OperationEmergencyWithdraw:
		return op, nil
	default:
		return "", fmt.Errorf("unsupported operation: %q", s)
	}
}

// Validate checks that the fields the operation needs are present
func (t *Task) Validate() error {
	if t.Operation == OperationAdvance {
		if t.Duration <= 0 {
			return fmt.Errorf("advance needs a positive duration")
		}
		return nil
	}

	if t.WalletName == "" {
		return fmt.Errorf("wallet name cannot be empty")
	}

	switch t.Operation {
	case OperationEmergencyWithdraw:
		if t.Asset == "" || t.Destination == "" || t.Amount == "" {
			return fmt.Errorf("emergency withdraw needs asset, destination and amount")
		}
		return nil
	case OperationHarvest, OperationGraduate:
	default:
		if t.Amount == "" {
			return fmt.Errorf("amount cannot be empty")
		}
	}

	if t.Source == "" {
		return fmt.Errorf("source cannot be empty")
	}

	if t.Operation == OperationLaunch || t.Operation == OperationLaunchPrefunded {
		if t.Name == "" || t.Symbol == "" {
			return fmt.Errorf("launch needs a name and symbol")
		}
		if t.BasePrice == "" {
			return fmt.Errorf("launch needs a base price")
		}
	}

	return nil
}

func (t *Task) String() string {
	if t.TaskName != "" {
		return t.TaskName
	}
	return fmt.Sprintf("#%d %s", t.ID, t.Operation)
}
