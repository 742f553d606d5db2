package apperr

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ValidationError is returned when user input fails a precondition.
// No external call has been made when it is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Invalid builds a ValidationError.
func Invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// ContractReadError wraps a failed contract read.
type ContractReadError struct {
	Op  string
	Err error
}

func (e *ContractReadError) Error() string {
	return "failed to load " + e.Op + ": " + e.Err.Error()
}

func (e *ContractReadError) Unwrap() error {
	return e.Err
}

// ReadFailed wraps err as a ContractReadError. A nil err stays nil.
func ReadFailed(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ContractReadError{Op: op, Err: err}
}

// TransactionError wraps a failed, rejected or timed out write transaction.
type TransactionError struct {
	Op      string
	Message string
	Err     error
}

func (e *TransactionError) Error() string {
	return e.Op + ": " + e.Message
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}

// NotConnectedError is returned when an action needs a wallet and none is connected.
type NotConnectedError struct {
	Action string
}

func (e *NotConnectedError) Error() string {
	return "wallet not connected: connect a wallet to " + e.Action
}

const genericTxMessage = "Transaction failed. Please try again."

var txMessages = []struct {
	needles []string
	message string
}{
	{[]string{"insufficient funds"}, "Insufficient funds to cover the amount and gas."},
	{[]string{"user rejected", "user denied"}, "Transaction was rejected in the wallet."},
	{[]string{"execution reverted", "reverted"}, "Transaction was reverted by the savings contract."},
	{[]string{"nonce too low", "replacement transaction underpriced"}, "A pending transaction conflicts with this one. Wait for it to confirm."},
}

// ClassifyTransaction wraps err in a TransactionError with a user-facing message.
func ClassifyTransaction(op string, err error) error {
	if err == nil {
		return nil
	}
	var txErr *TransactionError
	if errors.As(err, &txErr) {
		return err
	}

	msg := genericTxMessage
	if errors.Is(err, context.DeadlineExceeded) {
		msg = "Transaction timed out waiting for confirmation."
	} else {
		lower := strings.ToLower(err.Error())
		for _, entry := range txMessages {
			if containsAny(lower, entry.needles) {
				msg = entry.message
				break
			}
		}
	}
	return &TransactionError{Op: op, Message: msg, Err: err}
}

// UserMessage returns the text to show for err.
func UserMessage(err error) string {
	var (
		validation   *ValidationError
		read         *ContractReadError
		tx           *TransactionError
		notConnected *NotConnectedError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validation):
		return validation.Error()
	case errors.As(err, &read):
		return "Failed to load " + read.Op + ". Retry to try again."
	case errors.As(err, &tx):
		return tx.Message
	case errors.As(err, &notConnected):
		return notConnected.Error()
	default:
		return err.Error()
	}
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
