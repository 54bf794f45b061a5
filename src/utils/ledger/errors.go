package ledger

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Node already has a transaction with this hash or nonce
	ErrDuplicate = errors.New("duplicate transaction")

	// Node already has exactly this transaction. Always comes together with ErrDuplicate.
	ErrAlreadyKnown = errors.New("transaction already known")

	// Node will never accept this transaction
	ErrInvalidArgument = errors.New("invalid transaction")

	// No finalized block within the allowed time
	ErrTimeout = errors.New("finalized block stream timed out")

	// Stream ended, it can't produce more blocks
	ErrStreamFailed = errors.New("finalized block stream failed")

	// Event of the tracked contract can't be stored
	ErrTokenIdOutOfRange = errors.New("token id out of range")
)

var duplicateMessages = []string{
	"already known",
	"nonce too low",
	"replacement transaction underpriced",
}

var invalidArgumentMessages = []string{
	"invalid sender",
	"intrinsic gas too low",
	"exceeds block gas limit",
	"transaction type not supported",
	"invalid chain id",
	"insufficient funds",
	"rlp: ",
	"typed transaction too short",
}

// Maps node errors onto ErrDuplicate and ErrInvalidArgument, other errors are returned unchanged
func ClassifySubmitError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "already known") {
		return fmt.Errorf("%w: %w: %w", ErrDuplicate, ErrAlreadyKnown, err)
	}
	for _, m := range duplicateMessages {
		if strings.Contains(msg, m) {
			return fmt.Errorf("%w: %w", ErrDuplicate, err)
		}
	}
	for _, m := range invalidArgumentMessages {
		if strings.Contains(msg, m) {
			return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
	}
	return err
}

// Resubmitting won't help
func IsPermanentSubmitError(err error) bool {
	return errors.Is(err, ErrDuplicate) || errors.Is(err, ErrInvalidArgument)
}
