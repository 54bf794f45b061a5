package report

import "go.uber.org/atomic"

type SponsorErrors struct {
	FollowerFailures        atomic.Uint64 `json:"follower_failures"`
	SenderSubmitFailures    atomic.Uint64 `json:"sender_submit_failures"`
	WriterOperationFailures atomic.Uint64 `json:"writer_operation_failures"`
	WriterReconnectFailures atomic.Uint64 `json:"writer_reconnect_failures"`
	WriterUnacknowledged    atomic.Uint64 `json:"writer_unacknowledged"`
	MinterBusy              atomic.Uint64 `json:"minter_busy"`
	MinterTooManyRequests   atomic.Uint64 `json:"minter_too_many_requests"`
	MinterInternal          atomic.Uint64 `json:"minter_internal"`
	AuditorFailures         atomic.Uint64 `json:"auditor_failures"`
	ComponentsDied          atomic.Uint64 `json:"components_died"`
}

type SponsorState struct {
	FollowerCurrentHeight           atomic.Uint64  `json:"follower_current_height"`
	FollowerBlocksProcessed         atomic.Uint64  `json:"follower_blocks_processed"`
	FollowerEventsFound             atomic.Uint64  `json:"follower_events_found"`
	FollowerOwnTransactionsSeen     atomic.Uint64  `json:"follower_own_transactions_seen"`
	FollowerRetryAttempt            atomic.Int64   `json:"follower_retry_attempt"`
	AverageBlocksProcessedPerMinute atomic.Float64 `json:"average_blocks_processed_per_minute"`

	SenderNextNonce             atomic.Uint64 `json:"sender_next_nonce"`
	SenderBufferedTransactions  atomic.Int64  `json:"sender_buffered_transactions"`
	SenderTransactionsSubmitted atomic.Uint64 `json:"sender_transactions_submitted"`

	WriterCheckpointHeight     atomic.Uint64 `json:"writer_checkpoint_height"`
	WriterBlocksInserted       atomic.Uint64 `json:"writer_blocks_inserted"`
	WriterEventsInserted       atomic.Uint64 `json:"writer_events_inserted"`
	WriterTransactionsInserted atomic.Uint64 `json:"writer_transactions_inserted"`
	WriterTransactionsMarked   atomic.Uint64 `json:"writer_transactions_marked"`
	WriterReconnects           atomic.Uint64 `json:"writer_reconnects"`

	MinterRequests atomic.Uint64 `json:"minter_requests"`
	MinterAccepted atomic.Uint64 `json:"minter_accepted"`

	AuditorTransactionsMarkedMissing atomic.Uint64 `json:"auditor_transactions_marked_missing"`
}

type SponsorReport struct {
	State  SponsorState  `json:"state"`
	Errors SponsorErrors `json:"errors"`
}
