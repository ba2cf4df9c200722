package enums

// OutboxDLQErrorReason records why a pack event left the outbox without
// being published.
type OutboxDLQErrorReason string

const (
	// OutboxDLQReasonMaxAttempts: every publish attempt failed transiently.
	OutboxDLQReasonMaxAttempts OutboxDLQErrorReason = "max_attempts"
	// OutboxDLQReasonNonRetryable: the broker rejected the message outright.
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
	// OutboxDLQReasonInvalidPayload: the row could not be resolved to a
	// registered event, so it was never sent.
	OutboxDLQReasonInvalidPayload OutboxDLQErrorReason = "invalid_payload"
)

func (r OutboxDLQErrorReason) IsValid() bool {
	switch r {
	case OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable, OutboxDLQReasonInvalidPayload:
		return true
	}
	return false
}
