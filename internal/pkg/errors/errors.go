package errors

import "errors"

// Sentinels for the lease/contract orchestration core. Callers classify
// failures with errors.Is; the HTTP edge maps them to status codes.
var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for malformed input.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrLeaseConflict means the requested period overlaps an open lease
	// on the same property.
	ErrLeaseConflict = errors.New("lease period conflicts with an existing lease")
	// ErrVersionConflict means an optimistic-lock check failed; the caller
	// must re-read and retry.
	ErrVersionConflict = errors.New("stale version, re-read and retry")
	// ErrInvalidStatusTransition means the operation is not permitted from
	// the record's current status.
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	// ErrInvalidParty means the given user is neither tenant nor landlord
	// of the contract.
	ErrInvalidParty = errors.New("party does not belong to contract")

	// ErrOtpInvalid covers every OTP failure mode: expired, mismatched,
	// already used, or never issued. Deliberately indistinguishable.
	ErrOtpInvalid = errors.New("otp verification failed")

	// ErrBillAlreadyExists means a bill for the contract and month exists.
	ErrBillAlreadyExists = errors.New("bill already exists for billing month")
	// ErrFirstBillMissingOldValues means the first bill of a contract was
	// requested without opening meter readings.
	ErrFirstBillMissingOldValues = errors.New("first bill requires opening meter readings")
	// ErrInvalidMeterReading means a new reading is below the opening one.
	ErrInvalidMeterReading = errors.New("meter reading below previous reading")

	// ErrExternalService means a collaborator (PDF renderer, OCR, storage)
	// failed or timed out. Local state is never advanced on this error.
	ErrExternalService = errors.New("external service failure")
)
