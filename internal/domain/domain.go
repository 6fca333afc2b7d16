package domain

import (
	"github.com/havenstay/leaseflow-backend/internal/domain/billing"
	"github.com/havenstay/leaseflow-backend/internal/domain/contract"
	"github.com/havenstay/leaseflow-backend/internal/domain/lease"
	"github.com/havenstay/leaseflow-backend/internal/domain/otp"
)

type Lease = lease.Lease
type LeaseStatus = lease.Status

type Contract = contract.Contract
type ContractStatus = contract.Status
type Party = contract.Party
type ContractEvent = contract.Event

type OtpVerification = otp.Verification
type OtpPurpose = otp.Purpose

type Bill = billing.Bill
type BillStatus = billing.BillStatus
type MeterReading = billing.MeterReading

const (
	LeaseStatusPendingApproval = lease.StatusPendingApproval
	LeaseStatusActive          = lease.StatusActive
	LeaseStatusPaused          = lease.StatusPaused
	LeaseStatusTerminated      = lease.StatusTerminated
	LeaseStatusExpired         = lease.StatusExpired
	LeaseStatusRenewed         = lease.StatusRenewed

	ContractStatusDraft            = contract.StatusDraft
	ContractStatusPendingSignature = contract.StatusPendingSignature
	ContractStatusPendingPayment   = contract.StatusPendingPayment
	ContractStatusActive           = contract.StatusActive
	ContractStatusPaused           = contract.StatusPaused
	ContractStatusTerminated       = contract.StatusTerminated
	ContractStatusExpired          = contract.StatusExpired
	ContractStatusRenewed          = contract.StatusRenewed

	PartyTenant   = contract.PartyTenant
	PartyLandlord = contract.PartyLandlord

	OtpPurposeTenantSign   = otp.PurposeTenantSign
	OtpPurposeLandlordSign = otp.PurposeLandlordSign

	BillStatusDraft   = billing.BillStatusDraft
	BillStatusPending = billing.BillStatusPending
	BillStatusPaid    = billing.BillStatusPaid
	BillStatusOverdue = billing.BillStatusOverdue
)
