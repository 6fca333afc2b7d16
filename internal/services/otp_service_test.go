package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	otprepo "github.com/havenstay/leaseflow-backend/internal/data/repos/otp"
	"github.com/havenstay/leaseflow-backend/internal/data/repos/testutil"
	types "github.com/havenstay/leaseflow-backend/internal/domain"
	pkgerr "github.com/havenstay/leaseflow-backend/internal/pkg/errors"
)

func newOtpService(t *testing.T, ttl time.Duration) OtpService {
	t.Helper()
	db := testutil.DB(t)
	return NewOtpService(db, testutil.Logger(t), otprepo.NewVerificationRepo(db, testutil.Logger(t)), ttl)
}

func TestIssueAndVerify(t *testing.T) {
	svc := newOtpService(t, 10*time.Minute)
	ctx := context.Background()
	contractID, userID := uuid.New(), uuid.New()

	issued, err := svc.Issue(ctx, contractID, userID, types.OtpPurposeTenantSign)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if len(issued.Code) != 6 {
		t.Fatalf("code length = %d, want 6", len(issued.Code))
	}
	for _, r := range issued.Code {
		if r < '0' || r > '9' {
			t.Fatalf("code %q must be decimal digits", issued.Code)
		}
	}

	if err := svc.Verify(ctx, contractID, userID, types.OtpPurposeTenantSign, issued.Code, time.Now().UTC()); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifyIsSingleUse(t *testing.T) {
	svc := newOtpService(t, 10*time.Minute)
	ctx := context.Background()
	contractID, userID := uuid.New(), uuid.New()

	issued, err := svc.Issue(ctx, contractID, userID, types.OtpPurposeTenantSign)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	now := time.Now().UTC()
	if err := svc.Verify(ctx, contractID, userID, types.OtpPurposeTenantSign, issued.Code, now); err != nil {
		t.Fatalf("first Verify: %v", err)
	}
	if err := svc.Verify(ctx, contractID, userID, types.OtpPurposeTenantSign, issued.Code, now); !errors.Is(err, pkgerr.ErrOtpInvalid) {
		t.Fatalf("second Verify: want ErrOtpInvalid, got %v", err)
	}
}

func TestReissueInvalidatesPriorCode(t *testing.T) {
	svc := newOtpService(t, 10*time.Minute)
	ctx := context.Background()
	contractID, userID := uuid.New(), uuid.New()

	first, err := svc.Issue(ctx, contractID, userID, types.OtpPurposeTenantSign)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	second, err := svc.Issue(ctx, contractID, userID, types.OtpPurposeTenantSign)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if first.Code == second.Code {
		t.Skip("codes collided, cannot distinguish the records")
	}

	now := time.Now().UTC()
	if err := svc.Verify(ctx, contractID, userID, types.OtpPurposeTenantSign, first.Code, now); !errors.Is(err, pkgerr.ErrOtpInvalid) {
		t.Fatalf("old code must be dead after reissue, got %v", err)
	}
	if err := svc.Verify(ctx, contractID, userID, types.OtpPurposeTenantSign, second.Code, now); err != nil {
		t.Fatalf("new code must verify: %v", err)
	}
}

func TestVerifyFailsClosed(t *testing.T) {
	svc := newOtpService(t, 10*time.Minute)
	ctx := context.Background()
	contractID, userID := uuid.New(), uuid.New()

	issued, err := svc.Issue(ctx, contractID, userID, types.OtpPurposeTenantSign)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	cases := []struct {
		name       string
		contractID uuid.UUID
		userID     uuid.UUID
		purpose    types.OtpPurpose
		code       string
		now        time.Time
	}{
		{"wrong code", contractID, userID, types.OtpPurposeTenantSign, "000000", time.Now().UTC()},
		{"wrong user", contractID, uuid.New(), types.OtpPurposeTenantSign, issued.Code, time.Now().UTC()},
		{"wrong purpose", contractID, userID, types.OtpPurposeLandlordSign, issued.Code, time.Now().UTC()},
		{"never issued", uuid.New(), uuid.New(), types.OtpPurposeTenantSign, "123456", time.Now().UTC()},
		{"expired", contractID, userID, types.OtpPurposeTenantSign, issued.Code, issued.ExpiresAt.Add(time.Second)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.Verify(ctx, tc.contractID, tc.userID, tc.purpose, tc.code, tc.now)
			if !errors.Is(err, pkgerr.ErrOtpInvalid) {
				t.Fatalf("want ErrOtpInvalid, got %v", err)
			}
		})
	}

	// The failed attempts above must not have burned the real code.
	if err := svc.Verify(ctx, contractID, userID, types.OtpPurposeTenantSign, issued.Code, time.Now().UTC()); err != nil {
		t.Fatalf("valid code after failed attempts: %v", err)
	}
}
