package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	pkgerr "github.com/havenstay/leaseflow-backend/internal/pkg/errors"
	"github.com/havenstay/leaseflow-backend/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}

// statusOf maps domain sentinels onto HTTP statuses. Conflicts that a
// client can resolve by re-reading and retrying are 409; OTP failures are
// 403 so the response never reveals which check failed.
func statusOf(err error) (int, string) {
	var ae *apierr.Error
	if errors.As(err, &ae) {
		return ae.Status, ae.Code
	}
	switch {
	case errors.Is(err, pkgerr.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, pkgerr.ErrLeaseConflict):
		return http.StatusConflict, "lease_conflict"
	case errors.Is(err, pkgerr.ErrBillAlreadyExists):
		return http.StatusConflict, "bill_already_exists"
	case errors.Is(err, pkgerr.ErrVersionConflict):
		return http.StatusConflict, "version_conflict"
	case errors.Is(err, pkgerr.ErrInvalidStatusTransition):
		return http.StatusConflict, "invalid_status_transition"
	case errors.Is(err, pkgerr.ErrOtpInvalid):
		return http.StatusForbidden, "otp_invalid"
	case errors.Is(err, pkgerr.ErrInvalidParty):
		return http.StatusUnprocessableEntity, "invalid_party"
	case errors.Is(err, pkgerr.ErrInvalidMeterReading):
		return http.StatusUnprocessableEntity, "invalid_meter_reading"
	case errors.Is(err, pkgerr.ErrFirstBillMissingOldValues):
		return http.StatusUnprocessableEntity, "first_bill_missing_old_values"
	case errors.Is(err, pkgerr.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, pkgerr.ErrExternalService):
		return http.StatusBadGateway, "external_service"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func RespondError(c *gin.Context, err error) {
	status, code := statusOf(err)
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{Error: APIError{Message: msg, Code: code}})
}

// RespondBadRequest wraps malformed-input failures from binding and path
// parsing. Handlers never map those onto domain sentinels; the status and
// code travel on the error itself.
func RespondBadRequest(c *gin.Context, err error) {
	if err == nil {
		err = errors.New("invalid request")
	}
	RespondError(c, apierr.New(http.StatusBadRequest, "invalid_request", err))
}
