package responses

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/unsungfields/gateway/pkg/apperrors"
)

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = "request_id"

// ErrorResponse is the body of every error reply. Detail is human readable.
type ErrorResponse struct {
	Detail    string `json:"detail"`
	Code      string `json:"code"`
	Field     string `json:"field,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// HandleError maps err onto a status code and aborts the request with an
// ErrorResponse. Rate limited errors also set Retry-After.
func HandleError(c *gin.Context, err error) {
	_ = c.Error(err)

	appErr, ok := apperrors.As(err)
	if !ok {
		appErr = apperrors.Wrap(apperrors.KindInternal, "Internal server error", err)
	}

	resp := ErrorResponse{
		Detail:    detail(appErr),
		Code:      string(appErr.Kind),
		Field:     appErr.Field,
		RequestID: c.GetString(RequestIDKey),
	}

	if appErr.Kind == apperrors.KindRateLimited && appErr.RetryAfter > 0 {
		c.Header("Retry-After", strconv.FormatInt(int64(appErr.RetryAfter.Seconds()), 10))
	}
	c.AbortWithStatusJSON(apperrors.HTTPStatus(appErr.Kind), resp)
}

// HandleBindError reports a request body that failed to decode or validate.
func HandleBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		HandleError(c, apperrors.Validation(fe.Field(), invalidFieldMessage(fe)))
		return
	}
	HandleError(c, apperrors.Validation("body", "Invalid request payload"))
}

// detail hides internal causes but keeps delivery failures explicit so a
// client can tell a bad address from an outage.
func detail(e *apperrors.Error) string {
	switch e.Kind {
	case apperrors.KindDelivery:
		return e.Error()
	default:
		return e.Message
	}
}

func invalidFieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "gt":
		return fe.Field() + " must be greater than " + fe.Param()
	case "gte":
		return fe.Field() + " must be at least " + fe.Param()
	case "lt":
		return fe.Field() + " must be less than " + fe.Param()
	case "lte":
		return fe.Field() + " must be at most " + fe.Param()
	default:
		return fe.Field() + " is invalid"
	}
}

// OK writes a 200 JSON body.
func OK(c *gin.Context, body any) {
	c.JSON(http.StatusOK, body)
}
