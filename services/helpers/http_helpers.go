package helpers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"auction-core/internal/biddingerrors"
	"auction-core/utils"

	"github.com/gin-gonic/gin"
)

// RequesterHeader carries the acting user's id for seller and bidder actions
const RequesterHeader = "X-User-ID"

// retryAfterSeconds is advertised when an auction is busy
const retryAfterSeconds = "1"

// HandleBindError sends a standardized JSON error for binding failures
func HandleBindError(c *gin.Context, handlerName string, err error) {
	wrappedErr := fmt.Errorf("invalid request payload: %w", err)
	utils.JSONError(c, http.StatusBadRequest, wrappedErr, "invalid request payload")
	utils.Warn(handlerName+": binding error", map[string]any{"error": err.Error()})
}

// MapErrorToHTTP maps domain/service errors to HTTP status code and message
func MapErrorToHTTP(err error) (int, string) {
	var tooLow *biddingerrors.BidTooLowError
	switch {
	case errors.As(err, &tooLow):
		return http.StatusBadRequest, tooLow.Message()
	case errors.Is(err, biddingerrors.ErrValidation):
		return http.StatusBadRequest, "invalid request"
	case errors.Is(err, biddingerrors.ErrAuctionNotFound):
		return http.StatusNotFound, "auction not found"
	case errors.Is(err, biddingerrors.ErrBidNotFound):
		return http.StatusNotFound, "bid not found"
	case errors.Is(err, biddingerrors.ErrNoBids):
		return http.StatusNotFound, "no bids found for auction"
	case errors.Is(err, biddingerrors.ErrBidTooLow):
		return http.StatusBadRequest, "bid amount must be higher than the current price"
	case errors.Is(err, biddingerrors.ErrAuctionNotActive):
		return http.StatusConflict, "auction is not accepting bids"
	case errors.Is(err, biddingerrors.ErrSelfBid):
		return http.StatusForbidden, "sellers cannot bid on their own auction"
	case errors.Is(err, biddingerrors.ErrUnauthorized):
		return http.StatusForbidden, "not allowed for this user"
	case errors.Is(err, biddingerrors.ErrInvalidTransition):
		return http.StatusConflict, "auction cannot change to that state"
	case errors.Is(err, biddingerrors.ErrPaymentMismatch):
		return http.StatusConflict, "payment does not match auction outcome"
	case errors.Is(err, biddingerrors.ErrTimeout), errors.Is(err, biddingerrors.ErrStaleState):
		return http.StatusServiceUnavailable, "auction is busy, try again"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// RespondError writes the mapped error envelope and logs it. Server side
// failures log at error level, client mistakes at warn.
func RespondError(c *gin.Context, handlerName string, err error, ctx map[string]any) {
	status, message := MapErrorToHTTP(err)
	if status == http.StatusServiceUnavailable {
		c.Header("Retry-After", retryAfterSeconds)
	}
	utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)

	if ctx == nil {
		ctx = map[string]any{}
	}
	ctx["handler"] = handlerName
	ctx["status"] = status
	ctx["error"] = err.Error()
	if status >= http.StatusInternalServerError {
		utils.Error(handlerName+": request failed", ctx)
	} else {
		utils.Warn(handlerName+": request rejected", ctx)
	}
}

// Requester returns the acting user id, writing a 400 when it is missing
func Requester(c *gin.Context, handlerName string) (string, bool) {
	id := c.GetHeader(RequesterHeader)
	if id == "" {
		err := fmt.Errorf("%w - missing %s header", biddingerrors.ErrValidation, RequesterHeader)
		RespondError(c, handlerName, err, nil)
		return "", false
	}
	return id, true
}

// QueryInt reads an optional integer query parameter
func QueryInt(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w - %s must be an integer", biddingerrors.ErrValidation, name)
	}
	return v, nil
}

// LogSuccess is a small helper to standardize logging of successful operations
func LogSuccess(handlerName, message string, ctx map[string]any) {
	utils.Info(handlerName+": "+message, ctx)
}
