package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/sealedpool/internal/domain"
	"github.com/alanyoungcy/sealedpool/internal/server/middleware"
)

// writeJSON marshals v as JSON and writes it with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg, Code: "BadRequest"})
}

// errorClass maps a sentinel to its HTTP status and client code.
type errorClass struct {
	target error
	status int
	code   string
}

var errorClasses = []errorClass{
	{domain.ErrOnlyAgent, http.StatusForbidden, ""},
	{domain.ErrWrongBidder, http.StatusForbidden, ""},
	{domain.ErrTransferUnauthorized, http.StatusForbidden, "TransferUnauthorized"},
	{domain.ErrUnauthorized, http.StatusForbidden, "Unauthorized"},
	{domain.ErrNotInitialized, http.StatusNotFound, "NotInitialized"},
	{domain.ErrNotFound, http.StatusNotFound, "NotFound"},
	{domain.ErrAlreadyInitialized, http.StatusConflict, "AlreadyInitialized"},
	{domain.ErrAlreadyExists, http.StatusConflict, "AlreadyExists"},
	{domain.ErrBidNotActive, http.StatusConflict, ""},
	{domain.ErrBidStillActive, http.StatusConflict, ""},
	{domain.ErrInsufficientEscrow, http.StatusConflict, ""},
	{domain.ErrInsufficientFunds, http.StatusPaymentRequired, "InsufficientFunds"},
	{domain.ErrBidTooLow, http.StatusUnprocessableEntity, ""},
	{domain.ErrAmountBelowMinimum, http.StatusUnprocessableEntity, ""},
	{domain.ErrInvalidAmountChange, http.StatusUnprocessableEntity, ""},
	{domain.ErrInvalidMintDecimals, http.StatusUnprocessableEntity, ""},
	{domain.ErrArithmeticOverflow, http.StatusUnprocessableEntity, ""},
	{domain.ErrAssetMismatch, http.StatusUnprocessableEntity, "AssetMismatch"},
	{domain.ErrDecimalsMismatch, http.StatusUnprocessableEntity, "DecimalsMismatch"},
	{domain.ErrAccountMismatch, http.StatusUnprocessableEntity, "AccountMismatch"},
	{domain.ErrRateLimited, http.StatusTooManyRequests, "RateLimited"},
}

// writeError maps err to a status code and a stable error code. Unknown
// errors are logged and reported as a bare 500.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	for _, c := range errorClasses {
		if errors.Is(err, c.target) {
			code := c.code
			if code == "" {
				code = domain.ErrorCode(err)
			}
			msg := err.Error()
			var ae *domain.AuctionError
			if errors.As(err, &ae) {
				msg = ae.Msg
			}
			writeJSON(w, c.status, errorBody{Error: msg, Code: code})
			return
		}
	}
	logger.ErrorContext(r.Context(), "request failed",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error", Code: "Internal"})
}

// decodeBody decodes a JSON request body into v, rejecting unknown fields.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, middleware.MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// parseAddress accepts a 0x-prefixed 20-byte hex address.
func parseAddress(field, s string) (domain.Address, error) {
	if !common.IsHexAddress(s) {
		return domain.Address{}, fmt.Errorf("%s: invalid address %q", field, s)
	}
	return common.HexToAddress(s), nil
}

// caller returns the signature-authenticated caller or writes 401.
func caller(w http.ResponseWriter, r *http.Request) (domain.Address, bool) {
	addr, ok := middleware.Caller(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "request is not signed", Code: "Unauthorized"})
	}
	return addr, ok
}

// parseListOpts extracts pagination from the query string.
// Defaults: limit=50 (max 500), offset=0.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	limit = min(limit, 500)

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	active, _ := strconv.ParseBool(strings.TrimSpace(q.Get("active")))
	return domain.ListOpts{Limit: limit, Offset: offset, ActiveOnly: active}
}

func logHandler(logger *slog.Logger, handler string) *slog.Logger {
	return logger.With(slog.String("handler", handler))
}
