package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/sealedpool/internal/crypto"
	"github.com/alanyoungcy/sealedpool/internal/domain"
)

// MaxBodyBytes bounds the request bodies the signature check buffers.
const MaxBodyBytes = 1 << 20

type callerKey struct{}

// Caller returns the address authenticated by Signature, if any.
func Caller(ctx context.Context) (domain.Address, bool) {
	addr, ok := ctx.Value(callerKey{}).(domain.Address)
	return addr, ok
}

// WithCaller returns ctx carrying addr as the authenticated caller.
func WithCaller(ctx context.Context, addr domain.Address) context.Context {
	return context.WithValue(ctx, callerKey{}, addr)
}

// SignatureConfig controls request signature verification.
type SignatureConfig struct {
	MaxSkew time.Duration
	Guard   domain.ReplayGuard
	Now     func() time.Time
}

// Signature authenticates mutating requests (POST, PUT, PATCH, DELETE).
// The signer address, unix timestamp and signature travel in the
// X-Auction-* headers. A request is rejected when the timestamp is outside
// MaxSkew, the signature does not recover to the claimed address, or the
// same request was already accepted under any signature encoding. Safe methods pass through.
func Signature(cfg SignatureConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !mutating(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			addrHex := r.Header.Get(crypto.HeaderAddress)
			tsRaw := r.Header.Get(crypto.HeaderTimestamp)
			sig := r.Header.Get(crypto.HeaderSignature)
			if !common.IsHexAddress(addrHex) || tsRaw == "" || sig == "" {
				writeJSONError(w, http.StatusUnauthorized, "missing or malformed signature headers", "Unauthorized")
				return
			}
			ts, err := strconv.ParseInt(tsRaw, 10, 64)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "malformed timestamp", "Unauthorized")
				return
			}
			if skew := cfg.Now().Sub(time.Unix(ts, 0)); skew > cfg.MaxSkew || -skew > cfg.MaxSkew {
				writeJSONError(w, http.StatusUnauthorized, "timestamp outside allowed skew", "Unauthorized")
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
			if err != nil {
				writeJSONError(w, http.StatusBadRequest, "reading body", "BadRequest")
				return
			}
			if len(body) > MaxBodyBytes {
				writeJSONError(w, http.StatusRequestEntityTooLarge, "body too large", "BadRequest")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			claimed := common.HexToAddress(addrHex)
			if err := crypto.VerifyRequest(claimed, r.Method, r.URL.Path, ts, body, sig); err != nil {
				logger.WarnContext(r.Context(), "signature rejected",
					slog.String("address", claimed.Hex()),
					slog.String("path", r.URL.Path),
				)
				writeJSONError(w, http.StatusUnauthorized, "invalid signature", "Unauthorized")
				return
			}

			if cfg.Guard != nil {
				// A signature stays valid for MaxSkew on either side of its timestamp.
				key := crypto.ReplayKey(claimed, r.Method, r.URL.Path, ts, body)
				err := cfg.Guard.Claim(r.Context(), key, 2*cfg.MaxSkew)
				if errors.Is(err, domain.ErrAlreadyExists) {
					writeJSONError(w, http.StatusUnauthorized, "signature already used", "Replay")
					return
				}
				if err != nil {
					logger.ErrorContext(r.Context(), "replay guard unavailable", slog.String("error", err.Error()))
					writeJSONError(w, http.StatusServiceUnavailable, "replay guard unavailable", "Unavailable")
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), claimed)))
		})
	}
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
