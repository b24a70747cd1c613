package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"finbpo/internal/core/apperror"
	appctx "finbpo/internal/core/context"
	"finbpo/internal/infrastructure/idempotency"
)

const HeaderIdempotencyKey = "X-Idempotency-Key"
const maxIdempotencyBodyBytes = 1 << 20 // 1 MiB

// Idempotency middleware replays the stored response of a repeated
// POST/PUT/PATCH carrying the same X-Idempotency-Key. Keys are scoped to the
// caller's company, so it must run after Auth.
func Idempotency(store idempotency.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost &&
			c.Request.Method != http.MethodPut &&
			c.Request.Method != http.MethodPatch {
			c.Next()
			return
		}

		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		companyID, err := appctx.RequireCompanyID(ctx)
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}

		limited := io.LimitReader(c.Request.Body, maxIdempotencyBodyBytes+1)
		body, _ := io.ReadAll(limited)
		if len(body) > maxIdempotencyBodyBytes {
			appErr := apperror.NewValidation("request body too large for idempotency")
			appErr.HTTPStatus = http.StatusRequestEntityTooLarge
			_ = c.Error(appErr.WithDetail("max_bytes", maxIdempotencyBodyBytes))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		hash := sha256.Sum256(body)

		replay, err := store.Acquire(ctx, idempotency.Request{
			CompanyID:   companyID,
			Key:         key,
			UserID:      appctx.GetUserID(ctx),
			Operation:   c.Request.Method + " " + c.FullPath() + " " + c.Request.URL.Path,
			RequestHash: hex.EncodeToString(hash[:]),
		})
		if err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				_ = c.Error(appErr)
			} else {
				_ = c.Error(apperror.NewInternal(err).WithDetail("component", "idempotency"))
			}
			c.Abort()
			return
		}

		if replay != nil {
			c.Header("Idempotent-Replayed", "true")
			c.Data(replay.StatusCode, replay.ContentType, replay.Body)
			c.Abort()
			return
		}

		claim := &idempotency.Claim{Store: store, CompanyID: companyID, Key: key}
		c.Request = c.Request.WithContext(idempotency.WithClaim(ctx, claim))

		c.Next()
	}
}
