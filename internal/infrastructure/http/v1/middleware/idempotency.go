package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"parcelsort/internal/core/apperror"
	appctx "parcelsort/internal/core/context"
	"parcelsort/internal/infrastructure/idempotency"
)

const HeaderIdempotencyKey = "X-Idempotency-Key"

// gin context keys shared with handlers and ErrorHandler.
const (
	ctxIdempotencyKey   = "idempotency_key"
	ctxIdempotencyStore = "idempotency_store"
)

// Idempotency replays the stored response for a repeated X-Idempotency-Key.
// It applies to POST requests carrying the header; maxBody bounds the hashed body.
func Idempotency(store idempotency.Store, maxBody int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}

		limited := io.LimitReader(c.Request.Body, maxBody+1)
		body, err := io.ReadAll(limited)
		if err != nil {
			_ = c.Error(apperror.NewValidation("cannot read request body"))
			c.Abort()
			return
		}
		if int64(len(body)) > maxBody {
			appErr := apperror.NewValidation("request body too large")
			appErr.HTTPStatus = http.StatusRequestEntityTooLarge
			_ = c.Error(appErr.WithDetail("max_bytes", maxBody))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		hash := sha256.Sum256(body)

		replay, err := store.Acquire(c.Request.Context(), idempotency.Request{
			Key:         key,
			ActorID:     appctx.GetActorID(c.Request.Context()),
			Operation:   c.Request.Method + " " + c.Request.URL.Path,
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

		c.Set(ctxIdempotencyKey, key)
		c.Set(ctxIdempotencyStore, store)

		c.Next()
	}
}

// CompleteIdempotency stores the response for the key acquired by Idempotency, if any.
func CompleteIdempotency(c *gin.Context, status int, contentType string, body []byte) {
	finishIdempotency(c, false, idempotency.Replay{StatusCode: status, ContentType: contentType, Body: body})
}

// ReleaseIdempotency drops the key acquired by Idempotency, if any, so that
// a retry with the same key reaches the handler again.
func ReleaseIdempotency(c *gin.Context) {
	key, store := acquiredKey(c)
	if store == nil {
		return
	}
	if err := store.Release(c.Request.Context(), key); err != nil {
		_ = c.Error(err).SetType(gin.ErrorTypePrivate)
	}
}

func finishIdempotency(c *gin.Context, failed bool, resp idempotency.Replay) {
	key, store := acquiredKey(c)
	if store == nil {
		return
	}

	var err error
	if failed {
		err = store.Fail(c.Request.Context(), key, resp)
	} else {
		err = store.Complete(c.Request.Context(), key, resp)
	}
	if err != nil {
		_ = c.Error(err).SetType(gin.ErrorTypePrivate)
	}
}

func acquiredKey(c *gin.Context) (string, idempotency.Store) {
	key := c.GetString(ctxIdempotencyKey)
	if key == "" {
		return "", nil
	}
	v, ok := c.Get(ctxIdempotencyStore)
	if !ok {
		return "", nil
	}
	store, ok := v.(idempotency.Store)
	if !ok || store == nil {
		return "", nil
	}
	return key, store
}

func idempotencyReplay(status int, body []byte) idempotency.Replay {
	return idempotency.Replay{StatusCode: status, ContentType: "application/json; charset=utf-8", Body: body}
}
