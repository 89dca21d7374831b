package v1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parcelsort/internal/core/apperror"
	"parcelsort/internal/domain/auth"
	"parcelsort/internal/domain/parcel"
	"parcelsort/internal/infrastructure/archive"
	v1 "parcelsort/internal/infrastructure/http/v1"
	"parcelsort/internal/infrastructure/http/v1/dto"
	"parcelsort/internal/infrastructure/http/v1/handlers"
	"parcelsort/internal/infrastructure/http/v1/middleware"
	"parcelsort/internal/infrastructure/idempotency"
	"parcelsort/internal/infrastructure/reader"
	"parcelsort/internal/infrastructure/storage/sqlite"
	"parcelsort/pkg/logger"
)

const testSecret = "test-secret-with-enough-length"

type testAPI struct {
	t      *testing.T
	router http.Handler
	jwt    *auth.JWTService
}

func newTestAPI(t *testing.T, store idempotency.Store, health map[string]handlers.Pinger) *testAPI {
	t.Helper()
	return newTestAPIWithRepo(t, store, health, nil)
}

// conflictOnceRepo fails the first Update as if another scanner won the race.
type conflictOnceRepo struct {
	parcel.Repository
	tripped atomic.Bool
}

func (r *conflictOnceRepo) Update(ctx context.Context, p *parcel.Parcel) error {
	if r.tripped.CompareAndSwap(false, true) {
		return apperror.NewConcurrentModification("parcel", p.TrackingNumber)
	}
	return r.Repository.Update(ctx, p)
}

func newTestAPIWithRepo(t *testing.T, store idempotency.Store, health map[string]handlers.Pinger,
	wrap func(parcel.Repository) parcel.Repository) *testAPI {
	t.Helper()

	db, err := sqlite.Open(sqlite.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close(db) })

	codec := archive.MustCodec()
	t.Cleanup(codec.Close)

	var parcels parcel.Repository = sqlite.NewParcelRepo(db)
	if wrap != nil {
		parcels = wrap(parcels)
	}

	svc := parcel.NewService(parcel.ServiceConfig{
		Parcels:   parcels,
		Batches:   sqlite.NewBatchRepo(db, codec),
		Audit:     sqlite.NewAuditRepo(db),
		TxManager: sqlite.NewTxManager(db),
		Reader:    reader.New(logger.NewNop()),
	})

	jwtService := auth.NewJWTService(auth.DefaultJWTConfig(testSecret))
	router := v1.NewRouter(v1.RouterConfig{
		Parcels:        svc,
		Logger:         logger.NewNop(),
		JWTValidator:   jwtService,
		Idempotency:    store,
		Health:         health,
		MaxUploadBytes: 4096,
	})

	return &testAPI{t: t, router: router, jwt: jwtService}
}

func (a *testAPI) token(operator string, roles ...string) string {
	a.t.Helper()
	if len(roles) == 0 {
		roles = []string{auth.RoleOperator}
	}
	tok, _, err := a.jwt.GenerateAccessToken(operator, roles)
	require.NoError(a.t, err)
	return tok
}

func (a *testAPI) do(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testAPI) upload(token, filename, content string) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(a.t, err)
	_, err = part.Write([]byte(content))
	require.NoError(a.t, err)
	require.NoError(a.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/parcels/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return a.do(req, token)
}

func (a *testAPI) scan(token, trackingNumber, session string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/parcels/scan/"+trackingNumber, nil)
	if session != "" {
		req.Header.Set(middleware.HeaderSessionID, session)
	}
	return a.do(req, token)
}

func (a *testAPI) get(token, path string) *httptest.ResponseRecorder {
	return a.do(httptest.NewRequest(http.MethodGet, path, nil), token)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t, nil, map[string]handlers.Pinger{
		"database": handlers.PingFunc(func(context.Context) error { return nil }),
	})

	assert.Equal(t, http.StatusOK, api.get("", "/health/live").Code)
	assert.Equal(t, http.StatusOK, api.get("", "/health/ready").Code)
}

func TestHealth_NotReady(t *testing.T) {
	api := newTestAPI(t, nil, map[string]handlers.Pinger{
		"database": handlers.PingFunc(func(context.Context) error { return errors.New("down") }),
	})

	w := api.get("", "/health/ready")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "unhealthy: down")
}

func TestAPI_RequiresToken(t *testing.T) {
	api := newTestAPI(t, nil, nil)

	w := api.get("", "/api/v1/parcels/pending")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = api.get("not-a-jwt", "/api/v1/parcels/pending")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", decode[dto.ErrorResponse](t, w).Code)
}

func TestUploadThenScan(t *testing.T) {
	api := newTestAPI(t, nil, nil)
	tok := api.token("alice")

	w := api.upload(tok, "manifest.txt", "JD001 01-01 101\nJD002 01-02 102\nJD002 01-02 102\nbad line\n")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	imported := decode[dto.ImportResponse](t, w)
	assert.Equal(t, "manifest.txt", imported.FileName)
	assert.Equal(t, 2, imported.Imported)
	assert.Equal(t, 1, imported.DuplicatesInFile)

	w = api.scan(tok, "JD001", "SHIFT-A")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	first := decode[dto.ScanResponse](t, w)
	assert.Equal(t, "SCANNED", first.Outcome)
	assert.Equal(t, "101", first.RouteNumber)
	assert.Equal(t, "alice", first.ScannedBy)

	w = api.scan(tok, "JD001", "SHIFT-A")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "REPEATED_SCAN", decode[dto.ScanResponse](t, w).Outcome)

	pending := decode[dto.ListResponse[dto.ParcelResponse]](t, api.get(tok, "/api/v1/parcels/pending"))
	require.Equal(t, 1, pending.Count)
	assert.Equal(t, "JD002", pending.Items[0].TrackingNumber)

	scanned := decode[dto.ListResponse[dto.ParcelResponse]](t, api.get(tok, "/api/v1/parcels?status=scanned"))
	require.Equal(t, 1, scanned.Count)
	assert.Equal(t, "JD001", scanned.Items[0].TrackingNumber)
	require.NotNil(t, scanned.Items[0].ScannedBy)
	assert.Equal(t, "alice", *scanned.Items[0].ScannedBy)

	one := decode[dto.ParcelResponse](t, api.get(tok, "/api/v1/parcels/JD001"))
	assert.Equal(t, "SCANNED", one.Status)
	assert.Equal(t, int64(2), one.Version)

	events := decode[dto.ListResponse[dto.AuditEventResponse]](t, api.get(tok, "/api/v1/audit/session/SHIFT-A"))
	require.Equal(t, 2, events.Count)
	assert.Equal(t, "SCANNED", events.Items[0].Event)
	assert.Equal(t, "REPEATED_SCAN", events.Items[1].Event)

	byParcel := decode[dto.ListResponse[dto.AuditEventResponse]](t, api.get(tok, "/api/v1/audit/parcel/JD001"))
	assert.Equal(t, 2, byParcel.Count)
}

func TestScan_DefaultSession(t *testing.T) {
	api := newTestAPI(t, nil, nil)
	tok := api.token("bob")
	require.Equal(t, http.StatusOK, api.upload(tok, "m.txt", "JD001 01-01 101\n").Code)

	require.Equal(t, http.StatusOK, api.scan(tok, "JD001", "").Code)

	events := decode[dto.ListResponse[dto.AuditEventResponse]](t, api.get(tok, "/api/v1/audit/all"))
	require.Equal(t, 1, events.Count)
	assert.Regexp(t, `^SHIFT-\d{4}-\d{2}-\d{2}-AUTO$`, events.Items[0].SessionID)
}

func TestScan_UnknownTrackingNumber(t *testing.T) {
	api := newTestAPI(t, nil, nil)
	tok := api.token("alice")

	w := api.scan(tok, "NOPE", "S1")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decode[dto.ErrorResponse](t, w).Code)
	events := decode[dto.ListResponse[dto.AuditEventResponse]](t, api.get(tok, "/api/v1/audit/all"))
	assert.Equal(t, 0, events.Count)
}

func TestList_UnknownStatus(t *testing.T) {
	api := newTestAPI(t, nil, nil)

	w := api.get(api.token("alice"), "/api/v1/parcels?status=LOST")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode[dto.ErrorResponse](t, w).Code)
}

func TestUpload_UnsupportedFormat(t *testing.T) {
	api := newTestAPI(t, nil, nil)

	w := api.upload(api.token("alice"), "manifest.csv", "JD001,01-01,101\n")

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	assert.Equal(t, "UNSUPPORTED_FORMAT", decode[dto.ErrorResponse](t, w).Code)
}

func TestUpload_MissingFile(t *testing.T) {
	api := newTestAPI(t, nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/parcels/upload", nil)

	w := api.do(req, api.token("alice"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestImports_ListAndContent(t *testing.T) {
	api := newTestAPI(t, nil, nil)
	tok := api.token("carol")
	manifest := "JD001 01-01 101\n"
	require.Equal(t, http.StatusOK, api.upload(tok, "m.txt", manifest).Code)

	list := decode[dto.ListResponse[dto.BatchResponse]](t, api.get(tok, "/api/v1/parcels/imports?limit=10"))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "carol", list.Items[0].ImportedBy)
	assert.Equal(t, 1, list.Items[0].Report.Imported)

	w := api.get(tok, "/api/v1/parcels/imports/"+list.Items[0].ID+"/content")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, manifest, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "m.txt")

	assert.Equal(t, http.StatusBadRequest, api.get(tok, "/api/v1/parcels/imports?limit=x").Code)
}

func TestClear_RequiresAdmin(t *testing.T) {
	api := newTestAPI(t, nil, nil)
	require.Equal(t, http.StatusOK, api.upload(api.token("alice"), "m.txt", "JD001 01-01 101\n").Code)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/parcels/clear", nil)
	assert.Equal(t, http.StatusForbidden, api.do(req, api.token("alice")).Code)

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/parcels/clear", nil)
	w := api.do(req, api.token("root", auth.RoleAdmin))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, int64(1), decode[parcel.ClearResult](t, w).Parcels)

	pending := decode[dto.ListResponse[dto.ParcelResponse]](t, api.get(api.token("alice"), "/api/v1/parcels/pending"))
	assert.Equal(t, 0, pending.Count)
}

func TestScan_IdempotentReplay(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	api := newTestAPI(t, idempotency.NewRedisStore(client, time.Minute), nil)
	tok := api.token("alice")
	require.Equal(t, http.StatusOK, api.upload(tok, "m.txt", "JD001 01-01 101\n").Code)

	scanWithKey := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/parcels/scan/JD001", nil)
		req.Header.Set(middleware.HeaderIdempotencyKey, "scan-1")
		req.Header.Set(middleware.HeaderSessionID, "S1")
		return api.do(req, tok)
	}

	first := scanWithKey()
	require.Equal(t, http.StatusOK, first.Code)
	second := scanWithKey()
	require.Equal(t, http.StatusOK, second.Code)

	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "SCANNED", decode[dto.ScanResponse](t, second).Outcome)

	// Replay did not reach the service: one audit event only.
	events := decode[dto.ListResponse[dto.AuditEventResponse]](t, api.get(tok, "/api/v1/audit/all"))
	assert.Equal(t, 1, events.Count)
}

func TestScan_RetryAfterConflictWithSameKey(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	api := newTestAPIWithRepo(t, idempotency.NewRedisStore(client, time.Minute), nil,
		func(r parcel.Repository) parcel.Repository { return &conflictOnceRepo{Repository: r} })
	tok := api.token("alice")
	require.Equal(t, http.StatusOK, api.upload(tok, "m.txt", "JD001 01-01 101\n").Code)

	scanWithKey := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/parcels/scan/JD001", nil)
		req.Header.Set(middleware.HeaderIdempotencyKey, "scan-retry")
		req.Header.Set(middleware.HeaderSessionID, "S1")
		return api.do(req, tok)
	}

	first := scanWithKey()
	require.Equal(t, http.StatusConflict, first.Code, first.Body.String())
	assert.Equal(t, "CONCURRENT_MODIFICATION", decode[dto.ErrorResponse](t, first).Code)

	second := scanWithKey()
	require.Equal(t, http.StatusOK, second.Code, second.Body.String())
	assert.Empty(t, second.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, "SCANNED", decode[dto.ScanResponse](t, second).Outcome)

	one := decode[dto.ParcelResponse](t, api.get(tok, "/api/v1/parcels/JD001"))
	assert.Equal(t, "SCANNED", one.Status)

	// The rolled back attempt left no audit event.
	events := decode[dto.ListResponse[dto.AuditEventResponse]](t, api.get(tok, "/api/v1/audit/all"))
	assert.Equal(t, 1, events.Count)
}

func TestScan_NotFoundReplaysWithSameKey(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	api := newTestAPI(t, idempotency.NewRedisStore(client, time.Minute), nil)
	tok := api.token("alice")

	scanWithKey := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/parcels/scan/JD404", nil)
		req.Header.Set(middleware.HeaderIdempotencyKey, "scan-missing")
		return api.do(req, tok)
	}

	require.Equal(t, http.StatusNotFound, scanWithKey().Code)
	second := scanWithKey()
	assert.Equal(t, http.StatusNotFound, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
}
