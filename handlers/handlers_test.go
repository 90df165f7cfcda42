package handlers

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"petsos/barcode"
	"petsos/models"
	"petsos/sos"
)

type testServer struct {
	svc *sos.Service
	mux *http.ServeMux
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	svc := sos.NewMemoryService()
	t.Cleanup(func() { svc.Close() })

	mux := http.NewServeMux()
	Register(mux,
		NewSOSHandler(svc, logger),
		NewLiveHandler(svc, []string{"*"}, logger),
		NewBarcodeHandler(barcode.NewGenerator(), logger),
	)
	return &testServer{svc: svc, mux: mux}
}

func (s *testServer) do(t *testing.T, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(raw)
	}
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, httptest.NewRequest(method, target, buf))
	return rec
}

func (s *testServer) create(t *testing.T) models.SOSCase {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/sos", models.SOSRequest{
		RequesterID:  uuid.New(),
		IncidentType: models.IncidentBreathing,
		Pickup:       models.Coordinate{Latitude: 13.75, Longitude: 100.5},
		Notes:        "short of breath",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var c models.SOSCase
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))
	return c
}

func decodeCase(t *testing.T, rec *httptest.ResponseRecorder) models.SOSCase {
	t.Helper()
	var c models.SOSCase
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))
	return c
}

func TestCreateAndList(t *testing.T) {
	s := newTestServer(t)
	created := s.create(t)

	assert.Equal(t, models.StatusPending, created.Status)
	assert.Equal(t, models.PriorityUrgent, created.Priority)
	require.Len(t, created.Events, 1)
	assert.Equal(t, "SOS created", created.Events[0].Message)

	rec := s.do(t, http.MethodGet, "/api/sos", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Cases []models.SOSCase `json:"cases"`
		Count int              `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, created.ID, body.Cases[0].ID)
}

func TestCreate_RejectsBadInput(t *testing.T) {
	s := newTestServer(t)

	tests := map[string]interface{}{
		"missing requester": models.SOSRequest{IncidentType: models.IncidentOther},
		"bad incident":      models.SOSRequest{RequesterID: uuid.New(), IncidentType: "fire"},
		"bad priority":      models.SOSRequest{RequesterID: uuid.New(), IncidentType: models.IncidentOther, Priority: "whenever"},
		"not json":          "{",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/sos", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestRiderLifecycle(t *testing.T) {
	s := newTestServer(t)
	c := s.create(t)
	rider := uuid.New()

	rec := s.do(t, http.MethodPost, "/api/sos/accept", CaseActionRequest{CaseID: c.ID, RiderID: rider})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.StatusAssigned, decodeCase(t, rec).Status)

	eta := 7
	rec = s.do(t, http.MethodPost, "/api/sos/en-route", CaseActionRequest{CaseID: c.ID, RiderID: rider, ETAMinutes: &eta})
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeCase(t, rec)
	assert.Equal(t, models.StatusEnRoute, got.Status)
	assert.Equal(t, "Rider en route (ETA 7m)", got.Events[len(got.Events)-1].Message)

	rec = s.do(t, http.MethodPost, "/api/sos/beacon", CaseActionRequest{CaseID: c.ID, Location: &models.Coordinate{Latitude: 13.7, Longitude: 100.4}})
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/sos/arrived", CaseActionRequest{CaseID: c.ID, RiderID: rider})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.StatusArrived, decodeCase(t, rec).Status)

	rec = s.do(t, http.MethodPost, "/api/sos/complete", CaseActionRequest{CaseID: c.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	done := decodeCase(t, rec)
	assert.Equal(t, models.StatusCompleted, done.Status)
	require.NotNil(t, done.LastKnownLocation)
	assert.Equal(t, 13.7, done.LastKnownLocation.Latitude)

	rec = s.do(t, http.MethodGet, "/api/sos/case?id="+c.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeCase(t, rec).Events, 6)
}

func TestErrorStatusMapping(t *testing.T) {
	s := newTestServer(t)
	c := s.create(t)

	rec := s.do(t, http.MethodPost, "/api/sos/cancel", CaseActionRequest{CaseID: c.ID, Reason: "found him"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "SOS cancelled: found him", decodeCase(t, rec).Events[1].Message)

	rec = s.do(t, http.MethodPost, "/api/sos/accept", CaseActionRequest{CaseID: c.ID, RiderID: uuid.New()})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/sos/complete", CaseActionRequest{CaseID: uuid.New()})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "error")

	rec = s.do(t, http.MethodGet, "/api/sos/case?id=nope", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/sos/accept", CaseActionRequest{CaseID: c.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/sos/cancel", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestBestEffortEndpointsAlwaysAccept(t *testing.T) {
	s := newTestServer(t)
	missing := uuid.New()

	rec := s.do(t, http.MethodPost, "/api/sos/decline", CaseActionRequest{CaseID: missing, RiderID: uuid.New()})
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/sos/beacon", CaseActionRequest{CaseID: missing, Location: &models.Coordinate{}})
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/sos/beacon", CaseActionRequest{CaseID: missing})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportCSV(t *testing.T) {
	s := newTestServer(t)
	c := s.create(t)

	rec := s.do(t, http.MethodGet, "/api/sos/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Disposition"), "attachment; filename=sos_cases_"))

	rows, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, exportHeader, rows[0])
	assert.Equal(t, c.ID.String(), rows[1][0])
	assert.Equal(t, "pending", rows[1][1])
	assert.Equal(t, "", rows[1][5])
	assert.Equal(t, "SOS created", rows[1][12])
}

func TestBarcodeEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/barcodes", GenerateBarcodesRequest{Species: "dog", Count: 3})
	require.Equal(t, http.StatusCreated, rec.Code)
	var body struct {
		Codes []string `json:"codes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Codes, 3)
	for _, code := range body.Codes {
		assert.NoError(t, barcode.Validate(code))
		assert.True(t, strings.HasPrefix(code, "PET-DOG-"))
	}

	rec = s.do(t, http.MethodPost, "/api/barcodes", GenerateBarcodesRequest{Species: "fish"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/barcodes", GenerateBarcodesRequest{Species: "cat", Count: 500})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/barcodes/validate?code=PET-DOG-0000-000000-05", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"code":"PET-DOG-0000-000000-05","valid":true}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/barcodes/validate?code=PET-DOG-0000-000000-06", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"valid":false`)
}

func TestLiveStream_ReplaysThenStreams(t *testing.T) {
	s := newTestServer(t)
	existing := s.create(t)

	srv := httptest.NewServer(s.mux)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/sos/live"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var frame SnapshotFrame
	require.NoError(t, conn.ReadJSON(&frame))
	require.Equal(t, 1, frame.Count)
	assert.Equal(t, existing.ID, frame.Cases[0].ID)

	second := s.create(t)
	require.NoError(t, conn.ReadJSON(&frame))
	require.Equal(t, 2, frame.Count)
	ids := []uuid.UUID{frame.Cases[0].ID, frame.Cases[1].ID}
	assert.ElementsMatch(t, []uuid.UUID{existing.ID, second.ID}, ids)
}
