package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"bus-tracker/internal/progress"
	"bus-tracker/internal/shared/middleware"
	"bus-tracker/internal/shared/util"
	"bus-tracker/internal/tracking/app"
	"bus-tracker/internal/tracking/domain"
	"bus-tracker/internal/tracking/store"
)

const secret = "tracking-test-secret"

type memStops struct {
	mu   sync.Mutex
	byID map[string][]progress.RouteStop
}

func (m *memStops) ListStops(_ context.Context, id string) ([]progress.RouteStop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id], nil
}

func (m *memStops) ReplaceStops(_ context.Context, id string, stops []progress.RouteStop) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[id] = stops
	return nil
}

type fixture struct {
	handler  http.Handler
	sessions *app.SessionController
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := util.NewWithWriter(io.Discard)
	locations := store.New(logger)
	sessions := app.NewSessionController(locations, logger)
	stops := &memStops{byID: map[string][]progress.RouteStop{
		"B-12": {
			{ID: "S1", Name: "Main Gate", Latitude: 0, Longitude: 0},
			{ID: "S2", Name: "Library", Latitude: 0, Longitude: 0.001},
			{ID: "S3", Name: "Hostel", Latitude: 0, Longitude: 0.002},
		},
	}}
	prog := progress.NewService(progress.NewEngine(0), stops, locations, logger)

	h := NewHandler(sessions, locations, prog, middleware.NewAuthenticator(secret), logger)
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	return &fixture{handler: h.RegisterRoutes(ok), sessions: sessions}
}

func bearer(t *testing.T, uid, role string) string {
	t.Helper()
	claims := &middleware.Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return "Bearer " + s
}

func (f *fixture) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body, err)
	}
}

func (f *fixture) start(t *testing.T) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/vehicles/B-12/tracking/start", bearer(t, "d1", "driver"), `{"driverLabel":"Ravi"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("start status = %d body=%s", rec.Code, rec.Body)
	}
	var resp startResponse
	decode(t, rec, &resp)
	return resp.SessionID
}

func TestTrackingLifecycle(t *testing.T) {
	f := newFixture(t)
	driver := bearer(t, "d1", "driver")
	student := bearer(t, "s1", "student")

	session := f.start(t)

	rec := f.do(t, http.MethodPost, "/vehicles/B-12/location", driver,
		`{"sessionId":"`+session+`","latitude":0,"longitude":0.001,"speed":5,"heading":90}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("ingest status = %d", rec.Code)
	}
	var out map[string]string
	decode(t, rec, &out)
	if out["outcome"] != "accepted" {
		t.Fatalf("outcome = %q", out["outcome"])
	}

	rec = f.do(t, http.MethodGet, "/vehicles/B-12/location", student, "")
	var view map[string]interface{}
	decode(t, rec, &view)
	if view["isTracking"] != true || view["currentLocation"] == nil || view["trackingSessionId"] != session {
		t.Fatalf("location view = %v", view)
	}

	rec = f.do(t, http.MethodGet, "/vehicles/B-12/progress", student, "")
	var snap progress.Snapshot
	decode(t, rec, &snap)
	if snap.CurrentIndex != 1 || snap.NextIndex != 2 || !snap.IsActive {
		t.Fatalf("progress = %+v", snap)
	}

	for i := 0; i < 2; i++ {
		rec = f.do(t, http.MethodPost, "/vehicles/B-12/tracking/stop", driver, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("stop %d status = %d", i+1, rec.Code)
		}
	}

	rec = f.do(t, http.MethodGet, "/vehicles/B-12/location", student, "")
	view = nil
	decode(t, rec, &view)
	if view["isTracking"] != false || view["currentLocation"] != nil {
		t.Fatalf("stopped vehicle still shows a position: %v", view)
	}
}

func TestIngest_Outcomes(t *testing.T) {
	f := newFixture(t)
	driver := bearer(t, "d1", "driver")

	cases := []struct {
		name string
		body string
		want string
	}{
		{"inactive", `{"sessionId":"x","latitude":1,"longitude":1}`, "dropped_inactive"},
		{"missing coordinates", `{"sessionId":"x"}`, "dropped_malformed"},
	}
	for _, tc := range cases {
		rec := f.do(t, http.MethodPost, "/vehicles/B-12/location", driver, tc.body)
		var out map[string]string
		decode(t, rec, &out)
		if out["outcome"] != tc.want {
			t.Errorf("%s: outcome = %q, want %q", tc.name, out["outcome"], tc.want)
		}
	}

	f.start(t)
	rec := f.do(t, http.MethodPost, "/vehicles/B-12/location", driver, `{"sessionId":"old","latitude":1,"longitude":1}`)
	var out map[string]string
	decode(t, rec, &out)
	if out["outcome"] != "dropped_stale_session" {
		t.Errorf("stale: outcome = %q", out["outcome"])
	}

	if rec := f.do(t, http.MethodPost, "/vehicles/B-12/location", driver, `{`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad json status = %d", rec.Code)
	}
}

func TestAuthorization(t *testing.T) {
	f := newFixture(t)

	if rec := f.do(t, http.MethodPost, "/vehicles/B-12/tracking/start", "", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/vehicles/B-12/tracking/start", bearer(t, "s1", "student"), ""); rec.Code != http.StatusForbidden {
		t.Errorf("student start: %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPut, "/vehicles/B-12/stops", bearer(t, "d1", "driver"), `{"stops":[]}`); rec.Code != http.StatusForbidden {
		t.Errorf("driver edit stops: %d", rec.Code)
	}
}

func TestGetLocation_Unknown(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/vehicles/X-1/location", bearer(t, "s1", "student"), "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestReplaceStops(t *testing.T) {
	f := newFixture(t)
	editor := bearer(t, "c1", "coadmin")

	rec := f.do(t, http.MethodPut, "/vehicles/B-12/stops", editor,
		`{"stops":[{"id":"S9","name":"Depot","latitude":0,"longitude":0,"scheduledTime":"06:45"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}
	var snap progress.Snapshot
	decode(t, rec, &snap)
	if len(snap.Stops) != 1 || snap.Stops[0].StopID != "S9" || snap.Stops[0].Status != progress.StatusNext {
		t.Errorf("snapshot = %+v", snap)
	}

	rec = f.do(t, http.MethodPut, "/vehicles/B-12/stops", editor, `{"stops":[{"id":"S9","name":""}]}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid stop status = %d", rec.Code)
	}
}

func TestVehiclePositionsFeed(t *testing.T) {
	f := newFixture(t)
	session := f.start(t)
	f.do(t, http.MethodPost, "/vehicles/B-12/location", bearer(t, "d1", "driver"),
		`{"sessionId":"`+session+`","latitude":0.5,"longitude":0.5,"speed":3}`)

	rec := f.do(t, http.MethodGet, "/feeds/vehicle-positions?format=json", "", "")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("status = %d ct = %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Body.String(), "B-12") {
		t.Errorf("feed does not include B-12: %s", rec.Body)
	}

	rec = f.do(t, http.MethodGet, "/feeds/vehicle-positions", "", "")
	if rec.Header().Get("Content-Type") != "application/x-protobuf" {
		t.Errorf("ct = %q", rec.Header().Get("Content-Type"))
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) WSFrame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var frame WSFrame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return frame
}

func TestVehicleWS(t *testing.T) {
	f := newFixture(t)
	session := f.start(t)

	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/vehicles/B-12"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(AuthMessage{Type: "auth", Token: bearer(t, "s1", "student")}); err != nil {
		t.Fatal(err)
	}
	if frame := readFrame(t, conn); frame.Type != "auth_success" {
		t.Fatalf("first frame = %+v", frame)
	}

	seen := map[string]bool{}
	for len(seen) < 2 {
		seen[readFrame(t, conn).Type] = true
	}
	if !seen["location"] || !seen["progress"] {
		t.Fatalf("initial frames = %v", seen)
	}

	f.sessions.Ingest(context.Background(), rawAt(session, 0, 0.001))

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		frame := readFrame(t, conn)
		if frame.Type != "progress" {
			continue
		}
		b, _ := json.Marshal(frame.Data)
		var snap progress.Snapshot
		_ = json.Unmarshal(b, &snap)
		if snap.CurrentIndex == 1 {
			return
		}
	}
	t.Fatal("no progress frame for the new position")
}

func TestVehicleWS_RejectsBadToken(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/vehicles/B-12", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.WriteJSON(AuthMessage{Type: "auth", Token: "Bearer nope"})
	if frame := readFrame(t, conn); frame.Type != "error" {
		t.Fatalf("frame = %+v", frame)
	}
}

func rawAt(session string, lat, lng float64) domain.RawSample {
	return domain.RawSample{VehicleID: "B-12", SessionID: session, Latitude: lat, Longitude: lng, Speed: 5}
}
