package store

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"bus-tracker/internal/shared/mq"
	"bus-tracker/internal/shared/util"
	"bus-tracker/internal/tracking/domain"
)

type fakeRepo struct {
	mu          sync.Mutex
	saved       map[string]domain.LocationRecord
	failPut     bool
	failRelease bool
	reasons     []string
}

func (r *fakeRepo) UpsertLocation(_ context.Context, rec domain.LocationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failPut {
		return errors.New("connection refused")
	}
	if r.saved == nil {
		r.saved = make(map[string]domain.LocationRecord)
	}
	r.saved[rec.VehicleID] = rec
	return nil
}

func (r *fakeRepo) GetLocation(_ context.Context, id string) (*domain.LocationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.saved[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (r *fakeRepo) ReleaseTracking(_ context.Context, reason string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failRelease {
		return 0, errors.New("connection refused")
	}
	r.reasons = append(r.reasons, reason)
	var n int64
	for id, rec := range r.saved {
		if rec.IsActive {
			rec.IsActive = false
			rec.Sample = nil
			r.saved[id] = rec
			n++
		}
	}
	return n, nil
}

type fakeBroker struct {
	exchanges []string
}

func (b *fakeBroker) Publish(_ context.Context, exchange, _ string, _ interface{}) error {
	b.exchanges = append(b.exchanges, exchange)
	return nil
}

func record(id string, lat float64) domain.LocationRecord {
	return domain.LocationRecord{
		VehicleID: id,
		SessionID: "s1",
		IsActive:  true,
		Sample:    &domain.LocationSample{VehicleID: id, Latitude: lat, Longitude: 76.9},
		UpdatedAt: time.Now(),
	}
}

func TestPut_LastWriteWinsAndFansOut(t *testing.T) {
	repo := &fakeRepo{}
	broker := &fakeBroker{}
	s := New(util.NewWithWriter(io.Discard), WithRepository(repo), WithBroker(broker))

	sub := s.Subscribe("B-12")
	defer sub.Close()

	s.Put(context.Background(), record("B-12", 1))
	s.Put(context.Background(), record("B-12", 2))

	got, _ := s.Get("B-12")
	if got.Sample.Latitude != 2 {
		t.Fatalf("Get latitude = %v, want 2", got.Sample.Latitude)
	}

	select {
	case rec := <-sub.C:
		if rec.Sample.Latitude != 2 {
			t.Errorf("subscriber got latitude %v, want latest 2", rec.Sample.Latitude)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber received nothing")
	}

	if repo.saved["B-12"].Sample.Latitude != 2 {
		t.Errorf("write-through not applied")
	}
	if len(broker.exchanges) != 2 || broker.exchanges[0] != mq.LocationExchange {
		t.Errorf("broker publishes = %v", broker.exchanges)
	}
}

func TestPut_RepositoryFailureKeepsLiveRecord(t *testing.T) {
	s := New(util.NewWithWriter(io.Discard), WithRepository(&fakeRepo{failPut: true}))
	s.Put(context.Background(), record("B-12", 5))

	if rec, ok := s.Get("B-12"); !ok || rec.Sample.Latitude != 5 {
		t.Fatalf("live record lost on persistence failure: %+v", rec)
	}
}

func TestLoad(t *testing.T) {
	repo := &fakeRepo{}
	repo.UpsertLocation(context.Background(), record("OLD-1", 9))

	s := New(util.NewWithWriter(io.Discard), WithRepository(repo))
	s.records.Publish("B-12", record("B-12", 1))

	if rec, err := s.Load(context.Background(), "B-12"); err != nil || rec.Sample.Latitude != 1 {
		t.Errorf("Load live = %+v, %v", rec, err)
	}
	if rec, err := s.Load(context.Background(), "OLD-1"); err != nil || rec.VehicleID != "OLD-1" {
		t.Errorf("Load persisted = %+v, %v", rec, err)
	}
	if _, err := s.Load(context.Background(), "NONE"); !errors.Is(err, domain.ErrVehicleNotFound) {
		t.Errorf("Load missing err = %v", err)
	}

	bare := New(util.NewWithWriter(io.Discard))
	if _, err := bare.Load(context.Background(), "B-12"); !errors.Is(err, domain.ErrVehicleNotFound) {
		t.Errorf("Load without repo err = %v", err)
	}
}

func TestLoad_PersistedRecordIsNeverLive(t *testing.T) {
	repo := &fakeRepo{}
	repo.UpsertLocation(context.Background(), record("B-12", 9))

	s := New(util.NewWithWriter(io.Discard), WithRepository(repo))
	rec, err := s.Load(context.Background(), "B-12")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rec.IsActive || rec.Sample != nil || rec.Visible() {
		t.Errorf("record from a previous run shown as live: %+v", rec)
	}
	if rec.SessionID != "s1" {
		t.Errorf("session id = %q, want s1", rec.SessionID)
	}
}

func TestReleaseOrphaned(t *testing.T) {
	repo := &fakeRepo{}
	repo.UpsertLocation(context.Background(), record("B-12", 9))
	idle := record("B-7", 3)
	idle.IsActive = false
	repo.UpsertLocation(context.Background(), idle)

	s := New(util.NewWithWriter(io.Discard), WithRepository(repo))
	n, err := s.ReleaseOrphaned(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("ReleaseOrphaned = %d, %v; want 1, nil", n, err)
	}
	if got := repo.saved["B-12"]; got.IsActive || got.Sample != nil {
		t.Errorf("persisted record still tracking: %+v", got)
	}
	if len(repo.reasons) != 1 || repo.reasons[0] != domain.StopReasonRestarted {
		t.Errorf("reasons = %v", repo.reasons)
	}

	repo.failRelease = true
	if _, err := s.ReleaseOrphaned(context.Background()); err == nil {
		t.Error("expected release error")
	}
	if n, err := New(util.NewWithWriter(io.Discard)).ReleaseOrphaned(context.Background()); n != 0 || err != nil {
		t.Errorf("without repo = %d, %v", n, err)
	}
}

func TestSnapshot(t *testing.T) {
	s := New(util.NewWithWriter(io.Discard))
	s.Put(context.Background(), record("A", 1))
	s.Put(context.Background(), record("B", 2))

	if n := len(s.Snapshot()); n != 2 {
		t.Fatalf("snapshot size = %d, want 2", n)
	}
}
