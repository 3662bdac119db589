package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	eventdomain "trustgate/internal/event/domain"
)

type stubCounts struct {
	critical int
	high     int
	err      error
}

func (c *stubCounts) CountBySeveritySince(ctx context.Context, actorID string, severity eventdomain.Severity, since time.Time) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	switch severity {
	case eventdomain.SeverityCritical:
		return c.critical, nil
	case eventdomain.SeverityHigh:
		return c.high, nil
	}
	return 0, nil
}

type stubDevices struct {
	fingerprints []string
	err          error
}

func (d *stubDevices) ListFingerprintsByUserSince(ctx context.Context, userID string, since time.Time) ([]string, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.fingerprints, nil
}

type sinkRecorder struct {
	mu     sync.Mutex
	events []*eventdomain.Event
}

func (s *sinkRecorder) RecordBestEffort(ctx context.Context, e *eventdomain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func newTestService(counts *stubCounts, devices *stubDevices) (*Service, *sinkRecorder) {
	sink := &sinkRecorder{}
	return New(counts, devices, sink, nil), sink
}

func TestAlreadySufficient(t *testing.T) {
	svc, sink := newTestService(&stubCounts{}, &stubDevices{})
	res, err := svc.Elevate(context.Background(), "u1", 96, LevelCritical, "fp1", "")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || res.Method != MethodAlreadySufficient || res.NewScore != 96 {
		t.Fatalf("result = %+v", res)
	}
	if len(sink.events) != 1 {
		t.Errorf("attempt should be logged, got %d events", len(sink.events))
	}
}

func TestBoostCappedByDeficit(t *testing.T) {
	// Score 80 toward the critical threshold of 95: the deficit of 15 wins
	// over the cap of 20, and a clean history keeps the whole boost.
	svc, _ := newTestService(&stubCounts{}, &stubDevices{fingerprints: []string{"fp1"}})
	res, err := svc.Elevate(context.Background(), "u1", 80, LevelCritical, "fp1", "")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || res.NewScore != 95 || res.Method != MethodScoreBoost {
		t.Fatalf("result = %+v", res)
	}
}

func TestBoostCappedByMax(t *testing.T) {
	// A score of 60 toward elevated (85) has a deficit of 25, exactly the
	// elevated cap, so a clean run succeeds at the threshold.
	svc, _ := newTestService(&stubCounts{}, &stubDevices{fingerprints: []string{"fp1"}})
	res, err := svc.Elevate(context.Background(), "u1", 60, LevelElevated, "fp1", "")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || res.NewScore != 85 {
		t.Fatalf("result = %+v", res)
	}
}

func TestInsufficientBaseScore(t *testing.T) {
	cases := []struct {
		level Level
		score int
	}{
		{LevelCritical, 74},
		{LevelElevated, 59},
		{LevelNormal, 49},
	}
	for _, tc := range cases {
		svc, _ := newTestService(&stubCounts{}, &stubDevices{})
		res, err := svc.Elevate(context.Background(), "u1", tc.score, tc.level, "fp1", "")
		if err != nil {
			t.Fatal(err)
		}
		if res.Success || res.Reason != ReasonInsufficientBaseScore {
			t.Fatalf("%s/%d: result = %+v", tc.level, tc.score, res)
		}
		if res.NewScore != tc.score {
			t.Errorf("%s/%d: score must not change on gate failure, got %d", tc.level, tc.score, res.NewScore)
		}
		if len(res.RequiredSteps) != 1 || res.RequiredSteps[0] != "Full re-authentication required" {
			t.Errorf("%s/%d: steps = %v", tc.level, tc.score, res.RequiredSteps)
		}
	}
}

func TestEventPenalties(t *testing.T) {
	// Deficit 20 at normal (50 -> 70), minus 5x1 critical and 2x2 high = 11
	// boost, landing at 61: denied.
	svc, _ := newTestService(&stubCounts{critical: 1, high: 2}, &stubDevices{fingerprints: []string{"fp1"}})
	res, err := svc.Elevate(context.Background(), "u1", 50, LevelNormal, "fp1", "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Success || res.NewScore != 61 || res.Method != MethodDenied {
		t.Fatalf("result = %+v", res)
	}
}

func TestUnknownDevicePenalty(t *testing.T) {
	svc, _ := newTestService(&stubCounts{}, &stubDevices{fingerprints: []string{"other-fp"}})
	res, err := svc.Elevate(context.Background(), "u1", 55, LevelNormal, "new-fp", "")
	if err != nil {
		t.Fatal(err)
	}
	// Deficit 15, minus 10 for the unfamiliar device: 60, below 70.
	if res.Success || res.NewScore != 60 {
		t.Fatalf("result = %+v", res)
	}
	if len(res.RequiredSteps) == 0 || res.RequiredSteps[0] != "New device verification required" {
		t.Errorf("steps = %v", res.RequiredSteps)
	}
}

func TestBoostNeverNegative(t *testing.T) {
	svc, _ := newTestService(&stubCounts{critical: 10}, &stubDevices{})
	res, err := svc.Elevate(context.Background(), "u1", 55, LevelNormal, "fp1", "")
	if err != nil {
		t.Fatal(err)
	}
	if res.NewScore != 55 {
		t.Fatalf("heavy penalties must clamp the boost at zero, got %+v", res)
	}
}

func TestScoreClamps(t *testing.T) {
	svc, _ := newTestService(&stubCounts{}, &stubDevices{fingerprints: []string{"fp1"}})

	res, err := svc.Elevate(context.Background(), "u1", 150, LevelNormal, "fp1", "")
	if err != nil {
		t.Fatal(err)
	}
	if res.NewScore > 100 {
		t.Fatalf("score above 100: %+v", res)
	}

	res, err = svc.Elevate(context.Background(), "u1", -5, LevelNormal, "fp1", "")
	if err != nil {
		t.Fatal(err)
	}
	if res.NewScore < 0 {
		t.Fatalf("score below 0: %+v", res)
	}
}

func TestElevateNeverLowersScore(t *testing.T) {
	for _, score := range []int{50, 60, 75, 80, 94} {
		for _, level := range []Level{LevelNormal, LevelElevated, LevelCritical} {
			svc, _ := newTestService(&stubCounts{critical: 3, high: 5}, &stubDevices{})
			res, err := svc.Elevate(context.Background(), "u1", score, level, "fp1", "")
			if err != nil {
				t.Fatal(err)
			}
			if res.NewScore < score {
				t.Fatalf("%s/%d: newScore %d dropped below input", level, score, res.NewScore)
			}
		}
	}
}

func TestUnknownLevel(t *testing.T) {
	svc, _ := newTestService(&stubCounts{}, &stubDevices{})
	if _, err := svc.Elevate(context.Background(), "u1", 80, Level("extreme"), "fp1", ""); !errors.Is(err, ErrUnknownLevel) {
		t.Fatalf("err = %v", err)
	}
}

func TestCountFailureDegradesToZero(t *testing.T) {
	svc, _ := newTestService(&stubCounts{err: errors.New("store down")}, &stubDevices{fingerprints: []string{"fp1"}})
	res, err := svc.Elevate(context.Background(), "u1", 80, LevelCritical, "fp1", "")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || res.NewScore != 95 {
		t.Fatalf("count failure should degrade to zero penalties, got %+v", res)
	}
}

func TestAuditPayloadCarriesComputation(t *testing.T) {
	svc, sink := newTestService(&stubCounts{critical: 1, high: 1}, &stubDevices{fingerprints: []string{"fp1"}})
	_, err := svc.Elevate(context.Background(), "u1", 65, LevelElevated, "fp1", "203.0.113.9")
	if err != nil {
		t.Fatal(err)
	}
	if len(sink.events) != 1 {
		t.Fatalf("events = %d", len(sink.events))
	}
	p, ok := sink.events[0].Payload.(eventdomain.TrustElevationPayload)
	if !ok {
		t.Fatalf("payload = %#v", sink.events[0].Payload)
	}
	// Deficit 20, capped at 25, minus 5+2 = 13.
	if p.CurrentScore != 65 || p.ScoreBoost != 13 || p.NewScore != 78 {
		t.Errorf("payload = %+v", p)
	}
	if p.CriticalEvents != 1 || p.HighEvents != 1 || !p.KnownDevice {
		t.Errorf("context = %+v", p)
	}
}
