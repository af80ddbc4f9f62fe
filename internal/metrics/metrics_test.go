package metrics

import (
	"testing"
)

type recordingBackend struct {
	counters   int
	histograms int
	flushes    int
	closes     int
}

func (r *recordingBackend) IncCounter(string, float64, Labels)       { r.counters++ }
func (r *recordingBackend) ObserveHistogram(string, float64, Labels) { r.histograms++ }
func (r *recordingBackend) Flush() error                             { r.flushes++; return nil }
func (r *recordingBackend) Close() error                             { r.closes++; return nil }

func TestSetBackendForwarding(t *testing.T) {
	t.Cleanup(func() { SetBackend(nil) })

	rec := &recordingBackend{}
	SetBackend(rec)

	IncCounter(NodeTotal, 1, Labels{"operator": "cast_single_data_type", "status": "ok"})
	ObserveHistogram(NodeDurationSeconds, 0.25, Labels{"operator": "cast_single_data_type", "status": "ok"})
	if err := Flush(); err != nil {
		t.Fatalf("Flush() = %v, want nil", err)
	}

	if rec.counters != 1 || rec.histograms != 1 || rec.flushes != 1 {
		t.Fatalf("forwarded counts = (%d,%d,%d), want (1,1,1)", rec.counters, rec.histograms, rec.flushes)
	}
}

func TestCloseRestoresNop(t *testing.T) {
	t.Cleanup(func() { SetBackend(nil) })

	rec := &recordingBackend{}
	SetBackend(rec)

	if err := Close(); err != nil {
		t.Fatalf("Close() = %v, want nil", err)
	}
	if rec.closes != 1 {
		t.Fatalf("closes = %d, want 1", rec.closes)
	}
	if _, ok := Default().(Nop); !ok {
		t.Fatalf("Default() after Close = %T, want Nop", Default())
	}

	// Second close hits the nop backend, not the old one.
	if err := Close(); err != nil {
		t.Fatalf("second Close() = %v, want nil", err)
	}
	if rec.closes != 1 {
		t.Fatalf("closes after second Close = %d, want 1", rec.closes)
	}
}

func TestSetBackendNilRestoresNop(t *testing.T) {
	SetBackend(&recordingBackend{})
	SetBackend(nil)
	if _, ok := Default().(Nop); !ok {
		t.Fatalf("Default() after SetBackend(nil) = %T, want Nop", Default())
	}
}
