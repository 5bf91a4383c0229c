package metrics

import (
	"errors"
	"testing"
	"time"
)

type call struct {
	kind   string
	name   string
	value  float64
	labels Labels
}

type recorder struct {
	calls   []call
	flushed int
}

func (r *recorder) IncCounter(name string, delta float64, labels Labels) {
	r.calls = append(r.calls, call{"counter", name, delta, labels})
}

func (r *recorder) ObserveHistogram(name string, value float64, labels Labels) {
	r.calls = append(r.calls, call{"histogram", name, value, labels})
}

func (r *recorder) Flush() error {
	r.flushed++
	return nil
}

func install(t *testing.T) *recorder {
	t.Helper()
	r := &recorder{}
	prev := SetBackend(r)
	t.Cleanup(func() { SetBackend(prev) })
	return r
}

func TestRecordStep(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status string
	}{
		{"success", nil, "success"},
		{"failure", errors.New("boom"), "failure"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := install(t)
			RecordStep("common_import", tt.err, 1500*time.Millisecond)
			if len(r.calls) != 2 {
				t.Fatalf("calls = %d, want 2", len(r.calls))
			}
			c, h := r.calls[0], r.calls[1]
			if c.name != StepTotal || c.value != 1 || c.labels["status"] != tt.status || c.labels["step"] != "common_import" {
				t.Errorf("counter = %+v", c)
			}
			if h.name != StepDurationSeconds || h.value != 1.5 {
				t.Errorf("histogram = %+v", h)
			}
		})
	}
}

func TestRecordRows(t *testing.T) {
	r := install(t)
	RecordRows("stops", 0)
	RecordRows("stops", -3)
	RecordRows("stops", 12)
	if len(r.calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(r.calls))
	}
	if c := r.calls[0]; c.name != RowsTotal || c.value != 12 || c.labels["table"] != "stops" {
		t.Errorf("call = %+v", c)
	}
}

func TestDefaultBackendIsSafe(t *testing.T) {
	prev := SetBackend(nil)
	defer SetBackend(prev)
	RecordStep("x", nil, time.Second)
	RecordRows("x", 1)
	if err := Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}

func TestFlushDelegates(t *testing.T) {
	r := install(t)
	if err := Flush(); err != nil {
		t.Fatal(err)
	}
	if r.flushed != 1 {
		t.Errorf("flushed = %d", r.flushed)
	}
}
