package stats

import "testing"

func TestHistogramRecordBucketing(t *testing.T) {
	h := NewHistogram([]int64{10, 20})
	h.Record(5)
	h.Record(15)
	h.Record(1000)
	buckets := h.Buckets()
	if buckets[0] != 1 || buckets[1] != 1 || buckets[2] != 1 {
		t.Fatalf("unexpected buckets: %v", buckets)
	}
}

func TestHistogramPercentile(t *testing.T) {
	h := NewHistogram(HistEdgesNs)
	for i := 0; i < 99; i++ {
		h.Record(10_000)
	}
	h.Record(20_000_000)
	p99 := h.Percentile(0.99)
	if p99 < 10_000 {
		t.Fatalf("p99 too low: %d", p99)
	}
}

func TestHistogramPercentileEmpty(t *testing.T) {
	h := NewHistogram(HistEdgesNs)
	if got := h.Percentile(0.99); got != 0 {
		t.Fatalf("expected 0 percentile on empty histogram, got %d", got)
	}
}

func TestSampleStreamDropsOldestWhenFull(t *testing.T) {
	s := NewSampleStream(2)
	s.Push(WakeLatSample{PID: 1})
	s.Push(WakeLatSample{PID: 2})
	s.Push(WakeLatSample{PID: 3})

	if s.Dropped() != 1 {
		t.Fatalf("expected 1 dropped sample, got %d", s.Dropped())
	}

	first, ok := s.TryPop()
	if !ok || first.PID != 2 {
		t.Fatalf("expected oldest surviving sample PID 2, got %+v ok=%v", first, ok)
	}
}

func TestSampleStreamInactiveDropsProduction(t *testing.T) {
	s := NewSampleStream(4)
	s.RingbufActive.Store(false)
	if s.Push(WakeLatSample{PID: 1}) {
		t.Fatalf("expected push to fail while ringbuf inactive")
	}
	if _, ok := s.TryPop(); ok {
		t.Fatalf("expected no samples queued")
	}
}

func TestRegistryAggregate(t *testing.T) {
	r := NewRegistry(2, 16)
	r.CPUs[0].NrDispatches = 5
	r.CPUs[1].NrDispatches = 7
	r.CPUs[0].WakeLatMax = 100
	r.CPUs[1].WakeLatMax = 50

	total := r.Aggregate()
	if total.NrDispatches != 12 {
		t.Fatalf("expected 12 dispatches, got %d", total.NrDispatches)
	}
	if total.WakeLatMax != 100 {
		t.Fatalf("expected max of 100, got %d", total.WakeLatMax)
	}
}
