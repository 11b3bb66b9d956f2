package perfsample

import "testing"

func TestNewSamplerEmptyCPUListIsUnavailable(t *testing.T) {
	s := NewSampler(nil)
	if s.Available() {
		t.Fatalf("expected sampler over an empty CPU list to be unavailable")
	}
}

func TestReadCPUOnUnavailableSamplerErrors(t *testing.T) {
	s := NewSampler(nil)
	if _, _, err := s.ReadCPU(0); err == nil {
		t.Fatalf("expected error reading from unavailable sampler")
	}
}

func TestCloseOnUnavailableSamplerIsSafe(t *testing.T) {
	s := NewSampler(nil)
	s.Close() // must not panic even though nothing was opened
}
