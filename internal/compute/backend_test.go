package compute

import (
	"errors"
	"sync/atomic"
	"testing"
)

type fakeBackend struct {
	name      string
	available bool
	cleaned   bool
}

func (f *fakeBackend) Name() string    { return f.name }
func (f *fakeBackend) Available() bool { return f.available }
func (f *fakeBackend) Cleanup()        { f.cleaned = true }
func (f *fakeBackend) Properties(deviceIndex int) Properties {
	return acceleratorProperties(deviceIndex, "CudaPrecision")
}
func (f *fakeBackend) ParallelFor(n int, fn func(int, int)) { fn(0, n) }

func probeOf(b Backend, err error) Probe {
	return Probe{Name: "fake", New: func() (Backend, error) { return b, err }}
}

func TestSelectPriorityOrder(t *testing.T) {
	first := &fakeBackend{name: "cuda", available: true}
	second := &fakeBackend{name: "opencl", available: true}

	s := NewSelector(nil, probeOf(first, nil), probeOf(second, nil), probeOf(NewCPUBackend(), nil))
	b, props, err := s.Select(2)
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if b.Name() != "cuda" {
		t.Errorf("expected cuda, got %s", b.Name())
	}
	if props["DeviceIndex"] != "2" {
		t.Errorf("expected device index 2, got %q", props["DeviceIndex"])
	}
	if props["CudaPrecision"] != "mixed" {
		t.Errorf("expected mixed precision, got %q", props["CudaPrecision"])
	}
}

func TestSelectSkipsFailingProbes(t *testing.T) {
	unavailable := &fakeBackend{name: "cuda", available: false}
	panicking := Probe{Name: "opencl", New: func() (Backend, error) { panic("driver crashed") }}

	s := NewSelector(nil, probeOf(unavailable, nil), panicking, probeOf(nil, errors.New("boom")), probeOf(NewCPUBackend(), nil))
	b, props, err := s.Select(0)
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if b.Name() != "CPU" {
		t.Errorf("expected CPU fallback, got %s", b.Name())
	}
	if len(props) != 0 {
		t.Errorf("expected empty CPU properties, got %v", props)
	}
	if !unavailable.cleaned {
		t.Error("expected unavailable backend to be cleaned up")
	}
}

func TestSelectNoPlatform(t *testing.T) {
	s := NewSelector(nil, probeOf(nil, errors.New("no cuda")), probeOf(&fakeBackend{}, nil))
	_, _, err := s.Select(0)
	if !errors.Is(err, ErrNoPlatform) {
		t.Errorf("expected ErrNoPlatform, got %v", err)
	}
}

func TestDefaultSelectFallsBackToCPU(t *testing.T) {
	b, _, err := Select(0)
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if !b.Available() {
		t.Error("selected backend should be available")
	}
}

func TestProbeAllReportsWorkers(t *testing.T) {
	cpu := NewCPUBackend()
	s := NewSelector(nil, probeOf(&fakeBackend{name: "cuda", available: true}, nil), probeOf(nil, errors.New("no opencl")), probeOf(cpu, nil))
	reports := s.ProbeAll()
	if len(reports) != 3 {
		t.Fatalf("expected 3 reports, got %d", len(reports))
	}
	if !reports[0].Available || reports[0].Workers != 0 {
		t.Errorf("cuda report = %+v", reports[0])
	}
	if reports[1].Available || reports[1].Detail != "no opencl" {
		t.Errorf("opencl report = %+v", reports[1])
	}
	if !reports[2].Available || reports[2].Workers != cpu.Workers() || cpu.Workers() < 1 {
		t.Errorf("cpu report = %+v, workers %d", reports[2], cpu.Workers())
	}
}

func TestParallelForCoversRange(t *testing.T) {
	cpu := NewCPUBackend()
	for _, n := range []int{0, 1, 63, 64, 1000} {
		var sum atomic.Int64
		cpu.ParallelFor(n, func(start, end int) {
			for i := start; i < end; i++ {
				sum.Add(int64(i))
			}
		})
		want := int64(n * (n - 1) / 2)
		if sum.Load() != want {
			t.Errorf("n=%d: expected sum %d, got %d", n, want, sum.Load())
		}
	}
}
