package compute

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
)

// ErrNoPlatform indicates that every candidate backend failed its probe.
var ErrNoPlatform = errors.New("compute: no usable compute platform")

// Properties are backend-specific engine options, keyed the way the engine
// expects them (for example "DeviceIndex").
type Properties map[string]string

// Backend is a compute platform the simulation engine can run on.
type Backend interface {
	Name() string
	Available() bool
	// Properties returns the options meaningful to this backend only.
	Properties(deviceIndex int) Properties
	// ParallelFor runs fn over [0, n) split in contiguous chunks.
	ParallelFor(n int, fn func(start, end int))
	Cleanup()
}

// Probe constructs a candidate backend. A probe may fail or panic; either
// counts as the backend being unavailable.
type Probe struct {
	Name string
	New  func() (Backend, error)
}

// DefaultProbes is the fixed priority order: CUDA, then OpenCL, then CPU.
func DefaultProbes() []Probe {
	return []Probe{
		{Name: "CUDA", New: func() (Backend, error) { return NewCUDABackend() }},
		{Name: "OpenCL", New: func() (Backend, error) { return NewOpenCLBackend() }},
		{Name: "CPU", New: func() (Backend, error) { return NewCPUBackend(), nil }},
	}
}

// Selector picks the first available backend from an ordered probe list.
type Selector struct {
	probes []Probe
	logger *slog.Logger
}

func NewSelector(logger *slog.Logger, probes ...Probe) *Selector {
	if len(probes) == 0 {
		probes = DefaultProbes()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{probes: probes, logger: logger}
}

// Select returns the first backend that reports itself available together
// with its properties for the preferred device.
func (s *Selector) Select(deviceIndex int) (Backend, Properties, error) {
	for _, p := range s.probes {
		b, err := s.try(p)
		if err != nil {
			s.logger.Debug("compute backend unavailable", "platform", p.Name, "err", err)
			continue
		}
		props := b.Properties(deviceIndex)
		s.logger.Info("selected compute platform", "platform", b.Name(), "properties", props)
		return b, props, nil
	}
	return nil, nil, ErrNoPlatform
}

func (s *Selector) try(p Probe) (b Backend, err error) {
	defer func() {
		if r := recover(); r != nil {
			b, err = nil, fmt.Errorf("probe %s panicked: %v", p.Name, r)
		}
	}()
	b, err = p.New()
	if err != nil {
		return nil, err
	}
	if b == nil || !b.Available() {
		if b != nil {
			b.Cleanup()
		}
		return nil, fmt.Errorf("%s reports not available", p.Name)
	}
	return b, nil
}

// Select probes the default backends in priority order.
func Select(deviceIndex int) (Backend, Properties, error) {
	return NewSelector(nil).Select(deviceIndex)
}

// Report describes one probe outcome for diagnostics.
type Report struct {
	Name      string
	Available bool
	Detail    string
	// Workers is the host goroutine count for backends that report one.
	Workers int
}

// ProbeAll runs every probe without selecting, for the platforms listing.
func (s *Selector) ProbeAll() []Report {
	reports := make([]Report, 0, len(s.probes))
	for _, p := range s.probes {
		b, err := s.try(p)
		if err != nil {
			reports = append(reports, Report{Name: p.Name, Detail: err.Error()})
			continue
		}
		r := Report{Name: p.Name, Available: true, Detail: b.Name()}
		if w, ok := b.(interface{ Workers() int }); ok {
			r.Workers = w.Workers()
		}
		reports = append(reports, r)
		b.Cleanup()
	}
	return reports
}

func acceleratorProperties(deviceIndex int, precisionKey string) Properties {
	return Properties{
		"DeviceIndex": strconv.Itoa(deviceIndex),
		precisionKey:  "mixed",
	}
}
