// Package simulator synthesizes Prometheus-style traffic for a fixed
// roster of demo services. The generated shape layers a diurnal curve,
// chaos-scaled Gaussian noise, and randomly injected incidents on top of
// each service's baseline, so burn rates and forecasts have something
// realistic to chew on without any real traffic.
package simulator

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/models"
)

// profile fixes one simulated service's steady-state traffic shape.
type profile struct {
	name          string
	baseRPS       int64
	baseErrorRate float64
}

var roster = []profile{
	{"api-gateway", 10000, 0.001},
	{"user-service", 5000, 0.002},
	{"payment-service", 2000, 0.0005},
	{"inventory-service", 3000, 0.001},
	{"notification-service", 8000, 0.003},
	{"search-service", 6000, 0.002},
	{"recommendation-engine", 4000, 0.001},
	{"auth-service", 7000, 0.0008},
}

// incident marks a service as degraded from startedAt until endAfter has
// elapsed. The duration is rolled once when the incident begins.
type incident struct {
	startedAt time.Time
	endAfter  time.Duration
}

const (
	incidentMinDuration = 5 * time.Minute
	incidentMaxDuration = 30 * time.Minute
)

// Simulator generates metric snapshots. Safe for concurrent use.
type Simulator struct {
	mu        sync.Mutex
	chaos     float64
	rng       *rand.Rand
	incidents map[string]incident

	now func() time.Time
}

// New builds a simulator with a time-based seed. chaosLevel runs from 0.0
// (steady) to 1.0 (chaotic) and is clamped into that range; it scales both
// the noise amplitude and the incident probability.
func New(chaosLevel float64) *Simulator {
	return NewSeeded(chaosLevel, time.Now().UnixNano())
}

// NewSeeded builds a simulator with a fixed seed. Two simulators with the
// same seed, chaos level, and call sequence produce identical snapshots.
func NewSeeded(chaosLevel float64, seed int64) *Simulator {
	return &Simulator{
		chaos:     math.Max(0, math.Min(1, chaosLevel)),
		rng:       rand.New(rand.NewSource(seed)),
		incidents: map[string]incident{},
		now:       time.Now,
	}
}

// ServiceNames lists the roster in generation order.
func ServiceNames() []string {
	names := make([]string, len(roster))
	for i, p := range roster {
		names[i] = p.name
	}
	return names
}

// GenerateSnapshot produces one snapshot per roster service at the given
// instant. A zero timestamp means now.
func (s *Simulator) GenerateSnapshot(at time.Time) []models.MetricSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if at.IsZero() {
		at = s.now().UTC()
	}
	snapshots := make([]models.MetricSnapshot, 0, len(roster))
	for _, p := range roster {
		snapshots = append(snapshots, s.generate(p, at))
	}
	return snapshots
}

// GenerateHistorical produces snapshots for every roster service across
// [now − hours, now] at the given interval, oldest first.
func (s *Simulator) GenerateHistorical(hours int, intervalSeconds int) []models.MetricSnapshot {
	if hours <= 0 || intervalSeconds <= 0 {
		return nil
	}
	end := s.now().UTC()
	start := end.Add(-time.Duration(hours) * time.Hour)

	var snapshots []models.MetricSnapshot
	for t := start; !t.After(end); t = t.Add(time.Duration(intervalSeconds) * time.Second) {
		snapshots = append(snapshots, s.GenerateSnapshot(t)...)
	}
	return snapshots
}

// InjectIncident forces a service into an incident starting now.
func (s *Simulator) InjectIncident(serviceName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incidents[serviceName] = incident{
		startedAt: s.now().UTC(),
		endAfter:  s.rollIncidentDuration(),
	}
}

// ResolveIncident clears a service's incident, if any.
func (s *Simulator) ResolveIncident(serviceName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.incidents, serviceName)
}

// ActiveIncidents lists services currently degraded.
func (s *Simulator) ActiveIncidents() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.incidents))
	for name := range s.incidents {
		names = append(names, name)
	}
	return names
}

// generate rolls one service's snapshot. Caller holds the mutex.
func (s *Simulator) generate(p profile, at time.Time) models.MetricSnapshot {
	// Diurnal traffic curve: trough at midnight, peak mid-day.
	hour := float64(at.Hour())
	dayFactor := 1.0 + 0.3*math.Sin(hour/24*2*math.Pi-math.Pi/2)
	variance := s.gauss(1.0, 0.1*s.chaos)

	inIncident := s.tickIncident(p.name, at)

	rps := int64(float64(p.baseRPS) * dayFactor * variance)
	totalRequests := max(rps, 0)

	var errorRate float64
	if inIncident {
		errorRate = p.baseErrorRate * s.uniform(5, 50)
	} else {
		errorRate = p.baseErrorRate * s.gauss(1.0, 0.2*s.chaos)
	}
	errorRate = math.Max(0, math.Min(1, errorRate))
	errorCount := int64(float64(totalRequests) * errorRate)

	baseLatency := s.uniform(10, 50)
	latencyMultiplier := 1.0
	if inIncident {
		latencyMultiplier = s.uniform(1.5, 3.0)
	}
	p50 := models.RoundTo(baseLatency*latencyMultiplier*s.gauss(1.0, 0.1), 2)
	p95 := models.RoundTo(p50*s.uniform(2, 4), 2)
	p99 := models.RoundTo(p95*s.uniform(1.5, 2.5), 2)

	return models.MetricSnapshot{
		Service:       p.name,
		Timestamp:     at,
		TotalRequests: totalRequests,
		ErrorCount:    errorCount,
		LatencyP50:    &p50,
		LatencyP95:    &p95,
		LatencyP99:    &p99,
	}
}

// tickIncident advances the incident state machine for one service: maybe
// start a new incident, expire an old one, and report whether the service
// is degraded at this instant.
func (s *Simulator) tickIncident(name string, at time.Time) bool {
	inc, active := s.incidents[name]
	if !active && s.rng.Float64() < 0.01*s.chaos {
		inc = incident{startedAt: at, endAfter: s.rollIncidentDuration()}
		s.incidents[name] = inc
		active = true
	}
	if active && at.Sub(inc.startedAt) > inc.endAfter {
		delete(s.incidents, name)
		active = false
	}
	return active
}

func (s *Simulator) rollIncidentDuration() time.Duration {
	lo := int64(incidentMinDuration / time.Second)
	hi := int64(incidentMaxDuration / time.Second)
	return time.Duration(lo+s.rng.Int63n(hi-lo+1)) * time.Second
}

func (s *Simulator) gauss(mean, stddev float64) float64 {
	return s.rng.NormFloat64()*stddev + mean
}

func (s *Simulator) uniform(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}
