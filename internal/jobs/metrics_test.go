package jobs

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()

	counter, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues(%v) failed: %v", labels, err)
	}
	var m dto.Metric
	if err := counter.Write(&m); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}
	return m.GetCounter().GetValue()
}

func histogramSamples(t *testing.T, vec *prometheus.HistogramVec, labels ...string) (uint64, float64) {
	t.Helper()

	observer, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues(%v) failed: %v", labels, err)
	}
	metric, ok := observer.(prometheus.Metric)
	if !ok {
		t.Fatal("histogram observer does not expose Write")
	}
	var m dto.Metric
	if err := metric.Write(&m); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}
	return m.GetHistogram().GetSampleCount(), m.GetHistogram().GetSampleSum()
}

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()
	if m == nil {
		t.Fatal("NewMetrics() returned nil")
	}
	if got := len(m.Collectors()); got != 3 {
		t.Errorf("expected 3 collectors, got %d", got)
	}
}

func TestMetricsRegister(t *testing.T) {
	t.Run("gathers all families", func(t *testing.T) {
		m := NewMetrics()
		reg := prometheus.NewRegistry()
		if err := m.Register(reg); err != nil {
			t.Fatalf("Register() returned error: %v", err)
		}

		m.IncJobsTotal(JobTypeStandingRecompute, StatusSuccess)
		m.ObserveJobDuration(JobTypeStandingRecompute, 1.0)
		m.IncJobErrors(JobTypeStandingRecompute, "timeout")

		families, err := reg.Gather()
		if err != nil {
			t.Fatalf("Gather() returned error: %v", err)
		}

		found := make(map[string]bool)
		for _, family := range families {
			found[family.GetName()] = true
		}
		for _, name := range []string{
			MetricBackgroundJobsTotal,
			MetricBackgroundJobsDuration,
			MetricBackgroundJobErrorsTotal,
		} {
			if !found[name] {
				t.Errorf("metric %s not found in gathered metrics", name)
			}
		}
	})

	t.Run("duplicate registration fails", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		if err := NewMetrics().Register(reg); err != nil {
			t.Fatalf("first Register() returned error: %v", err)
		}
		if err := NewMetrics().Register(reg); err == nil {
			t.Error("second Register() should have returned an error")
		}
	})
}

func TestIncJobsTotal(t *testing.T) {
	m := NewMetrics()

	tests := []struct {
		jobType string
		status  string
		count   int
	}{
		{JobTypeStandingRecompute, StatusSuccess, 10},
		{JobTypeStandingRecompute, StatusFailure, 2},
		{JobTypeChallengeSweep, StatusSuccess, 5},
		{JobTypeChallengeSweep, StatusFailure, 1},
		{JobTypeIdempotencyCleanup, StatusSuccess, 20},
	}

	for _, tt := range tests {
		for i := 0; i < tt.count; i++ {
			m.IncJobsTotal(tt.jobType, tt.status)
		}
		if got := counterValue(t, m.jobsTotal, tt.jobType, tt.status); got != float64(tt.count) {
			t.Errorf("%s/%s = %f, want %d", tt.jobType, tt.status, got, tt.count)
		}
	}
}

func TestObserveJobDuration(t *testing.T) {
	m := NewMetrics()

	tests := []struct {
		jobType   string
		durations []float64
	}{
		{JobTypeStandingRecompute, []float64{0.5, 1.2, 0.8, 2.5, 1.0}},
		{JobTypeChallengeSweep, []float64{30.5, 45.2, 60.1}},
		{JobTypeIdempotencyCleanup, []float64{0.1, 0.15, 0.2, 0.12}},
	}

	for _, tt := range tests {
		var wantSum float64
		for _, d := range tt.durations {
			m.ObserveJobDuration(tt.jobType, d)
			wantSum += d
		}

		count, sum := histogramSamples(t, m.jobsDuration, tt.jobType)
		if count != uint64(len(tt.durations)) {
			t.Errorf("%s sample count = %d, want %d", tt.jobType, count, len(tt.durations))
		}
		if sum < wantSum*0.99 || sum > wantSum*1.01 {
			t.Errorf("%s sample sum = %f, want approximately %f", tt.jobType, sum, wantSum)
		}
	}
}

func TestIncJobErrors(t *testing.T) {
	m := NewMetrics()

	tests := []struct {
		jobType   string
		errorType string
		count     int
	}{
		{JobTypeStandingRecompute, "timeout", 5},
		{JobTypeStandingRecompute, "database_error", 3},
		{JobTypeChallengeSweep, "validation_error", 2},
		{JobTypeIdempotencyCleanup, "network_error", 1},
	}

	for _, tt := range tests {
		for i := 0; i < tt.count; i++ {
			m.IncJobErrors(tt.jobType, tt.errorType)
		}
		if got := counterValue(t, m.jobErrors, tt.jobType, tt.errorType); got != float64(tt.count) {
			t.Errorf("%s/%s = %f, want %d", tt.jobType, tt.errorType, got, tt.count)
		}
	}
}

func TestJobTypeConstantsUnique(t *testing.T) {
	jobTypes := []string{
		JobTypeStandingRecompute,
		JobTypeChallengeSweep,
		JobTypeIdempotencyCleanup,
	}

	seen := make(map[string]bool)
	for _, jt := range jobTypes {
		if jt == "" {
			t.Error("job type constant is empty")
		}
		if seen[jt] {
			t.Errorf("duplicate job type constant: %s", jt)
		}
		seen[jt] = true
	}

	if StatusSuccess == "" || StatusFailure == "" || StatusSuccess == StatusFailure {
		t.Errorf("status constants invalid: %q / %q", StatusSuccess, StatusFailure)
	}
}

func TestMetricsConcurrency(t *testing.T) {
	m := NewMetrics()
	const goroutines, iterations = 10, 100

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				m.IncJobsTotal(JobTypeStandingRecompute, StatusSuccess)
				m.IncJobsTotal(JobTypeStandingRecompute, StatusFailure)
				m.ObserveJobDuration(JobTypeStandingRecompute, 1.5)
				m.IncJobErrors(JobTypeStandingRecompute, "timeout")
			}
		}()
	}
	wg.Wait()

	expected := float64(goroutines * iterations)
	if got := counterValue(t, m.jobsTotal, JobTypeStandingRecompute, StatusSuccess); got != expected {
		t.Errorf("success count = %f, want %f", got, expected)
	}
	if got := counterValue(t, m.jobsTotal, JobTypeStandingRecompute, StatusFailure); got != expected {
		t.Errorf("failure count = %f, want %f", got, expected)
	}
	if got := counterValue(t, m.jobErrors, JobTypeStandingRecompute, "timeout"); got != expected {
		t.Errorf("error count = %f, want %f", got, expected)
	}
	if count, _ := histogramSamples(t, m.jobsDuration, JobTypeStandingRecompute); count != uint64(goroutines*iterations) {
		t.Errorf("duration sample count = %d, want %d", count, goroutines*iterations)
	}
}

func TestMetricsJobTypesIsolated(t *testing.T) {
	m := NewMetrics()

	jobTypes := []string{
		JobTypeStandingRecompute,
		JobTypeChallengeSweep,
		JobTypeIdempotencyCleanup,
	}
	for _, jt := range jobTypes {
		m.IncJobsTotal(jt, StatusSuccess)
		m.ObserveJobDuration(jt, 2.5)
	}

	for _, jt := range jobTypes {
		if got := counterValue(t, m.jobsTotal, jt, StatusSuccess); got != 1.0 {
			t.Errorf("jobsTotal for %s = %f, want 1.0", jt, got)
		}
		if count, _ := histogramSamples(t, m.jobsDuration, jt); count != 1 {
			t.Errorf("jobsDuration count for %s = %d, want 1", jt, count)
		}
	}
}
