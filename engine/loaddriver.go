package engine

import "time"

// LoadTestRequest configures one Load Driver run.
type LoadTestRequest struct {
	ApiKey          string
	RequestsPerSec  float64
	DurationSeconds float64
	Endpoint        string
}

// Validate rejects non-positive rate or duration.
func (r LoadTestRequest) Validate() error {
	if r.ApiKey == "" {
		return &BadInputError{Field: "apiKey", Reason: "required"}
	}
	if r.RequestsPerSec <= 0 {
		return &BadInputError{Field: "requestsPerSecond", Reason: "must be positive"}
	}
	if r.DurationSeconds <= 0 {
		return &BadInputError{Field: "durationSeconds", Reason: "must be positive"}
	}
	return nil
}

// Driver issues Decide calls against the in-process Gateway at a target
// rate for a target duration. A single loop is sufficient; parallelism
// is not required since the driver exists to exercise the gateway's
// timing contract, not to maximize throughput.
type Driver struct {
	gateway *Gateway
}

// NewDriver wraps gateway for load-test runs.
func NewDriver(gateway *Gateway) *Driver {
	return &Driver{gateway: gateway}
}

// Run spaces decide() calls by 1/rps of wall-clock delay and reports
// totals once the requested duration has elapsed.
func (d *Driver) Run(req LoadTestRequest) (TestResult, error) {
	if err := req.Validate(); err != nil {
		return TestResult{}, err
	}

	interval := time.Duration(float64(time.Second) / req.RequestsPerSec)
	deadline := time.Now().Add(time.Duration(req.DurationSeconds * float64(time.Second)))

	var total, allowed, blocked int64
	started := time.Now()

	for time.Now().Before(deadline) {
		result, err := d.gateway.Decide(req.ApiKey, req.Endpoint)
		if err != nil {
			// KeyUnknown or a registry failure aborts the run early —
			// there is nothing further the driver can usefully measure.
			return TestResult{}, err
		}
		total++
		if result.Allowed {
			allowed++
		} else {
			blocked++
		}
		time.Sleep(interval)
	}

	actual := time.Since(started)
	return TestResult{
		TotalRequests:     total,
		Allowed:           allowed,
		Blocked:           blocked,
		SuccessRate:       successRate(allowed, total),
		ActualDuration:    actual,
		RequestsPerSecond: req.RequestsPerSec,
	}, nil
}
