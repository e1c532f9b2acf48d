package rtt

import (
	"math"
	"sync"
	"time"
)

// Options configures an Estimator. All durations are bounds for the computed
// retransmission timeout estimate.
type Options struct {
	// InitialRTO is the estimate before the first sample
	InitialRTO time.Duration

	// MinRTO and MaxRTO clamp the estimate
	MinRTO time.Duration
	MaxRTO time.Duration

	// MinRTTVAR is the lower bound of the variance used for the estimate
	MinRTTVAR time.Duration

	// Alpha and Beta are the EWMA weights of SRTT and RTTVAR
	Alpha float64
	Beta  float64

	// K is the factor applied to RTTVAR
	K float64

	// HistorySize is the number of per-interval minimum RTTs kept for the base RTT
	HistorySize int
}

// NewDefaultOptions returns the RFC 6298 style defaults.
func NewDefaultOptions() Options {
	return Options{
		InitialRTO:  time.Second,
		MinRTO:      10 * time.Millisecond,
		MaxRTO:      60 * time.Second,
		MinRTTVAR:   time.Millisecond,
		Alpha:       0.125,
		Beta:        0.25,
		K:           4,
		HistorySize: 10,
	}
}

// Snapshot is a point-in-time view of an Estimator.
type Snapshot struct {
	Samples int
	SRTT    time.Duration
	RTTVAR  time.Duration
	RTO     time.Duration
	BaseRTT time.Duration
	MeanRTT time.Duration
}

// Estimator keeps smoothed RTT statistics. It is safe for concurrent use.
type Estimator struct {
	options Options
	mutex   sync.Mutex
	samples int
	srtt    float64
	rttvar  float64
	rto     float64
	minRTT  float64
	hist    *SlidingWindowHistogram
}

// NewEstimator creates an Estimator without samples.
func NewEstimator(options Options) *Estimator {
	return &Estimator{
		options: options,
		rto:     float64(options.InitialRTO),
		minRTT:  math.MaxFloat64,
		hist:    NewSlidingWindowHistogram(options.HistorySize),
	}
}

// Update adds a RTT measurement.
func (e *Estimator) Update(rtt time.Duration) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	sample := float64(rtt)
	if e.samples == 0 {
		e.srtt = sample
		e.rttvar = sample / 2
	} else {
		e.rttvar = (1-e.options.Beta)*e.rttvar + e.options.Beta*math.Abs(e.srtt-sample)
		e.srtt = (1-e.options.Alpha)*e.srtt + e.options.Alpha*sample
	}
	e.samples++
	e.updateRTO()
	if sample < e.minRTT {
		e.minRTT = sample
	}
}

// UpdateHistory closes the current interval and records its minimum RTT.
func (e *Estimator) UpdateHistory() {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if e.minRTT == math.MaxFloat64 {
		return
	}
	e.hist.Add(e.minRTT)
	e.minRTT = math.MaxFloat64
}

// Snapshot returns the current statistics.
func (e *Estimator) Snapshot() Snapshot {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	return Snapshot{
		Samples: e.samples,
		SRTT:    time.Duration(e.srtt),
		RTTVAR:  time.Duration(e.rttvar),
		RTO:     time.Duration(e.rto),
		BaseRTT: time.Duration(e.hist.Min()),
		MeanRTT: time.Duration(e.hist.Mean()),
	}
}

func (e *Estimator) updateRTO() {
	rto := math.Max(float64(e.options.MinRTO), e.srtt+e.options.K*math.Max(e.rttvar, float64(e.options.MinRTTVAR)))
	e.rto = math.Min(rto, float64(e.options.MaxRTO))
}
