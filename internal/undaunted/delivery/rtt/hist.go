package rtt

import (
	"gonum.org/v1/gonum/stat"
	"gopkg.in/eapache/queue.v1"
)

// SlidingWindowHistogram maintains a histogram over a sliding window of data.
type SlidingWindowHistogram struct {
	windowSize int
	data       *queue.Queue
}

// NewSlidingWindowHistogram creates a new SlidingWindowHistogram with a given size.
func NewSlidingWindowHistogram(size int) *SlidingWindowHistogram {
	return &SlidingWindowHistogram{
		windowSize: size,
		data:       queue.New(),
	}
}

// Add adds a new value to the histogram, sliding the window if necessary.
func (h *SlidingWindowHistogram) Add(value float64) {
	if h.data.Length() >= h.windowSize {
		h.data.Remove()
	}
	h.data.Add(value)
}

// Len returns the number of values in the window.
func (h *SlidingWindowHistogram) Len() int {
	return h.data.Length()
}

// Mean calculates the mean of the data in the window.
func (h *SlidingWindowHistogram) Mean() float64 {
	if h.data.Length() == 0 {
		return 0
	}
	return stat.Mean(h.values(), nil)
}

// StdDev calculates the standard deviation of the data in the window.
func (h *SlidingWindowHistogram) StdDev() float64 {
	if h.data.Length() < 2 {
		return 0
	}
	return stat.StdDev(h.values(), nil)
}

// Min returns the smallest value in the window, 0 when empty.
func (h *SlidingWindowHistogram) Min() float64 {
	min := float64(0)
	for i := 0; i < h.data.Length(); i++ {
		value := h.data.Get(i).(float64)
		if i == 0 || value < min {
			min = value
		}
	}
	return min
}

func (h *SlidingWindowHistogram) values() []float64 {
	data := make([]float64, h.data.Length())
	for i := 0; i < h.data.Length(); i++ {
		data[i] = h.data.Get(i).(float64)
	}
	return data
}
