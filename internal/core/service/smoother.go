package service

// GridPowerSmoother keeps the most recent grid power samples and exposes their mean.
// The mean is returned even before the window is full; callers gate irreversible
// actions on Full.
type GridPowerSmoother struct {
	size    int
	samples []float64
}

func NewGridPowerSmoother(size int) *GridPowerSmoother {
	if size < 1 {
		size = 1
	}
	return &GridPowerSmoother{
		size:    size,
		samples: make([]float64, 0, size),
	}
}

// Update appends sample, evicting the oldest when at capacity, and returns the new mean
func (s *GridPowerSmoother) Update(sample float64) float64 {
	if len(s.samples) == s.size {
		copy(s.samples, s.samples[1:])
		s.samples = s.samples[:s.size-1]
	}
	s.samples = append(s.samples, sample)
	return s.Mean()
}

func (s *GridPowerSmoother) Mean() float64 {
	if len(s.samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range s.samples {
		sum += v
	}
	return sum / float64(len(s.samples))
}

func (s *GridPowerSmoother) Len() int {
	return len(s.samples)
}

func (s *GridPowerSmoother) Full() bool {
	return len(s.samples) == s.size
}
