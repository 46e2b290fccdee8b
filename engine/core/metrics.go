package core

const AVG_COUNT uint8 = 30

// FrameMetrics tracks frame timing and the failure counters the run loop
// uses to decide when the device is likely gone.
type FrameMetrics struct {
	FrameAVGCounter    uint8
	MStimes            [AVG_COUNT]float64
	MSavg              float64
	Frames             int32
	AccumulatedFrameMS float64
	FPS                float64

	FramesRendered      uint64
	FramesDropped       uint64
	ConsecutiveFailures uint32
	TotalFailures       uint64
	Recreations         uint64
}

func NewFrameMetrics() *FrameMetrics {
	return &FrameMetrics{}
}

// Update feeds the elapsed time of one frame, in seconds.
func (m *FrameMetrics) Update(frameElapsedTime float64) {
	// Calculate frame ms average
	frameMS := frameElapsedTime * 1000.0
	m.MStimes[m.FrameAVGCounter] = frameMS
	if m.FrameAVGCounter == AVG_COUNT-1 {
		m.MSavg = 0
		for i := uint8(0); i < AVG_COUNT; i++ {
			m.MSavg += m.MStimes[i]
		}
		m.MSavg /= float64(AVG_COUNT)
	}
	m.FrameAVGCounter++
	m.FrameAVGCounter %= AVG_COUNT

	// Calculate Frames per second.
	m.AccumulatedFrameMS += frameMS
	if m.AccumulatedFrameMS > 1000 {
		m.FPS = float64(m.Frames)
		m.AccumulatedFrameMS -= 1000
		m.Frames = 0
	}

	// Count all Frames.
	m.Frames++
}

// FrameSucceeded resets the consecutive failure streak.
func (m *FrameMetrics) FrameSucceeded() {
	m.FramesRendered++
	m.ConsecutiveFailures = 0
}

// FrameFailed records a frame-fatal error and returns the current streak.
func (m *FrameMetrics) FrameFailed() uint32 {
	m.FramesDropped++
	m.TotalFailures++
	m.ConsecutiveFailures++
	return m.ConsecutiveFailures
}

func (m *FrameMetrics) SwapchainRecreated() {
	m.Recreations++
}

func (m *FrameMetrics) Frame() (float64, float64) {
	return m.FPS, m.MSavg
}
