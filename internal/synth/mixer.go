package synth

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
)

// Mixer owns one Bank per channel and sums them into interleaved stereo.
type Mixer struct {
	mu         sync.Mutex
	sampleRate int
	params     Params
	banks      map[int]*Bank
	masterGain uint64
	acc        []float64
	dcPrevInL  float64
	dcPrevOutL float64
	dcPrevInR  float64
	dcPrevOutR float64
}

func NewMixer(sampleRate int, params Params) *Mixer {
	return &Mixer{
		sampleRate: sampleRate,
		params:     params,
		banks:      map[int]*Bank{},
		masterGain: math.Float64bits(0.3),
	}
}

func (m *Mixer) SampleRate() int { return m.sampleRate }

// Bank returns the bank routed to channel ch, creating it on first use.
func (m *Mixer) Bank(ch int) *Bank {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.banks[ch]
	if !ok {
		b = NewBank(m.sampleRate, m.params)
		m.banks[ch] = b
	}
	return b
}

// Banks returns every bank ordered by channel.
func (m *Mixer) Banks() []*Bank {
	m.mu.Lock()
	defer m.mu.Unlock()
	chans := make([]int, 0, len(m.banks))
	for ch := range m.banks {
		chans = append(chans, ch)
	}
	sort.Ints(chans)
	out := make([]*Bank, 0, len(chans))
	for _, ch := range chans {
		out = append(out, m.banks[ch])
	}
	return out
}

func (m *Mixer) SetMasterGain(gain float64) {
	if gain < 0 || math.IsNaN(gain) {
		gain = 0
	}
	atomic.StoreUint64(&m.masterGain, math.Float64bits(gain))
}

func (m *Mixer) masterGainValue() float64 {
	return math.Float64frombits(atomic.LoadUint64(&m.masterGain))
}

// Silence cuts every bank immediately.
func (m *Mixer) Silence() {
	for _, b := range m.Banks() {
		b.Silence()
	}
	m.mu.Lock()
	m.dcPrevInL, m.dcPrevOutL, m.dcPrevInR, m.dcPrevOutR = 0, 0, 0, 0
	m.mu.Unlock()
}

func (m *Mixer) ActiveVoiceCount() int {
	n := 0
	for _, b := range m.Banks() {
		n += b.ActiveVoiceCount()
	}
	return n
}

// Process renders len(dst)/2 stereo frames.
func (m *Mixer) Process(dst []float32) {
	banks := m.Banks()

	m.mu.Lock()
	defer m.mu.Unlock()
	if cap(m.acc) < len(dst) {
		m.acc = make([]float64, len(dst))
	}
	acc := m.acc[:len(dst)]
	for i := range acc {
		acc[i] = 0
	}
	for _, b := range banks {
		b.mix(acc)
	}
	gain := m.masterGainValue()
	for i := 0; i+1 < len(dst); i += 2 {
		l := m.dcBlockL(acc[i] * gain)
		r := m.dcBlockR(acc[i+1] * gain)
		dst[i] = float32(clamp(l, -1, 1))
		dst[i+1] = float32(clamp(r, -1, 1))
	}
	if len(dst)%2 == 1 {
		dst[len(dst)-1] = 0
	}
}

func (m *Mixer) dcBlockL(x float64) float64 {
	const r = 0.995
	y := x - m.dcPrevInL + r*m.dcPrevOutL
	m.dcPrevInL = x
	m.dcPrevOutL = y
	return y
}

func (m *Mixer) dcBlockR(x float64) float64 {
	const r = 0.995
	y := x - m.dcPrevInR + r*m.dcPrevOutR
	m.dcPrevInR = x
	m.dcPrevOutR = y
	return y
}
