package digitalll

import (
	"math"

	"github.com/charmbracelet/log"
)

// symbolRecoveryTaps is the number of input samples the interpolator
// touches per output sample (linear interpolation between two
// neighboring input samples).
const symbolRecoveryTaps = 2

// SymbolRecoveryConfig mirrors digital_ll_make_clock_recovery_mm_ff's
// constructor arguments.
type SymbolRecoveryConfig struct {
	Omega              float64
	GainOmega          float64
	Mu                 float64
	GainMu             float64
	OmegaRelativeLimit float64
}

// SymbolRecovery implements Mueller & Müller timing-error tracking
// over a non-integer resampling ratio, re-stamping rx_time/rx_rate
// tags through the rate change it performs. Go counterpart of
// digital_ll_clock_recovery_mm_ff. It operates on float64 samples: the
// M&M loop needs real arithmetic, unlike the otherwise item-agnostic
// operators.
type SymbolRecovery struct {
	omega              float64
	omegaMid           float64
	omegaRelativeLimit float64
	gainOmega          float64
	gainMu             float64
	mu                 float64
	lastSample         float64

	relativeRate float64 // 1/omega at construction time, frozen for offset math
	sampleOffset float64 // fractional carry across calls

	totalRead    uint64 // nitems_read(0) as of the start of this call
	totalWritten uint64 // nitems_written(0) as of the start of this call

	haveRef         bool
	refTime         Timestamp
	refSampleOffset uint64
	refRate         float64

	logger *log.Logger
}

// NewSymbolRecovery validates cfg and builds a SymbolRecovery.
func NewSymbolRecovery(cfg SymbolRecoveryConfig) (*SymbolRecovery, error) {
	if cfg.Omega < 1 {
		return nil, newConfigError("SymbolRecovery", "omega", "must be >= 1")
	}
	if cfg.GainMu < 0 || cfg.GainOmega < 0 {
		return nil, newConfigError("SymbolRecovery", "gain_omega/gain_mu", "must be non-negative")
	}
	return &SymbolRecovery{
		omega:              cfg.Omega,
		omegaMid:           cfg.Omega,
		omegaRelativeLimit: cfg.OmegaRelativeLimit,
		gainOmega:          cfg.GainOmega,
		mu:                 cfg.Mu,
		gainMu:             cfg.GainMu,
		relativeRate:       1.0 / cfg.Omega,
		refRate:            1,
		logger:             componentLogger("SymbolRecovery"),
	}, nil
}

func sign(x float64) float64 {
	if x < 0 {
		return -1
	}
	return 1
}

func clip(x, mid, limit float64) float64 {
	d := x - mid
	if d > limit {
		d = limit
	} else if d < -limit {
		d = -limit
	}
	return mid + d
}

func (s *SymbolRecovery) interpolate(in []float64, ii int) float64 {
	return in[ii] + s.mu*(in[ii+1]-in[ii])
}

// tagBoundary records the (output_index, input_index) pair observed
// when a tag at offset was first encountered, the unit the tag
// re-stamping math operates over.
type tagBoundary struct {
	offset uint64
	oo, ii int
}

// Work implements StreamOperator for float64 samples.
func (s *SymbolRecovery) Work(in []float64, out []float64, inTags []StreamTag) (WorkResult, []StreamTag) {
	absN := s.totalRead
	ni := len(in) - symbolRecoveryTaps
	if ni < 0 {
		ni = 0
	}

	tags := append([]StreamTag(nil), inTags...)
	SortTagsByOffset(tags)

	boundaries := []tagBoundary{{offset: absN}}
	var timeTags, rateTags, otherTags []StreamTag

	s.sampleOffset = float64(s.totalWritten) - float64(absN)*s.relativeRate

	ii, oo := 0, 0
	tagIdx := 0
	finalII, finalOO := 0, 0

	for oo < len(out) && ii < ni {
		out[oo] = s.interpolate(in, ii)
		mmVal := sign(s.lastSample)*out[oo] - sign(out[oo])*s.lastSample
		s.lastSample = out[oo]

		s.omega += s.gainOmega * mmVal
		s.omega = clip(s.omega, s.omegaMid, s.omegaRelativeLimit)
		s.mu = s.mu + s.omega + s.gainMu*mmVal

		for tagIdx < len(tags) && uint64(ii)+absN >= tags[tagIdx].Offset {
			tag := tags[tagIdx]
			if boundaries[len(boundaries)-1].offset != tag.Offset {
				boundaries = append(boundaries, tagBoundary{offset: tag.Offset, oo: oo, ii: ii})
			}
			switch tag.Key {
			case TagRxTime:
				timeTags = append(timeTags, tag)
			case TagRxRate:
				rateTags = append(rateTags, tag)
			default:
				otherTags = append(otherTags, tag)
			}
			tagIdx++
		}

		finalII, finalOO = ii, oo
		step := int(math.Floor(s.mu))
		ii += step
		s.mu -= math.Floor(s.mu)
		oo++
	}

	boundaries = append(boundaries, tagBoundary{offset: absN + uint64(finalII), oo: finalOO, ii: finalII})

	var emitted []StreamTag
	if finalOO > 0 {
		timeIdx, rateIdx, otherIdx := 0, 0, 0
		for i := 0; i < len(boundaries)-1; i++ {
			for timeIdx < len(timeTags) && boundaries[i].offset >= timeTags[timeIdx].Offset {
				if ts, ok := timeTags[timeIdx].RxTimeValue(); ok {
					s.refTime = ts
					s.refSampleOffset = timeTags[timeIdx].Offset
					s.haveRef = true
				}
				timeIdx++
			}
			for rateIdx < len(rateTags) && boundaries[i].offset >= rateTags[rateIdx].Offset {
				if rate, ok := rateTags[rateIdx].RxRateValue(); ok {
					s.refRate = rate
				}
				rateIdx++
			}

			dOO := boundaries[i+1].oo - boundaries[i].oo
			dII := boundaries[i+1].ii - boundaries[i].ii
			outRate := s.refRate
			if dOO != 0 && dII != 0 {
				outRate = s.refRate * (float64(dOO) / float64(dII))
			}

			currentOffset := boundaries[i].oo - int(float64(boundaries[i].ii)*s.relativeRate)
			outOffsetF := float64(boundaries[i].offset)*s.relativeRate + s.sampleOffset + float64(currentOffset)
			outOffset := uint64(outOffsetF)

			for otherIdx < len(otherTags) && boundaries[i].offset >= otherTags[otherIdx].Offset {
				tag := otherTags[otherIdx]
				tagOffsetF := float64(tag.Offset)*s.relativeRate + s.sampleOffset + float64(currentOffset)
				tag.Offset = uint64(tagOffsetF)
				emitted = append(emitted, tag)
				otherIdx++
			}

			if s.haveRef {
				elapsed := (float64(boundaries[i].ii) + float64(absN) - float64(s.refSampleOffset)) / s.refRate
				ts := s.refTime.AddSeconds(elapsed)
				emitted = append(emitted,
					StreamTag{Offset: outOffset, Key: TagRxTime, Value: ts, SrcID: "SymbolRecovery"},
					StreamTag{Offset: outOffset, Key: TagRxRate, Value: outRate, SrcID: "SymbolRecovery"},
				)
			}
		}

		s.sampleOffset = float64(finalOO) + float64(s.totalWritten) - (float64(finalII)+float64(absN))*s.relativeRate
	}

	// Any tags beyond the processed input range still update the
	// reference for the next call, without being re-stamped now.
	for i := tagIdx; i < len(tags); i++ {
		switch tags[i].Key {
		case TagRxTime:
			if ts, ok := tags[i].RxTimeValue(); ok {
				s.refTime = ts
				s.refSampleOffset = tags[i].Offset
				s.haveRef = true
			}
		case TagRxRate:
			if rate, ok := tags[i].RxRateValue(); ok {
				s.refRate = rate
			}
		}
	}

	SortTagsByOffset(emitted)

	s.totalRead += uint64(finalII)
	s.totalWritten += uint64(finalOO)

	return WorkResult{Produced: finalOO, Consumed: finalII}, emitted
}
