package sd

import "math"

// Stocks is the integrated state vector.
type Stocks struct {
	N float64 `json:"N"`
	C float64 `json:"C"`
	S float64 `json:"S"`
	A float64 `json:"A"`
	F float64 `json:"F"`
}

func (s Stocks) add(o Stocks, h float64) Stocks {
	return Stocks{
		N: s.N + h*o.N,
		C: s.C + h*o.C,
		S: s.S + h*o.S,
		A: s.A + h*o.A,
		F: s.F + h*o.F,
	}
}

// Population is N+C+S, the conserved quantity.
func (s Stocks) Population() float64 { return s.N + s.C + s.S }

// ExposureFractions splits reader attention between contrarian and
// consensus content. Each side's share is its visibility times its number of
// producers; contrarian producers are amplified by frame adoption (neutrals
// echoing contrarian framing). A zero total gives an even split.
func (p Parameters) ExposureFractions(c, s, f float64) (expC, expS float64) {
	vc := p.VisibilityContrarian()
	vs := p.VisibilityConsensus()

	popC := (p.FixedContrarians + c) * (1 + p.SecondaryPropagation*f)
	popS := p.FixedConsensus + s

	total := vc*popC + vs*popS
	if total < 1e-10 {
		return 0.5, 0.5
	}
	return vc * popC / total, vs * popS / total
}

// Susceptibility to contrarian conversion at aggregate arousal a. It grows
// linearly with arousal and is multiplied by up to ThresholdMultiplier once
// arousal passes ThresholdArousal, through a logistic step.
func (p Parameters) Susceptibility(a float64) float64 {
	base := p.BaseSusceptibility * (1 + p.ArousalAmplifier*a)
	return base * (1 + (p.ThresholdMultiplier-1)*smoothStep(a, p.ThresholdArousal, p.ThresholdSmoothing))
}

func smoothStep(x, threshold, smoothing float64) float64 {
	z := (x - threshold) / smoothing
	z = math.Max(-50, math.Min(50, z))
	return 1 / (1 + math.Exp(-z))
}

// ArousalIncrease is emotional contagion from provocative content, bounded
// by the remaining headroom below MaxArousal.
func (p Parameters) ArousalIncrease(expC, a float64) float64 {
	return p.ArousalContagionRate * expC * p.ContrarianProvocativeness * (p.MaxArousal - a)
}

func (p Parameters) ArousalDecay(a float64) float64 {
	return p.ArousalDecayRate * a
}

func (p Parameters) ConversionToContrarian(n, expC, a float64) float64 {
	return p.BaseConversionRate * p.Susceptibility(a) * expC * n
}

// ConversionToConsensus falls with arousal: aroused readers process
// peripherally and nuanced arguments lose out.
func (p Parameters) ConversionToConsensus(n, expS, a float64) float64 {
	sus := p.BaseSusceptibility / (1 + p.ArousalAmplifier*a)
	return p.BaseConversionRate * sus * expS * n
}

// FrameChange is adoption through exposure, reinforced by existing adoption,
// minus decay.
func (p Parameters) FrameChange(f, expC float64) float64 {
	effective := expC * (1 + p.SecondaryPropagation*f)
	return p.FrameAdoptionRate*effective*(1-f) - p.FrameDecayRate*f
}

// Derivatives evaluates dN, dC, dS, dA and dF. Stocks are clamped to their
// valid ranges first, and the two conversion flows are scaled down together
// when they would drain more than the available neutrals.
func (p Parameters) Derivatives(s Stocks) Stocks {
	n := math.Max(0, s.N)
	c := math.Max(0, s.C)
	cs := math.Max(0, s.S)
	a := math.Max(0, math.Min(p.MaxArousal, s.A))
	f := math.Max(0, math.Min(1, s.F))

	expC, expS := p.ExposureFractions(c, cs, f)

	toC := p.ConversionToContrarian(n, expC, a)
	toS := p.ConversionToConsensus(n, expS, a)
	if total := toC + toS; total > n && n > 0 {
		scale := n / total
		toC *= scale
		toS *= scale
	}

	return Stocks{
		N: -toC - toS,
		C: toC,
		S: toS,
		A: p.ArousalIncrease(expC, a) - p.ArousalDecay(a),
		F: p.FrameChange(f, expC),
	}
}

// rk4Step advances s by h with the classic fourth-order Runge-Kutta scheme.
func (p Parameters) rk4Step(s Stocks, h float64) Stocks {
	k1 := p.Derivatives(s)
	k2 := p.Derivatives(s.add(k1, h/2))
	k3 := p.Derivatives(s.add(k2, h/2))
	k4 := p.Derivatives(s.add(k3, h))
	return s.
		add(k1, h/6).
		add(k2, h/3).
		add(k3, h/3).
		add(k4, h/6)
}
