package genotype

import (
	"math"

	"github.com/gonum/mathext"
)

// ReadModel is a Dirichlet-multinomial model of the base counts
// observed in one library given its genotype.
type ReadModel struct {
	// ErrorRate is the probability of a sequencing error.
	ErrorRate float64
	// Overdispersion is the correlation between reads in the same
	// library, 0 < Overdispersion < 1.
	Overdispersion float64

	alpha [NumGenotypes][NumBases]float64
	total [NumGenotypes]float64
}

// NewReadModel creates a new ReadModel and precomputes Dirichlet
// parameters for every genotype.
func NewReadModel(errorRate, overdispersion float64) *ReadModel {
	m := &ReadModel{ErrorRate: errorRate, Overdispersion: overdispersion}
	scale := (1 - overdispersion) / overdispersion
	for g := 0; g < NumGenotypes; g++ {
		a, b := Alleles(g)
		for k := 0; k < NumBases; k++ {
			p := 0.5*m.baseProb(k, a) + 0.5*m.baseProb(k, b)
			m.alpha[g][k] = p * scale
			m.total[g] += m.alpha[g][k]
		}
	}
	return m
}

// baseProb returns probability to read base k from allele a.
func (m *ReadModel) baseProb(k, a int) float64 {
	if k == a {
		return 1 - m.ErrorRate
	}
	return m.ErrorRate / 3
}

// LogLikelihoods returns log-probability of the counts for every
// genotype. Zero depth gives zero for all genotypes.
func (m *ReadModel) LogLikelihoods(counts [NumBases]int) (v Vector) {
	n := 0
	for _, c := range counts {
		n += c
	}
	if n == 0 {
		return
	}
	fn := float64(n)
	for g := range v {
		l := math.Log(fn) + mathext.Lbeta(m.total[g], fn)
		for k, c := range counts {
			if c == 0 {
				continue
			}
			fc := float64(c)
			l -= math.Log(fc) + mathext.Lbeta(m.alpha[g][k], fc)
		}
		v[g] = l
	}
	return
}

// Likelihoods returns likelihoods scaled so that the maximum is one,
// and the logarithm of the removed scale.
func (m *ReadModel) Likelihoods(counts [NumBases]int) (v Vector, scale float64) {
	v = m.LogLikelihoods(counts)
	scale = math.Inf(-1)
	for _, l := range v {
		if l > scale {
			scale = l
		}
	}
	for g, l := range v {
		v[g] = math.Exp(l - scale)
	}
	return
}
