package genotype

import (
	"math"

	"github.com/gonum/matrix/mat64"
)

// MutationMatrix creates F81 nucleotide mutation matrix. Element
// (i, j) is the probability of base i to become base j given the
// expected number of mutations mu and equilibrium frequencies freq.
func MutationMatrix(mu float64, freq [NumBases]float64) *mat64.Dense {
	p := mutationProb(mu, freq)
	m := mat64.NewDense(NumBases, NumBases, nil)
	for i := 0; i < NumBases; i++ {
		for j := 0; j < NumBases; j++ {
			v := p * freq[j]
			if i == j {
				v += 1 - p
			}
			m.Set(i, j, v)
		}
	}
	return m
}

// mutationProb returns the probability of a mutation event for the
// expected number of mutations mu. An event may give the same base.
func mutationProb(mu float64, freq [NumBases]float64) float64 {
	k := 1.0
	for _, f := range freq {
		k -= f * f
	}
	return -math.Expm1(-mu / k)
}

// NoMutationMatrix creates the part of MutationMatrix(mu, freq) where
// no mutation event happens: (1-p)*I. Rows sum to 1-p, so every
// probability computed with it is a joint probability with the absence
// of mutations and never exceeds the one computed with the full matrix.
func NoMutationMatrix(mu float64, freq [NumBases]float64) *mat64.Dense {
	m := IdentityMatrix(NumBases)
	m.Scale(1-mutationProb(mu, freq), m)
	return m
}

// MitosisMatrix creates a genotype transition matrix (10x10) for
// a single cell division given nucleotide mutation matrix m. Both
// alleles mutate independently.
func MitosisMatrix(m *mat64.Dense) *mat64.Dense {
	res := mat64.NewDense(NumGenotypes, NumGenotypes, nil)
	for g1 := 0; g1 < NumGenotypes; g1++ {
		a, b := Alleles(g1)
		for g2 := 0; g2 < NumGenotypes; g2++ {
			c, d := Alleles(g2)
			v := m.At(a, c) * m.At(b, d)
			if c != d {
				v += m.At(a, d) * m.At(b, c)
			}
			res.Set(g1, g2, v)
		}
	}
	return res
}

// gamete returns probability of genotype g to transmit allele x.
func gamete(m *mat64.Dense, g, x int) float64 {
	a, b := Alleles(g)
	return 0.5 * (m.At(a, x) + m.At(b, x))
}

// MeiosisMatrix creates a transition matrix (100x10) from a pair of
// parent genotypes to the child genotype. Row father*10+mother
// corresponds to the parent pair.
func MeiosisMatrix(m *mat64.Dense) *mat64.Dense {
	res := mat64.NewDense(NumPairs, NumGenotypes, nil)
	for f := 0; f < NumGenotypes; f++ {
		for mo := 0; mo < NumGenotypes; mo++ {
			row := f*NumGenotypes + mo
			for g := 0; g < NumGenotypes; g++ {
				x, y := Alleles(g)
				v := gamete(m, f, x) * gamete(m, mo, y)
				if x != y {
					v += gamete(m, f, y) * gamete(m, mo, x)
				}
				res.Set(row, g, v)
			}
		}
	}
	return res
}

// IdentityMatrix creates an identity matrix of size size.
func IdentityMatrix(size int) (m *mat64.Dense) {
	m = mat64.NewDense(size, size, nil)
	for i := 0; i < size; i++ {
		m.Set(i, i, 1)
	}
	return
}

// LibraryMatrix creates the transition from an individual to one of
// its sequencing libraries: somatic mutation followed by library
// preparation errors.
func LibraryMatrix(muSomatic, muPCR float64, freq [NumBases]float64) *mat64.Dense {
	mitosis := MitosisMatrix(MutationMatrix(muSomatic, freq))
	pcr := MitosisMatrix(MutationMatrix(muPCR, freq))
	res := mat64.NewDense(NumGenotypes, NumGenotypes, nil)
	res.Mul(mitosis, pcr)
	log.Debugf("library matrix (mu_somatic=%v, mu_pcr=%v) trace=%v", muSomatic, muPCR, mat64.Trace(res))
	return res
}

// Sum calculates matrix sum.
func Sum(m mat64.Matrix) (s float64) {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			s += math.Abs(m.At(i, j))
		}
	}
	return
}
