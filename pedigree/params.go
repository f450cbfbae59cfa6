package pedigree

import (
	"math"

	"github.com/gonum/matrix/mat64"
	"github.com/pkg/errors"

	"bitbucket.org/Davydov/dng/genotype"
	"bitbucket.org/Davydov/dng/ped"
)

// Params are population and mutation parameters.
type Params struct {
	// Theta is the population diversity.
	Theta float64
	// Mu is the germline mutation rate per site per generation.
	Mu float64
	// MuSomatic is the somatic mutation rate.
	MuSomatic float64
	// MuPCR is the library preparation error rate.
	MuPCR float64
	// RefWeight is the extra prior weight of the reference base.
	RefWeight float64
	// NucFreq are nucleotide frequencies (A, C, G, T).
	NucFreq [genotype.NumBases]float64
}

// DefaultParams returns commonly used parameter values.
func DefaultParams() Params {
	return Params{
		Theta:     0.001,
		Mu:        1e-8,
		MuSomatic: 0,
		MuPCR:     0,
		RefWeight: 1,
		NucFreq:   [genotype.NumBases]float64{0.3, 0.2, 0.2, 0.3},
	}
}

// Model holds the transition matrices and the genotype priors
// computed from Params.
type Model struct {
	Params
	// Library is the individual to library transition.
	Library *mat64.Dense
	// Meiosis is the parent pair to child transition.
	Meiosis *mat64.Dense
	// MeiosisNoMut is the part of Meiosis without mutation events, its
	// rows sum to less than one for a positive mutation rate.
	MeiosisNoMut *mat64.Dense
	// Prior is P(G | theta) for every reference index.
	Prior [genotype.NumRefs]genotype.Vector
}

// Initialize validates parameters and computes the model.
func Initialize(par Params) (*Model, error) {
	for _, v := range []struct {
		name string
		val  float64
	}{
		{"mu", par.Mu},
		{"mu_somatic", par.MuSomatic},
		{"mu_pcr", par.MuPCR},
		{"ref_weight", par.RefWeight},
	} {
		if v.val < 0 || math.IsNaN(v.val) || math.IsInf(v.val, 0) {
			return nil, errors.Errorf("%s should be a non-negative number, got %v", v.name, v.val)
		}
	}
	if !(par.Theta > 0) || math.IsInf(par.Theta, 0) {
		return nil, errors.Errorf("theta should be positive, got %v", par.Theta)
	}
	sum := 0.0
	for _, f := range par.NucFreq {
		if !(f > 0) {
			return nil, errors.Errorf("nucleotide frequencies should be positive, got %v", par.NucFreq)
		}
		sum += f
	}
	if math.Abs(sum-1) > 1e-12 {
		log.Warningf("nucleotide frequencies sum to %v, normalizing", sum)
	}
	for i := range par.NucFreq {
		par.NucFreq[i] /= sum
	}

	m := &Model{Params: par}
	m.Library = genotype.LibraryMatrix(par.MuSomatic, par.MuPCR, par.NucFreq)
	m.Meiosis = genotype.MeiosisMatrix(genotype.MutationMatrix(par.Mu, par.NucFreq))
	m.MeiosisNoMut = genotype.MeiosisMatrix(genotype.NoMutationMatrix(par.Mu, par.NucFreq))
	m.Prior = genotype.PopulationPriors(par.Theta, par.NucFreq, par.RefWeight)
	log.Debugf("model: theta=%v, mu=%v, mu_somatic=%v, mu_pcr=%v, ref_weight=%v, freq=%v",
		par.Theta, par.Mu, par.MuSomatic, par.MuPCR, par.RefWeight, par.NucFreq)
	return m, nil
}

// Transitions creates full and no-mutation transition matrices for
// every node of graph g. Mutations are only switched off in meiosis.
func (m *Model) Transitions(g *Graph) (full, nomut *TransitionVector) {
	nNodes := g.NumNodes()
	fm := make([]*mat64.Dense, nNodes)
	nm := make([]*mat64.Dense, nNodes)
	for n := 0; n < nNodes; n++ {
		switch {
		case g.IsLibrary(n):
			fm[n] = m.Library
			nm[n] = m.Library
		case g.HasParents(n):
			fm[n] = m.Meiosis
			nm[n] = m.MeiosisNoMut
		}
	}
	return NewTransitionVector(fm), NewTransitionVector(nm)
}

// Build constructs the graph of pedigree pd with read groups rgs and
// creates an engine for it using model m.
func Build(pd *ped.Pedigree, rgs []ReadGroup, m *Model) (*Pedigree, error) {
	g, err := Construct(pd, rgs)
	if err != nil {
		return nil, err
	}
	full, nomut := m.Transitions(g)
	p, err := New(g.Schedule, full, nomut, m.Prior)
	if err != nil {
		return nil, err
	}
	p.graph = g
	return p, nil
}
