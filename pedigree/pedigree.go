// Package pedigree computes the likelihood of sequencing data on a
// pedigree and the probability of a de novo mutation at a site.
//
// Messages are passed over families of the pedigree (peeling). For
// every node two genotype vectors are kept: lower, the probability of
// the data below the node given its genotype, and upper, the
// probability of the genotype and the data outside the node's subtree.
// A Pedigree owns these buffers, so a single instance must not be used
// from several goroutines; use Clone to create an engine per worker.
package pedigree

import (
	"math"

	"github.com/gonum/matrix/mat64"
	"github.com/op/go-logging"
	"github.com/pkg/errors"

	"bitbucket.org/Davydov/dng/genotype"
)

// log is a global logging variable.
var log = logging.MustGetLogger("pedigree")

// TransitionVector stores a transition matrix for every node, nil for
// nodes without parents. Library edges have 10x10 matrices, meiosis
// edges have 100x10 matrices with rows indexed by father*10+mother.
type TransitionVector struct {
	mats  []*mat64.Dense
	trans []mat64.Matrix
}

// NewTransitionVector creates a TransitionVector from per-node
// matrices.
func NewTransitionVector(mats []*mat64.Dense) *TransitionVector {
	tv := &TransitionVector{
		mats:  mats,
		trans: make([]mat64.Matrix, len(mats)),
	}
	for n, m := range mats {
		if m != nil {
			tv.trans[n] = m.T()
		}
	}
	return tv
}

// Len returns the number of nodes.
func (tv *TransitionVector) Len() int {
	return len(tv.mats)
}

// At returns the transition matrix of node n.
func (tv *TransitionVector) At(n int) *mat64.Dense {
	return tv.mats[n]
}

// Pedigree is a peeling engine for one pedigree.
type Pedigree struct {
	schedule *Schedule
	full     *TransitionVector
	nomut    *TransitionVector
	prior    [genotype.NumRefs]genotype.Vector
	graph    *Graph

	// Holds P(Data & G=g)
	upper     []*mat64.Vector
	upperData []float64
	// Holds P(Data | G=g)
	lower     []*mat64.Vector
	lowerData []float64

	buffer   *pairBuffer
	siblings *pairBuffer
	tmp      *mat64.Vector
	father   *mat64.Vector
	mother   *mat64.Vector
}

// New creates a new engine from a schedule, full and no-mutation
// transition matrices and genotype priors for every reference index.
// Schedule and matrices are not modified and can be shared.
func New(s *Schedule, full, nomut *TransitionVector, prior [genotype.NumRefs]genotype.Vector) (*Pedigree, error) {
	if err := s.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid schedule")
	}
	if err := checkTransitions(s, full); err != nil {
		return nil, errors.Wrap(err, "full transition matrices")
	}
	if err := checkTransitions(s, nomut); err != nil {
		return nil, errors.Wrap(err, "no-mutation transition matrices")
	}
	p := &Pedigree{
		schedule: s,
		full:     full,
		nomut:    nomut,
		prior:    prior,
	}
	p.allocate()
	log.Debugf("new pedigree engine: %d nodes, %d families", s.NumNodes(), len(s.Families))
	return p, nil
}

// checkTransitions verifies that every matrix used by the schedule is
// present and has the right shape.
func checkTransitions(s *Schedule, tv *TransitionVector) error {
	if tv == nil || tv.Len() != s.NumNodes() {
		return errors.New("need one matrix per node")
	}
	check := func(n, rows int) error {
		m := tv.At(n)
		if m == nil {
			return errors.Errorf("no transition matrix for node %d", n)
		}
		if r, c := m.Dims(); r != rows || c != genotype.NumGenotypes {
			return errors.Errorf("node %d: expected %dx%d matrix, got %dx%d", n, rows, genotype.NumGenotypes, r, c)
		}
		return nil
	}
	for i, op := range s.Ops {
		fam := s.Families[i]
		switch op {
		case PeelUp, PeelUp2, PeelDown:
			if err := check(fam[1], genotype.NumGenotypes); err != nil {
				return err
			}
		default:
			for _, c := range fam[2:] {
				if err := check(c, genotype.NumPairs); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// allocate creates message and scratch buffers.
func (p *Pedigree) allocate() {
	nNodes := p.schedule.NumNodes()
	p.upper, p.upperData = newVectors(nNodes, genotype.NumGenotypes)
	p.lower, p.lowerData = newVectors(nNodes, genotype.NumGenotypes)
	// nodes which are never peeled to carry no information
	for i := range p.lowerData {
		p.lowerData[i] = 1
	}
	p.buffer = newPairBuffer()
	p.siblings = newPairBuffer()
	p.tmp = mat64.NewVector(genotype.NumGenotypes, nil)
	p.father = mat64.NewVector(genotype.NumGenotypes, nil)
	p.mother = mat64.NewVector(genotype.NumGenotypes, nil)
}

// Clone creates an engine sharing schedule, matrices and priors but
// having its own message buffers. Library evidence is not copied.
func (p *Pedigree) Clone() *Pedigree {
	newP := &Pedigree{
		schedule: p.schedule,
		full:     p.full,
		nomut:    p.nomut,
		prior:    p.prior,
		graph:    p.graph,
	}
	newP.allocate()
	return newP
}

// Size returns the number of nodes.
func (p *Pedigree) Size() int {
	return p.schedule.NumNodes()
}

// NumLibraries returns the number of library leaves.
func (p *Pedigree) NumLibraries() int {
	return p.schedule.NumLibraries
}

// Schedule returns the traversal order.
func (p *Pedigree) Schedule() *Schedule {
	return p.schedule
}

// Graph returns the graph the engine was built from, nil if the
// engine was created directly from a schedule.
func (p *Pedigree) Graph() *Graph {
	return p.graph
}

// LibraryLower returns lower message of library k. The slice aliases
// the engine storage and must be filled with genotype likelihoods
// before every query.
func (p *Pedigree) LibraryLower(k int) []float64 {
	n := p.schedule.NumMembers + k
	return p.lowerData[n*genotype.NumGenotypes : (n+1)*genotype.NumGenotypes]
}

// SetLibraryLower copies genotype likelihoods of library k.
func (p *Pedigree) SetLibraryLower(k int, v *genotype.Vector) {
	copy(p.LibraryLower(k), v[:])
}

// Lower returns a copy of lower message of node n.
func (p *Pedigree) Lower(n int) (v genotype.Vector) {
	copy(v[:], p.lowerData[n*genotype.NumGenotypes:])
	return
}

// Upper returns a copy of upper message of node n.
func (p *Pedigree) Upper(n int) (v genotype.Vector) {
	copy(v[:], p.upperData[n*genotype.NumGenotypes:])
	return
}

// LogPeelAll seeds upper messages of all individuals with the prior
// for reference index ref, runs all the families of the schedule
// using transition matrices mat and returns the log-likelihood summed
// over the roots.
func (p *Pedigree) LogPeelAll(mat *TransitionVector, ref int) float64 {
	prior := p.prior[ref][:]
	for n := 0; n < p.schedule.NumMembers; n++ {
		copy(p.upperData[n*genotype.NumGenotypes:], prior)
	}

	for i, fam := range p.schedule.Families {
		peelFuncs[p.schedule.Ops[i]](p, fam, mat)
	}

	ret := 0.0
	for _, r := range p.schedule.Roots {
		ret += math.Log(mat64.Dot(p.lower[r], p.upper[r]))
	}
	return ret
}

// CalculateLogLikelihood returns log-likelihood of the current library
// data under the full model.
func (p *Pedigree) CalculateLogLikelihood(ref int) float64 {
	return p.LogPeelAll(p.full, ref)
}

// CalculateMutProbability returns probability of at least one de novo
// mutation in the pedigree given the current library data.
func (p *Pedigree) CalculateMutProbability(ref int) float64 {
	bottom := p.LogPeelAll(p.full, ref)
	top := p.LogPeelAll(p.nomut, ref)
	// abs removes negative zero and round-off
	return math.Abs(math.Expm1(top - bottom))
}
