package pedigree

import (
	"github.com/gonum/matrix/mat64"

	"bitbucket.org/Davydov/dng/genotype"
)

// pairBuffer stores a function of the (father, mother) genotype pair.
// The same 100 numbers are available through two views sharing the
// storage: a flat vector indexed by father*10+mother and a 10x10
// matrix with fathers in rows and mothers in columns. Switching
// between the views never copies or changes the values.
type pairBuffer struct {
	data   []float64
	flat   *mat64.Vector
	square *mat64.Dense
	// squareT is the transposed square view (mothers in rows).
	squareT mat64.Matrix
}

func newPairBuffer() *pairBuffer {
	data := make([]float64, genotype.NumPairs)
	square := mat64.NewDense(genotype.NumGenotypes, genotype.NumGenotypes, data)
	return &pairBuffer{
		data:    data,
		flat:    mat64.NewVector(genotype.NumPairs, data),
		square:  square,
		squareT: square.T(),
	}
}

// Flat returns the flat 100-vector view.
func (b *pairBuffer) Flat() *mat64.Vector {
	return b.flat
}

// Square returns the 10x10 matrix view.
func (b *pairBuffer) Square() *mat64.Dense {
	return b.square
}

// Kronecker stores the Kronecker product of father and mother
// vectors. Written as an outer product into the square view it is
// exactly the Kronecker product in the flat view.
func (b *pairBuffer) Kronecker(father, mother *mat64.Vector) {
	b.square.Outer(1, father, mother)
}

// newVectors allocates n vectors of length size backed by one slice.
func newVectors(n, size int) ([]*mat64.Vector, []float64) {
	data := make([]float64, n*size)
	vs := make([]*mat64.Vector, n)
	for i := range vs {
		vs[i] = mat64.NewVector(size, data[i*size:(i+1)*size:(i+1)*size])
	}
	return vs, data
}
