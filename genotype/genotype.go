// Package genotype provides diploid genotype bookkeeping, nucleotide
// mutation models and the transition matrices and priors used by the
// pedigree peeling engine.
package genotype

import (
	"fmt"

	"github.com/op/go-logging"
)

// log is a global logging variable.
var log = logging.MustGetLogger("genotype")

const (
	// NumBases is the number of nucleotides.
	NumBases = 4
	// NumGenotypes is the number of unordered diploid genotypes.
	NumGenotypes = NumBases * (NumBases + 1) / 2
	// NumPairs is the number of (father, mother) genotype pairs.
	NumPairs = NumGenotypes * NumGenotypes
	// N is the index of an unknown reference base.
	N = NumBases
	// NumRefs is the number of reference base indices (A, C, G, T, N).
	NumRefs = NumBases + 1
)

// Vector holds one value per genotype.
type Vector [NumGenotypes]float64

var (
	// Bases are the nucleotides in index order.
	Bases = [NumBases]byte{'A', 'C', 'G', 'T'}

	// alleles maps genotype index to its two allele indices.
	alleles [NumGenotypes][2]int
	// index maps an ordered pair of alleles to genotype index.
	index [NumBases][NumBases]int
	// names are the genotype names (AA, AC, ...).
	names [NumGenotypes]string
)

// Alleles returns the two alleles of genotype g, a <= b.
func Alleles(g int) (a, b int) {
	return alleles[g][0], alleles[g][1]
}

// Index returns the genotype index of alleles a and b in any order.
func Index(a, b int) int {
	return index[a][b]
}

// Name returns the genotype name, e.g. "AC".
func Name(g int) string {
	return names[g]
}

// IsHomozygous returns true if genotype has two identical alleles.
func IsHomozygous(g int) bool {
	return alleles[g][0] == alleles[g][1]
}

// BaseIndex converts a nucleotide letter into its index. Any letter
// other than ACGT (either case) yields N.
func BaseIndex(b byte) int {
	switch b {
	case 'A', 'a':
		return 0
	case 'C', 'c':
		return 1
	case 'G', 'g':
		return 2
	case 'T', 't':
		return 3
	}
	return N
}

// Sum returns the sum of all the vector elements.
func (v *Vector) Sum() (s float64) {
	for _, x := range v {
		s += x
	}
	return
}

func (v Vector) String() (s string) {
	s = "<Vector:"
	for g, x := range v {
		s += fmt.Sprintf(" %s: %.4g,", names[g], x)
	}
	return s[:len(s)-1] + ">"
}
