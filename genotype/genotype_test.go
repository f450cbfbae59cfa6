package genotype

import (
	"math"
	"testing"

	"github.com/gonum/matrix/mat64"
	"github.com/op/go-logging"
)

// smallDiff is a threshold for float comparisons.
const smallDiff = 1e-10

var uniformFreq = [NumBases]float64{0.25, 0.25, 0.25, 0.25}

func init() {
	logging.SetLevel(logging.WARNING, "genotype")
}

func checkRowSums(tst *testing.T, name string, m *mat64.Dense) {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		s := 0.0
		for j := 0; j < c; j++ {
			if m.At(i, j) < 0 {
				tst.Errorf("%s: negative element (%d, %d)=%v", name, i, j, m.At(i, j))
			}
			s += m.At(i, j)
		}
		if math.Abs(s-1) > smallDiff {
			tst.Errorf("%s: row %d sums to %v", name, i, s)
		}
	}
}

func TestIndexAlleles(tst *testing.T) {
	if NumGenotypes != 10 {
		tst.Fatal("Expected 10 genotypes, got", NumGenotypes)
	}
	for g := 0; g < NumGenotypes; g++ {
		a, b := Alleles(g)
		if a > b {
			tst.Error("Alleles are not ordered for", g)
		}
		if Index(a, b) != g || Index(b, a) != g {
			tst.Error("Index mismatch for", Name(g))
		}
	}
	if Name(0) != "AA" || Name(1) != "AC" || Name(9) != "TT" {
		tst.Error("Unexpected genotype order", Name(0), Name(1), Name(9))
	}
	if BaseIndex('g') != 2 || BaseIndex('N') != N || BaseIndex('*') != N {
		tst.Error("Wrong base index")
	}
}

func TestMutationMatrix(tst *testing.T) {
	freq := [NumBases]float64{0.3, 0.2, 0.2, 0.3}
	m := MutationMatrix(1e-3, freq)
	checkRowSums(tst, "mutation", m)

	m0 := MutationMatrix(0, freq)
	for i := 0; i < NumBases; i++ {
		for j := 0; j < NumBases; j++ {
			exp := 0.0
			if i == j {
				exp = 1
			}
			if m0.At(i, j) != exp {
				tst.Errorf("mu=0: expected %v at (%d, %d), got %v", exp, i, j, m0.At(i, j))
			}
		}
	}
}

func TestNoMutationMatrix(tst *testing.T) {
	freq := [NumBases]float64{0.3, 0.2, 0.2, 0.3}
	mu := 0.05
	p := -math.Expm1(-mu / 0.74)

	full := MeiosisMatrix(MutationMatrix(mu, freq))
	nomut := MeiosisMatrix(NoMutationMatrix(mu, freq))
	for r := 0; r < NumPairs; r++ {
		s := 0.0
		for c := 0; c < NumGenotypes; c++ {
			if nomut.At(r, c) > full.At(r, c)+smallDiff {
				tst.Errorf("Row %d, column %d: no-mutation probability %v exceeds %v", r, c, nomut.At(r, c), full.At(r, c))
			}
			s += nomut.At(r, c)
		}
		if math.Abs(s-(1-p)*(1-p)) > smallDiff {
			tst.Errorf("Row %d: expected sum %v, got %v", r, (1-p)*(1-p), s)
		}
	}

	if m0 := NoMutationMatrix(0, freq); !mat64.Equal(m0, MutationMatrix(0, freq)) {
		tst.Error("Without mutations both matrices should be identity")
	}
}

func TestMitosisMatrix(tst *testing.T) {
	m := MitosisMatrix(MutationMatrix(1e-2, uniformFreq))
	checkRowSums(tst, "mitosis", m)
	id := MitosisMatrix(MutationMatrix(0, uniformFreq))
	if !mat64.EqualApprox(id, IdentityMatrix(NumGenotypes), smallDiff) {
		tst.Error("Mitosis without mutation is not identity")
	}
	lib := LibraryMatrix(0, 0, uniformFreq)
	if !mat64.EqualApprox(lib, IdentityMatrix(NumGenotypes), smallDiff) {
		tst.Error("Library matrix without mutation is not identity")
	}
	checkRowSums(tst, "library", LibraryMatrix(1e-3, 1e-4, uniformFreq))
}

func TestMeiosisMatrix(tst *testing.T) {
	m := MeiosisMatrix(MutationMatrix(1e-3, uniformFreq))
	if r, c := m.Dims(); r != NumPairs || c != NumGenotypes {
		tst.Fatal("Wrong meiosis dimensions", r, c)
	}
	checkRowSums(tst, "meiosis", m)

	m0 := MeiosisMatrix(MutationMatrix(0, uniformFreq))
	aa, ac, cc := Index(0, 0), Index(0, 1), Index(1, 1)
	tests := []struct {
		father, mother, child int
		p                     float64
	}{
		{aa, aa, aa, 1},
		{aa, cc, ac, 1},
		{cc, aa, ac, 1},
		{ac, ac, aa, 0.25},
		{ac, ac, ac, 0.5},
		{ac, ac, cc, 0.25},
		{aa, ac, aa, 0.5},
		{aa, aa, ac, 0},
	}
	for _, t := range tests {
		p := m0.At(t.father*NumGenotypes+t.mother, t.child)
		if math.Abs(p-t.p) > smallDiff {
			tst.Errorf("%s x %s -> %s: expected %v, got %v",
				Name(t.father), Name(t.mother), Name(t.child), t.p, p)
		}
	}
}

func TestPopulationPrior(tst *testing.T) {
	priors := PopulationPriors(0.001, uniformFreq, 1)
	for ref, p := range priors {
		if math.Abs(p.Sum()-1) > smallDiff {
			tst.Errorf("Prior for ref=%d sums to %v", ref, p.Sum())
		}
	}
	// reference homozygote is the most likely genotype
	for ref := 0; ref < NumBases; ref++ {
		best := Index(ref, ref)
		for g, v := range priors[ref] {
			if g != best && v >= priors[ref][best] {
				tst.Errorf("ref=%d: %s is not less likely than %s", ref, Name(g), Name(best))
			}
		}
	}
	// unknown reference is symmetric
	pn := priors[N]
	for a := 1; a < NumBases; a++ {
		if math.Abs(pn[Index(a, a)]-pn[0]) > smallDiff {
			tst.Error("Unknown reference prior is not symmetric")
		}
	}
	// closed form check
	alpha := 0.001 * 0.25
	a := 4 * alpha
	exp := 2 * alpha * alpha / (a * (a + 1))
	if math.Abs(pn[Index(0, 1)]-exp) > smallDiff {
		tst.Error("Expected", exp, ", got", pn[Index(0, 1)])
	}
}

func TestReadModelSingleRead(tst *testing.T) {
	m := NewReadModel(0.01, 0.001)
	l := m.LogLikelihoods([NumBases]int{1, 0, 0, 0})
	tests := map[int]float64{
		Index(0, 0): 0.99,
		Index(0, 1): 0.5*0.99 + 0.5*0.01/3,
		Index(1, 1): 0.01 / 3,
	}
	for g, p := range tests {
		if math.Abs(math.Exp(l[g])-p) > 1e-8 {
			tst.Errorf("%s: expected %v, got %v", Name(g), p, math.Exp(l[g]))
		}
	}
}

func TestReadModelLikelihoods(tst *testing.T) {
	m := NewReadModel(0.005, 0.01)

	v, scale := m.Likelihoods([NumBases]int{})
	if scale != 0 {
		tst.Error("Expected zero scale with no reads, got", scale)
	}
	for _, x := range v {
		if x != 1 {
			tst.Error("Expected uninformative vector, got", v)
		}
	}

	v, scale = m.Likelihoods([NumBases]int{0, 12, 0, 9})
	best := 0
	for g := range v {
		if v[g] > v[best] {
			best = g
		}
		if v[g] > 1 || v[g] < 0 {
			tst.Error("Scaled likelihood out of range:", v[g])
		}
	}
	if best != Index(1, 3) {
		tst.Error("Expected CT to be the best genotype, got", Name(best))
	}
	if v[best] != 1 || scale >= 0 {
		tst.Error("Wrong scaling", v[best], scale)
	}
}
