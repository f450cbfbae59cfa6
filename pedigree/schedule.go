package pedigree

import (
	"bytes"
	"fmt"

	"github.com/pkg/errors"
)

// PeelOp is a peeling operator kind. Every family in a schedule is
// processed by exactly one operator.
type PeelOp int

// Peeling operators. Variants ending in 2 multiply into the
// existing message instead of overwriting it.
const (
	// PeelUp {parent, child}: lower[parent] = T[child] lower[child].
	PeelUp PeelOp = iota
	// PeelUp2 {parent, child}: lower[parent] *= T[child] lower[child].
	PeelUp2
	// PeelDown {parent, child}: upper[child] = T'[child] (upper*lower)[parent].
	PeelDown
	// PeelToFather {father, mother, children...}: lower[father] from
	// children and mother.
	PeelToFather
	// PeelToFather2 is the accumulating version of PeelToFather.
	PeelToFather2
	// PeelToMother {father, mother, children...}: lower[mother] from
	// children and father.
	PeelToMother
	// PeelToMother2 is the accumulating version of PeelToMother.
	PeelToMother2
	// PeelToChild {father, mother, child}: upper[child] from parents.
	PeelToChild
	// PeelToChild2 {father, mother, child, siblings...}: upper[child]
	// from parents and siblings.
	PeelToChild2

	nPeelOps
)

var peelOpNames = [nPeelOps]string{
	"PeelUp",
	"PeelUp2",
	"PeelDown",
	"PeelToFather",
	"PeelToFather2",
	"PeelToMother",
	"PeelToMother2",
	"PeelToChild",
	"PeelToChild2",
}

func (op PeelOp) String() string {
	if op < 0 || op >= nPeelOps {
		return fmt.Sprintf("PeelOp(%d)", int(op))
	}
	return peelOpNames[op]
}

// accumulates returns true for operators multiplying into the target.
func (op PeelOp) accumulates() bool {
	switch op {
	case PeelUp2, PeelToFather2, PeelToMother2:
		return true
	}
	return false
}

// Family is an ordered list of node indices; the meaning of every
// position depends on the operator.
type Family []int

// Schedule is the traversal order of a pedigree: families and their
// operators in the order of execution plus the root nodes.
//
// Nodes [0, NumMembers) are individuals and nodes
// [NumMembers, NumMembers+NumLibraries) are libraries.
type Schedule struct {
	NumMembers   int
	NumLibraries int
	Families     []Family
	Ops          []PeelOp
	Roots        []int
}

// NumNodes returns the total number of nodes.
func (s *Schedule) NumNodes() int {
	return s.NumMembers + s.NumLibraries
}

// IsLibrary returns true if node n is a library leaf.
func (s *Schedule) IsLibrary(n int) bool {
	return n >= s.NumMembers
}

// Add appends a family to the schedule.
func (s *Schedule) Add(op PeelOp, members ...int) {
	s.Families = append(s.Families, Family(members))
	s.Ops = append(s.Ops, op)
}

func (s *Schedule) String() string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "<Schedule members=%d libraries=%d roots=%v\n", s.NumMembers, s.NumLibraries, s.Roots)
	for i, fam := range s.Families {
		fmt.Fprintf(&b, "  %s%v\n", s.Ops[i], []int(fam))
	}
	b.WriteByte('>')
	return b.String()
}

// access describes which messages an operator reads and writes.
type access struct {
	lowerReads []int
	upperReads []int
	lowerWrite int
	upperWrite int
}

// accessOf computes messages accessed by op on family fam.
func accessOf(op PeelOp, fam Family) (a access) {
	a.lowerWrite, a.upperWrite = -1, -1
	switch op {
	case PeelUp, PeelUp2:
		a.lowerReads = []int{fam[1]}
		a.lowerWrite = fam[0]
	case PeelDown:
		a.lowerReads = []int{fam[0]}
		a.upperReads = []int{fam[0]}
		a.upperWrite = fam[1]
	case PeelToFather, PeelToFather2:
		a.lowerReads = append([]int{fam[1]}, fam[2:]...)
		a.upperReads = []int{fam[1]}
		a.lowerWrite = fam[0]
	case PeelToMother, PeelToMother2:
		a.lowerReads = append([]int{fam[0]}, fam[2:]...)
		a.upperReads = []int{fam[0]}
		a.lowerWrite = fam[1]
	case PeelToChild, PeelToChild2:
		a.lowerReads = append([]int{fam[0], fam[1]}, fam[3:]...)
		a.upperReads = []int{fam[0], fam[1]}
		a.upperWrite = fam[2]
	}
	return
}

// checkSize checks family size for the operator.
func checkSize(op PeelOp, n int) bool {
	switch op {
	case PeelUp, PeelUp2, PeelDown:
		return n == 2
	case PeelToFather, PeelToFather2, PeelToMother, PeelToMother2:
		return n >= 3
	case PeelToChild:
		return n == 3
	case PeelToChild2:
		return n >= 4
	}
	return false
}

// Validate checks that the schedule is well formed and that every
// message is completely computed before it is read.
func (s *Schedule) Validate() error {
	nNodes := s.NumNodes()
	if s.NumMembers <= 0 || s.NumLibraries < 0 {
		return errors.Errorf("invalid number of nodes: %d members, %d libraries", s.NumMembers, s.NumLibraries)
	}
	if len(s.Families) != len(s.Ops) {
		return errors.Errorf("%d families but %d operators", len(s.Families), len(s.Ops))
	}

	lastLower := make([]int, nNodes)
	lastUpper := make([]int, nNodes)
	for n := range lastLower {
		lastLower[n] = -1
		lastUpper[n] = -1
	}
	accesses := make([]access, len(s.Ops))

	for i, op := range s.Ops {
		fam := s.Families[i]
		if op < 0 || op >= nPeelOps {
			return errors.Errorf("family %d: unknown operator %v", i, op)
		}
		if !checkSize(op, len(fam)) {
			return errors.Errorf("family %d: %v cannot peel %d members", i, op, len(fam))
		}
		seen := make(map[int]bool, len(fam))
		for _, n := range fam {
			if n < 0 || n >= nNodes {
				return errors.Errorf("family %d: node %d out of range", i, n)
			}
			if seen[n] {
				return errors.Errorf("family %d: node %d repeated", i, n)
			}
			seen[n] = true
		}

		a := accessOf(op, fam)
		accesses[i] = a
		if n := a.lowerWrite; n >= 0 {
			switch {
			case s.IsLibrary(n):
				return errors.Errorf("family %d: %v writes library node %d", i, op, n)
			case op.accumulates() && lastLower[n] < 0:
				return errors.Errorf("family %d: %v accumulates into node %d before it is assigned", i, op, n)
			case !op.accumulates() && lastLower[n] >= 0:
				return errors.Errorf("family %d: %v overwrites node %d assigned by family %d", i, op, n, lastLower[n])
			}
			lastLower[n] = i
		}
		if n := a.upperWrite; n >= 0 {
			if lastUpper[n] >= 0 {
				return errors.Errorf("family %d: upper message of node %d already written by family %d", i, n, lastUpper[n])
			}
			lastUpper[n] = i
		}
	}

	for i, a := range accesses {
		for _, n := range a.lowerReads {
			if lastLower[n] >= i {
				return errors.Errorf("family %d: %v reads node %d before family %d completes it", i, s.Ops[i], n, lastLower[n])
			}
		}
		for _, n := range a.upperReads {
			if lastUpper[n] >= i {
				return errors.Errorf("family %d: %v reads node %d before family %d completes it", i, s.Ops[i], n, lastUpper[n])
			}
			if s.IsLibrary(n) && lastUpper[n] < 0 {
				return errors.Errorf("family %d: %v reads unset upper message of library %d", i, s.Ops[i], n)
			}
		}
	}

	if len(s.Roots) == 0 {
		return errors.New("no roots")
	}
	isRoot := make(map[int]bool, len(s.Roots))
	for _, r := range s.Roots {
		if r < 0 || r >= s.NumMembers {
			return errors.Errorf("root %d is not a pedigree member", r)
		}
		if isRoot[r] {
			return errors.Errorf("root %d repeated", r)
		}
		isRoot[r] = true
	}
	return nil
}
