package pedigree

import (
	"github.com/pkg/errors"

	"bitbucket.org/Davydov/dng/ped"
)

// ReadGroup is a sequencing read group belonging to a sample.
type ReadGroup struct {
	ID     string
	Sample string
}

// Graph is a pedigree together with its libraries and the peeling
// schedule built for it.
type Graph struct {
	*Schedule
	// Members are individual ids, node i is Members[i].
	Members []string
	// Libraries are read groups, node NumMembers+k is Libraries[k].
	Libraries []ReadGroup

	// parents of every member, -1 if unknown.
	parents  [][2]int
	libIndex map[string]int
}

// LibraryIndex returns library number of a read group.
func (g *Graph) LibraryIndex(id string) (int, bool) {
	k, ok := g.libIndex[id]
	return k, ok
}

// HasParents returns true for non-founder members.
func (g *Graph) HasParents(n int) bool {
	return n < g.NumMembers && g.parents[n][0] >= 0
}

// Parents returns father and mother nodes of member n, -1 for
// founders.
func (g *Graph) Parents(n int) (father, mother int) {
	return g.parents[n][0], g.parents[n][1]
}

// unit is a group of nodes peeled together: either a nuclear family
// (father, mother, children...) or a library attachment
// (individual, library).
type unit struct {
	nodes   []int
	library bool
}

// builder creates a schedule by depth-first traversal of the
// bipartite graph of nodes and units.
type builder struct {
	s         *Schedule
	units     []unit
	nodeUnits [][]int
	seenNode  []bool
	seenUnit  []bool
	assigned  []bool
}

// Construct builds a graph and its peeling schedule from a pedigree and
// a list of read groups. Read groups of samples not found in the
// pedigree are skipped.
func Construct(pd *ped.Pedigree, rgs []ReadGroup) (*Graph, error) {
	if pd == nil || pd.Len() == 0 {
		return nil, errors.New("empty pedigree")
	}
	nMembers := pd.Len()
	g := &Graph{
		Members:  make([]string, nMembers),
		parents:  make([][2]int, nMembers),
		libIndex: make(map[string]int, len(rgs)),
	}
	for i, ind := range pd.Individuals {
		g.Members[i] = ind.ID
		g.parents[i] = [2]int{pd.Index(ind.Father), pd.Index(ind.Mother)}
	}
	for _, rg := range rgs {
		if pd.Index(rg.Sample) < 0 {
			log.Warningf("read group %s: sample %s not in pedigree, skipping", rg.ID, rg.Sample)
			continue
		}
		if _, ok := g.libIndex[rg.ID]; ok {
			return nil, errors.Errorf("duplicate read group %s", rg.ID)
		}
		g.libIndex[rg.ID] = len(g.Libraries)
		g.Libraries = append(g.Libraries, rg)
	}
	g.Schedule = &Schedule{NumMembers: nMembers, NumLibraries: len(g.Libraries)}

	b := &builder{s: g.Schedule}
	b.addUnits(pd, g)

	for n := 0; n < nMembers; n++ {
		if b.seenNode[n] || g.HasParents(n) {
			continue
		}
		if err := b.visitNode(n, -1); err != nil {
			return nil, errors.Wrapf(err, "pedigree contains a loop reachable from %s", g.Members[n])
		}
		g.Roots = append(g.Roots, n)
	}
	for n := 0; n < nMembers; n++ {
		if !b.seenNode[n] {
			return nil, errors.Errorf("individual %s is not connected to a founder", g.Members[n])
		}
	}

	if err := g.Validate(); err != nil {
		return nil, errors.Wrap(err, "constructed schedule is invalid")
	}
	log.Debugf("pedigree graph: %d members, %d libraries, %d families, roots %v",
		nMembers, len(g.Libraries), len(g.Families), g.Roots)
	return g, nil
}

// addUnits creates nuclear families in order of the first child and
// library units in order of read groups.
func (b *builder) addUnits(pd *ped.Pedigree, g *Graph) {
	nNodes := g.NumNodes()
	b.nodeUnits = make([][]int, nNodes)
	b.seenNode = make([]bool, nNodes)
	b.assigned = make([]bool, nNodes)

	couples := make(map[[2]int]int)
	for n, par := range g.parents {
		if par[0] < 0 {
			continue
		}
		u, ok := couples[par]
		if !ok {
			u = len(b.units)
			couples[par] = u
			b.units = append(b.units, unit{nodes: []int{par[0], par[1]}})
			b.link(par[0], u)
			b.link(par[1], u)
		}
		b.units[u].nodes = append(b.units[u].nodes, n)
		b.link(n, u)
	}
	for k, rg := range g.Libraries {
		ind := pd.Index(rg.Sample)
		lib := g.NumMembers + k
		u := len(b.units)
		b.units = append(b.units, unit{nodes: []int{ind, lib}, library: true})
		b.link(ind, u)
		b.link(lib, u)
	}
	b.seenUnit = make([]bool, len(b.units))
}

func (b *builder) link(n, u int) {
	b.nodeUnits[n] = append(b.nodeUnits[n], u)
}

// visitNode traverses all units of node n except the one it was
// reached from.
func (b *builder) visitNode(n, from int) error {
	if b.seenNode[n] {
		return errors.Errorf("node %d reached twice", n)
	}
	b.seenNode[n] = true
	for _, u := range b.nodeUnits[n] {
		if u == from {
			continue
		}
		if err := b.visitUnit(u, n); err != nil {
			return err
		}
	}
	return nil
}

// visitUnit traverses unit u reached through node pivot and adds it
// to the schedule after everything behind it.
func (b *builder) visitUnit(u, pivot int) error {
	if b.seenUnit[u] {
		return errors.Errorf("family %v reached twice", b.units[u].nodes)
	}
	b.seenUnit[u] = true
	for _, n := range b.units[u].nodes {
		if n == pivot {
			continue
		}
		if err := b.visitNode(n, u); err != nil {
			return err
		}
	}
	b.emit(u, pivot)
	return nil
}

// pick returns the accumulating variant if lower of n is already
// computed.
func (b *builder) pick(n int, assign, accumulate PeelOp) PeelOp {
	if b.assigned[n] {
		return accumulate
	}
	b.assigned[n] = true
	return assign
}

func (b *builder) emit(u, pivot int) {
	nodes := b.units[u].nodes
	if b.units[u].library {
		b.s.Add(b.pick(nodes[0], PeelUp, PeelUp2), nodes...)
		return
	}
	father, mother, children := nodes[0], nodes[1], nodes[2:]
	switch pivot {
	case father:
		b.s.Add(b.pick(father, PeelToFather, PeelToFather2), nodes...)
	case mother:
		b.s.Add(b.pick(mother, PeelToMother, PeelToMother2), nodes...)
	default:
		if len(children) == 1 {
			b.s.Add(PeelToChild, nodes...)
			return
		}
		fam := []int{father, mother, pivot}
		for _, c := range children {
			if c != pivot {
				fam = append(fam, c)
			}
		}
		b.s.Add(PeelToChild2, fam...)
	}
}
