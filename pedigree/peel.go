package pedigree

import "github.com/gonum/matrix/mat64"

// peelFunc processes one family using transition matrices mat.
type peelFunc func(p *Pedigree, fam Family, mat *TransitionVector)

// peelFuncs dispatches operators to their implementation.
var peelFuncs = [nPeelOps]peelFunc{
	PeelUp:        (*Pedigree).peelUp,
	PeelUp2:       (*Pedigree).peelUp2,
	PeelDown:      (*Pedigree).peelDown,
	PeelToFather:  (*Pedigree).peelToFather,
	PeelToFather2: (*Pedigree).peelToFather2,
	PeelToMother:  (*Pedigree).peelToMother,
	PeelToMother2: (*Pedigree).peelToMother2,
	PeelToChild:   (*Pedigree).peelToChild,
	PeelToChild2:  (*Pedigree).peelToChild2,
}

func (p *Pedigree) peelUp(fam Family, mat *TransitionVector) {
	p.lower[fam[0]].MulVec(mat.mats[fam[1]], p.lower[fam[1]])
}

func (p *Pedigree) peelUp2(fam Family, mat *TransitionVector) {
	p.tmp.MulVec(mat.mats[fam[1]], p.lower[fam[1]])
	p.lower[fam[0]].MulElemVec(p.lower[fam[0]], p.tmp)
}

func (p *Pedigree) peelDown(fam Family, mat *TransitionVector) {
	p.combined(p.tmp, fam[0])
	p.upper[fam[1]].MulVec(mat.trans[fam[1]], p.tmp)
}

// peelChildren stores in the flat buffer the product over children
// fam[first:] of their data given the parent pair.
func (p *Pedigree) peelChildren(fam Family, first int, mat *TransitionVector) {
	flat := p.buffer.Flat()
	c := fam[first]
	flat.MulVec(mat.mats[c], p.lower[c])
	for _, c := range fam[first+1:] {
		sib := p.siblings.Flat()
		sib.MulVec(mat.mats[c], p.lower[c])
		flat.MulElemVec(flat, sib)
	}
}

// combined stores upper*lower of node n in dst.
func (p *Pedigree) combined(dst *mat64.Vector, n int) {
	dst.MulElemVec(p.upper[n], p.lower[n])
}

// parents computes upper*lower for father and mother.
func (p *Pedigree) parents(fam Family) {
	p.combined(p.father, fam[0])
	p.combined(p.mother, fam[1])
}

func (p *Pedigree) peelToFather(fam Family, mat *TransitionVector) {
	p.peelChildren(fam, 2, mat)
	p.combined(p.mother, fam[1])
	// sum over mother
	p.lower[fam[0]].MulVec(p.buffer.Square(), p.mother)
}

func (p *Pedigree) peelToFather2(fam Family, mat *TransitionVector) {
	p.peelChildren(fam, 2, mat)
	p.combined(p.mother, fam[1])
	p.tmp.MulVec(p.buffer.Square(), p.mother)
	p.lower[fam[0]].MulElemVec(p.lower[fam[0]], p.tmp)
}

func (p *Pedigree) peelToMother(fam Family, mat *TransitionVector) {
	p.peelChildren(fam, 2, mat)
	p.combined(p.father, fam[0])
	// sum over father
	p.lower[fam[1]].MulVec(p.buffer.squareT, p.father)
}

func (p *Pedigree) peelToMother2(fam Family, mat *TransitionVector) {
	p.peelChildren(fam, 2, mat)
	p.combined(p.father, fam[0])
	p.tmp.MulVec(p.buffer.squareT, p.father)
	p.lower[fam[1]].MulElemVec(p.lower[fam[1]], p.tmp)
}

func (p *Pedigree) peelToChild(fam Family, mat *TransitionVector) {
	p.parents(fam)
	p.buffer.Kronecker(p.father, p.mother)
	p.upper[fam[2]].MulVec(mat.trans[fam[2]], p.buffer.Flat())
}

func (p *Pedigree) peelToChild2(fam Family, mat *TransitionVector) {
	p.peelChildren(fam, 3, mat)
	p.parents(fam)
	p.siblings.Kronecker(p.father, p.mother)
	flat := p.buffer.Flat()
	flat.MulElemVec(flat, p.siblings.Flat())
	p.upper[fam[2]].MulVec(mat.trans[fam[2]], flat)
}
