// Package ped reads pedigree files in the PED format: one individual
// per line with family id, individual id, father id, mother id, sex
// and an optional phenotype. Missing parents are written as "0" or ".".
package ped

import (
	"bufio"
	"io"
	"strings"

	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

// log is a global logging variable.
var log = logging.MustGetLogger("ped")

// Sex of an individual.
type Sex int

// Sex values as encoded in the PED format.
const (
	Unknown Sex = iota
	Male
	Female
)

// Individual is a single pedigree member.
type Individual struct {
	Family    string
	ID        string
	Father    string
	Mother    string
	Sex       Sex
	Phenotype string
}

// IsFounder returns true if no parents are specified.
func (ind *Individual) IsFounder() bool {
	return ind.Father == "" && ind.Mother == ""
}

// Pedigree is an ordered list of individuals.
type Pedigree struct {
	Individuals []*Individual
	id2ind      map[string]int
}

// New creates a pedigree from a list of individuals and validates it.
func New(inds []*Individual) (*Pedigree, error) {
	p := &Pedigree{
		Individuals: inds,
		id2ind:      make(map[string]int, len(inds)),
	}
	for i, ind := range inds {
		if _, ok := p.id2ind[ind.ID]; ok {
			return nil, errors.Errorf("duplicate individual id %q", ind.ID)
		}
		p.id2ind[ind.ID] = i
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Len returns the number of individuals.
func (p *Pedigree) Len() int {
	return len(p.Individuals)
}

// Index returns position of the individual in the pedigree or -1.
func (p *Pedigree) Index(id string) int {
	i, ok := p.id2ind[id]
	if !ok {
		return -1
	}
	return i
}

// Lookup returns individual by id.
func (p *Pedigree) Lookup(id string) (*Individual, bool) {
	i, ok := p.id2ind[id]
	if !ok {
		return nil, false
	}
	return p.Individuals[i], true
}

func isMissing(s string) bool {
	return s == "0" || s == "."
}

func parseSex(s string) Sex {
	switch s {
	case "1", "M", "m":
		return Male
	case "2", "F", "f":
		return Female
	}
	return Unknown
}

// Parse reads a pedigree from a PED file. Empty lines and lines
// starting with '#' are ignored.
func Parse(rd io.Reader) (*Pedigree, error) {
	scanner := bufio.NewScanner(rd)
	var inds []*Individual
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || text[0] == '#' {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) < 5 {
			return nil, errors.Errorf("line %d: expected at least 5 fields, got %d", line, len(fields))
		}
		ind := &Individual{
			Family: fields[0],
			ID:     fields[1],
			Sex:    parseSex(fields[4]),
		}
		if isMissing(ind.ID) {
			return nil, errors.Errorf("line %d: missing individual id", line)
		}
		if !isMissing(fields[2]) {
			ind.Father = fields[2]
		}
		if !isMissing(fields[3]) {
			ind.Mother = fields[3]
		}
		if len(fields) > 5 {
			ind.Phenotype = fields[5]
		}
		inds = append(inds, ind)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading pedigree")
	}
	if len(inds) == 0 {
		return nil, errors.New("empty pedigree")
	}
	log.Debugf("read %d individuals", len(inds))
	return New(inds)
}

// validate checks parent references, parent sex and that nobody is
// their own ancestor.
func (p *Pedigree) validate() error {
	for _, ind := range p.Individuals {
		if (ind.Father == "") != (ind.Mother == "") {
			return errors.Errorf("individual %q has only one parent specified", ind.ID)
		}
		if ind.IsFounder() {
			continue
		}
		if ind.Father == ind.ID || ind.Mother == ind.ID {
			return errors.Errorf("individual %q is its own parent", ind.ID)
		}
		if ind.Father == ind.Mother {
			return errors.Errorf("individual %q has the same father and mother", ind.ID)
		}
		father, ok := p.Lookup(ind.Father)
		if !ok {
			return errors.Errorf("father %q of %q not found", ind.Father, ind.ID)
		}
		mother, ok := p.Lookup(ind.Mother)
		if !ok {
			return errors.Errorf("mother %q of %q not found", ind.Mother, ind.ID)
		}
		if father.Sex == Female {
			return errors.Errorf("father %q of %q is female", father.ID, ind.ID)
		}
		if mother.Sex == Male {
			return errors.Errorf("mother %q of %q is male", mother.ID, ind.ID)
		}
	}

	// 0: not visited, 1: in progress, 2: done
	state := make([]int, len(p.Individuals))
	var visit func(i int) error
	visit = func(i int) error {
		switch state[i] {
		case 1:
			return errors.Errorf("individual %q is its own ancestor", p.Individuals[i].ID)
		case 2:
			return nil
		}
		state[i] = 1
		ind := p.Individuals[i]
		if !ind.IsFounder() {
			if err := visit(p.id2ind[ind.Father]); err != nil {
				return err
			}
			if err := visit(p.id2ind[ind.Mother]); err != nil {
				return err
			}
		}
		state[i] = 2
		return nil
	}
	for i := range p.Individuals {
		if err := visit(i); err != nil {
			return err
		}
	}
	return nil
}
