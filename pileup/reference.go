package pileup

import (
	"os"

	"github.com/exascience/elprep/v5/fasta"
	"github.com/pkg/errors"

	"bitbucket.org/Davydov/dng/genotype"
)

// Reference holds reference sequences by name. A nil Reference
// reports N for every position.
type Reference map[string][]byte

// LoadReference reads a (possibly bgzipped) FASTA file. If a .fai
// index is present it is used to preallocate sequences.
func LoadReference(filename string) (ref Reference, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("reading reference %s: %v", filename, r)
		}
	}()
	var fai map[string]fasta.FaiReference
	if _, serr := os.Stat(filename + ".fai"); serr == nil {
		fai = fasta.ParseFai(filename + ".fai")
	}
	ref = Reference(fasta.ParseFasta(filename, fai, true, true))
	log.Infof("read %d reference sequences from %s", len(ref), filename)
	return ref, nil
}

// Base returns base index at zero-based position pos of sequence
// name, genotype.N if unknown.
func (r Reference) Base(name string, pos int) int {
	seq, ok := r[name]
	if !ok || pos < 0 || pos >= len(seq) {
		return genotype.N
	}
	return genotype.BaseIndex(seq[pos])
}

// Len returns length of sequence name.
func (r Reference) Len(name string) (int, error) {
	seq, ok := r[name]
	if !ok {
		return 0, errors.Errorf("reference sequence %s not found", name)
	}
	return len(seq), nil
}
