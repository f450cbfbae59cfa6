// Package pileup counts bases observed at every position of a region
// in a set of indexed BAM files, separately for every library (read
// group).
package pileup

import (
	"os"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/bgzf/index"
	"github.com/biogo/hts/sam"
	"github.com/op/go-logging"
	"github.com/pkg/errors"

	"bitbucket.org/Davydov/dng/genotype"
	"bitbucket.org/Davydov/dng/pedigree"
)

// log is a global logging variable.
var log = logging.MustGetLogger("pileup")

var (
	rgTag     = sam.NewTag("RG")
	sampleTag = sam.NewTag("SM")
)

// skipFlags are flags of reads never used for counting.
const skipFlags = sam.Unmapped | sam.Secondary | sam.Supplementary | sam.Duplicate | sam.QCFail

// Filter describes reads and bases used for counting.
type Filter struct {
	// MinMapQ is the minimum mapping quality.
	MinMapQ int
	// MinLen is the minimum number of read bases in the alignment.
	MinLen int
	// MinBaseQ is the minimum base quality.
	MinBaseQ int
}

// Keep returns true if the read passes flag, mapping quality and
// length filters.
func (f Filter) Keep(rec *sam.Record) bool {
	if rec.Flags&skipFlags != 0 || rec.Ref == nil || rec.Pos < 0 {
		return false
	}
	if int(rec.MapQ) < f.MinMapQ {
		return false
	}
	if f.MinLen > 0 {
		if _, qlen := rec.Cigar.Lengths(); qlen < f.MinLen {
			return false
		}
	}
	return true
}

// Libraries maps read group ids to library numbers.
type Libraries interface {
	LibraryIndex(id string) (int, bool)
}

// bamFile is an open BAM file with its index.
type bamFile struct {
	name string
	f    *os.File
	r    *bam.Reader
	idx  *bam.Index
	refs map[string]*sam.Reference
}

func openBam(name string) (*bamFile, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, errors.Wrap(err, "opening alignments")
	}
	r, err := bam.NewReader(f, 1)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "reading %s", name)
	}
	idxf, err := os.Open(name + ".bai")
	if err != nil {
		r.Close()
		f.Close()
		return nil, errors.Wrapf(err, "%s is not indexed", name)
	}
	defer idxf.Close()
	idx, err := bam.ReadIndex(idxf)
	if err != nil {
		r.Close()
		f.Close()
		return nil, errors.Wrapf(err, "reading index of %s", name)
	}
	bf := &bamFile{
		name: name,
		f:    f,
		r:    r,
		idx:  idx,
		refs: make(map[string]*sam.Reference),
	}
	for _, ref := range r.Header().Refs() {
		bf.refs[ref.Name()] = ref
	}
	return bf, nil
}

func (bf *bamFile) close() error {
	err := bf.r.Close()
	if ferr := bf.f.Close(); err == nil {
		err = ferr
	}
	return err
}

// Reader reads base counts from several BAM files.
type Reader struct {
	Filter
	files []*bamFile
}

// Open opens BAM files, each of them should have a .bai index.
func Open(filenames []string, filter Filter) (*Reader, error) {
	if len(filenames) == 0 {
		return nil, errors.New("no alignment files")
	}
	rd := &Reader{Filter: filter}
	for _, name := range filenames {
		bf, err := openBam(name)
		if err != nil {
			rd.Close()
			return nil, err
		}
		rd.files = append(rd.files, bf)
	}
	log.Infof("opened %d alignment files", len(rd.files))
	return rd, nil
}

// Close closes all the files.
func (rd *Reader) Close() (err error) {
	for _, bf := range rd.files {
		if cerr := bf.close(); err == nil {
			err = cerr
		}
	}
	rd.files = nil
	return
}

// ReadGroups returns read groups from all the headers. A read group
// present in several files is reported once.
func (rd *Reader) ReadGroups() (rgs []pedigree.ReadGroup) {
	seen := make(map[string]string)
	for _, bf := range rd.files {
		for _, rg := range bf.r.Header().RGs() {
			id, sample := rg.Name(), rg.Get(sampleTag)
			if s, ok := seen[id]; ok {
				if s != sample {
					log.Warningf("%s: read group %s has sample %s, previously seen with %s", bf.name, id, sample, s)
				}
				continue
			}
			seen[id] = sample
			rgs = append(rgs, pedigree.ReadGroup{ID: id, Sample: sample})
		}
	}
	return
}

// References returns all reference sequences of the first file as
// regions.
func (rd *Reader) References() (regs []Region) {
	for _, ref := range rd.files[0].r.Header().Refs() {
		regs = append(regs, Region{Ref: ref.Name(), End: ref.Len()})
	}
	return
}

// Bounded returns the region with a known end.
func (rd *Reader) Bounded(reg Region) (Region, error) {
	ref, ok := rd.files[0].refs[reg.Ref]
	if !ok {
		return reg, errors.Errorf("reference %s not found in %s", reg.Ref, rd.files[0].name)
	}
	if reg.End < 0 || reg.End > ref.Len() {
		reg.End = ref.Len()
	}
	if reg.Beg > reg.End {
		reg.Beg = reg.End
	}
	return reg, nil
}

// readGroup returns read group id of the record.
func readGroup(rec *sam.Record) string {
	aux := rec.AuxFields.Get(rgTag)
	if aux == nil {
		return ""
	}
	id, _ := aux.Value().(string)
	return id
}

// Window counts bases in the bounded region reg for numLibs libraries.
func (rd *Reader) Window(reg Region, libs Libraries, numLibs int) (*Window, error) {
	if reg.End < 0 {
		return nil, errors.Errorf("region %v is not bounded", reg)
	}
	w := NewWindow(reg, numLibs)
	if reg.Len() == 0 {
		return w, nil
	}
	for _, bf := range rd.files {
		ref, ok := bf.refs[reg.Ref]
		if !ok {
			log.Warningf("%s: no reference %s", bf.name, reg.Ref)
			continue
		}
		chunks, err := bf.idx.Chunks(ref, reg.Beg, reg.End)
		if err == index.ErrNoReference {
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, "%s: querying %v", bf.name, reg)
		}
		it, err := bam.NewIterator(bf.r, chunks)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: querying %v", bf.name, reg)
		}
		nreads, nskipped := 0, 0
		for it.Next() {
			rec := it.Record()
			if !rd.Keep(rec) {
				continue
			}
			lib, ok := libs.LibraryIndex(readGroup(rec))
			if !ok {
				nskipped++
				continue
			}
			nreads++
			w.Add(rec, lib, rd.MinBaseQ)
		}
		if err := it.Close(); err != nil {
			return nil, errors.Wrapf(err, "%s: reading %v", bf.name, reg)
		}
		log.Debugf("%s: %v: %d reads used, %d reads of unknown libraries", bf.name, reg, nreads, nskipped)
	}
	return w, nil
}

// Window holds base counts for every position and library.
type Window struct {
	Region
	NumLibraries int
	counts       [][genotype.NumBases]int
}

// NewWindow creates an empty window for a bounded region.
func NewWindow(reg Region, numLibs int) *Window {
	return &Window{
		Region:       reg,
		NumLibraries: numLibs,
		counts:       make([][genotype.NumBases]int, reg.Len()*numLibs),
	}
}

// Counts returns base counts of library lib at position Beg+i.
func (w *Window) Counts(i, lib int) [genotype.NumBases]int {
	return w.counts[i*w.NumLibraries+lib]
}

// Depth returns number of bases at position Beg+i.
func (w *Window) Depth(i int) (d int) {
	for _, c := range w.counts[i*w.NumLibraries : (i+1)*w.NumLibraries] {
		for _, n := range c {
			d += n
		}
	}
	return
}

// Add counts bases of an aligned read belonging to library lib.
// Bases outside of the window, ambiguous bases and bases with quality
// below minBaseQ are ignored.
func (w *Window) Add(rec *sam.Record, lib int, minBaseQ int) {
	seq := rec.Seq.Expand()
	refPos, readPos := rec.Pos, 0
	for _, co := range rec.Cigar {
		n := co.Len()
		switch co.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			for i := 0; i < n; i++ {
				w.addBase(refPos+i, lib, seq, rec.Qual, readPos+i, minBaseQ)
			}
			refPos += n
			readPos += n
		case sam.CigarInsertion, sam.CigarSoftClipped:
			readPos += n
		case sam.CigarDeletion, sam.CigarSkipped:
			refPos += n
		}
	}
}

func (w *Window) addBase(pos, lib int, seq, qual []byte, i, minBaseQ int) {
	if pos < w.Beg || pos >= w.End || i >= len(seq) {
		return
	}
	// 0xff means no qualities
	if i < len(qual) && qual[i] != 0xff && int(qual[i]) < minBaseQ {
		return
	}
	b := genotype.BaseIndex(seq[i])
	if b == genotype.N {
		return
	}
	w.counts[(pos-w.Beg)*w.NumLibraries+lib][b]++
}
