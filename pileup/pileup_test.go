package pileup

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
	"github.com/op/go-logging"
)

func init() {
	logging.SetLevel(logging.ERROR, "pileup")
}

const testHeader = "@HD\tVN:1.0\tSO:coordinate\n" +
	"@SQ\tSN:chr1\tLN:1000\n" +
	"@SQ\tSN:chr2\tLN:500\n" +
	"@RG\tID:rgA\tSM:A\n" +
	"@RG\tID:rgB\tSM:B\n"

type libMap map[string]int

func (m libMap) LibraryIndex(id string) (int, bool) {
	k, ok := m[id]
	return k, ok
}

func TestParseRegion(tst *testing.T) {
	good := []struct {
		s   string
		exp Region
	}{
		{"chr1", Region{"chr1", 0, -1}},
		{"chr1:100", Region{"chr1", 99, -1}},
		{"chr1:100-200", Region{"chr1", 99, 200}},
		{"chr1:1,000-2,000", Region{"chr1", 999, 2000}},
		{"HLA-A*01:01:1-5", Region{"HLA-A*01:01", 0, 5}},
		{" chrX:5-5 ", Region{"chrX", 4, 5}},
	}
	for _, c := range good {
		r, err := ParseRegion(c.s)
		if err != nil {
			tst.Errorf("%q: unexpected error: %v", c.s, err)
			continue
		}
		if r != c.exp {
			tst.Errorf("%q: expected %+v, got %+v", c.s, c.exp, r)
		}
	}
	for _, s := range []string{"", ":1-2", "chr1:0-5", "chr1:x-5", "chr1:10-5", "chr1:5-y"} {
		if _, err := ParseRegion(s); err == nil {
			tst.Errorf("%q: expected error", s)
		}
	}
	if s := (Region{"chr1", 99, 200}).String(); s != "chr1:100-200" {
		tst.Error("Wrong region string:", s)
	}
	if l := (Region{"chr1", 99, 200}).Len(); l != 101 {
		tst.Error("Wrong region length:", l)
	}
}

func newRecord(tst *testing.T, ref *sam.Reference, pos int, cigar []sam.CigarOp, seq string, rg string) *sam.Record {
	qual := make([]byte, len(seq))
	for i := range qual {
		qual[i] = 30
	}
	aux, err := sam.NewAux(rgTag, rg)
	if err != nil {
		tst.Fatal("Error creating tag:", err)
	}
	rec, err := sam.NewRecord("r", ref, nil, pos, -1, 0, 60, cigar, []byte(seq), qual, []sam.Aux{aux})
	if err != nil {
		tst.Fatal("Error creating record:", err)
	}
	return rec
}

func testReferences(tst *testing.T) []*sam.Reference {
	h, err := sam.NewHeader([]byte(testHeader), nil)
	if err != nil {
		tst.Fatal("Error creating header:", err)
	}
	return h.Refs()
}

func TestFilter(tst *testing.T) {
	ref := testReferences(tst)[0]
	rec := newRecord(tst, ref, 10, []sam.CigarOp{sam.NewCigarOp(sam.CigarSoftClipped, 2), sam.NewCigarOp(sam.CigarMatch, 4)}, "AACGTA", "rgA")
	f := Filter{MinMapQ: 20, MinLen: 6}
	if !f.Keep(rec) {
		tst.Error("Read should pass the filter")
	}
	if (Filter{MinLen: 7}).Keep(rec) {
		tst.Error("Short read should be filtered")
	}
	if (Filter{MinMapQ: 61}).Keep(rec) {
		tst.Error("Low mapping quality read should be filtered")
	}
	for _, fl := range []sam.Flags{sam.Unmapped, sam.Secondary, sam.Supplementary, sam.Duplicate, sam.QCFail} {
		rec.Flags = fl
		if f.Keep(rec) {
			tst.Errorf("Read with flag %v should be filtered", fl)
		}
	}
	rec.Flags = sam.Paired | sam.Reverse
	if !f.Keep(rec) {
		tst.Error("Paired read should pass the filter")
	}
}

func TestWindowAdd(tst *testing.T) {
	ref := testReferences(tst)[0]
	w := NewWindow(Region{"chr1", 10, 20}, 2)

	// 2S3M1D2M1I2M starting at 8
	cigar := []sam.CigarOp{
		sam.NewCigarOp(sam.CigarSoftClipped, 2),
		sam.NewCigarOp(sam.CigarMatch, 3),
		sam.NewCigarOp(sam.CigarDeletion, 1),
		sam.NewCigarOp(sam.CigarMatch, 2),
		sam.NewCigarOp(sam.CigarInsertion, 1),
		sam.NewCigarOp(sam.CigarMatch, 2),
	}
	rec := newRecord(tst, ref, 8, cigar, "GGACGTNTTA", "rgA")
	w.Add(rec, 1, 0)
	// aligned: 8:A 9:C 10:G 12:T 13:N 14:T 15:A
	exp := map[int][4]int{
		10: {0, 0, 1, 0},
		12: {0, 0, 0, 1},
		14: {0, 0, 0, 1},
		15: {1, 0, 0, 0},
	}
	for i := 0; i < w.Len(); i++ {
		c := w.Counts(i, 1)
		if c != exp[w.Beg+i] {
			tst.Errorf("Position %d: expected %v, got %v", w.Beg+i, exp[w.Beg+i], c)
		}
		if c0 := w.Counts(i, 0); c0 != [4]int{} {
			tst.Errorf("Position %d: unexpected counts for other library %v", w.Beg+i, c0)
		}
	}
	if d := w.Depth(0); d != 1 {
		tst.Error("Expected depth 1, got", d)
	}

	rec.Qual[4] = 5
	w2 := NewWindow(Region{"chr1", 10, 20}, 1)
	w2.Add(rec, 0, 10)
	if w2.Depth(0) != 0 || w2.Depth(2) != 1 {
		tst.Error("Low quality base should be ignored")
	}
}

// writeBam writes records to a BAM file and creates its index.
func writeBam(tst *testing.T, name string, h *sam.Header, recs []*sam.Record) {
	f, err := os.Create(name)
	if err != nil {
		tst.Fatal(err)
	}
	bw, err := bam.NewWriter(f, h, 1)
	if err != nil {
		tst.Fatal(err)
	}
	for _, rec := range recs {
		if err := bw.Write(rec); err != nil {
			tst.Fatal(err)
		}
	}
	if err := bw.Close(); err != nil {
		tst.Fatal(err)
	}
	f.Close()

	f, err = os.Open(name)
	if err != nil {
		tst.Fatal(err)
	}
	defer f.Close()
	br, err := bam.NewReader(f, 1)
	if err != nil {
		tst.Fatal(err)
	}
	defer br.Close()
	var idx bam.Index
	for {
		rec, err := br.Read()
		if err != nil {
			break
		}
		if err := idx.Add(rec, br.LastChunk()); err != nil {
			tst.Fatal(err)
		}
	}
	fi, err := os.Create(name + ".bai")
	if err != nil {
		tst.Fatal(err)
	}
	defer fi.Close()
	if err := bam.WriteIndex(fi, &idx); err != nil {
		tst.Fatal(err)
	}
}

func TestReader(tst *testing.T) {
	dir, err := ioutil.TempDir("", "pileup")
	if err != nil {
		tst.Fatal(err)
	}
	defer os.RemoveAll(dir)

	h, err := sam.NewHeader([]byte(testHeader), nil)
	if err != nil {
		tst.Fatal(err)
	}
	chr1 := h.Refs()[0]
	m4 := []sam.CigarOp{sam.NewCigarOp(sam.CigarMatch, 4)}
	dup := newRecord(tst, chr1, 102, m4, "TTTT", "rgA")
	dup.Flags = sam.Duplicate
	recs := []*sam.Record{
		newRecord(tst, chr1, 100, m4, "ACGT", "rgA"),
		newRecord(tst, chr1, 101, m4, "CGTA", "rgB"),
		dup,
		newRecord(tst, chr1, 102, m4, "GTAC", "rgX"),
		newRecord(tst, chr1, 500, m4, "AAAA", "rgA"),
	}
	name := filepath.Join(dir, "test.bam")
	writeBam(tst, name, h, recs)

	rd, err := Open([]string{name}, Filter{})
	if err != nil {
		tst.Fatal("Error opening alignments:", err)
	}
	defer rd.Close()

	rgs := rd.ReadGroups()
	if len(rgs) != 2 || rgs[0].ID != "rgA" || rgs[0].Sample != "A" || rgs[1].Sample != "B" {
		tst.Error("Wrong read groups:", rgs)
	}
	if refs := rd.References(); len(refs) != 2 || refs[1].Ref != "chr2" || refs[1].End != 500 {
		tst.Error("Wrong references:", refs)
	}

	reg, err := rd.Bounded(Region{"chr1", 98, -1})
	if err != nil || reg.End != 1000 {
		tst.Fatal("Wrong bounded region:", reg, err)
	}
	w, err := rd.Window(Region{"chr1", 100, 104}, libMap{"rgA": 0, "rgB": 1}, 2)
	if err != nil {
		tst.Fatal("Error reading window:", err)
	}
	exp := [][2][4]int{
		{{1, 0, 0, 0}, {0, 0, 0, 0}},
		{{0, 1, 0, 0}, {0, 1, 0, 0}},
		{{0, 0, 1, 0}, {0, 0, 1, 0}},
		{{0, 0, 0, 1}, {0, 0, 0, 1}},
	}
	for i := range exp {
		for lib := 0; lib < 2; lib++ {
			if c := w.Counts(i, lib); c != exp[i][lib] {
				tst.Errorf("Position %d, library %d: expected %v, got %v", 100+i, lib, exp[i][lib], c)
			}
		}
	}

	if _, err := rd.Window(Region{"chr1", 0, -1}, libMap{}, 1); err == nil {
		tst.Error("Expected error for unbounded window")
	}
	if _, err := Open([]string{filepath.Join(dir, "missing.bam")}, Filter{}); err == nil {
		tst.Error("Expected error for missing file")
	}
}

func TestReference(tst *testing.T) {
	dir, err := ioutil.TempDir("", "pileup")
	if err != nil {
		tst.Fatal(err)
	}
	defer os.RemoveAll(dir)
	name := filepath.Join(dir, "ref.fa")
	if err := ioutil.WriteFile(name, []byte(">chr1 test\nACGTN\nacgt\n>chr2\nTTTT\n"), 0644); err != nil {
		tst.Fatal(err)
	}
	ref, err := LoadReference(name)
	if err != nil {
		tst.Fatal("Error loading reference:", err)
	}
	if l, err := ref.Len("chr1"); err != nil || l != 9 {
		tst.Error("Wrong length of chr1:", l, err)
	}
	for pos, exp := range []int{0, 1, 2, 3, 4, 0, 1, 2, 3} {
		if b := ref.Base("chr1", pos); b != exp {
			tst.Errorf("Position %d: expected %d, got %d", pos, exp, b)
		}
	}
	if ref.Base("chr3", 0) != 4 || ref.Base("chr2", 10) != 4 {
		tst.Error("Unknown positions should be N")
	}
	var empty Reference
	if empty.Base("chr1", 0) != 4 {
		tst.Error("Empty reference should give N")
	}
	if _, err := LoadReference(filepath.Join(dir, "missing.fa")); err == nil {
		tst.Error("Expected error for missing reference")
	}
}
