package pileup

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Region is a genomic interval. Coordinates are zero-based, End is
// not included. End < 0 means the end of the reference.
type Region struct {
	Ref string
	Beg int
	End int
}

// ParseRegion parses a region in "chr", "chr:beg" or "chr:beg-end"
// form with one-based inclusive coordinates. Commas in numbers are
// ignored.
func ParseRegion(s string) (r Region, err error) {
	s = strings.TrimSpace(s)
	r.End = -1
	colon := strings.LastIndexByte(s, ':')
	if colon < 0 {
		if s == "" {
			return r, errors.New("empty region")
		}
		r.Ref = s
		return
	}
	r.Ref = s[:colon]
	if r.Ref == "" {
		return r, errors.Errorf("region %q: empty reference name", s)
	}
	coords := strings.Replace(s[colon+1:], ",", "", -1)
	begS, endS := coords, ""
	if dash := strings.IndexByte(coords, '-'); dash >= 0 {
		begS, endS = coords[:dash], coords[dash+1:]
	}
	beg, err := strconv.Atoi(begS)
	if err != nil || beg < 1 {
		return r, errors.Errorf("region %q: invalid start %q", s, begS)
	}
	r.Beg = beg - 1
	if endS != "" {
		end, err := strconv.Atoi(endS)
		if err != nil || end < beg {
			return r, errors.Errorf("region %q: invalid end %q", s, endS)
		}
		r.End = end
	}
	return
}

// Len returns the region length or -1 if it is not bounded.
func (r Region) Len() int {
	if r.End < 0 {
		return -1
	}
	return r.End - r.Beg
}

func (r Region) String() string {
	if r.End < 0 {
		if r.Beg == 0 {
			return r.Ref
		}
		return fmt.Sprintf("%s:%d", r.Ref, r.Beg+1)
	}
	return fmt.Sprintf("%s:%d-%d", r.Ref, r.Beg+1, r.End)
}
