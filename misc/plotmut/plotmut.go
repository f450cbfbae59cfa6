// plotmut plots mutation probabilities (or log-likelihoods) along a
// chromosome from dng output.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// columns of dng output
var columns = map[string]int{
	"depth":   3,
	"mutp":    4,
	"loglike": 5,
}

// readSites reads positions and values of column col from dng output.
// If chrom is not empty, other chromosomes are skipped. Missing values
// (".") are skipped.
func readSites(rd io.Reader, col int, chrom string) (pts plotter.XYs, err error) {
	sc := bufio.NewScanner(rd)
	line := 0
	for sc.Scan() {
		line++
		s := sc.Text()
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		fields := strings.Split(s, "\t")
		if len(fields) <= col {
			return nil, errors.Errorf("line %d: expected at least %d columns", line, col+1)
		}
		if chrom != "" && fields[0] != chrom {
			continue
		}
		if fields[col] == "." {
			continue
		}
		pos, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		v, err := strconv.ParseFloat(fields[col], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		pts = append(pts, plotter.XY{X: float64(pos), Y: v})
	}
	return pts, sc.Err()
}

func main() {
	column := flag.String("column", "mutp", "column to plot (depth, mutp or loglike)")
	chrom := flag.String("chrom", "", "plot only this chromosome")
	out := flag.String("out", "sites.png", "output image")
	flag.Parse()

	col, ok := columns[*column]
	if !ok || flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: plotmut [-column mutp] [-chrom chr] [-out sites.png] sites.txt")
		os.Exit(1)
	}

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		panic(err)
	}
	defer f.Close()
	var rd io.Reader = f
	if strings.HasSuffix(flag.Arg(0), ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			panic(err)
		}
		defer gz.Close()
		rd = gz
	}

	pts, err := readSites(rd, col, *chrom)
	if err != nil {
		panic(err)
	}

	if err := plotSites(pts, *chrom, *column, *out); err != nil {
		panic(err)
	}
}

// plotSites saves a scatter plot of points to an image file, the
// format is chosen by the file extension.
func plotSites(pts plotter.XYs, title, label, out string) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "position"
	p.Y.Label.Text = label

	s, err := plotter.NewScatter(pts)
	if err != nil {
		return errors.Wrap(err, "creating scatter plot")
	}
	p.Add(s)

	return p.Save(8*vg.Inch, 4*vg.Inch, out)
}
