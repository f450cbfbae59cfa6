package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// refNames are letters of reference indices.
const refNames = "ACGTN"

// output writes sites as tab separated values, optionally gzip
// compressed.
type output struct {
	*bufio.Writer
	f  *os.File
	gz *gzip.Writer
}

// createOutput opens the output file, stdout for an empty name. Names
// ending with .gz are compressed. In append mode the file is not
// truncated. isNew is true if nothing was written to the file before.
func createOutput(name string, appendMode bool) (o *output, isNew bool, err error) {
	o = &output{}
	if name == "" {
		o.f = os.Stdout
		isNew = true
	} else {
		flags := os.O_WRONLY | os.O_CREATE
		if appendMode {
			flags |= os.O_APPEND
		} else {
			flags |= os.O_TRUNC
		}
		if o.f, err = os.OpenFile(name, flags, 0666); err != nil {
			return nil, false, errors.Wrap(err, "creating output file")
		}
		fi, err := o.f.Stat()
		if err != nil {
			o.f.Close()
			return nil, false, errors.Wrap(err, "creating output file")
		}
		isNew = fi.Size() == 0
	}
	var w io.Writer = o.f
	if strings.HasSuffix(name, ".gz") {
		o.gz = gzip.NewWriter(o.f)
		w = o.gz
	}
	o.Writer = bufio.NewWriter(w)
	return o, isNew, nil
}

// writeHeader writes column names.
func (o *output) writeHeader() error {
	_, err := o.WriteString("#chrom\tpos\tref\tdepth\tmutp\tloglike\n")
	return err
}

// writeSite writes a site, mutation probability is omitted if
// withMut is false.
func (o *output) writeSite(chrom string, s *site, withMut bool) (err error) {
	if withMut {
		_, err = fmt.Fprintf(o, "%s\t%d\t%c\t%d\t%.6g\t%.6f\n",
			chrom, s.Pos+1, refNames[s.Ref], s.Depth, s.MutProb, s.LogLike)
	} else {
		_, err = fmt.Fprintf(o, "%s\t%d\t%c\t%d\t.\t%.6f\n",
			chrom, s.Pos+1, refNames[s.Ref], s.Depth, s.LogLike)
	}
	return
}

// Sync writes all buffered data to the file.
func (o *output) Sync() error {
	if err := o.Flush(); err != nil {
		return err
	}
	if o.gz != nil {
		return o.gz.Flush()
	}
	return nil
}

// Close flushes the data and closes the file.
func (o *output) Close() error {
	err := o.Flush()
	if o.gz != nil {
		if gerr := o.gz.Close(); err == nil {
			err = gerr
		}
	}
	if o.f != os.Stdout {
		if ferr := o.f.Close(); err == nil {
			err = ferr
		}
	}
	return err
}
