package main

import (
	"os"

	"github.com/exascience/pargo/parallel"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"bitbucket.org/Davydov/dng/checkpoint"
	"bitbucket.org/Davydov/dng/genotype"
	"bitbucket.org/Davydov/dng/ped"
	"bitbucket.org/Davydov/dng/pedigree"
	"bitbucket.org/Davydov/dng/pileup"
)

// site is the result of evaluating one position.
type site struct {
	// Pos is zero-based position.
	Pos int
	// Ref is reference base index.
	Ref   int
	Depth int
	// MutProb is the de novo mutation probability, only computed in
	// call mode.
	MutProb float64
	// LogLike is the log-likelihood of the data including read
	// likelihood scaling.
	LogLike float64
}

// evaluate computes site likelihoods for every position of the
// window. Positions are split between goroutines, each with its own
// copy of the engine. Sites without reads are left with zero depth
// and zero log-likelihood.
func evaluate(p *pedigree.Pedigree, rm *genotype.ReadModel, w *pileup.Window, ref pileup.Reference, withMut bool) []site {
	sites := make([]site, w.Len())
	parallel.Range(0, len(sites), 0, func(low, high int) {
		eng := p.Clone()
		for i := low; i < high; i++ {
			s := &sites[i]
			s.Pos = w.Beg + i
			s.Ref = ref.Base(w.Ref, s.Pos)
			s.Depth = w.Depth(i)
			if s.Depth == 0 {
				continue
			}
			scale := 0.0
			for k := 0; k < w.NumLibraries; k++ {
				v, sc := rm.Likelihoods(w.Counts(i, k))
				eng.SetLibraryLower(k, &v)
				scale += sc
			}
			s.LogLike = eng.CalculateLogLikelihood(s.Ref) + scale
			if withMut {
				s.MutProb = eng.CalculateMutProbability(s.Ref)
			}
		}
	})
	return sites
}

// scan runs a command over a set of regions.
type scan struct {
	command string
	// call is true if mutation probabilities are computed.
	call    bool
	minProb float64

	engine *pedigree.Pedigree
	graph  *pedigree.Graph
	rm     *genotype.ReadModel
	reader *pileup.Reader
	ref    pileup.Reference
	out    *output
	db     *bolt.DB
	window int
	dt     float64
}

// readPedigree reads a PED file.
func readPedigree(filename string) (*ped.Pedigree, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "opening pedigree")
	}
	defer f.Close()
	pd, err := ped.Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "reading pedigree %s", filename)
	}
	return pd, nil
}

// regions returns the regions to scan.
func (sc *scan) regions(names []string) (regs []pileup.Region, err error) {
	if len(names) == 0 {
		return sc.reader.References(), nil
	}
	for _, name := range names {
		reg, err := pileup.ParseRegion(name)
		if err != nil {
			return nil, err
		}
		if reg, err = sc.reader.Bounded(reg); err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}
	return regs, nil
}

// run reads the inputs, builds the engine and scans all the regions.
func (sc *scan) run(in inputs) (summary *RunSummary, err error) {
	sc.window = *windowSize
	sc.dt = *checkpointDt

	if *errorRate <= 0 || *errorRate >= 1 {
		return nil, errors.Errorf("error rate should be in (0, 1), got %v", *errorRate)
	}
	if *overdispersion <= 0 || *overdispersion >= 1 {
		return nil, errors.Errorf("overdispersion should be in (0, 1), got %v", *overdispersion)
	}
	if sc.minProb < 0 || sc.minProb > 1 {
		return nil, errors.Errorf("minimum mutation probability should be in [0, 1], got %v", sc.minProb)
	}
	sc.rm = genotype.NewReadModel(*errorRate, *overdispersion)

	par, err := params()
	if err != nil {
		return nil, err
	}
	model, err := pedigree.Initialize(par)
	if err != nil {
		return nil, err
	}

	pd, err := readPedigree(*in.ped)
	if err != nil {
		return nil, err
	}
	log.Infof("Pedigree of %d individuals", pd.Len())

	sc.reader, err = pileup.Open(*in.bams, pileup.Filter{
		MinMapQ:  *minMapQ,
		MinLen:   *minLen,
		MinBaseQ: *minBaseQ,
	})
	if err != nil {
		return nil, err
	}
	defer sc.reader.Close()

	sc.engine, err = pedigree.Build(pd, sc.reader.ReadGroups(), model)
	if err != nil {
		return nil, err
	}
	sc.graph = sc.engine.Graph()
	if sc.graph.NumLibraries == 0 {
		return nil, errors.New("no read group belongs to a pedigree member")
	}
	log.Infof("Libraries: %d", sc.graph.NumLibraries)
	log.Debugf("Peeling schedule:\n%v", sc.graph.Schedule)

	if *in.fasta != "" {
		if sc.ref, err = pileup.LoadReference(*in.fasta); err != nil {
			return nil, err
		}
	} else {
		log.Warning("No reference given, reference base is N")
	}

	regs, err := sc.regions(*in.regions)
	if err != nil {
		return nil, err
	}

	if *checkpointF != "" {
		if sc.db, err = checkpoint.Open(*checkpointF); err != nil {
			return nil, err
		}
		defer sc.db.Close()
	}

	out, isNew, err := createOutput(*outF, sc.db != nil)
	if err != nil {
		return nil, err
	}
	sc.out = out
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = errors.Wrap(cerr, "writing output")
		}
	}()
	if isNew {
		if err = out.writeHeader(); err != nil {
			return nil, errors.Wrap(err, "writing output")
		}
	}

	summary = &RunSummary{
		Command:    sc.command,
		NMembers:   sc.graph.NumMembers,
		NLibraries: sc.graph.NumLibraries,
	}
	for _, reg := range regs {
		rs, err := sc.region(reg)
		if err != nil {
			return nil, err
		}
		summary.Regions = append(summary.Regions, rs)
		summary.NSites += rs.NSites
		summary.NCalls += rs.NCalls
		summary.LogLikelihood += rs.LogLikelihood
	}
	log.Noticef("Sites: %d, lnL=%f", summary.NSites, summary.LogLikelihood)
	if sc.call {
		log.Noticef("Reported sites: %d", summary.NCalls)
	}
	return summary, nil
}

// region scans one bounded region window by window.
func (sc *scan) region(reg pileup.Region) (rs RegionSummary, err error) {
	name := reg.String()
	store := checkpoint.New(sc.db, checkpoint.Key(sc.command, name), sc.dt)
	data, err := store.Load()
	if err != nil {
		return rs, err
	}
	if data != nil {
		rs.Resumed = true
	} else {
		data = &checkpoint.Data{Region: name, LastPos: reg.Beg}
	}
	defer func() {
		rs.Region = name
		rs.NSites = data.NSites
		rs.NCalls = data.NCalls
		rs.LogLikelihood = data.LogLikelihood
	}()
	if data.Final {
		return rs, nil
	}

	log.Noticef("Scanning %s", name)
	store.SetNow()
	for beg := data.LastPos; beg < reg.End; beg += sc.window {
		end := beg + sc.window
		if end > reg.End {
			end = reg.End
		}
		w, err := sc.reader.Window(pileup.Region{Ref: reg.Ref, Beg: beg, End: end}, sc.graph, sc.graph.NumLibraries)
		if err != nil {
			return rs, err
		}
		for _, s := range evaluate(sc.engine, sc.rm, w, sc.ref, sc.call) {
			if s.Depth == 0 {
				continue
			}
			data.NSites++
			data.LogLikelihood += s.LogLike
			if sc.call && s.MutProb < sc.minProb {
				continue
			}
			if sc.call {
				data.NCalls++
			}
			if err := sc.out.writeSite(reg.Ref, &s, sc.call); err != nil {
				return rs, errors.Wrap(err, "writing output")
			}
		}
		data.LastPos = end
		log.Infof("%s:%d, sites=%d, lnL=%f", reg.Ref, end, data.NSites, data.LogLikelihood)
		if sc.db != nil && store.Old() {
			if err := sc.out.Sync(); err != nil {
				return rs, errors.Wrap(err, "writing output")
			}
			if err := store.Save(data); err != nil {
				return rs, err
			}
		}
	}
	data.Final = true
	if sc.db != nil {
		if err := sc.out.Sync(); err != nil {
			return rs, errors.Wrap(err, "writing output")
		}
		if err := store.Save(data); err != nil {
			return rs, err
		}
	}
	return rs, nil
}
