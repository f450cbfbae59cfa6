/*

Dng computes probabilities of de novo mutations in a pedigree from
aligned sequencing reads.

Every sequenced library (read group) is attached to a pedigree member.
For every site base counts are converted to genotype likelihoods and
combined over the pedigree by peeling.

The basic usage looks like this:

	dng call -p family.ped -r chr1:1-1000000 sample1.bam sample2.bam

, this will report sites where the probability of a de novo mutation
is high enough. The total log-likelihood of a region can be computed
with:

	dng loglike -p family.ped -r chr1 sample1.bam sample2.bam

To see all the options run:

	dng --help-long

*/
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"strconv"
	"strings"
	"time"

	"github.com/op/go-logging"
	"github.com/pkg/errors"
	"gopkg.in/alecthomas/kingpin.v2"

	"bitbucket.org/Davydov/dng/genotype"
	"bitbucket.org/Davydov/dng/pedigree"
)

// These three variables are set during the compilation.
var githash = ""
var gitbranch = ""
var buildstamp = ""
var version = fmt.Sprintf("branch: %s, revision: %s, build time: %s", gitbranch, githash, buildstamp)

// Logger settings.
var log = logging.MustGetLogger("dng")
var formatter = logging.MustStringFormatter(`%{message}`)

// modules are loggers controlled by --loglevel.
var modules = []string{"dng", "genotype", "ped", "pedigree", "pileup", "checkpoint"}

// inputs are positional arguments and input flags of a command.
type inputs struct {
	ped     *string
	regions *[]string
	fasta   *string
	bams    *[]string
}

func addInputs(cmd *kingpin.CmdClause) inputs {
	return inputs{
		ped:     cmd.Flag("ped", "pedigree file (PED format)").Short('p').Required().ExistingFile(),
		regions: cmd.Flag("region", "region to scan (chr, chr:beg or chr:beg-end), whole genome by default").Short('r').Strings(),
		fasta:   cmd.Flag("fasta", "reference sequence (FASTA), reference base is N without it").Short('f').ExistingFile(),
		bams:    cmd.Arg("bam", "indexed alignment files").Required().ExistingFiles(),
	}
}

// command-line options
var (
	// application
	app = kingpin.New("dng", "de novo mutation caller for pedigrees").Version(version)

	// commands
	callCmd    = app.Command("call", "report sites with a probable de novo mutation")
	callIn     = addInputs(callCmd)
	minProb    = callCmd.Flag("min-prob", "minimum mutation probability to report a site").Default("0.1").Float64()
	loglikeCmd = app.Command("loglike", "compute log-likelihood of the data")
	loglikeIn  = addInputs(loglikeCmd)

	// model parameters
	theta     = app.Flag("theta", "population diversity").Default("0.001").Float64()
	mu        = app.Flag("mu", "germline mutation rate").Default("1e-8").Float64()
	muSomatic = app.Flag("mu-somatic", "somatic mutation rate").Default("0").Float64()
	muLibrary = app.Flag("mu-library", "library preparation mutation rate").Default("0").Float64()
	refWeight = app.Flag("ref-weight", "prior weight of the reference base").Default("1").Float64()
	nucFreq   = app.Flag("nuc-freq", "nucleotide frequencies (A,C,G,T)").Default("0.3,0.2,0.2,0.3").String()

	// read model parameters
	errorRate      = app.Flag("error-rate", "sequencing error rate").Default("0.001").Float64()
	overdispersion = app.Flag("overdispersion", "overdispersion of read counts").Default("0.001").Float64()

	// read filters
	minMapQ  = app.Flag("min-mapq", "minimum mapping quality").Default("13").Int()
	minLen   = app.Flag("min-len", "minimum number of aligned read bases").Default("0").Int()
	minBaseQ = app.Flag("min-baseq", "minimum base quality").Default("13").Int()

	// technical
	nThreads     = app.Flag("nt", "number of threads to use").Int()
	windowSize   = app.Flag("window", "number of sites read at once").Default("10000").Int()
	checkpointF  = app.Flag("checkpoint", "checkpoint database, allows to resume the scan").String()
	checkpointDt = app.Flag("checkpoint-seconds", "save checkpoint at most once in N seconds").Default("60").Float64()
	cpuProfile   = app.Flag("cpuprofile", "write cpu profile to file").String()

	// output
	outLogF  = app.Flag("log", "write log to a file").String()
	outF     = app.Flag("out", "write sites to a file (gzip compressed for .gz)").Short('o').String()
	logLevel = app.Flag("loglevel", "set loglevel "+
		"('critical', 'error', 'warning', 'notice', 'info', 'debug')").
		Default("notice").
		Enum("critical", "error", "warning", "notice", "info", "debug")
	jsonF = app.Flag("json", "write json output to a file").String()
)

// parseFreqs parses comma separated nucleotide frequencies.
func parseFreqs(s string) (freq [genotype.NumBases]float64, err error) {
	fields := strings.Split(s, ",")
	if len(fields) != genotype.NumBases {
		return freq, errors.Errorf("expected %d nucleotide frequencies, got %q", genotype.NumBases, s)
	}
	for i, f := range fields {
		freq[i], err = strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return freq, errors.Wrapf(err, "nucleotide frequency %q", f)
		}
	}
	return
}

// params returns model parameters from the command line.
func params() (par pedigree.Params, err error) {
	par = pedigree.Params{
		Theta:     *theta,
		Mu:        *mu,
		MuSomatic: *muSomatic,
		MuPCR:     *muLibrary,
		RefWeight: *refWeight,
	}
	par.NucFreq, err = parseFreqs(*nucFreq)
	return
}

func main() {
	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	// logging
	logging.SetFormatter(formatter)

	var backend *logging.LogBackend
	if *outLogF != "" {
		f, err := os.OpenFile(*outLogF, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			log.Fatal("Error creating log file:", err)
		}
		defer f.Close()
		backend = logging.NewLogBackend(f, "", 0)
	} else {
		backend = logging.NewLogBackend(os.Stderr, "", 0)
	}
	logging.SetBackend(backend)

	level, err := logging.LogLevel(*logLevel)
	if err != nil {
		log.Fatal(err)
	}
	for _, module := range modules {
		logging.SetLevel(level, module)
	}

	// print revision
	log.Info(version)

	// print commandline
	log.Info("Command line:", os.Args)

	runtime.GOMAXPROCS(*nThreads)
	effectiveNThreads := runtime.GOMAXPROCS(0)
	log.Infof("Using threads: %d.", effectiveNThreads)

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	if *windowSize <= 0 {
		log.Fatal("Window size should be positive")
	}

	startTime := time.Now()
	var in inputs
	sc := &scan{command: cmd}
	switch cmd {
	case callCmd.FullCommand():
		in = callIn
		sc.call = true
		sc.minProb = *minProb
	case loglikeCmd.FullCommand():
		in = loglikeIn
	}

	summary, err := sc.run(in)
	if err != nil {
		log.Fatal(err)
	}
	summary.Version = version
	summary.CommandLine = os.Args
	summary.NThreads = effectiveNThreads
	summary.Time = time.Since(startTime).Seconds()
	log.Noticef("Running time: %v", time.Since(startTime))

	// output summary in json format
	if *jsonF != "" {
		j, err := json.Marshal(summary)
		if err != nil {
			log.Error(err)
		} else {
			log.Debug(string(j))
			f, err := os.Create(*jsonF)
			if err != nil {
				log.Error("Error creating json output file:", err)
			} else {
				f.Write(j)
				f.Close()
			}
		}
	}
}
