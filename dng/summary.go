package main

// RunSummary is storing dng run summary information.
type RunSummary struct {
	// Version stores dng version.
	Version string `json:"version"`
	// CommandLine is an array storing binary name and all command-line parameters.
	CommandLine []string `json:"commandLine"`
	// NThreads is the number of processes used.
	NThreads int `json:"nThreads"`
	// Time is the computations time in seconds.
	Time float64 `json:"time"`
	// Command is the subcommand (call or loglike).
	Command string `json:"command"`
	// NMembers is the number of pedigree members.
	NMembers int `json:"nMembers"`
	// NLibraries is the number of libraries used.
	NLibraries int `json:"nLibraries"`
	// Regions stores results for every scanned region.
	Regions []RegionSummary `json:"regions"`
	// NSites is the number of covered sites.
	NSites int `json:"nSites"`
	// NCalls is the number of reported sites.
	NCalls int `json:"nCalls,omitempty"`
	// LogLikelihood is the total log-likelihood of covered sites.
	LogLikelihood float64 `json:"logLikelihood"`
}

// RegionSummary stores results for one region.
type RegionSummary struct {
	Region        string  `json:"region"`
	NSites        int     `json:"nSites"`
	NCalls        int     `json:"nCalls,omitempty"`
	LogLikelihood float64 `json:"logLikelihood"`
	// Resumed is true if the region was started from a checkpoint.
	Resumed bool `json:"resumed,omitempty"`
}
