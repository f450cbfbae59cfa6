package genotype

// PopulationPrior computes genotype frequencies in a population with
// diversity theta and nucleotide frequencies freq. The reference base
// ref (0..3) receives extra Dirichlet weight refWeight; ref == N means
// the reference is unknown and no extra weight is used.
//
// Genotypes are two draws from a Dirichlet-multinomial with
// alpha_k = theta*freq_k (+ refWeight for the reference base).
func PopulationPrior(theta float64, freq [NumBases]float64, refWeight float64, ref int) (v Vector) {
	var alpha [NumBases]float64
	sum := 0.0
	for k := range alpha {
		alpha[k] = theta * freq[k]
		if k == ref {
			alpha[k] += refWeight
		}
		sum += alpha[k]
	}
	norm := sum * (sum + 1)
	for g := range v {
		a, b := Alleles(g)
		if a == b {
			v[g] = alpha[a] * (alpha[a] + 1) / norm
		} else {
			v[g] = 2 * alpha[a] * alpha[b] / norm
		}
	}
	return
}

// PopulationPriors computes priors for every reference index
// (A, C, G, T and N).
func PopulationPriors(theta float64, freq [NumBases]float64, refWeight float64) (priors [NumRefs]Vector) {
	for ref := range priors {
		priors[ref] = PopulationPrior(theta, freq, refWeight, ref)
	}
	return
}
