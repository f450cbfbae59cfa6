package genotype

func init() {
	g := 0
	for a := 0; a < NumBases; a++ {
		for b := a; b < NumBases; b++ {
			alleles[g] = [2]int{a, b}
			index[a][b] = g
			index[b][a] = g
			names[g] = string([]byte{Bases[a], Bases[b]})
			g++
		}
	}
}
