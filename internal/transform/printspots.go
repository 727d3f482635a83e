package transform

import (
	"fmt"
	"io"
	"math/rand/v2"

	"github.com/mrsinham/dicomfix/internal/plan"
)

// PrintSpots writes, for every physical layer of after, n randomly chosen
// spot weights next to the same spots in before. Fields are matched by
// Origin so duplicated fields compare against their source. Layers with
// fewer than n spots are printed in full.
func PrintSpots(w io.Writer, before, after *plan.Plan, n int, rng *rand.Rand) {
	if n <= 0 {
		return
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	src := make(map[int]*plan.Field, len(before.Fields))
	for _, f := range before.Fields {
		if _, ok := src[f.Origin]; !ok {
			src[f.Origin] = f
		}
	}

	fmt.Fprintln(w, "    ---- Spot weights comparison ----")
	for fi, f := range after.Fields {
		orig := src[f.Origin]
		if orig == nil {
			continue
		}
		layerNo := 0
		for li, l := range f.Layers {
			if li >= len(orig.Layers) || orig.Layers[li].IsEmpty() {
				continue
			}
			layerNo++
			ol := orig.Layers[li]

			fmt.Fprintln(w, plan.HLine)
			fmt.Fprintln(w, "    Meterset Weights Comparison ")
			fmt.Fprintf(w, "    - Field #%d Layer #%d \n", fi+1, layerNo)
			fmt.Fprintln(w, plan.HLine)
			fmt.Fprintln(w, "Original | Modified")
			fmt.Fprintln(w, "---------|---------")

			idx := sampleIndices(len(ol.Spots), n, rng)
			for _, i := range idx {
				var mod float64
				if i < len(l.Spots) {
					mod = l.Spots[i].Weight
				}
				fmt.Fprintf(w, "%8.4f | %8.4f\n", ol.Spots[i].Weight, mod)
			}
		}
	}
}

func sampleIndices(size, n int, rng *rand.Rand) []int {
	if size <= n {
		idx := make([]int, size)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
	return rng.Perm(size)[:n]
}
