package reduce

import (
	"errors"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// singleSampleOffset is added to the duplicate of a single-row input.
const singleSampleOffset = 0.1

// jitterScale is the jitter standard deviation relative to each column's
// standard deviation.
const jitterScale = 0.01

var errDecomposition = errors.New("singular value decomposition did not converge")

// PCA projects m onto min(k, N-1) principal components and returns an
// N×k matrix; unused columns are zero.
//
// A single-row input yields a 2×k matrix: the projected row (all zeros) and
// a copy offset by 0.1 in every column, so the pair is apart in each of the
// k plotted axes. With jitter enabled and N>1,
// seeded noise is added to separate identical pages.
func (r *Reducer) PCA(m *mat.Dense, k int) (*mat.Dense, error) {
	if err := checkInput(PCA, m, k); err != nil {
		return nil, err
	}

	n, _ := m.Dims()
	if n == 1 {
		out := mat.NewDense(2, k, nil)
		for j := range k {
			out.Set(1, j, singleSampleOffset)
		}
		return out, nil
	}

	coords, err := project(m, min(k, n-1), k)
	if err != nil {
		return nil, &ReductionError{Method: PCA, Reason: "decomposition", Err: err}
	}

	if r.jitter {
		addJitter(coords, r.newRand())
	}
	return coords, nil
}

// project centres m and projects it onto its first comps principal
// components. The result has width columns; columns past the available
// components are zero.
func project(m *mat.Dense, comps, width int) (*mat.Dense, error) {
	n, d := m.Dims()

	var pc stat.PC
	if !pc.PrincipalComponents(m, nil) {
		return nil, errDecomposition
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	_, avail := vecs.Dims()
	use := min(comps, avail, width)

	out := mat.NewDense(n, width, nil)
	if use == 0 {
		return out, nil
	}

	centered := mat.DenseCopyOf(m)
	col := make([]float64, n)
	for j := range d {
		mat.Col(col, j, m)
		mean := stat.Mean(col, nil)
		for i := range n {
			centered.Set(i, j, col[i]-mean)
		}
	}

	var proj mat.Dense
	proj.Mul(centered, vecs.Slice(0, d, 0, use))
	out.Slice(0, n, 0, use).(*mat.Dense).Copy(&proj)
	return out, nil
}

// addJitter adds N(0, (0.01·σ_j)²) noise to every column j, where σ_j is
// the column's population standard deviation.
func addJitter(m *mat.Dense, rng *rand.Rand) {
	n, k := m.Dims()
	col := make([]float64, n)
	for j := range k {
		mat.Col(col, j, m)
		_, std := stat.PopMeanStdDev(col, nil)
		scale := jitterScale * std
		if scale == 0 {
			continue
		}
		for i := range n {
			m.Set(i, j, col[i]+rng.NormFloat64()*scale)
		}
	}
}
