package reduce

import (
	"cmp"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// MinUMAPSamples is the smallest input UMAP accepts.
const MinUMAPSamples = 4

// UMAP parameters.
const (
	// smallDataset is the row count below which the input is first
	// projected with PCA to at most preReduceDims dimensions.
	smallDataset  = 10
	preReduceDims = 50

	maxNeighbors       = 15
	minDist            = 0.1
	spread             = 1.0
	nEpochs            = 500
	negativeSampleRate = 5
	repulsionStrength  = 1.0
	learningRate       = 1.0

	// initMaxCoord is the largest absolute coordinate of the initial layout.
	initMaxCoord = 10.0
	initNoise    = 1e-4

	gradientClip = 4.0

	smoothKNNIterations = 64
	smoothKNNTolerance  = 1e-5
	minKDistScale       = 1e-3
)

// UMAP embeds m into k dimensions.
//
// Inputs with fewer than 10 rows are first reduced with PCA to
// min(50, N-1) dimensions. The neighbour count is min(N-1, 15). Output
// that is not finite is reported as a *ReductionError.
func (r *Reducer) UMAP(m *mat.Dense, k int) (*mat.Dense, error) {
	if err := checkInput(UMAP, m, k); err != nil {
		return nil, err
	}
	n, _ := m.Dims()
	if n < MinUMAPSamples {
		return nil, &ReductionError{Method: UMAP, Reason: fmt.Sprintf("too few samples (%d < %d)", n, MinUMAPSamples)}
	}

	data := m
	if n < smallDataset {
		dims := min(preReduceDims, n-1)
		pre, err := project(m, dims, dims)
		if err != nil {
			return nil, &ReductionError{Method: UMAP, Reason: "PCA pre-reduction", Err: err}
		}
		data = pre
	}

	rng := r.newRand()
	nNeighbors := min(n-1, maxNeighbors)

	knnIdx, knnDist := nearestNeighbors(data, nNeighbors)
	graph := fuzzySimplicialSet(n, knnIdx, knnDist)

	embedding, err := initialLayout(data, k, rng)
	if err != nil {
		return nil, &ReductionError{Method: UMAP, Reason: "initial layout", Err: err}
	}

	a, b := curveParams()
	optimizeLayout(embedding, graph, a, b, rng)

	if !allFinite(embedding) {
		return nil, &ReductionError{Method: UMAP, Reason: "layout diverged (NaN or Inf)"}
	}
	return embedding, nil
}

// nearestNeighbors returns, for every row, the indices and distances of its
// k nearest rows by Euclidean distance. Each row lists itself first.
func nearestNeighbors(x *mat.Dense, k int) ([][]int, [][]float64) {
	n, _ := x.Dims()
	dist := make([][]float64, n)
	for i := range n {
		dist[i] = make([]float64, n)
	}
	for i := range n {
		for j := i + 1; j < n; j++ {
			d := floats.Distance(x.RawRowView(i), x.RawRowView(j), 2)
			dist[i][j], dist[j][i] = d, d
		}
	}

	idx := make([][]int, n)
	dst := make([][]float64, n)
	for i := range n {
		order := make([]int, n)
		for j := range order {
			order[j] = j
		}
		slices.SortFunc(order, func(p, q int) int {
			if p == q {
				return 0
			}
			if p == i {
				return -1
			}
			if q == i {
				return 1
			}
			if c := cmp.Compare(dist[i][p], dist[i][q]); c != 0 {
				return c
			}
			return cmp.Compare(p, q)
		})
		idx[i] = order[:k]
		dst[i] = make([]float64, k)
		for j, o := range idx[i] {
			dst[i][j] = dist[i][o]
		}
	}
	return idx, dst
}

// smoothKNN finds, for one point, the distance to its nearest neighbour
// (rho) and the bandwidth sigma for which the neighbour memberships sum to
// log2(k).
func smoothKNN(dists []float64, meanAll float64) (rho, sigma float64) {
	k := len(dists)
	target := math.Log2(float64(k))

	for _, d := range dists {
		if d > 0 {
			rho = d
			break
		}
	}

	lo, hi, mid := 0.0, math.Inf(1), 1.0
	for range smoothKNNIterations {
		psum := 0.0
		for _, d := range dists[1:] {
			if gap := d - rho; gap > 0 {
				psum += math.Exp(-gap / mid)
			} else {
				psum++
			}
		}
		if math.Abs(psum-target) < smoothKNNTolerance {
			break
		}
		if psum > target {
			hi = mid
			mid = (lo + hi) / 2
		} else {
			lo = mid
			if math.IsInf(hi, 1) {
				mid *= 2
			} else {
				mid = (lo + hi) / 2
			}
		}
	}

	sigma = mid
	if rho > 0 {
		sigma = math.Max(sigma, minKDistScale*floats.Sum(dists)/float64(k))
	} else {
		sigma = math.Max(sigma, minKDistScale*meanAll)
	}
	return rho, sigma
}

// fuzzySimplicialSet builds the symmetric membership graph
// P = A + Aᵀ - A∘Aᵀ from the directed neighbour memberships A.
func fuzzySimplicialSet(n int, knnIdx [][]int, knnDist [][]float64) *mat.Dense {
	meanAll := 0.0
	count := 0
	for _, row := range knnDist {
		meanAll += floats.Sum(row)
		count += len(row)
	}
	if count > 0 {
		meanAll /= float64(count)
	}

	directed := mat.NewDense(n, n, nil)
	for i := range n {
		rho, sigma := smoothKNN(knnDist[i], meanAll)
		for j := 1; j < len(knnIdx[i]); j++ {
			val := 1.0
			if gap := knnDist[i][j] - rho; gap > 0 && sigma > 0 {
				val = math.Exp(-gap / sigma)
			}
			directed.Set(i, knnIdx[i][j], val)
		}
	}

	var sum, prod mat.Dense
	sum.Add(directed, directed.T())
	prod.MulElem(directed, directed.T())
	sum.Sub(&sum, &prod)
	return &sum
}

// initialLayout projects x onto its first k principal components and
// scales the result so the largest absolute coordinate is initMaxCoord,
// plus a little seeded noise.
func initialLayout(x *mat.Dense, k int, rng *rand.Rand) (*mat.Dense, error) {
	n, _ := x.Dims()
	layout, err := project(x, min(k, n-1), k)
	if err != nil {
		return nil, err
	}

	maxAbs := 0.0
	for i := range n {
		for _, v := range layout.RawRowView(i) {
			maxAbs = math.Max(maxAbs, math.Abs(v))
		}
	}
	expansion := 1.0
	if maxAbs > 0 {
		expansion = initMaxCoord / maxAbs
	}

	for i := range n {
		row := layout.RawRowView(i)
		for j := range row {
			row[j] = row[j]*expansion + rng.NormFloat64()*initNoise
		}
	}
	return layout, nil
}

// curveParams returns the a and b of the low-dimensional similarity
// 1/(1 + a·d^(2b)) for minDist and spread.
var curveParams = sync.OnceValues(func() (float64, float64) {
	return fitCurve(spread, minDist)
})

// fitCurve fits a and b by least squares against the target curve that is
// 1 below minDist and decays as exp(-(d-minDist)/spread) above it.
func fitCurve(spread, minDist float64) (float64, float64) {
	const samples = 300
	xs := make([]float64, samples)
	floats.Span(xs, 0, spread*3)
	ys := make([]float64, samples)
	for i, x := range xs {
		if x < minDist {
			ys[i] = 1
		} else {
			ys[i] = math.Exp(-(x - minDist) / spread)
		}
	}

	problem := optimize.Problem{
		Func: func(p []float64) float64 {
			a, b := p[0], p[1]
			if a <= 0 || b <= 0 {
				return math.Inf(1)
			}
			sse := 0.0
			for i, x := range xs {
				diff := 1/(1+a*math.Pow(x, 2*b)) - ys[i]
				sse += diff * diff
			}
			return sse
		},
	}

	// Values for minDist=0.1, spread=1, used if the fit does not converge.
	const fallbackA, fallbackB = 1.577, 0.8951

	res, err := optimize.Minimize(problem, []float64{1, 1}, nil, &optimize.NelderMead{})
	if res == nil || (err != nil && res.Status != optimize.IterationLimit) {
		return fallbackA, fallbackB
	}
	a, b := res.X[0], res.X[1]
	if a <= 0 || b <= 0 || math.IsNaN(a) || math.IsNaN(b) {
		return fallbackA, fallbackB
	}
	return a, b
}

// edge is one directed entry of the membership graph.
type edge struct {
	head, tail int
	// epochsPerSample is how often (in epochs) the edge is sampled.
	epochsPerSample float64
}

// optimizeLayout runs the UMAP stochastic gradient descent: each edge
// attracts its endpoints in proportion to its weight, and negative samples
// drawn from rng repel the head from random points.
func optimizeLayout(embedding, graph *mat.Dense, a, b float64, rng *rand.Rand) {
	n, _ := graph.Dims()

	maxW := 0.0
	for i := range n {
		maxW = math.Max(maxW, floats.Max(graph.RawRowView(i)))
	}
	if maxW <= 0 {
		return
	}

	var edges []edge
	for i := range n {
		for j, w := range graph.RawRowView(i) {
			if i == j || w <= 0 || w < maxW/nEpochs {
				continue
			}
			edges = append(edges, edge{head: i, tail: j, epochsPerSample: maxW / w})
		}
	}

	nextSample := make([]float64, len(edges))
	negPerSample := make([]float64, len(edges))
	nextNegSample := make([]float64, len(edges))
	for e, ed := range edges {
		nextSample[e] = ed.epochsPerSample
		negPerSample[e] = ed.epochsPerSample / negativeSampleRate
		nextNegSample[e] = negPerSample[e]
	}

	for epoch := range nEpochs {
		alpha := learningRate * (1 - float64(epoch)/nEpochs)
		current := float64(epoch)

		for e, ed := range edges {
			if nextSample[e] > current {
				continue
			}

			head := embedding.RawRowView(ed.head)
			tail := embedding.RawRowView(ed.tail)

			if d2 := squaredDistance(head, tail); d2 > 0 {
				coeff := -2 * a * b * math.Pow(d2, b-1) / (a*math.Pow(d2, b) + 1)
				for d := range head {
					g := clip(coeff * (head[d] - tail[d]))
					head[d] += g * alpha
					tail[d] -= g * alpha
				}
			}
			nextSample[e] += ed.epochsPerSample

			nNeg := max(0, int((current-nextNegSample[e])/negPerSample[e]))
			for range nNeg {
				other := rng.IntN(n)
				if other == ed.head {
					continue
				}
				o := embedding.RawRowView(other)
				d2 := squaredDistance(head, o)
				if d2 <= 0 {
					continue
				}
				coeff := 2 * repulsionStrength * b / ((0.001 + d2) * (a*math.Pow(d2, b) + 1))
				for d := range head {
					head[d] += clip(coeff*(head[d]-o[d])) * alpha
				}
			}
			nextNegSample[e] += float64(nNeg) * negPerSample[e]
		}
	}
}

func squaredDistance(p, q []float64) float64 {
	s := 0.0
	for i := range p {
		diff := p[i] - q[i]
		s += diff * diff
	}
	return s
}

func clip(v float64) float64 {
	return math.Max(-gradientClip, math.Min(gradientClip, v))
}
