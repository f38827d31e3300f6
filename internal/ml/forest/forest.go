// Package forest is a random forest of CART trees for binary 0/1 targets.
package forest

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"

	mldomain "github.com/jan-janssen/gmailsorter/internal/ml/domain"
)

const leaf = -1

var (
	_ mldomain.Classifier = (*Forest)(nil)
	_ mldomain.Trainer    = Trainer{}
)

// Forest averages the class-1 probability of its trees.
type Forest struct {
	Features int     `json:"n_features"`
	Trees    []*tree `json:"trees"`
}

// tree is stored as parallel node arrays; node 0 is the root.
type tree struct {
	Feature   []int     `json:"feature"`
	Threshold []float64 `json:"threshold"`
	Left      []int     `json:"left"`
	Right     []int     `json:"right"`
	Value     []float64 `json:"value"`
}

// Trainer fits forests and restores them from their serialized form.
type Trainer struct{}

func (Trainer) Fit(X [][]float64, y []float64, params mldomain.Hyperparams) (mldomain.Classifier, error) {
	return Fit(X, y, params)
}

func (Trainer) Decode(data []byte) (mldomain.Classifier, error) {
	return Unmarshal(data)
}

// Fit grows params.NEstimators fully developed trees. Each split considers
// params.MaxFeatures randomly drawn features, more if none of them can split
// the node. With params.Bootstrap every tree sees a resample of the rows.
func Fit(X [][]float64, y []float64, params mldomain.Hyperparams) (*Forest, error) {
	if len(X) == 0 {
		return nil, fmt.Errorf("cannot fit on zero rows")
	}
	if len(X) != len(y) {
		return nil, fmt.Errorf("%d rows but %d targets", len(X), len(y))
	}
	width := len(X[0])
	for i, row := range X {
		if len(row) != width {
			return nil, fmt.Errorf("%w: row %d has %d features, want %d", mldomain.ErrSchemaMismatch, i, len(row), width)
		}
	}
	if params.NEstimators <= 0 {
		return nil, fmt.Errorf("n_estimators must be positive, got %d", params.NEstimators)
	}

	maxFeatures := params.MaxFeatures
	if maxFeatures <= 0 || maxFeatures > width {
		maxFeatures = width
	}

	seeds := rand.New(rand.NewSource(params.RandomState))
	f := &Forest{Features: width, Trees: make([]*tree, 0, params.NEstimators)}
	for t := 0; t < params.NEstimators; t++ {
		rng := rand.New(rand.NewSource(seeds.Int63()))

		rows := make([]int, len(X))
		for i := range rows {
			if params.Bootstrap {
				rows[i] = rng.Intn(len(X))
			} else {
				rows[i] = i
			}
		}

		b := &builder{X: X, y: y, rng: rng, maxFeatures: maxFeatures, features: identity(width), tree: &tree{}}
		b.grow(rows)
		f.Trees = append(f.Trees, b.tree)
	}
	return f, nil
}

func (f *Forest) NumFeatures() int { return f.Features }

// Score returns the mean class-1 probability over all trees, per row.
func (f *Forest) Score(X [][]float64) ([]float64, error) {
	out := make([]float64, len(X))
	for i, row := range X {
		if len(row) != f.Features {
			return nil, fmt.Errorf("%w: row %d has %d features, model expects %d", mldomain.ErrSchemaMismatch, i, len(row), f.Features)
		}
		var sum float64
		for _, t := range f.Trees {
			sum += t.predict(row)
		}
		if len(f.Trees) > 0 {
			out[i] = sum / float64(len(f.Trees))
		}
	}
	return out, nil
}

func (f *Forest) MarshalBinary() ([]byte, error) {
	return json.Marshal(f)
}

// Unmarshal restores a forest written by MarshalBinary.
func Unmarshal(data []byte) (*Forest, error) {
	var f Forest
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode forest: %w", err)
	}
	for i, t := range f.Trees {
		if t == nil || len(t.Value) == 0 {
			return nil, fmt.Errorf("failed to decode forest: tree %d is empty", i)
		}
	}
	return &f, nil
}

func (t *tree) predict(row []float64) float64 {
	node := 0
	for t.Feature[node] != leaf {
		if row[t.Feature[node]] <= t.Threshold[node] {
			node = t.Left[node]
		} else {
			node = t.Right[node]
		}
	}
	return t.Value[node]
}

func (t *tree) addNode(value float64) int {
	t.Feature = append(t.Feature, leaf)
	t.Threshold = append(t.Threshold, 0)
	t.Left = append(t.Left, leaf)
	t.Right = append(t.Right, leaf)
	t.Value = append(t.Value, value)
	return len(t.Value) - 1
}

type builder struct {
	X           [][]float64
	y           []float64
	rng         *rand.Rand
	maxFeatures int
	features    []int
	tree        *tree
}

type split struct {
	feature   int
	threshold float64
	impurity  float64
	left      []int
	right     []int
}

func (b *builder) grow(rows []int) int {
	pos := 0.0
	for _, r := range rows {
		pos += b.y[r]
	}
	node := b.tree.addNode(pos / float64(len(rows)))
	if pos == 0 || pos == float64(len(rows)) || len(rows) < 2 {
		return node
	}

	best, ok := b.bestSplit(rows)
	if !ok {
		return node
	}
	left := b.grow(best.left)
	right := b.grow(best.right)
	b.tree.Feature[node] = best.feature
	b.tree.Threshold[node] = best.threshold
	b.tree.Left[node] = left
	b.tree.Right[node] = right
	return node
}

// bestSplit draws features without replacement until maxFeatures have been
// tried and at least one could split the rows.
func (b *builder) bestSplit(rows []int) (split, bool) {
	var best split
	found := false
	n := len(b.features)
	for k := 0; k < n && (k < b.maxFeatures || !found); k++ {
		j := k + b.rng.Intn(n-k)
		b.features[k], b.features[j] = b.features[j], b.features[k]

		s, ok := b.splitOn(rows, b.features[k])
		if ok && (!found || s.impurity < best.impurity) {
			best = s
			found = true
		}
	}
	return best, found
}

// splitOn finds the threshold on feature f with the lowest weighted Gini impurity.
func (b *builder) splitOn(rows []int, f int) (split, bool) {
	sorted := append([]int(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool { return b.X[sorted[i]][f] < b.X[sorted[j]][f] })
	if b.X[sorted[0]][f] == b.X[sorted[len(sorted)-1]][f] {
		return split{}, false
	}

	total := float64(len(sorted))
	totalPos := 0.0
	for _, r := range sorted {
		totalPos += b.y[r]
	}

	bestAt, bestImpurity := -1, 0.0
	leftPos := 0.0
	for i := 0; i < len(sorted)-1; i++ {
		leftPos += b.y[sorted[i]]
		if b.X[sorted[i]][f] == b.X[sorted[i+1]][f] {
			continue
		}
		nl := float64(i + 1)
		nr := total - nl
		impurity := nl*gini(leftPos, nl) + nr*gini(totalPos-leftPos, nr)
		if bestAt < 0 || impurity < bestImpurity {
			bestAt, bestImpurity = i, impurity
		}
	}

	lo, hi := b.X[sorted[bestAt]][f], b.X[sorted[bestAt+1]][f]
	return split{
		feature:   f,
		threshold: lo + (hi-lo)/2,
		impurity:  bestImpurity / total,
		left:      sorted[:bestAt+1],
		right:     sorted[bestAt+1:],
	}, true
}

func gini(pos, n float64) float64 {
	p := pos / n
	return 2 * p * (1 - p)
}

func identity(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
