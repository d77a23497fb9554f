package ml

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/okian/solara/internal/domain/artifact"
)

// Isolation forest defaults.
const (
	DefaultTrees         = 100
	DefaultMaxSamples    = 256
	DefaultContamination = 0.05
	DefaultSeed          = 42
)

const eulerGamma = 0.5772156649015329

// AnomalyDetector is an isolation forest. Scores are in (0, 1]; higher is
// more anomalous. A row is labelled 1 when its score exceeds the
// (1-contamination) quantile of the training scores.
type AnomalyDetector struct {
	columns       []string
	trees         []isoTree
	maxSamples    int
	contamination float64
	threshold     float64
}

// isoNode is a tree node; Left < 0 marks a leaf holding Size samples.
type isoNode struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t"`
	Left      int     `json:"l"`
	Right     int     `json:"r"`
	Size      int     `json:"s"`
}

type isoTree struct {
	Nodes []isoNode `json:"nodes"`
}

type anomalyState struct {
	Trees         []isoTree `json:"trees"`
	MaxSamples    int       `json:"max_samples"`
	Contamination float64   `json:"contamination"`
	Threshold     float64   `json:"threshold"`
}

// AnomalyOption configures FitAnomalyDetector.
type AnomalyOption func(*anomalyConfig)

type anomalyConfig struct {
	trees         int
	maxSamples    int
	contamination float64
	seed          uint64
}

// WithTrees sets the number of isolation trees.
func WithTrees(n int) AnomalyOption {
	return func(c *anomalyConfig) {
		if n > 0 {
			c.trees = n
		}
	}
}

// WithMaxSamples caps the subsample drawn for each tree.
func WithMaxSamples(n int) AnomalyOption {
	return func(c *anomalyConfig) {
		if n > 0 {
			c.maxSamples = n
		}
	}
}

// WithContamination sets the expected share of anomalies, in (0, 0.5].
func WithContamination(v float64) AnomalyOption {
	return func(c *anomalyConfig) {
		if v > 0 && v <= 0.5 {
			c.contamination = v
		}
	}
}

// WithSeed fixes the random source used to grow the forest.
func WithSeed(seed uint64) AnomalyOption {
	return func(c *anomalyConfig) { c.seed = seed }
}

// FitAnomalyDetector grows an isolation forest on rows.
func FitAnomalyDetector(columns []string, rows [][]float64, opts ...AnomalyOption) (*AnomalyDetector, error) {
	cfg := anomalyConfig{
		trees:         DefaultTrees,
		maxSamples:    DefaultMaxSamples,
		contamination: DefaultContamination,
		seed:          DefaultSeed,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if len(columns) == 0 {
		return nil, ErrNoColumns
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%w: isolation needs at least 2 rows, got %d", ErrNotEnoughRows, len(rows))
	}
	if err := checkRows(columns, rows); err != nil {
		return nil, err
	}

	sampleSize := min(cfg.maxSamples, len(rows))
	limit := int(math.Ceil(math.Log2(math.Max(float64(sampleSize), 2))))
	rng := rand.New(rand.NewPCG(cfg.seed, cfg.seed))

	d := &AnomalyDetector{
		columns:       slices.Clone(columns),
		trees:         make([]isoTree, cfg.trees),
		maxSamples:    sampleSize,
		contamination: cfg.contamination,
	}
	for t := range d.trees {
		idx := rng.Perm(len(rows))[:sampleSize]
		b := treeBuilder{rows: rows, rng: rng, limit: limit, width: len(columns)}
		b.grow(idx, 0)
		d.trees[t] = isoTree{Nodes: b.nodes}
	}

	scores := make([]float64, len(rows))
	for i, row := range rows {
		scores[i] = d.score(row)
	}
	d.threshold = quantile(scores, 1-cfg.contamination)
	return d, nil
}

// Columns returns the fitted column order.
func (d *AnomalyDetector) Columns() []string { return slices.Clone(d.columns) }

// Threshold returns the score above which rows are labelled anomalous.
func (d *AnomalyDetector) Threshold() float64 { return d.threshold }

// Predict returns the anomaly score and label (0 normal, 1 anomaly) per row.
func (d *AnomalyDetector) Predict(rows [][]float64) ([]float64, []int, error) {
	if err := checkRows(d.columns, rows); err != nil {
		return nil, nil, err
	}
	scores := make([]float64, len(rows))
	labels := make([]int, len(rows))
	for i, row := range rows {
		scores[i] = d.score(row)
		if scores[i] > d.threshold {
			labels[i] = 1
		}
	}
	return scores, labels, nil
}

// Save persists the detector to path.
func (d *AnomalyDetector) Save(path string) error {
	return artifact.Save(path, artifact.KindAnomaly, d.columns, anomalyState{
		Trees:         d.trees,
		MaxSamples:    d.maxSamples,
		Contamination: d.contamination,
		Threshold:     d.threshold,
	})
}

// LoadAnomalyDetector restores a detector written by Save.
func LoadAnomalyDetector(path string, opts ...LoadOption) (*AnomalyDetector, error) {
	var st anomalyState
	columns, err := artifact.Load(path, artifact.KindAnomaly, &st)
	if err != nil {
		return nil, err
	}
	if err := checkLoaded(columns, opts); err != nil {
		return nil, err
	}
	if len(st.Trees) == 0 || st.MaxSamples < 2 {
		return nil, fmt.Errorf("%w: %s: empty forest", artifact.ErrCorrupt, path)
	}
	for _, t := range st.Trees {
		if err := t.validate(len(columns)); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", artifact.ErrCorrupt, path, err)
		}
	}
	return &AnomalyDetector{
		columns:       columns,
		trees:         st.Trees,
		maxSamples:    st.MaxSamples,
		contamination: st.Contamination,
		threshold:     st.Threshold,
	}, nil
}

func (d *AnomalyDetector) score(row []float64) float64 {
	var total float64
	for _, t := range d.trees {
		total += t.pathLength(row)
	}
	mean := total / float64(len(d.trees))
	return math.Pow(2, -mean/averagePathLength(d.maxSamples))
}

type treeBuilder struct {
	rows  [][]float64
	rng   *rand.Rand
	limit int
	width int
	nodes []isoNode
}

// grow appends the subtree for idx and returns its node index.
func (b *treeBuilder) grow(idx []int, depth int) int {
	at := len(b.nodes)
	b.nodes = append(b.nodes, isoNode{Left: -1, Right: -1, Size: len(idx)})
	if depth >= b.limit || len(idx) <= 1 {
		return at
	}

	// Try features in random order until one is not constant on idx.
	for _, f := range b.rng.Perm(b.width) {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, i := range idx {
			v := b.rows[i][f]
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		if !(hi > lo) {
			continue
		}
		thr := lo + b.rng.Float64()*(hi-lo)
		if thr <= lo {
			thr = lo + (hi-lo)/2
		}
		var left, right []int
		for _, i := range idx {
			if b.rows[i][f] < thr {
				left = append(left, i)
			} else {
				right = append(right, i)
			}
		}
		l := b.grow(left, depth+1)
		r := b.grow(right, depth+1)
		b.nodes[at] = isoNode{Feature: f, Threshold: thr, Left: l, Right: r, Size: len(idx)}
		return at
	}
	return at
}

func (t isoTree) pathLength(row []float64) float64 {
	depth := 0
	n := t.Nodes[0]
	for n.Left >= 0 {
		if row[n.Feature] < n.Threshold {
			n = t.Nodes[n.Left]
		} else {
			n = t.Nodes[n.Right]
		}
		depth++
	}
	return float64(depth) + averagePathLength(n.Size)
}

func (t isoTree) validate(width int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("tree has no nodes")
	}
	for i, n := range t.Nodes {
		if n.Left < 0 {
			continue
		}
		if n.Feature < 0 || n.Feature >= width ||
			n.Left <= i || n.Left >= len(t.Nodes) || n.Right <= i || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d is malformed", i)
		}
	}
	return nil
}

// averagePathLength is the expected path length of an unsuccessful search
// in a binary search tree of n nodes.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	m := float64(n)
	return 2*(math.Log(m-1)+eulerGamma) - 2*(m-1)/m
}

// quantile returns the q-quantile of values with linear interpolation
// between closest ranks.
func quantile(values []float64, q float64) float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := min(lo+1, len(sorted)-1)
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
