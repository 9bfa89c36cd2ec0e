// Package mrfcf trains a sparse Markov random field item-item model for
// collaborative filtering. The trainer never materializes a dense item×item
// matrix: the covariance is computed in bounded-memory tiles, a per-item
// sparsity pattern caps each column, items are partitioned into overlapping
// neighborhood blocks, each block's small dense submatrix is inverted, and
// the per-block regression coefficients are averaged into one sparse weight
// matrix operating directly on raw interaction counts.
package mrfcf

import (
	"fmt"
	"runtime"
	"time"

	"github.com/rs/zerolog"

	"github.com/okanv/mrfcf/sparse"
)

type Options struct {
	// Popularity exponent of the per-item rescaling factor
	// variance^(Alpha/2). 1 fully removes popularity bias before
	// thresholding, 0 disables rescaling.
	Alpha float64
	// Tile width of the covariance pass. Peak transient memory is
	// O(BlockSize²) regardless of the item count.
	BlockSize int
	// Covariance entries with |value| <= ThresholdMem are discarded per
	// tile and never materialized. Zero is permitted but degrades to
	// unbounded memory: nearly every centered entry is nonzero.
	ThresholdMem float64
	// Entries with |value| < ThresholdComp are additionally dropped from
	// the matrix feeding the sparsity pattern, bounding compute cost
	// independently of memory cost. Must be >= ThresholdMem.
	ThresholdComp float64
	// Per-column neighbor budget of the sparsity mask.
	MaxInColumn int
	// Fraction of each block retired at once, in (0,1]. 1 makes most
	// items self-anchored single blocks (maximum fidelity, maximum
	// cost); small values let one block retire many items.
	R float64
	// L2 regularization added to the covariance diagonal before each
	// block inversion. This is the designed stabilization mechanism for
	// ill-conditioned blocks.
	L2Reg float64
	// Goroutines for the tile and block-solve phases. Non-positive
	// means GOMAXPROCS.
	Workers int
	// Optional logger; nil disables logging.
	Logger *zerolog.Logger
}

func DefaultOptions() Options {
	return Options{
		Alpha:         0.75,
		BlockSize:     10000,
		ThresholdMem:  0.05,
		ThresholdComp: 0.1,
		MaxInColumn:   1000,
		R:             0.5,
		L2Reg:         1.0,
	}
}

func (o Options) validate() error {
	if o.BlockSize <= 0 {
		return fmt.Errorf("%w: block size %d", ErrConfig, o.BlockSize)
	}
	if o.ThresholdComp < o.ThresholdMem {
		return fmt.Errorf("%w: compute threshold %g below memory threshold %g",
			ErrConfig, o.ThresholdComp, o.ThresholdMem)
	}
	if o.ThresholdMem < 0 {
		return fmt.Errorf("%w: negative memory threshold %g", ErrConfig, o.ThresholdMem)
	}
	if o.MaxInColumn <= 0 {
		return fmt.Errorf("%w: column budget %d", ErrConfig, o.MaxInColumn)
	}
	if o.R <= 0 || o.R > 1 {
		return fmt.Errorf("%w: retirement fraction %g outside (0,1]", ErrConfig, o.R)
	}
	if o.L2Reg < 0 {
		return fmt.Errorf("%w: negative regularization %g", ErrConfig, o.L2Reg)
	}
	return nil
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func (o Options) logger() zerolog.Logger {
	if o.Logger != nil {
		return *o.Logger
	}
	return zerolog.Nop()
}

// Metrics reports per-phase wall durations and size counters of one
// training run.
type Metrics struct {
	Covariance time.Duration
	Sparsity   time.Duration
	Partition  time.Duration
	Solve      time.Duration
	Aggregate  time.Duration
	Total      time.Duration

	XtXNNZ        int
	AtANNZ        int
	MaskNNZ       int
	BlockCount    int
	SolvedTriples int
	WeightNNZ     int
}

// Trainer runs the pipeline over one immutable interaction matrix and keeps
// each phase's output for inspection. Fields other than X are populated by
// Train.
type Trainer struct {
	// X is the read-only users×items interaction matrix.
	X *sparse.Interactions

	// Rescaling holds the per-item popularity scale factors
	// variance^(Alpha/2); Scaling is its elementwise inverse.
	Rescaling []float64
	Scaling   []float64

	// XtX is the centered, rescaled, memory-thresholded covariance;
	// XtXDiag its exact dense diagonal. AtA is the compute-thresholded
	// subset feeding the sparsity pattern.
	XtX     *sparse.ColMatrix
	XtXDiag []float64
	AtA     *sparse.ColMatrix

	// Mask is the fixed sparsity pattern: no column exceeds MaxInColumn
	// entries.
	Mask *sparse.ColMatrix

	// Blocks is the ordered neighborhood partition; every item is
	// retired by exactly one block.
	Blocks []Block

	// Weights is the final item×item model. Column j holds the
	// coefficients predicting item j from its masked neighbors; the
	// diagonal is always zero.
	Weights *sparse.ColMatrix
}

func NewTrainer(x *sparse.Interactions) *Trainer {
	return &Trainer{X: x}
}

// Train runs all phases in order. On error the trainer's intermediate
// fields reflect the phases that completed; Weights is set only on success.
func (t *Trainer) Train(opt Options) (Metrics, error) {
	var m Metrics
	if err := opt.validate(); err != nil {
		return m, err
	}
	log := opt.logger()
	start := time.Now()

	phase := time.Now()
	if err := t.buildCovariance(opt); err != nil {
		return m, err
	}
	m.Covariance = time.Since(phase)
	m.XtXNNZ = t.XtX.NNZ()
	m.AtANNZ = t.AtA.NNZ()
	log.Info().Int("xtx_nnz", m.XtXNNZ).Int("ata_nnz", m.AtANNZ).
		Dur("took", m.Covariance).Msg("covariance built")

	phase = time.Now()
	if err := t.selectSparsityPattern(opt); err != nil {
		return m, err
	}
	m.Sparsity = time.Since(phase)
	m.MaskNNZ = t.Mask.NNZ()
	log.Info().Int("mask_nnz", m.MaskNNZ).Dur("took", m.Sparsity).Msg("sparsity pattern fixed")

	phase = time.Now()
	if err := t.partitionNeighborhoods(opt); err != nil {
		return m, err
	}
	m.Partition = time.Since(phase)
	m.BlockCount = len(t.Blocks)
	log.Info().Int("blocks", m.BlockCount).Dur("took", m.Partition).Msg("neighborhoods partitioned")

	phase = time.Now()
	solved, err := t.solveBlocks(opt)
	if err != nil {
		return m, err
	}
	m.Solve = time.Since(phase)
	m.SolvedTriples = len(solved)
	log.Info().Int("triples", m.SolvedTriples).Dur("took", m.Solve).Msg("blocks solved")

	phase = time.Now()
	if err := t.aggregate(solved); err != nil {
		return m, err
	}
	m.Aggregate = time.Since(phase)
	m.WeightNNZ = t.Weights.NNZ()
	m.Total = time.Since(start)
	log.Info().Int("weight_nnz", m.WeightNNZ).Dur("took", m.Aggregate).
		Dur("total", m.Total).Msg("weight matrix assembled")

	return m, nil
}
