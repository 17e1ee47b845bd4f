// Package controller implements the block-size controller (C6): an
// online estimator that widens or narrows the compression block length N
// based on a Wald-style lower confidence bound on the recent template
// hit rate.
package controller

import "math"

// Change records one block-size adjustment for the run's history.
type Change struct {
	BlockIndex       int
	NewN             int
	PHat             float64
	RecentSimilarity float64
	RecentCER        float64
}

// Controller tracks the current block size N and the trial/hit counters
// that drive adjustments to it. It is not safe for concurrent use; the
// engine that owns one drives it from a single goroutine per block.
type Controller struct {
	n    int
	nMin int
	nMax int

	kmax int
	rmin int
	wc   int
	zStar float64

	k                int
	hits             int
	trials           int
	blocksAtCurrentN int

	history []Change
}

// Config is the subset of EngineConfig the controller needs. Defined
// locally (rather than importing internal/config) so this package has no
// dependency on the CLI config layer.
type Config struct {
	InitialN        int
	MinBlockSize    int
	MaxBlockSize    int
	Kmax            int
	Rmin            int
	Wc              int
	ConfidenceLevel float64
}

// New builds a Controller from cfg. Adaptive widening/narrowing only
// takes effect when the caller invokes RecordOutcome repeatedly; a
// Controller built with Kmax=0 never adjusts N.
func New(cfg Config) *Controller {
	gamma := cfg.ConfidenceLevel
	if gamma <= 0 || gamma >= 1 {
		gamma = 0.95
	}
	return &Controller{
		n:     cfg.InitialN,
		nMin:  cfg.MinBlockSize,
		nMax:  cfg.MaxBlockSize,
		kmax:  cfg.Kmax,
		rmin:  cfg.Rmin,
		wc:    cfg.Wc,
		zStar: invNormalCDF((1 + gamma) / 2),
	}
}

// N returns the controller's current block size.
func (c *Controller) N() int {
	return c.n
}

// Switches returns how many adjustments have been made so far.
func (c *Controller) Switches() int {
	return c.k
}

// TrialsSinceChange and HitsSinceChange expose the controller's running
// counters since the last block-size change, for stats reporting (C7)
// that wants a live p_min without waiting for RecordOutcome to trigger
// an adjustment.
func (c *Controller) TrialsSinceChange() int {
	return c.trials
}

func (c *Controller) HitsSinceChange() int {
	return c.hits
}

// History returns every adjustment made so far, in order.
func (c *Controller) History() []Change {
	out := make([]Change, len(c.history))
	copy(out, c.history)
	return out
}

// RecordOutcome feeds the result of one block (hit = matched an existing
// template above threshold; similarity and cer are that block's metrics)
// into the controller. It returns the block size to use for the next
// block and whether this call caused a change.
func (c *Controller) RecordOutcome(blockIndex int, hit bool, similarity, cer float64) (newN int, changed bool) {
	c.trials++
	if hit {
		c.hits++
	}
	c.blocksAtCurrentN++

	if c.trials >= c.rmin && c.k < c.kmax && c.blocksAtCurrentN >= c.wc {
		pHat := float64(c.hits) / float64(c.trials)
		sigmaHat := math.Min(0.5, math.Sqrt(pHat*(1-pHat)))
		margin := c.zStar * sigmaHat / math.Sqrt(float64(c.trials))
		pMin := math.Max(0, pHat-margin)

		switch {
		case c.n < c.nMax && pMin > 0.7:
			c.n = min(c.nMax, c.n+2)
			c.applyChange(blockIndex, pHat, similarity, cer)
			changed = true
		case c.n > c.nMin && pMin < 0.3:
			c.n = max(c.nMin, c.n-2)
			c.applyChange(blockIndex, pHat, similarity, cer)
			changed = true
		}
	}

	return c.n, changed
}

// applyChange records the change, increments the switch count, and
// resets trial/hit counters for the new regime.
func (c *Controller) applyChange(blockIndex int, pHat, similarity, cer float64) {
	c.k++
	c.hits = 0
	c.trials = 0
	c.blocksAtCurrentN = 0
	c.history = append(c.history, Change{
		BlockIndex:       blockIndex,
		NewN:             c.n,
		PHat:             pHat,
		RecentSimilarity: similarity,
		RecentCER:        cer,
	})
}

// PMin computes the Wald-style lower confidence bound on the hit rate
// from raw hit/trial counts, independent of the controller's own running
// state. Exposed for stats reporting (C7) so Engine.Stats() can surface a
// live p_min without forcing a RecordOutcome call.
func (c *Controller) PMin(hits, trials int) float64 {
	if trials == 0 {
		return 0
	}
	pHat := float64(hits) / float64(trials)
	sigmaHat := math.Min(0.5, math.Sqrt(pHat*(1-pHat)))
	margin := c.zStar * sigmaHat / math.Sqrt(float64(trials))
	return math.Max(0, pHat-margin)
}

// RhoMin computes the guaranteed-in-expectation compression ratio lower
// bound for block size n at confidence bound pMin.
func RhoMin(n int, pMin float64) float64 {
	return float64(n) / (1 + float64(n-1)*pMin)
}
