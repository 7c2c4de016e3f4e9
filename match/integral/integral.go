// Package integral computes 2-D prefix-sum (summed-area) tables over a
// grayscale grid and answers O(1) rectangle-sum queries.
//
// Grounded on soockee-pixel-bot-go's domain/capture/ncc.go
// (buildGrayPrecomp/integralSum), generalized from float64 accumulators to
// the 64-bit unsigned accumulators spec §4.1 and §9 require so that sums
// over large grids never overflow before the final float32 score is formed.
package integral

// Table holds the running sum and running squared-sum of an 8-bit grayscale
// grid, enabling O(1) sum_rect / sumsq_rect queries via the standard 4-corner
// inclusion/exclusion formula.
type Table struct {
	w, h  int
	sum   []uint64 // I(x,y)
	sumSq []uint64 // I^2(x,y)
}

// Build computes the integral tables for a W×H grid given in row-major order.
func Build(w, h int, pix []uint8) *Table {
	t := &Table{w: w, h: h, sum: make([]uint64, w*h), sumSq: make([]uint64, w*h)}
	for y := 0; y < h; y++ {
		var rowSum, rowSumSq uint64
		rowOff := y * w
		aboveOff := rowOff - w
		for x := 0; x < w; x++ {
			v := uint64(pix[rowOff+x])
			rowSum += v
			rowSumSq += v * v
			if y == 0 {
				t.sum[rowOff+x] = rowSum
				t.sumSq[rowOff+x] = rowSumSq
			} else {
				t.sum[rowOff+x] = t.sum[aboveOff+x] + rowSum
				t.sumSq[rowOff+x] = t.sumSq[aboveOff+x] + rowSumSq
			}
		}
	}
	return t
}

func (t *Table) at(table []uint64, x, y int) uint64 {
	if x < 0 || y < 0 {
		return 0
	}
	return table[y*t.w+x]
}

// corners evaluates the 4-corner inclusion/exclusion formula over the
// inclusive rectangle [x0..x0+w-1] x [y0..y0+h-1], guarding the edge cases
// (x0==0 or y0==0) by treating out-of-range corners as zero, and using
// signed 64-bit arithmetic so a right/bottom-only rectangle never underflows
// (spec §4.6).
func corners(t *Table, table []uint64, x0, y0, w, h int) int64 {
	x1, y1 := x0+w-1, y0+h-1
	a := int64(t.at(table, x1, y1))
	b := int64(t.at(table, x0-1, y1))
	c := int64(t.at(table, x1, y0-1))
	d := int64(t.at(table, x0-1, y0-1))
	return a - b - c + d
}

// SumRect returns Σ grid(i,j) over the w×h rectangle whose top-left is (x0,y0).
func (t *Table) SumRect(x0, y0, w, h int) uint64 {
	v := corners(t, t.sum, x0, y0, w, h)
	if v < 0 {
		return 0
	}
	return uint64(v)
}

// SumSqRect returns Σ grid(i,j)^2 over the same rectangle.
func (t *Table) SumSqRect(x0, y0, w, h int) uint64 {
	v := corners(t, t.sumSq, x0, y0, w, h)
	if v < 0 {
		return 0
	}
	return uint64(v)
}

// VarianceSum returns Σ(p - mean)^2 over the rectangle, computed as
// sumsq - sum^2/area, the identity used throughout the NCC denominator.
func (t *Table) VarianceSum(x0, y0, w, h int) float64 {
	area := float64(w * h)
	sum := float64(t.SumRect(x0, y0, w, h))
	sumSq := float64(t.SumSqRect(x0, y0, w, h))
	return sumSq - sum*sum/area
}

// Dims reports the table's backing grid size.
func (t *Table) Dims() (w, h int) { return t.w, t.h }
