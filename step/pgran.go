package step

import "github.com/notargets/ktestgen/descriptor"

const (
	defaultLocal2D = 8
	defaultLocal1D = 64
)

// PGran is the parallel-work descriptor of one launch: its dimensionality
// and the local and global extent of each dimension. Unused dimensions
// hold 1.
type PGran struct {
	Dim    int
	Local  [2]int
	Global [2]int
}

// computePGran launches one work item per output element, rounded up to
// whole work groups. A decomposition hint sets the work group shape from
// the ratio of its two tile levels.
func computePGran(dim, rows, cols int, d descriptor.Descriptor) PGran {
	wgY, wgX := defaultLocal2D, defaultLocal2D
	if dims, ok := d.Subdims(); ok {
		wgY = ratio(dims[0].Y, dims[1].ItemY)
		wgX = ratio(dims[0].X, dims[1].ItemX)
	}

	if dim == 1 {
		local := defaultLocal1D
		if d.Decomposition != nil {
			local = wgX * wgY
		}
		local = shrink(local, rows)
		return PGran{
			Dim:    1,
			Local:  [2]int{local, 1},
			Global: [2]int{roundUp(rows, local), 1},
		}
	}

	wgY = shrink(wgY, rows)
	wgX = shrink(wgX, cols)
	return PGran{
		Dim:    2,
		Local:  [2]int{wgY, wgX},
		Global: [2]int{roundUp(rows, wgY), roundUp(cols, wgX)},
	}
}

func ratio(outer, inner int) int {
	if inner <= 0 || outer <= 0 {
		return 1
	}
	return max(1, outer/inner)
}

// shrink halves a work group extent while it exceeds the problem extent
func shrink(local, extent int) int {
	for local > 1 && local > extent {
		local /= 2
	}
	return max(1, local)
}

func roundUp(extent, local int) int {
	extent = max(1, extent)
	return ((extent + local - 1) / local) * local
}
