package descriptor

// MinLeadingDimension is the smallest legal leading dimension of a stored
// rows x cols matrix. Column-major storage is bounded by the row count,
// row-major storage by the column count. The result is never below 1.
func MinLeadingDimension(order Order, rows, cols int) int {
	extent := cols
	if order == ColumnMajor {
		extent = rows
	}
	return max(1, extent)
}

// RaiseLeadingDimension never lowers a caller supplied value
func RaiseLeadingDimension(ld, minimum int) int {
	return max(ld, minimum)
}

// DefaultIncrement replaces an unset vector increment by 1. Negative
// increments are legal and kept.
func DefaultIncrement(inc int) int {
	if inc == 0 {
		return 1
	}
	return inc
}

// ElementOffset is the flat index of element (row, col) in a matrix
// stored with leading dimension ld
func ElementOffset(order Order, row, col, ld int) int {
	if order == ColumnMajor {
		return col*ld + row
	}
	return row*ld + col
}
