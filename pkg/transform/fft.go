package transform

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// fft2D returns the full 2D spectrum of a real rows×cols array stored in
// row-major order. Rows are transformed as real sequences and expanded by
// conjugate symmetry, then columns as complex sequences.
func fft2D(data []float64, rows, cols int) []complex128 {
	result := make([]complex128, rows*cols)

	rowFFT := fourier.NewFFT(cols)
	half := make([]complex128, cols/2+1)
	for i := 0; i < rows; i++ {
		rowFFT.Coefficients(half, data[i*cols:(i+1)*cols])
		row := result[i*cols : (i+1)*cols]
		copy(row, half)
		// F(n-k) = F*(k)
		for j := len(half); j < cols; j++ {
			row[j] = conj(half[cols-j])
		}
	}

	colFFT := fourier.NewCmplxFFT(rows)
	column := make([]complex128, rows)
	for j := 0; j < cols; j++ {
		for i := 0; i < rows; i++ {
			column[i] = result[i*cols+j]
		}
		colFFT.Coefficients(column, column)
		for i := 0; i < rows; i++ {
			result[i*cols+j] = column[i]
		}
	}
	return result
}

// ifft2D inverts fft2D and returns the real part, normalized.
func ifft2D(spectrum []complex128, rows, cols int) []float64 {
	work := append([]complex128(nil), spectrum...)

	colFFT := fourier.NewCmplxFFT(rows)
	column := make([]complex128, rows)
	for j := 0; j < cols; j++ {
		for i := 0; i < rows; i++ {
			column[i] = work[i*cols+j]
		}
		colFFT.Sequence(column, column)
		for i := 0; i < rows; i++ {
			work[i*cols+j] = column[i]
		}
	}

	rowFFT := fourier.NewCmplxFFT(cols)
	out := make([]float64, rows*cols)
	norm := 1 / float64(rows*cols)
	for i := 0; i < rows; i++ {
		row := work[i*cols : (i+1)*cols]
		rowFFT.Sequence(row, row)
		for j, v := range row {
			out[i*cols+j] = real(v) * norm
		}
	}
	return out
}

// wavenumbers returns the angular wavenumbers (rad/m) of an n-point
// transform with the given sample spacing, in FFT order.
func wavenumbers(n int, spacing float64) []float64 {
	fft := fourier.NewCmplxFFT(n)
	k := make([]float64, n)
	for i := range k {
		k[i] = 2 * math.Pi * fft.Freq(i) / spacing
	}
	return k
}

func conj(c complex128) complex128 { return complex(real(c), -imag(c)) }
