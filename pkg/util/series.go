package util

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ReadSeries reads numbers separated by newlines, commas, semicolons or
// whitespace. Blank lines and lines starting with '#' are skipped, and a
// non-numeric first field is taken as a header.
func ReadSeries(r io.Reader) ([]float64, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var out []float64
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.FieldsFunc(text, func(r rune) bool {
			return r == ',' || r == ';' || r == ' ' || r == '\t'
		})
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				if len(out) == 0 && line == 1 && i == 0 {
					break
				}
				return nil, fmt.Errorf("line %d: parse %q: %w", line, f, err)
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("line %d: non-finite value %q", line, f)
			}
			out = append(out, v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read series: %w", err)
	}
	return out, nil
}

// WriteSeries writes one value per line using the shortest exact representation.
func WriteSeries(w io.Writer, xs []float64) error {
	bw := bufio.NewWriter(w)
	for _, x := range xs {
		bw.WriteString(strconv.FormatFloat(x, 'g', -1, 64))
		bw.WriteByte('\n')
	}
	return bw.Flush()
}
