// Package series loads and writes two-column (time, acceleration) sample
// files and provides the small amount of arithmetic the analysis needs on
// them.
//
// Files are plain text: one sample per line, two numeric fields separated
// by any amount of whitespace, no header. Blank lines and lines starting
// with '#' are ignored.
package series

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/accelwindow/internal/fsutil"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrColumnCount is returned for a data row without exactly two fields.
	ErrColumnCount = errors.New("expected 2 columns")
	// ErrEmpty is returned when a file contains no data rows.
	ErrEmpty = errors.New("no samples")
)

// maxLineBytes bounds a single input line.
const maxLineBytes = 1 << 20

// Series is an ordered set of samples. Time[i] and Accel[i] belong to the
// same row; order is file order.
type Series struct {
	Name  string
	Time  []float64
	Accel []float64
}

// ParseError reports a malformed row.
type ParseError struct {
	Name string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.Name, e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse reads a series from r. name is used for error messages and is stored
// on the returned Series.
func Parse(r io.Reader, name string) (*Series, error) {
	s := &Series{Name: name}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	line := 0
	for sc.Scan() {
		line++
		// Everything from '#' to end of line is a comment.
		text, _, _ := strings.Cut(sc.Text(), "#")
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		fields := strings.Fields(text)
		if len(fields) != 2 {
			return nil, &ParseError{Name: name, Line: line, Err: fmt.Errorf("%w, got %d", ErrColumnCount, len(fields))}
		}

		t, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, &ParseError{Name: name, Line: line, Err: err}
		}
		a, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, &ParseError{Name: name, Line: line, Err: err}
		}

		s.Time = append(s.Time, t)
		s.Accel = append(s.Accel, a)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	if s.Len() == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrEmpty)
	}
	return s, nil
}

// Load opens path on fsys and parses it.
func Load(fsys fsutil.FileSystem, path, name string) (*Series, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	s, err := Parse(f, name)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return s, nil
}

// Write emits s in the same two-column format Parse accepts. Values use the
// shortest representation that parses back to the identical float64.
func Write(w io.Writer, s *Series) error {
	bw := bufio.NewWriter(w)
	buf := make([]byte, 0, 64)
	for i := range s.Time {
		buf = buf[:0]
		buf = strconv.AppendFloat(buf, s.Time[i], 'g', -1, 64)
		buf = append(buf, ' ')
		buf = strconv.AppendFloat(buf, s.Accel[i], 'g', -1, 64)
		buf = append(buf, '\n')
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Len returns the number of samples.
func (s *Series) Len() int {
	return len(s.Time)
}

// Clip returns the samples with min <= t <= max, preserving order.
func (s *Series) Clip(min, max float64) *Series {
	out := &Series{Name: s.Name}
	for i, t := range s.Time {
		if t < min || t > max {
			continue
		}
		out.Time = append(out.Time, t)
		out.Accel = append(out.Accel, s.Accel[i])
	}
	return out
}

// Summary describes a series for logs and reports.
type Summary struct {
	Name      string  `json:"name"`
	Samples   int     `json:"samples"`
	TimeStart float64 `json:"time_start"`
	TimeEnd   float64 `json:"time_end"`
	AccelMean float64 `json:"accel_mean"`
	AccelStd  float64 `json:"accel_std"`
	AccelMin  float64 `json:"accel_min"`
	AccelMax  float64 `json:"accel_max"`
}

// Summary computes descriptive statistics over the acceleration values.
// A series with fewer than two samples reports a zero standard deviation.
func (s *Series) Summary() Summary {
	sum := Summary{Name: s.Name, Samples: s.Len()}
	if sum.Samples == 0 {
		return sum
	}

	sum.TimeStart = s.Time[0]
	sum.TimeEnd = s.Time[sum.Samples-1]
	sum.AccelMin = floats.Min(s.Accel)
	sum.AccelMax = floats.Max(s.Accel)
	if sum.Samples < 2 {
		sum.AccelMean = s.Accel[0]
		return sum
	}
	sum.AccelMean, sum.AccelStd = stat.MeanStdDev(s.Accel, nil)
	return sum
}
