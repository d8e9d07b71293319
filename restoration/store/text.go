package store

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-restore/restoration"
)

// TextHeader is the first line of a settings text file.
const TextHeader = "# Photograph Restoration Configuration File V2"

// ErrBadHeader is returned by ReadText when the stream is not a settings text file.
var ErrBadHeader = errors.New("store: not a restoration settings file")

// WriteText writes s in the text format: the header, then one value per line in
// the order fastApprox, interpolation, amplitude, sharpness, anisotropy, alpha,
// sigma, gaussPrec, dl, da, iterations, tile, btile.
func WriteText(w io.Writer, s restoration.Settings) error {
	fast := 0
	if s.FastApprox {
		fast = 1
	}
	lines := []string{
		TextHeader,
		strconv.Itoa(fast),
		strconv.Itoa(int(s.Interpolation)),
		formatFloat(s.Amplitude),
		formatFloat(s.Sharpness),
		formatFloat(s.Anisotropy),
		formatFloat(s.Alpha),
		formatFloat(s.Sigma),
		formatFloat(s.GaussPrec),
		formatFloat(s.Dl),
		formatFloat(s.Da),
		strconv.FormatUint(uint64(s.Iterations), 10),
		strconv.Itoa(s.Tile),
		strconv.Itoa(s.BTile),
	}
	bw := bufio.NewWriter(w)
	for _, l := range lines {
		if _, err := fmt.Fprintln(bw, l); err != nil {
			return errors.Wrap(err, "failed to write settings")
		}
	}
	return errors.Wrap(bw.Flush(), "failed to write settings")
}

// ReadText parses a settings text file written by WriteText.
//
// Arguments:
//   - r: The text stream.
//
// Returns:
//   - restoration.Settings: The decoded settings.
//   - error: ErrBadHeader for a foreign file, or an error naming the bad line.
func ReadText(r io.Reader) (restoration.Settings, error) {
	sc := bufio.NewScanner(r)
	if !sc.Scan() || strings.TrimSpace(sc.Text()) != TextHeader {
		if err := sc.Err(); err != nil {
			return restoration.Settings{}, errors.Wrap(err, "failed to read settings")
		}
		return restoration.Settings{}, ErrBadHeader
	}

	var s restoration.Settings
	line := 1
	next := func() (string, error) {
		line++
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return "", errors.Wrap(err, "failed to read settings")
			}
			return "", errors.Errorf("settings file truncated at line %d", line)
		}
		return strings.TrimSpace(sc.Text()), nil
	}
	float := func(dst *float32) error {
		v, err := next()
		if err != nil {
			return err
		}
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return errors.Wrapf(err, "line %d", line)
		}
		*dst = float32(f)
		return nil
	}
	integer := func(dst *int) error {
		v, err := next()
		if err != nil {
			return err
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "line %d", line)
		}
		*dst = n
		return nil
	}

	var fast, interp, iterations int
	steps := []func() error{
		func() error { return integer(&fast) },
		func() error { return integer(&interp) },
		func() error { return float(&s.Amplitude) },
		func() error { return float(&s.Sharpness) },
		func() error { return float(&s.Anisotropy) },
		func() error { return float(&s.Alpha) },
		func() error { return float(&s.Sigma) },
		func() error { return float(&s.GaussPrec) },
		func() error { return float(&s.Dl) },
		func() error { return float(&s.Da) },
		func() error { return integer(&iterations) },
		func() error { return integer(&s.Tile) },
		func() error { return integer(&s.BTile) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return restoration.Settings{}, err
		}
	}
	if iterations < 0 {
		return restoration.Settings{}, errors.Errorf("line 12: negative iteration count %d", iterations)
	}
	s.FastApprox = fast != 0
	s.Interpolation = restoration.Interpolation(interp)
	s.Iterations = uint(iterations)
	return s, nil
}
