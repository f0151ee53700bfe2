package capture

import (
	"bufio"
	"context"
	"io"
	"log"

	"github.com/pkg/errors"

	"github.com/LdDl/scanbridge/bridge"
)

const maxFrameLine = 4 << 20

// Pipeline feeds every frame to the enabled modes.
type Pipeline struct {
	Capture   *Capture
	Tracking  *Tracking
	Selection *Selection
	Logger    *log.Logger
	// MaxLine caps the length of one frame line; 4 MiB when zero
	MaxLine int
}

// Process runs one frame through every configured mode. A failing mode does
// not stop the others; the first error is returned.
func (p *Pipeline) Process(ctx context.Context, frame Frame) error {
	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	if p.Capture != nil {
		keep(errors.Wrap(p.Capture.Scan(ctx, frame), "capture"))
	}
	if p.Tracking != nil {
		keep(errors.Wrap(p.Tracking.Process(ctx, frame), "tracking"))
	}
	if p.Selection != nil {
		keep(errors.Wrap(p.Selection.Process(ctx, frame), "selection"))
	}
	return first
}

// ResetCapture forgets the barcodes the capture mode has seen
func (p *Pipeline) ResetCapture() error {
	if p.Capture == nil {
		return errors.Wrap(bridge.ErrNoMode, "capture")
	}
	p.Capture.Reset()
	return nil
}

// ResetTracking starts a new tracking session
func (p *Pipeline) ResetTracking() error {
	if p.Tracking == nil {
		return errors.Wrap(bridge.ErrNoMode, "tracking")
	}
	p.Tracking.Reset()
	return nil
}

// Run reads JSON-lines frames from r until EOF or ctx is done. Malformed
// frames and lines longer than MaxLine are logged and skipped.
func (p *Pipeline) Run(ctx context.Context, r io.Reader) error {
	logger := p.Logger
	if logger == nil {
		logger = log.Default()
	}
	limit := p.MaxLine
	if limit <= 0 {
		limit = maxFrameLine
	}
	reader := bufio.NewReader(r)
	frames := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, tooLong, err := readLine(reader, limit)
		if err == io.EOF {
			break
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return errors.Wrap(err, "read frames")
		}
		if tooLong {
			frames++
			logger.Printf("capture: skipping frame line=%d: longer than %d bytes", frames, limit)
			continue
		}
		if len(line) == 0 {
			continue
		}
		frames++
		frame, err := DecodeFrame(line)
		if err != nil {
			logger.Printf("capture: skipping frame line=%d: %v", frames, err)
			continue
		}
		if err := p.Process(ctx, frame); err != nil {
			logger.Printf("capture: frame %d: %v", frame.SequenceID, err)
		}
	}
	logger.Printf("capture: done frames=%d", frames)
	return nil
}

// readLine returns the next line without its line ending. A line longer than
// limit is consumed to its end and reported as tooLong with no content.
// io.EOF is returned only when there is nothing left to read.
func readLine(r *bufio.Reader, limit int) (line []byte, tooLong bool, err error) {
	started := false
	for {
		chunk, more, err := r.ReadLine()
		if err != nil {
			if err == io.EOF && started {
				return line, tooLong, nil
			}
			return nil, false, err
		}
		started = true
		if !tooLong {
			if len(line)+len(chunk) > limit {
				tooLong = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}
		if !more {
			return line, tooLong, nil
		}
	}
}
