// Command bodyfit-replay runs a recorded session through the measurement
// pipeline and prints every capture as a JSON line.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/cheggaaa/pb/v3"
	"go.uber.org/zap"

	"github.com/ayusman/bodyfit/internal/garment"
	"github.com/ayusman/bodyfit/internal/logging"
	"github.com/ayusman/bodyfit/internal/recording"
	"github.com/ayusman/bodyfit/internal/session"
	"github.com/ayusman/bodyfit/internal/store"
	"github.com/ayusman/bodyfit/internal/units"
)

type options struct {
	garment  string
	unit     string
	heightCm float64
	delayMs  int64
	dbPath   string
	progress bool
}

func main() {
	var opts options
	flag.StringVar(&opts.garment, "garment", string(garment.Shirt), "Garment to measure for")
	flag.StringVar(&opts.unit, "unit", string(units.Cm), "Display unit (cm or in)")
	flag.Float64Var(&opts.heightCm, "height", 0, "Subject height in cm, 0 if unknown")
	flag.Int64Var(&opts.delayMs, "delay", 0, "Hold time before capture in ms, 0 for the default")
	flag.StringVar(&opts.dbPath, "db", "", "Also store captures in this database")
	flag.BoolVar(&opts.progress, "progress", true, "Show a progress bar on stderr")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] recording\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	logger, err := logging.New(logging.ModeRelease)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bodyfit-replay: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	n, err := replay(flag.Arg(0), opts, os.Stdout, logger)
	if err != nil {
		logger.Error("replay failed", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("replay finished", zap.Int("captures", n))
}

// replay feeds every recorded frame to a fresh session and writes each
// capture to out. It returns the number of captures.
func replay(path string, opts options, out io.Writer, logger *zap.Logger) (int, error) {
	cfg, err := opts.sessionConfig()
	if err != nil {
		return 0, err
	}

	r, err := recording.Open(path)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	frames, err := r.ReadAll()
	if err != nil {
		return 0, err
	}
	h := r.Header()
	logger.Info("replaying recording",
		zap.String("path", path),
		zap.String("source", h.Source),
		zap.Time("created_at", h.CreatedAt),
		zap.Int("frames", len(frames)),
	)

	var st *store.Store
	if opts.dbPath != "" {
		if st, err = store.New(opts.dbPath); err != nil {
			return 0, err
		}
		defer st.Close()
	}

	s, err := session.New(cfg, nil)
	if err != nil {
		return 0, err
	}

	var bar *pb.ProgressBar
	if opts.progress {
		bar = pb.New(len(frames)).SetWriter(os.Stderr).Start()
		defer bar.Finish()
	}

	enc := json.NewEncoder(out)
	captures := 0
	for _, f := range frames {
		res := s.Process(f.SessionFrame())
		if bar != nil {
			bar.Increment()
		}
		if res.Captured == nil {
			continue
		}

		captures++
		if err := enc.Encode(res.Captured); err != nil {
			return captures, fmt.Errorf("write capture: %w", err)
		}
		if st != nil {
			if err := st.Captures().Create(storeCapture(*res.Captured)); err != nil {
				return captures, fmt.Errorf("store capture: %w", err)
			}
		}
	}
	return captures, nil
}

func (o options) sessionConfig() (session.Config, error) {
	g, err := garment.Parse(o.garment)
	if err != nil {
		return session.Config{}, err
	}
	u, err := units.Parse(o.unit)
	if err != nil {
		return session.Config{}, err
	}
	if o.heightCm < 0 {
		return session.Config{}, errors.New("height must not be negative")
	}
	cfg := session.DefaultConfig()
	cfg.Garment, cfg.Unit, cfg.HeightHintCm = g, u, o.heightCm
	if o.delayMs > 0 {
		cfg.CaptureDelayMs = o.delayMs
	}
	return cfg, nil
}

func storeCapture(c session.Capture) *store.Capture {
	sc := &store.Capture{
		ID:           c.ID,
		Garment:      string(c.Garment),
		Unit:         string(c.Unit),
		HeightHintCm: c.HeightHintCm,
		TimestampMs:  c.TimestampMs,
		CapturedAt:   c.CapturedAt,
	}
	for _, m := range c.Measurements.Measurements {
		sc.Measurements = append(sc.Measurements, store.Measurement{
			Kind:       string(m.Kind),
			Label:      m.Label,
			ValueCm:    m.ValueCm,
			Confidence: m.Confidence,
		})
	}
	return sc
}
