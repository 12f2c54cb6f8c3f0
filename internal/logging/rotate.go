package logging

import (
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// RotatingFileOptions configures a size-and-age-rotated file destination for
// the child process's stderr stream. Zero values fall back to lumberjack's
// own defaults (100MB per file, no age limit, no backup limit).
type RotatingFileOptions struct {
	// Path is the file lumberjack writes to; rotated files live alongside it.
	Path string
	// MaxSizeMB is the size a file reaches before it is rotated.
	MaxSizeMB int
	// MaxBackups is how many rotated files are retained; 0 keeps all of them.
	MaxBackups int
	// MaxAgeDays is how long a rotated file is retained; 0 keeps them forever.
	MaxAgeDays int
	// Compress gzips rotated files once they are no longer the active one.
	Compress bool
}

// RotatingStderrSink returns a transport.StderrSink-shaped func(line string)
// that appends every line to a lumberjack-managed rotating file, and a
// closer to flush/release the underlying file handle. Use this for
// long-lived Client sessions where an unbounded stderr stream would
// otherwise grow a single log file without limit.
func RotatingStderrSink(opts RotatingFileOptions) (sink func(line string), closer func() error) {
	lj := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}

	var mu sync.Mutex
	sink = func(line string) {
		mu.Lock()
		defer mu.Unlock()
		// Best-effort: a sink must never propagate errors back to the
		// transport that calls it (see transport.StderrSink's contract).
		_, _ = lj.Write(append([]byte(line), '\n'))
	}
	closer = lj.Close
	return sink, closer
}
