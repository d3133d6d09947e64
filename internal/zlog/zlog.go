// Package zlog configures the module's single dual-sink logger: logs
// always land in Z0x50.log, and additionally in Debug.log when
// verbose/debug output is requested.
package zlog

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// New opens Z0x50.log (and, when verbose is true, Debug.log) under dir and
// returns a logger writing to both. The caller owns closing the returned
// files via the Close function also returned.
func New(dir string, verbose bool) (*logrus.Logger, func() error, error) {
	log := logrus.New()
	log.SetLevel(logrus.InfoLevel)
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	primary, err := os.OpenFile(filepath.Join(dir, "Z0x50.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}

	writers := []io.Writer{primary}
	closers := []io.Closer{primary}

	if verbose {
		debug, err := os.OpenFile(filepath.Join(dir, "Debug.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			primary.Close()
			return nil, nil, err
		}
		writers = append(writers, debug)
		closers = append(closers, debug)
	}

	log.SetOutput(io.MultiWriter(writers...))

	closeAll := func() error {
		var first error
		for _, c := range closers {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
		return first
	}
	return log, closeAll, nil
}
