// Package compact implements the one-shot migration from a Write Store to
// a Read Store.
package compact

import (
	"bytes"
	"fmt"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chesscoach/explorer/internal/store/lsm"
	"github.com/chesscoach/explorer/internal/store/mmapbtree"
)

// Options configures a compaction run.
type Options struct {
	// VerifyFraction samples this fraction of keys (0 disables verification)
	// after the copy, comparing bytes between the two stores.
	VerifyFraction float64

	Logger *logrus.Logger

	// Rand drives verification sampling. Tests supply a seeded source for
	// deterministic coverage; a nil Rand uses the default global source.
	Rand *rand.Rand
}

// Result reports what a compaction run did.
type Result struct {
	PositionsWritten uint64
	MovesWritten     uint64
	Elapsed          time.Duration

	// Verified and Mismatched count keys sampled during the optional
	// verification pass. Both are zero when VerifyFraction is 0.
	Verified   uint64
	Mismatched uint64
}

// Run copies every key in writeStoreDir into a fresh Read Store at
// readStoreDir, in the Write Store's own key order, then optionally
// verifies a sample of the copy against the source.
//
// Failure mid-way leaves readStoreDir invalid; the caller is expected to
// delete it and retry rather than resume.
func Run(writeStoreDir, readStoreDir string, opts Options) (Result, error) {
	start := time.Now()
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	ws, err := lsm.Open(lsm.Options{Dir: writeStoreDir, Logger: log})
	if err != nil {
		return Result{}, fmt.Errorf("compact: open write store: %w", err)
	}
	defer ws.Close()

	w, err := mmapbtree.Create(readStoreDir)
	if err != nil {
		return Result{}, fmt.Errorf("compact: create read store: %w", err)
	}

	scanErr := ws.Scan(func(key, val []byte) error {
		valCopy := append([]byte(nil), val...)
		return w.Append(key, valCopy)
	})
	if scanErr != nil {
		w.Abort()
		return Result{}, fmt.Errorf("compact: copy: %w", scanErr)
	}

	written, err := w.Finish()
	if err != nil {
		return Result{}, fmt.Errorf("compact: finish read store: %w", err)
	}

	res := Result{
		PositionsWritten: written.PositionsWritten,
		MovesWritten:     written.MovesWritten,
	}

	if opts.VerifyFraction > 0 {
		verified, mismatched, err := verify(ws, readStoreDir, opts)
		if err != nil {
			return res, fmt.Errorf("compact: verify: %w", err)
		}
		res.Verified = verified
		res.Mismatched = mismatched
		log.WithFields(logrus.Fields{
			"verified":   verified,
			"mismatched": mismatched,
		}).Info("compaction verification complete")
	}

	res.Elapsed = time.Since(start)
	log.WithFields(logrus.Fields{
		"positions": res.PositionsWritten,
		"moves":     res.MovesWritten,
		"elapsed":   res.Elapsed,
	}).Info("compaction complete")
	return res, nil
}

func verify(ws *lsm.Store, readStoreDir string, opts Options) (verified, mismatched uint64, err error) {
	rs, err := mmapbtree.Open(readStoreDir)
	if err != nil {
		return 0, 0, fmt.Errorf("open read store: %w", err)
	}
	defer rs.Close()

	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	scanErr := ws.Scan(func(key, wantVal []byte) error {
		if rng.Float64() > opts.VerifyFraction {
			return nil
		}
		verified++

		gotVal, ok, rsErr := rs.RawGet(key)
		if rsErr != nil {
			return rsErr
		}
		if !ok || !bytes.Equal(gotVal, wantVal) {
			mismatched++
		}
		return nil
	})
	if scanErr != nil {
		return verified, mismatched, scanErr
	}
	return verified, mismatched, nil
}
