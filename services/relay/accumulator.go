// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// This file implements the per-channel token accumulators backing one
// aggregation pass. Tokens are stored in mlocked memory so partial
// answers are never swapped to disk, and are incrementally SHA-256
// hashed for integrity logging. Systems without sufficient mlock
// limits fall back to plain memory when ALEUTIAN_INSECURE_MEMORY=true.

package relay

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"log/slog"
	"os"
	"sync"

	"github.com/awnumar/memguard"
	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// channelBufferSize is the capacity of one channel accumulator.
	// 512 KB is ample for aggregated answer text; base64 image payloads
	// never pass through the text channels.
	channelBufferSize = 512 * 1024

	// minMlockLimitKB is the minimum mlock limit required, in KB.
	minMlockLimitKB = 512
)

var (
	memguardInitOnce    sync.Once
	mlockSufficient     bool
	currentMlockLimitKB int64
)

// =============================================================================
// Interface
// =============================================================================

// ChannelAccumulator accumulates normalized token fragments for one
// text channel (visible answer or internal reasoning).
//
// # Description
//
// An accumulator lives for at most one relay request. Fragments are
// hashed incrementally as they arrive. Finalize returns the complete
// channel text and its SHA-256 hex digest, then wipes the buffer;
// Destroy wipes without returning data and is idempotent, so it is
// safe to defer on every path.
//
// # Limitations
//
//   - Fixed capacity; overflow is terminal for the accumulator.
//   - Unusable after Finalize or Destroy.
type ChannelAccumulator interface {
	Write(fragment string) error
	Finalize() (text string, digest string, err error)
	Destroy()
	ID() string
}

// NewChannelAccumulator creates an accumulator for one text channel.
//
// Allocates an mlocked buffer when the system permits it. When the
// mlock limit is insufficient, ALEUTIAN_INSECURE_MEMORY=true selects
// the plain-memory fallback; otherwise an error is returned.
func NewChannelAccumulator() (ChannelAccumulator, error) {
	initMemguard()

	if !mlockSufficient {
		if os.Getenv("ALEUTIAN_INSECURE_MEMORY") == "true" {
			return newInsecureAccumulator(), nil
		}
		return nil, fmt.Errorf(
			"mlock limit insufficient: have %d KB, need %d KB. "+
				"Raise the system limit or set ALEUTIAN_INSECURE_MEMORY=true",
			currentMlockLimitKB, minMlockLimitKB)
	}

	buf := memguard.NewBuffer(channelBufferSize)
	if buf == nil {
		return nil, fmt.Errorf("failed to allocate secure buffer of %d bytes", channelBufferSize)
	}
	buf.Melt()

	return &secureAccumulator{
		id:     uuid.New().String(),
		buffer: buf,
		hasher: sha256.New(),
	}, nil
}

// =============================================================================
// Secure Implementation
// =============================================================================

// secureAccumulator stores fragments in a memguard LockedBuffer:
// mlocked against swap, guard pages against overruns, zeroed on wipe.
// Not safe for concurrent use; one aggregation pass owns it.
type secureAccumulator struct {
	id        string
	buffer    *memguard.LockedBuffer
	offset    int
	hasher    hash.Hash
	overflow  bool
	destroyed bool
}

func (a *secureAccumulator) Write(fragment string) error {
	if a.destroyed {
		return fmt.Errorf("accumulator already destroyed")
	}
	if a.overflow {
		return fmt.Errorf("secure buffer overflow - response too large")
	}
	b := []byte(fragment)
	if a.offset+len(b) > channelBufferSize {
		a.overflow = true
		return fmt.Errorf("secure buffer overflow: need %d bytes, have %d remaining",
			len(b), channelBufferSize-a.offset)
	}
	copy(a.buffer.Bytes()[a.offset:], b)
	a.offset += len(b)
	a.hasher.Write(b)
	return nil
}

func (a *secureAccumulator) Finalize() (string, string, error) {
	if a.destroyed {
		return "", "", fmt.Errorf("accumulator already destroyed")
	}
	if a.overflow {
		a.wipe()
		return "", "", fmt.Errorf("buffer overflowed during accumulation")
	}
	text := string(a.buffer.Bytes()[:a.offset])
	digest := hex.EncodeToString(a.hasher.Sum(nil))
	a.wipe()

	slog.Debug("Finalized channel accumulator",
		"accumulator_id", a.id,
		"length", len(text),
		"sha256", digest)
	return text, digest, nil
}

func (a *secureAccumulator) Destroy() {
	if a.destroyed {
		return
	}
	a.wipe()
}

func (a *secureAccumulator) ID() string {
	return a.id
}

func (a *secureAccumulator) wipe() {
	if a.buffer != nil {
		a.buffer.Destroy()
	}
	a.destroyed = true
}

// =============================================================================
// Insecure Fallback
// =============================================================================

// insecureAccumulator is the plain-memory fallback. Same contract, no
// mlock guarantees: data may be swapped and wiping is best-effort.
type insecureAccumulator struct {
	id        string
	data      []byte
	hasher    hash.Hash
	overflow  bool
	destroyed bool
}

func newInsecureAccumulator() ChannelAccumulator {
	accID := uuid.New().String()
	slog.Warn("Created INSECURE channel accumulator - data may be swapped to disk",
		"accumulator_id", accID)
	return &insecureAccumulator{
		id:     accID,
		data:   make([]byte, 0, channelBufferSize),
		hasher: sha256.New(),
	}
}

func (a *insecureAccumulator) Write(fragment string) error {
	if a.destroyed {
		return fmt.Errorf("accumulator already destroyed")
	}
	if a.overflow {
		return fmt.Errorf("buffer overflow - response too large")
	}
	b := []byte(fragment)
	if len(a.data)+len(b) > channelBufferSize {
		a.overflow = true
		return fmt.Errorf("buffer overflow: need %d bytes, have %d remaining",
			len(b), channelBufferSize-len(a.data))
	}
	a.data = append(a.data, b...)
	a.hasher.Write(b)
	return nil
}

func (a *insecureAccumulator) Finalize() (string, string, error) {
	if a.destroyed {
		return "", "", fmt.Errorf("accumulator already destroyed")
	}
	if a.overflow {
		a.wipe()
		return "", "", fmt.Errorf("buffer overflowed during accumulation")
	}
	text := string(a.data)
	digest := hex.EncodeToString(a.hasher.Sum(nil))
	a.wipe()
	return text, digest, nil
}

func (a *insecureAccumulator) Destroy() {
	if a.destroyed {
		return
	}
	a.wipe()
}

func (a *insecureAccumulator) ID() string {
	return a.id
}

func (a *insecureAccumulator) wipe() {
	for i := range a.data {
		a.data[i] = 0
	}
	a.data = nil
	a.destroyed = true
}

// =============================================================================
// Initialization
// =============================================================================

// initMemguard performs one-time memguard setup and records whether
// the mlock limit is high enough for secure buffers.
func initMemguard() {
	memguardInitOnce.Do(func() {
		memguard.CatchInterrupt()
		mlockSufficient, currentMlockLimitKB = checkMlockLimit()
		if mlockSufficient {
			slog.Info("Secure memory initialized",
				"mlock_limit_kb", currentMlockLimitKB,
				"required_kb", minMlockLimitKB)
		} else {
			slog.Warn("mlock limit insufficient for secure accumulation",
				"current_limit_kb", currentMlockLimitKB,
				"required_kb", minMlockLimitKB,
				"fallback", "set ALEUTIAN_INSECURE_MEMORY=true")
		}
	})
}

// checkMlockLimit queries RLIMIT_MEMLOCK. A limit of -1 means
// unlimited. If the limit cannot be read at all, secure mode is
// attempted anyway and allocation failure surfaces later.
func checkMlockLimit() (bool, int64) {
	var rlimit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_MEMLOCK, &rlimit); err != nil {
		slog.Warn("Could not determine mlock limit", "error", err)
		return true, -1
	}
	if rlimit.Cur == unix.RLIM_INFINITY {
		return true, -1
	}
	limitKB := int64(rlimit.Cur / 1024)
	return limitKB >= minMlockLimitKB, limitKB
}
