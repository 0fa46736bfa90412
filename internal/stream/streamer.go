// Package stream tails session transcript files and turns appended lines
// into hub events.
package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/sandcastle-dev/sandcastle/internal/domain/events"
	"github.com/sandcastle-dev/sandcastle/internal/domain/ports"
)

const (
	// Debounce window after a write before reading. Transcript writers
	// append whole lines but not necessarily in one syscall.
	writeSettle = 200 * time.Millisecond

	// Poll interval as a backup in case fsnotify misses events.
	pollInterval = 1 * time.Second

	// Scanner line limit. Transcript lines can carry large embedded
	// payloads.
	maxLineSize = 10 * 1024 * 1024
)

// Streamer tails one session's transcript file. Existing lines are replayed
// first, then a caught-up marker is published, then new lines are streamed
// as they are appended. Run returns when its context is cancelled.
type Streamer struct {
	sessionID    string
	repositoryID string
	dir          string
	path         string
	hub          ports.EventHub

	mu     sync.Mutex
	offset int64
	line   int64
}

// NewStreamer creates a streamer for the session's transcript under
// transcriptsDir. The file may not exist yet; the streamer waits for it.
func NewStreamer(transcriptsDir, repositoryID, sessionID string, hub ports.EventHub) *Streamer {
	return &Streamer{
		sessionID:    sessionID,
		repositoryID: repositoryID,
		dir:          transcriptsDir,
		path:         filepath.Join(transcriptsDir, sessionID+".jsonl"),
		hub:          hub,
	}
}

// Line returns the number of transcript lines published so far.
func (s *Streamer) Line() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.line
}

// Run replays the transcript and tails it until ctx is cancelled. The
// transcript directory is watched rather than the file itself so sessions
// whose transcript appears later are picked up.
func (s *Streamer) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(s.dir); err != nil {
		return err
	}

	s.drain()

	s.hub.Publish(events.NewEventWithContext(events.EventTypeStreamCaughtUp, events.StreamCaughtUpPayload{
		SessionID: s.sessionID,
		Lines:     s.Line(),
	}, s.repositoryID, s.sessionID))

	log.Debug().
		Str("session_id", s.sessionID).
		Int64("lines", s.Line()).
		Msg("transcript stream caught up")

	var lastEvent time.Time
	settle := time.NewTimer(time.Hour)
	settle.Stop()
	defer settle.Stop()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().
				Str("session_id", s.sessionID).
				Msg("transcript stream stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != s.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				lastEvent = time.Now()
				settle.Reset(writeSettle)
			}

		case <-settle.C:
			if time.Since(lastEvent) >= writeSettle {
				s.drain()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).
				Str("session_id", s.sessionID).
				Msg("transcript watcher error")

		case <-ticker.C:
			if time.Since(lastEvent) >= writeSettle {
				s.drain()
			}
		}
	}
}

// drain reads any transcript content past the current offset and publishes
// one session_message event per complete line.
func (s *Streamer) drain() {
	s.mu.Lock()
	offset := s.offset
	s.mu.Unlock()

	info, err := os.Stat(s.path)
	if err != nil {
		return
	}
	if info.Size() <= offset {
		return
	}

	file, err := os.Open(s.path)
	if err != nil {
		log.Warn().Err(err).
			Str("session_id", s.sessionID).
			Msg("failed to open transcript")
		return
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		log.Warn().Err(err).
			Str("session_id", s.sessionID).
			Msg("failed to seek in transcript")
		return
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	newOffset := offset
	published := 0

	for scanner.Scan() {
		raw := scanner.Bytes()
		newOffset += int64(len(raw)) + 1

		if len(raw) == 0 {
			continue
		}

		s.mu.Lock()
		s.line++
		lineNo := s.line
		s.mu.Unlock()

		message := json.RawMessage(append([]byte(nil), raw...))
		if !json.Valid(message) {
			// Partial or malformed line. Keep the numbering stable and
			// wrap it as a JSON string so clients still see it.
			quoted, _ := json.Marshal(string(raw))
			message = quoted
		}

		s.hub.Publish(events.NewEventWithContext(events.EventTypeSessionMessage, events.SessionMessagePayload{
			SessionID: s.sessionID,
			Line:      lineNo,
			Message:   message,
		}, s.repositoryID, s.sessionID))
		published++
	}

	if err := scanner.Err(); err != nil {
		log.Warn().Err(err).
			Str("session_id", s.sessionID).
			Msg("error scanning transcript")
	}

	s.mu.Lock()
	s.offset = newOffset
	s.mu.Unlock()

	if published > 0 {
		log.Debug().
			Str("session_id", s.sessionID).
			Int("lines", published).
			Int64("offset", newOffset).
			Msg("published transcript lines")
	}
}
