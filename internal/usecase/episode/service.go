package episode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	logpkg "github.com/clique-kr/episodes/internal/logger"
)

const (
	defaultAck       = "ok"
	defaultChunkSize = 64 * 1024
)

// SubmitResult summarizes one submit call.
type SubmitResult struct {
	Ack    string
	Chunks int
	Bytes  int64
}

// Service serves the submit and fetch-index operations.
type Service struct {
	index     IndexReader
	counter   CollectionCounter
	logger    *zap.Logger
	ack       string
	chunkSize int
	probe     bool
}

// New creates an episode service. counter may be nil, which disables the submit probe.
func New(index IndexReader, counter CollectionCounter, logger *zap.Logger) *Service {
	return &Service{
		index:     index,
		counter:   counter,
		logger:    logger,
		ack:       defaultAck,
		chunkSize: defaultChunkSize,
		probe:     counter != nil,
	}
}

// WithSubmit configures the acknowledgment, the body read chunk size and the store probe.
func (s *Service) WithSubmit(ack string, chunkSize int, probe bool) *Service {
	if ack != "" {
		s.ack = ack
	}
	if chunkSize > 0 {
		s.chunkSize = chunkSize
	}
	s.probe = probe && s.counter != nil
	return s
}

// Submit drains body chunk by chunk, logging each chunk as text, then
// optionally probes the store. Nothing is persisted. The acknowledgment is
// returned whatever happens; read and probe failures are only logged.
func (s *Service) Submit(ctx context.Context, body io.Reader) SubmitResult {
	log := logpkg.FromContext(ctx, s.logger)
	res := SubmitResult{Ack: s.ack}

	if body != nil {
		buf := make([]byte, s.chunkSize)
		for {
			n, err := body.Read(buf)
			if n > 0 {
				res.Chunks++
				res.Bytes += int64(n)
				log.Info("submit chunk",
					zap.Int("chunk", res.Chunks),
					zap.Int("size", n),
					zap.String("text", decodeChunk(buf[:n])),
				)
			}
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				log.Warn("submit body read failed", zap.Error(err), zap.Int64("bytes", res.Bytes))
				break
			}
		}
	}

	if s.probe {
		n, err := s.counter.Count(ctx)
		if err != nil {
			log.Warn("submit store probe failed", zap.Error(err))
		} else {
			log.Debug("submit store probe", zap.Int("documents", n))
		}
	}

	return res
}

// FetchIndex returns the published index list value.
func (s *Service) FetchIndex(ctx context.Context) (any, error) {
	list, err := s.index.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch index: %w", err)
	}
	if list.Matched > 1 {
		logpkg.FromContext(ctx, s.logger).Warn("multiple index documents, serving the first",
			zap.Int("matched", list.Matched))
	}
	return list.Value, nil
}

// decodeChunk renders bytes as UTF-8, replacing invalid sequences.
// A multi-byte rune split across two chunks shows up as replacement characters.
func decodeChunk(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), "�")
}
