package oob

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"

	goAuthForm "github.com/MrEthical07/goAuthForm"
)

const (
	completionKeyPrefix      = "oobc"
	completionRecordVersion1 = 1

	defaultCompletionTTL = 10 * time.Minute
	defaultPollInterval  = 2 * time.Second
)

var (
	// ErrCompletionNotFound is an exported constant or variable used by the form engine.
	ErrCompletionNotFound = errors.New("out-of-band completion not found")
	// ErrCompletionBackend is an exported constant or variable used by the form engine.
	ErrCompletionBackend = errors.New("out-of-band completion backend unavailable")
)

// Record defines a public type used by goAuthForm APIs.
//
// Record instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Record struct {
	RequestID   string
	Username    string
	Action      goAuthForm.FormAction
	Token       string
	CompletedAt int64
}

// Store defines a public type used by goAuthForm APIs.
//
// Store instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Store struct {
	redis        *redis.Client
	ttl          time.Duration
	pollInterval time.Duration
}

// NewStore describes the newstore operation and its observable behavior.
//
// NewStore may return an error when input validation, dependency calls, or security checks fail.
// NewStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewStore(redisClient *redis.Client) *Store {
	return &Store{
		redis:        redisClient,
		ttl:          defaultCompletionTTL,
		pollInterval: defaultPollInterval,
	}
}

// WithTTL describes the withttl operation and its observable behavior.
//
// WithTTL may return an error when input validation, dependency calls, or security checks fail.
// WithTTL does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) WithTTL(ttl time.Duration) *Store {
	if ttl > 0 {
		s.ttl = ttl
	}
	return s
}

// WithPollInterval describes the withpollinterval operation and its observable behavior.
//
// WithPollInterval may return an error when input validation, dependency calls, or security checks fail.
// WithPollInterval does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) WithPollInterval(interval time.Duration) *Store {
	if interval > 0 {
		s.pollInterval = interval
	}
	return s
}

func (s *Store) key(requestID string) string {
	return completionKeyPrefix + ":" + requestID
}

// Publish describes the publish operation and its observable behavior.
//
// Publish may return an error when input validation, dependency calls, or security checks fail.
// Publish does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) Publish(ctx context.Context, record *Record) error {
	if record.RequestID == "" {
		return errors.New("completion record missing request id")
	}
	if record.CompletedAt == 0 {
		record.CompletedAt = time.Now().Unix()
	}
	encoded, err := encodeCompletionRecord(record)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(record.RequestID), encoded, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCompletionBackend, err)
	}
	return nil
}

// Consume removes and returns the completion for requestID. Completions are
// single use; a second consume for the same id reports ErrCompletionNotFound.
func (s *Store) Consume(ctx context.Context, requestID string) (*Record, error) {
	data, err := s.redis.GetDel(ctx, s.key(requestID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCompletionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrCompletionBackend, err)
	}
	return decodeCompletionRecord(data)
}

// Await polls until the completion for requestID lands or ctx is done. The
// returned record has already been consumed.
func (s *Store) Await(ctx context.Context, requestID string) (*Record, error) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		record, err := s.Consume(ctx, requestID)
		if err == nil {
			return record, nil
		}
		if !errors.Is(err, ErrCompletionNotFound) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// FormRelay adapts a Store to the goAuthForm.OutOfBandRelay interface.
//
// FormRelay instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type FormRelay struct {
	store *Store
}

// NewFormRelay describes the newformrelay operation and its observable behavior.
//
// NewFormRelay may return an error when input validation, dependency calls, or security checks fail.
// NewFormRelay does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewFormRelay(store *Store) *FormRelay {
	return &FormRelay{store: store}
}

// Await describes the await operation and its observable behavior.
//
// Await may return an error when input validation, dependency calls, or security checks fail.
// Await does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (r *FormRelay) Await(ctx context.Context, requestID string) (goAuthForm.OutOfBandCompletion, error) {
	record, err := r.store.Await(ctx, requestID)
	if err != nil {
		return goAuthForm.OutOfBandCompletion{}, err
	}
	return goAuthForm.OutOfBandCompletion{
		RequestID: record.RequestID,
		Username:  record.Username,
		Action:    record.Action,
		Token:     record.Token,
	}, nil
}

func encodeCompletionRecord(record *Record) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(completionRecordVersion1)
	buf.WriteByte(byte(record.Action))

	if err := binary.Write(&buf, binary.BigEndian, record.CompletedAt); err != nil {
		return nil, err
	}

	for _, field := range []string{record.RequestID, record.Username, record.Token} {
		if len(field) > 65535 {
			return nil, errors.New("completion field length exceeded")
		}
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(field))); err != nil {
			return nil, err
		}
		buf.WriteString(field)
	}

	return buf.Bytes(), nil
}

func decodeCompletionRecord(data []byte) (*Record, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != completionRecordVersion1 {
		return nil, errors.New("invalid completion record version")
	}

	action, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}

	record := &Record{Action: goAuthForm.FormAction(action)}
	if err := binary.Read(reader, binary.BigEndian, &record.CompletedAt); err != nil {
		return nil, err
	}

	for _, field := range []*string{&record.RequestID, &record.Username, &record.Token} {
		var length uint16
		if err := binary.Read(reader, binary.BigEndian, &length); err != nil {
			return nil, err
		}
		raw := make([]byte, length)
		if _, err := io.ReadFull(reader, raw); err != nil {
			return nil, err
		}
		*field = string(raw)
	}

	return record, nil
}
