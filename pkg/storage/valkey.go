package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"
)

const scanCount = 256

var (
	createScript = valkey.NewLuaScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1],
	'content', ARGV[1], 'private', ARGV[2], 'visits', ARGV[3],
	'max_visits', ARGV[4], 'inserted_at', ARGV[5], 'expires_at', ARGV[6])
return 1
`)

	visitScript = valkey.NewLuaScript(`
local v = redis.call('HMGET', KEYS[1], 'visits', 'max_visits', 'expires_at')
if not v[1] then
	return false
end
if tonumber(v[1]) >= tonumber(v[2]) or tonumber(ARGV[1]) >= tonumber(v[3]) then
	return false
end
redis.call('HINCRBY', KEYS[1], 'visits', 1)
return redis.call('HMGET', KEYS[1],
	'content', 'private', 'visits', 'max_visits', 'inserted_at', 'expires_at')
`)

	deleteExpiredScript = valkey.NewLuaScript(`
local exp = redis.call('HGET', KEYS[1], 'expires_at')
if exp and tonumber(exp) <= tonumber(ARGV[2]) then
	redis.call('DEL', KEYS[1])
end
local at = redis.call('ZSCORE', KEYS[2], ARGV[1])
if at and tonumber(at) <= tonumber(ARGV[2]) then
	redis.call('ZREM', KEYS[2], ARGV[1])
end
return 1
`)

	removeScheduleScript = valkey.NewLuaScript(`
local at = redis.call('ZSCORE', KEYS[1], ARGV[1])
if at and tonumber(at) == tonumber(ARGV[2]) then
	redis.call('ZREM', KEYS[1], ARGV[1])
end
return 1
`)
)

// Valkey stores each note as a hash and keeps pending deletions in a sorted
// set scored by their fire time in unix milliseconds.
type Valkey struct {
	client valkey.Client
	codec  Codec
	prefix string
}

var _ Store = (*Valkey)(nil)

func NewValkey(client valkey.Client, codec Codec, prefix string) *Valkey {
	if prefix == "" {
		prefix = "shelf"
	}
	return &Valkey{client: client, codec: codec, prefix: prefix}
}

func (s *Valkey) Create(ctx context.Context, note Note) error {
	content, err := s.codec.Encode([]byte(note.Content))
	if err != nil {
		return fmt.Errorf("valkey: error encoding content: %w", err)
	}
	created, err := createScript.Exec(ctx, s.client, []string{s.noteKey(note.ID)}, []string{
		valkey.BinaryString(content),
		formatBool(note.IsPrivate),
		strconv.FormatUint(note.VisitCount, 10),
		strconv.FormatUint(note.MaxVisits, 10),
		strconv.FormatInt(note.InsertedAt.UnixMilli(), 10),
		strconv.FormatInt(note.ExpiresAt.UnixMilli(), 10),
	}).AsInt64()
	if err != nil {
		return fmt.Errorf("valkey: error storing note: %w", err)
	}
	if created == 0 {
		return ErrDuplicateID
	}
	return nil
}

func (s *Valkey) Exists(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Do(ctx, s.client.B().Exists().Key(s.noteKey(id)).Build()).AsInt64()
	if err != nil {
		return false, fmt.Errorf("valkey: error checking note: %w", err)
	}
	return n == 1, nil
}

func (s *Valkey) ReadAndIncrementVisits(ctx context.Context, id string, now time.Time) (Note, bool, error) {
	fields, err := visitScript.Exec(ctx, s.client, []string{s.noteKey(id)}, []string{
		strconv.FormatInt(now.UnixMilli(), 10),
	}).ToArray()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return Note{}, false, nil
		}
		return Note{}, false, fmt.Errorf("valkey: error visiting note: %w", err)
	}
	note, err := s.decodeNote(id, fields)
	if err != nil {
		return Note{}, false, err
	}
	return note, true, nil
}

func (s *Valkey) Delete(ctx context.Context, id string) error {
	for _, r := range s.client.DoMulti(ctx,
		s.client.B().Del().Key(s.noteKey(id)).Build(),
		s.client.B().Zrem().Key(s.expiriesKey()).Member(id).Build(),
	) {
		if err := r.Error(); err != nil {
			return fmt.Errorf("valkey: error deleting note: %w", err)
		}
	}
	return nil
}

func (s *Valkey) DeleteExpired(ctx context.Context, id string, asOf time.Time) error {
	err := deleteExpiredScript.Exec(ctx, s.client, []string{s.noteKey(id), s.expiriesKey()}, []string{
		id, strconv.FormatInt(asOf.UnixMilli(), 10),
	}).Error()
	if err != nil {
		return fmt.Errorf("valkey: error deleting expired note: %w", err)
	}
	return nil
}

func (s *Valkey) Expiries(ctx context.Context) ([]Expiry, error) {
	var (
		out    []Expiry
		cursor uint64
		match  = s.noteKey("*")
	)
	for {
		entry, err := s.client.Do(ctx, s.client.B().Scan().Cursor(cursor).Match(match).Count(scanCount).Build()).AsScanEntry()
		if err != nil {
			return nil, fmt.Errorf("valkey: error scanning notes: %w", err)
		}
		if len(entry.Elements) > 0 {
			cmds := make(valkey.Commands, 0, len(entry.Elements))
			for _, key := range entry.Elements {
				cmds = append(cmds, s.client.B().Hget().Key(key).Field("expires_at").Build())
			}
			for i, r := range s.client.DoMulti(ctx, cmds...) {
				ms, err := r.AsInt64()
				if err != nil {
					if valkey.IsValkeyNil(err) {
						continue
					}
					return nil, fmt.Errorf("valkey: error reading expiry: %w", err)
				}
				out = append(out, Expiry{ID: s.idFromKey(entry.Elements[i]), At: time.UnixMilli(ms).UTC()})
			}
		}
		cursor = entry.Cursor
		if cursor == 0 {
			return out, nil
		}
	}
}

func (s *Valkey) PutSchedule(ctx context.Context, e Expiry) error {
	cmd := s.client.B().Zadd().Key(s.expiriesKey()).ScoreMember().ScoreMember(float64(e.At.UnixMilli()), e.ID).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("valkey: error storing schedule: %w", err)
	}
	return nil
}

func (s *Valkey) RemoveSchedule(ctx context.Context, e Expiry) error {
	err := removeScheduleScript.Exec(ctx, s.client, []string{s.expiriesKey()}, []string{
		e.ID, strconv.FormatInt(e.At.UnixMilli(), 10),
	}).Error()
	if err != nil {
		return fmt.Errorf("valkey: error removing schedule: %w", err)
	}
	return nil
}

func (s *Valkey) Schedules(ctx context.Context) ([]Expiry, error) {
	scores, err := s.client.Do(ctx, s.client.B().Zrangebyscore().Key(s.expiriesKey()).Min("-inf").Max("+inf").Withscores().Build()).AsZScores()
	if err != nil {
		return nil, fmt.Errorf("valkey: error reading schedules: %w", err)
	}
	out := make([]Expiry, 0, len(scores))
	for _, z := range scores {
		out = append(out, Expiry{ID: z.Member, At: time.UnixMilli(int64(z.Score)).UTC()})
	}
	return out, nil
}

func (s *Valkey) Close() {
	s.client.Close()
}

func (s *Valkey) decodeNote(id string, fields []valkey.ValkeyMessage) (Note, error) {
	if len(fields) != 6 {
		return Note{}, fmt.Errorf("%w: expected 6 fields, got %d", ErrCorrupt, len(fields))
	}
	raw, err := fields[0].AsBytes()
	if err != nil {
		return Note{}, fmt.Errorf("%w: content: %w", ErrCorrupt, err)
	}
	content, err := s.codec.Decode(raw)
	if err != nil {
		return Note{}, fmt.Errorf("valkey: error decoding content: %w", err)
	}
	private, err := fields[1].ToString()
	if err != nil {
		return Note{}, fmt.Errorf("%w: private: %w", ErrCorrupt, err)
	}
	nums := make([]int64, 4)
	for i := range nums {
		if nums[i], err = fields[i+2].AsInt64(); err != nil {
			return Note{}, fmt.Errorf("%w: field %d: %w", ErrCorrupt, i+2, err)
		}
	}
	return Note{
		ID:         id,
		Content:    string(content),
		IsPrivate:  private == "1",
		VisitCount: uint64(nums[0]),
		MaxVisits:  uint64(nums[1]),
		InsertedAt: time.UnixMilli(nums[2]).UTC(),
		ExpiresAt:  time.UnixMilli(nums[3]).UTC(),
	}, nil
}

func (s *Valkey) noteKey(id string) string {
	return s.prefix + ":note:" + id
}

func (s *Valkey) expiriesKey() string {
	return s.prefix + ":expiries"
}

func (s *Valkey) idFromKey(key string) string {
	return strings.TrimPrefix(key, s.prefix+":note:")
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
