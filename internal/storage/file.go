package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	logx "puasapush/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.subs.snapshot.json (periodic snapshot)
//   - <prefix>.subs.journal.jsonl (append-only journal)
//
// The journal is replayed over the snapshot on open and compacted into it
// every compactEvery writes and on Close.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	snapshotPath string
	journal      *os.File
	subs         map[string]Subscription

	writes       int
	compactEvery int
}

const (
	opUpsert = "upsert"
	opAnswer = "answer"
	opRemove = "remove"
)

type journalRecord struct {
	Op  string       `json:"op"`
	Sub Subscription `json:"sub"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	prefix := filepath.Join(dir, base)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	snapPath := prefix + ".subs.snapshot.json"
	journalPath := prefix + ".subs.journal.jsonl"

	subs := map[string]Subscription{}
	if err := loadSnapshot(snapPath, subs); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("subscription snapshot unreadable; starting from journal", logx.String("path", snapPath), logx.Err(err))
	}
	if err := replayJournal(journalPath, subs); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	jf, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}
	return &fileStore{
		log:          log,
		snapshotPath: snapPath,
		journal:      jf,
		subs:         subs,
		compactEvery: 500,
	}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return nil
	}
	err := s.compactLocked()
	if cerr := s.journal.Close(); err == nil {
		err = cerr
	}
	s.journal = nil
	return err
}

func (s *fileStore) ListAll(ctx context.Context) ([]Subscription, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return nil, ErrClosed
	}
	out := make([]Subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		out = append(out, sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Endpoint < out[j].Endpoint })
	return out, nil
}

func (s *fileStore) Upsert(ctx context.Context, endpoint string, keys Keys) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return ErrClosed
	}
	sub := s.subs[endpoint]
	sub.Endpoint = endpoint
	sub.Keys = keys
	sub.UpdatedAt = nowUTC()
	return s.applyLocked(journalRecord{Op: opUpsert, Sub: sub})
}

func (s *fileStore) MarkAnswered(ctx context.Context, endpoint, date string) (bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return false, ErrClosed
	}
	sub, ok := s.subs[endpoint]
	if !ok {
		return false, nil
	}
	sub.LastAnsweredDate = date
	sub.UpdatedAt = nowUTC()
	return true, s.applyLocked(journalRecord{Op: opAnswer, Sub: sub})
}

func (s *fileStore) Remove(ctx context.Context, endpoint string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return ErrClosed
	}
	if _, ok := s.subs[endpoint]; !ok {
		return nil
	}
	return s.applyLocked(journalRecord{Op: opRemove, Sub: Subscription{Endpoint: endpoint}})
}

// applyLocked journals the record first, then mutates memory.
func (s *fileStore) applyLocked(rec journalRecord) error {
	if err := json.NewEncoder(s.journal).Encode(rec); err != nil {
		return err
	}
	applyRecord(s.subs, rec)

	s.writes++
	if s.writes%s.compactEvery == 0 {
		if err := s.compactLocked(); err != nil {
			s.log.Debug("subscription compact failed", logx.Err(err))
		}
	}
	return nil
}

func applyRecord(m map[string]Subscription, rec journalRecord) {
	if rec.Sub.Endpoint == "" {
		return
	}
	switch rec.Op {
	case opUpsert, opAnswer:
		m[rec.Sub.Endpoint] = rec.Sub
	case opRemove:
		delete(m, rec.Sub.Endpoint)
	}
}

// compactLocked rewrites the snapshot atomically (tmp + rename) and truncates the journal.
func (s *fileStore) compactLocked() error {
	tmp := s.snapshotPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(s.subs); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.snapshotPath); err != nil {
		return err
	}
	if err := s.journal.Truncate(0); err != nil {
		return err
	}
	_, err = s.journal.Seek(0, 2)
	return err
}

func loadSnapshot(path string, out map[string]Subscription) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var m map[string]Subscription
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return err
	}
	for k, v := range m {
		out[k] = v
	}
	return nil
}

func replayJournal(path string, out map[string]Subscription) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var rec journalRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			// A torn trailing line after a crash is skipped.
			continue
		}
		applyRecord(out, rec)
	}
	return sc.Err()
}
