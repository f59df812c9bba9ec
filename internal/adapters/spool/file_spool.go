package spool

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/ghalamif/VitalFlow/internal/domain"
	"github.com/ghalamif/VitalFlow/internal/ports"
)

const (
	recordHeaderLen = 12
	logName         = "spool.log"
	metaName        = "spool.meta"
)

// FileSpool is an append-only log of undelivered messages with a committed
// watermark persisted next to it.
type FileSpool struct {
	mu        sync.Mutex
	path      string
	metaPath  string
	file      *os.File
	writer    *bufio.Writer
	nextID    ports.SpoolEntryID
	committed ports.SpoolEntryID
	sizeBytes int64
}

func Open(dir string) (*FileSpool, error) {
	if dir == "" {
		return nil, fmt.Errorf("spool dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, logName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	sp := &FileSpool{
		path:     path,
		metaPath: filepath.Join(dir, metaName),
		file:     f,
		writer:   bufio.NewWriterSize(f, 64<<10),
	}
	if err := sp.bootstrap(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return sp, nil
}

func (s *FileSpool) bootstrap() error {
	if err := s.scanExisting(); err != nil {
		return err
	}
	if err := s.loadCommitted(); err != nil {
		return err
	}
	if s.nextID < s.committed {
		s.nextID = s.committed
	}
	_, err := s.file.Seek(0, io.SeekEnd)
	return err
}

// scanExisting finds the last complete record and cuts off a torn tail.
func (s *FileSpool) scanExisting() error {
	rf, err := os.Open(s.path)
	if err != nil {
		return err
	}
	defer rf.Close()

	reader := bufio.NewReader(rf)
	var (
		offset int64
		lastID ports.SpoolEntryID
	)

	for {
		var hdr [recordHeaderLen]byte
		if _, err := io.ReadFull(reader, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return fmt.Errorf("spool scan header: %w", err)
		}
		id := ports.SpoolEntryID(binary.BigEndian.Uint64(hdr[0:8]))
		length := binary.BigEndian.Uint32(hdr[8:12])

		if _, err := io.CopyN(io.Discard, reader, int64(length)); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return fmt.Errorf("spool scan body: %w", err)
		}
		offset += recordHeaderLen + int64(length)
		lastID = id
	}

	if err := s.file.Truncate(offset); err != nil {
		return err
	}
	s.sizeBytes = offset
	s.nextID = lastID
	return nil
}

func (s *FileSpool) loadCommitted() error {
	data, err := os.ReadFile(s.metaPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	val := strings.TrimSpace(string(data))
	if val == "" {
		return nil
	}
	u, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return fmt.Errorf("spool meta parse: %w", err)
	}
	s.committed = ports.SpoolEntryID(u)
	return nil
}

// Append writes the message and flushes it to the file before returning.
func (s *FileSpool) Append(msg *domain.Message) (ports.SpoolEntryID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := json.Marshal(msg)
	if err != nil {
		return 0, err
	}
	id := s.nextID + 1

	// record: [8 bytes id][4 bytes len][len bytes json]
	if err := writeRecord(s.writer, id, b); err != nil {
		return 0, err
	}
	if err := s.writer.Flush(); err != nil {
		return 0, err
	}

	s.nextID = id
	s.sizeBytes += int64(recordHeaderLen + len(b))
	return id, nil
}

func (s *FileSpool) Iterate(from ports.SpoolEntryID, fn func(id ports.SpoolEntryID, msg *domain.Message) error) error {
	s.mu.Lock()
	if err := s.writer.Flush(); err != nil {
		s.mu.Unlock()
		return err
	}
	size := s.sizeBytes
	s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		return err
	}
	defer f.Close()

	// entries appended by fn are left for the next pass
	return readRecords(bufio.NewReader(io.LimitReader(f, size)), func(id ports.SpoolEntryID, b []byte) error {
		if id < from {
			return nil
		}
		var msg domain.Message
		if err := json.Unmarshal(b, &msg); err != nil {
			return fmt.Errorf("corrupt spool entry %d: %w", id, err)
		}
		return fn(id, &msg)
	})
}

func (s *FileSpool) Commit(upto ports.SpoolEntryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if upto > s.nextID {
		upto = s.nextID
	}
	if upto > s.committed {
		s.committed = upto
	}
	return s.persistMetaLocked()
}

// Compact rewrites the log keeping only uncommitted entries. Entry ids are
// preserved so the committed watermark stays valid.
func (s *FileSpool) Compact() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writer.Flush(); err != nil {
		return err
	}

	src, err := os.Open(s.path)
	if err != nil {
		return err
	}
	tmpPath := s.path + ".tmp"
	tmp, err := os.Create(tmpPath)
	if err != nil {
		src.Close()
		return err
	}

	w := bufio.NewWriter(tmp)
	var size int64
	err = readRecords(bufio.NewReader(src), func(id ports.SpoolEntryID, b []byte) error {
		if id <= s.committed {
			return nil
		}
		size += int64(recordHeaderLen + len(b))
		return writeRecord(w, id, b)
	})
	src.Close()
	if err == nil {
		err = w.Flush()
	}
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("spool compact: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := s.file.Close(); err != nil {
		return err
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	s.file = f
	s.writer.Reset(f)
	s.sizeBytes = size
	return nil
}

func (s *FileSpool) Stats() ports.SpoolStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ports.SpoolStats{
		OldestUncommitted: s.committed + 1,
		LatestAppended:    s.nextID,
		SizeBytes:         s.sizeBytes,
	}
}

func (s *FileSpool) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Join(s.writer.Flush(), s.file.Sync(), s.file.Close())
}

func (s *FileSpool) persistMetaLocked() error {
	data := []byte(fmt.Sprintf("%d\n", s.committed))
	return os.WriteFile(s.metaPath, data, 0o644)
}

func writeRecord(w io.Writer, id ports.SpoolEntryID, b []byte) error {
	var hdr [recordHeaderLen]byte
	binary.BigEndian.PutUint64(hdr[0:8], uint64(id))
	binary.BigEndian.PutUint32(hdr[8:12], uint32(len(b)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readRecords(r io.Reader, fn func(id ports.SpoolEntryID, b []byte) error) error {
	for {
		var hdr [recordHeaderLen]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("spool truncated header: %w", err)
		}
		id := ports.SpoolEntryID(binary.BigEndian.Uint64(hdr[0:8]))
		b := make([]byte, binary.BigEndian.Uint32(hdr[8:12]))
		if _, err := io.ReadFull(r, b); err != nil {
			return fmt.Errorf("corrupt spool: %w", err)
		}
		if err := fn(id, b); err != nil {
			return err
		}
	}
}

var _ ports.Spool = (*FileSpool)(nil)
