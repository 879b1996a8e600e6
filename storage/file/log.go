package file

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"

	"github.com/poiesic/spacedb/core"
	"github.com/poiesic/spacedb/storage"
)

const frameHeaderSize = 4

// Log is an append-only file of frames, each a little-endian int32 length
// followed by that many bytes. The file is opened per operation.
type Log struct {
	path string
}

var _ storage.RecordLog = (*Log)(nil)

// NewLog returns a log stored at path. The file is created on first Append.
func NewLog(path string) *Log {
	return &Log{path: path}
}

// Path returns the log file location.
func (l *Log) Path() string {
	return l.path
}

// Append writes body as one frame and returns the offset of its length prefix.
func (l *Log) Append(body []byte) (core.Offset, error) {
	if len(body) > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %d bytes", storage.ErrFrameTooLarge, len(body))
	}

	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat log: %w", err)
	}
	off := core.Offset(info.Size())

	frame := make([]byte, frameHeaderSize+len(body))
	binary.LittleEndian.PutUint32(frame, uint32(len(body)))
	copy(frame[frameHeaderSize:], body)

	if _, err := f.Write(frame); err != nil {
		return 0, fmt.Errorf("append frame at %d: %w", off, err)
	}
	return off, nil
}

// ReadAt returns the body of the frame starting at off.
func (l *Log) ReadAt(off core.Offset) ([]byte, error) {
	if off < 0 {
		return nil, fmt.Errorf("%w: negative offset %d", storage.ErrNotFound, off)
	}

	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: log %s", storage.ErrNotFound, l.path)
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat log: %w", err)
	}
	if int64(off) >= info.Size() {
		return nil, fmt.Errorf("%w: offset %d beyond end of log", storage.ErrNotFound, off)
	}

	var header [frameHeaderSize]byte
	if _, err := f.ReadAt(header[:], int64(off)); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: truncated length at offset %d", storage.ErrCorrupt, off)
		}
		return nil, fmt.Errorf("read frame header at %d: %w", off, err)
	}
	n := int32(binary.LittleEndian.Uint32(header[:]))
	if n < 0 {
		return nil, fmt.Errorf("%w: negative length %d at offset %d", storage.ErrCorrupt, n, off)
	}
	if int64(off)+frameHeaderSize+int64(n) > info.Size() {
		return nil, fmt.Errorf("%w: truncated frame at offset %d", storage.ErrCorrupt, off)
	}

	body := make([]byte, n)
	if n == 0 {
		return body, nil
	}
	if _, err := f.ReadAt(body, int64(off)+frameHeaderSize); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: truncated frame at offset %d", storage.ErrCorrupt, off)
		}
		return nil, fmt.Errorf("read frame at %d: %w", off, err)
	}
	return body, nil
}

// Size returns the log size in bytes, 0 if the file does not exist.
func (l *Log) Size() (int64, error) {
	info, err := os.Stat(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	return info.Size(), nil
}

// Scan opens the log for a sequential pass from the first frame.
// Returns storage.ErrNotFound if the file does not exist.
// The caller must Close the scanner.
func (l *Log) Scan() (*Scanner, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: log %s", storage.ErrNotFound, l.path)
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat log: %w", err)
	}
	return &Scanner{f: f, r: bufio.NewReader(f), size: info.Size()}, nil
}

// Scanner yields frames in physical order.
type Scanner struct {
	f      *os.File
	r      *bufio.Reader
	size   int64
	pos    int64
	offset core.Offset
	frame  []byte
	err    error
	done   bool
}

// Next advances to the next frame. It returns false at end of log or on error.
func (s *Scanner) Next() bool {
	if s.done {
		return false
	}

	var header [frameHeaderSize]byte
	read, err := io.ReadFull(s.r, header[:])
	if err != nil {
		s.done = true
		if errors.Is(err, io.EOF) && read == 0 {
			return false
		}
		s.err = fail(err, s.pos, "truncated length")
		return false
	}
	n := int32(binary.LittleEndian.Uint32(header[:]))
	if n < 0 {
		s.done = true
		s.err = fmt.Errorf("%w: negative length %d at offset %d", storage.ErrCorrupt, n, s.pos)
		return false
	}
	if s.pos+frameHeaderSize+int64(n) > s.size {
		s.done = true
		s.err = fmt.Errorf("%w: truncated frame at offset %d", storage.ErrCorrupt, s.pos)
		return false
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(s.r, body); err != nil {
		s.done = true
		s.err = fail(err, s.pos, "truncated frame")
		return false
	}

	s.offset = core.Offset(s.pos)
	s.frame = body
	s.pos += frameHeaderSize + int64(n)
	return true
}

// Offset returns the offset of the current frame.
func (s *Scanner) Offset() core.Offset {
	return s.offset
}

// Frame returns the body of the current frame.
func (s *Scanner) Frame() []byte {
	return s.frame
}

// Err returns the error that stopped the scan, if any.
func (s *Scanner) Err() error {
	return s.err
}

// Close releases the underlying file.
func (s *Scanner) Close() error {
	s.done = true
	return s.f.Close()
}

func fail(err error, pos int64, what string) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %s at offset %d", storage.ErrCorrupt, what, pos)
	}
	return fmt.Errorf("scan log at %d: %w", pos, err)
}
