package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"time"

	"github.com/boltdb/bolt"
	"golang.org/x/sys/unix"
)

// Layout of a bolt v1.3.1 file. bolt reads pages straight from its memory
// map without bounds checks, so a damaged page makes it fault or spin
// instead of returning an error. verifyFile walks the same structures with
// checked reads first.
const (
	boltMagic   = 0xED0CDAED
	boltVersion = 2

	pageHeaderSize   = 16
	elementSize      = 16
	bucketHeaderSize = 16
	metaChecksumAt   = 56
	metaSize         = 64

	branchPageFlag   = 0x01
	leafPageFlag     = 0x02
	freelistPageFlag = 0x10
	bucketLeafFlag   = 0x01

	minPageSize = 512
	maxPageSize = 1 << 20
)

var order = binary.NativeEndian

type fileMeta struct {
	pageSize uint32
	root     uint64
	freelist uint64
	pgid     uint64
	txid     uint64
	valid    bool
}

type pageHeader struct {
	id       uint64
	flags    uint16
	count    uint16
	overflow uint32
}

func readHeader(b []byte) pageHeader {
	return pageHeader{
		id:       order.Uint64(b[0:8]),
		flags:    order.Uint16(b[8:10]),
		count:    order.Uint16(b[10:12]),
		overflow: order.Uint32(b[12:16]),
	}
}

// verifyPath checks the table file at path before bolt maps it. A missing or
// empty file passes; bolt creates or initializes it.
func verifyPath(path string, timeout time.Duration) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	if err := lockShared(f, timeout); err != nil {
		return fmt.Errorf("translation table %s is locked by another process: %w", path, err)
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	data, err := io.ReadAll(f)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if err := verifyFile(data, os.Getpagesize()); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCorrupt, path, err)
	}
	return nil
}

// lockShared takes the same shared lock a read-only bolt open takes, so a
// writer in another process cannot change the file while it is read.
func lockShared(f *os.File, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_SH|unix.LOCK_NB)
		if err == nil {
			return nil
		}
		if !errors.Is(err, unix.EWOULDBLOCK) {
			return err
		}
		if time.Now().After(deadline) {
			return bolt.ErrTimeout
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// verifyFile checks every page reachable from the meta page bolt would pick.
// osPageSize is what bolt assumes when the first meta page is unreadable.
func verifyFile(data []byte, osPageSize int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed page data: %v", r)
		}
	}()

	if len(data) < pageHeaderSize+metaSize {
		return errors.New("file too small")
	}
	pageSize := osPageSize
	if m0 := readMeta(data[pageHeaderSize:]); m0.valid {
		pageSize = int(m0.pageSize)
	}
	if pageSize < minPageSize || pageSize > maxPageSize {
		return fmt.Errorf("invalid page size %d", pageSize)
	}
	if len(data) < 2*pageSize {
		return errors.New("file too small")
	}

	m0 := readMeta(data[pageHeaderSize:])
	m1 := readMeta(data[pageSize+pageHeaderSize:])
	a, b := m0, m1
	if m1.txid > m0.txid {
		a, b = m1, m0
	}
	m := a
	if !a.valid {
		m = b
	}
	if !m.valid {
		return errors.New("no valid meta page")
	}

	v := &verifier{
		data:     data,
		pageSize: uint64(pageSize),
		hwm:      m.pgid,
		seen:     map[uint64]bool{0: true, 1: true},
	}
	if m.pgid < 2 || m.pgid > uint64(len(data))/uint64(pageSize) {
		return fmt.Errorf("high water mark %d outside file", m.pgid)
	}
	if err := v.freelist(m.freelist); err != nil {
		return err
	}
	return v.walk(m.root)
}

func readMeta(b []byte) fileMeta {
	if len(b) < metaSize {
		return fileMeta{}
	}
	m := fileMeta{
		pageSize: order.Uint32(b[8:12]),
		root:     order.Uint64(b[16:24]),
		freelist: order.Uint64(b[32:40]),
		pgid:     order.Uint64(b[40:48]),
		txid:     order.Uint64(b[48:56]),
	}
	if order.Uint32(b[0:4]) != boltMagic || order.Uint32(b[4:8]) != boltVersion {
		return m
	}
	h := fnv.New64a()
	h.Write(b[:metaChecksumAt])
	if sum := order.Uint64(b[metaChecksumAt:metaSize]); sum != 0 && sum != h.Sum64() {
		return m
	}
	m.valid = true
	return m
}

type verifier struct {
	data     []byte
	pageSize uint64
	hwm      uint64
	seen     map[uint64]bool
}

// page returns the bytes of page id including its overflow pages and marks
// them as referenced.
func (v *verifier) page(id uint64) ([]byte, pageHeader, error) {
	if id < 2 || id >= v.hwm {
		return nil, pageHeader{}, fmt.Errorf("page %d: out of bounds: %d", id, v.hwm)
	}
	start := id * v.pageSize
	h := readHeader(v.data[start : start+pageHeaderSize])
	if h.id != id {
		return nil, h, fmt.Errorf("page %d: header claims id %d", id, h.id)
	}
	last := id + uint64(h.overflow)
	if last >= v.hwm {
		return nil, h, fmt.Errorf("page %d: overflow %d beyond high water mark %d", id, h.overflow, v.hwm)
	}
	for p := id; p <= last; p++ {
		if v.seen[p] {
			return nil, h, fmt.Errorf("page %d: multiple references", p)
		}
		v.seen[p] = true
	}
	return v.data[start : (last+1)*v.pageSize], h, nil
}

func (v *verifier) freelist(id uint64) error {
	b, h, err := v.page(id)
	if err != nil {
		return fmt.Errorf("freelist: %w", err)
	}
	if h.flags != freelistPageFlag {
		return fmt.Errorf("page %d: invalid freelist flags %#x", id, h.flags)
	}
	idx, count := uint64(0), uint64(h.count)
	if count == 0xFFFF {
		if len(b) < pageHeaderSize+8 {
			return fmt.Errorf("page %d: truncated freelist", id)
		}
		idx, count = 1, order.Uint64(b[pageHeaderSize:pageHeaderSize+8])
	}
	if count == 0 {
		return nil
	}
	if count < idx || count > uint64(len(b)-pageHeaderSize)/8 {
		return fmt.Errorf("page %d: freelist count %d exceeds page", id, count)
	}
	for i := idx; i < count; i++ {
		off := pageHeaderSize + i*8
		if free := order.Uint64(b[off : off+8]); free < 2 || free >= v.hwm {
			return fmt.Errorf("page %d: free page %d out of bounds", id, free)
		}
	}
	return nil
}

// walk checks the bucket tree rooted at page id.
func (v *verifier) walk(id uint64) error {
	b, h, err := v.page(id)
	if err != nil {
		return err
	}
	switch h.flags {
	case branchPageFlag:
		if h.count == 0 {
			return fmt.Errorf("page %d: empty branch", id)
		}
		if err := checkElements(b, h.count); err != nil {
			return fmt.Errorf("page %d: %w", id, err)
		}
		for i := 0; i < int(h.count); i++ {
			e := pageHeaderSize + i*elementSize
			pos, ksize := uint64(order.Uint32(b[e:e+4])), uint64(order.Uint32(b[e+4:e+8]))
			if uint64(e)+pos+ksize > uint64(len(b)) {
				return fmt.Errorf("page %d: branch element %d out of bounds", id, i)
			}
			if err := v.walk(order.Uint64(b[e+8 : e+16])); err != nil {
				return err
			}
		}
		return nil
	case leafPageFlag:
		if err := v.leaf(b, h.count); err != nil {
			return fmt.Errorf("page %d: %w", id, err)
		}
		return nil
	default:
		return fmt.Errorf("page %d: invalid type %#x", id, h.flags)
	}
}

// leaf checks the elements of a leaf page and descends into nested buckets.
func (v *verifier) leaf(b []byte, count uint16) error {
	if err := checkElements(b, count); err != nil {
		return err
	}
	for i := 0; i < int(count); i++ {
		e := pageHeaderSize + i*elementSize
		flags := order.Uint32(b[e : e+4])
		pos, ksize, vsize := uint64(order.Uint32(b[e+4:e+8])), uint64(order.Uint32(b[e+8:e+12])), uint64(order.Uint32(b[e+12:e+16]))
		end := uint64(e) + pos + ksize + vsize
		if flags&^bucketLeafFlag != 0 || end > uint64(len(b)) {
			return fmt.Errorf("leaf element %d out of bounds", i)
		}
		if flags&bucketLeafFlag == 0 {
			continue
		}
		if err := v.bucket(b[end-vsize : end]); err != nil {
			return err
		}
	}
	return nil
}

func (v *verifier) bucket(value []byte) error {
	if len(value) < bucketHeaderSize {
		return errors.New("truncated bucket header")
	}
	if root := order.Uint64(value[0:8]); root != 0 {
		return v.walk(root)
	}
	inline := value[bucketHeaderSize:]
	if len(inline) < pageHeaderSize {
		return errors.New("truncated inline bucket")
	}
	h := readHeader(inline)
	if h.flags != leafPageFlag {
		return fmt.Errorf("inline bucket has invalid type %#x", h.flags)
	}
	return v.leaf(inline, h.count)
}

func checkElements(b []byte, count uint16) error {
	if pageHeaderSize+int(count)*elementSize > len(b) {
		return fmt.Errorf("%d elements exceed page", count)
	}
	return nil
}
