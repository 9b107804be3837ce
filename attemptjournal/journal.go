// Package attemptjournal is a narrow, bbolt-backed audit log of funding and
// publish attempt transitions: purpose, outcome, feerate, and txid, kept
// only so an operator can inspect recent attempts after a crash. It is not
// channel-state persistence and carries nothing needed to resume a channel.
package attemptjournal

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	bolt "go.etcd.io/bbolt"
)

const (
	dbName           = "attempts.db"
	dbFilePermission = 0600
)

var (
	attemptsBucket = []byte("attempts")
	byteOrder      = binary.BigEndian
)

// Outcome is the terminal state of one recorded attempt.
type Outcome uint8

const (
	OutcomeFunded Outcome = iota
	OutcomeConfirmed
	OutcomeRejected
	OutcomeStopped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFunded:
		return "funded"
	case OutcomeConfirmed:
		return "confirmed"
	case OutcomeRejected:
		return "rejected"
	case OutcomeStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Attempt is one recorded funding/publish transition.
type Attempt struct {
	Purpose string
	Txid    chainhash.Hash
	Feerate uint64
	Fee     int64
	Outcome Outcome
	Detail  string
}

// Journal is the audit-log store. Safe for concurrent use.
type Journal struct {
	db *bolt.DB
}

// Open opens (creating if necessary) the attempt journal at dbPath.
func Open(dbPath string) (*Journal, error) {
	if !fileExists(dbPath) {
		if err := os.MkdirAll(dbPath, 0700); err != nil {
			return nil, err
		}
	}

	path := filepath.Join(dbPath, dbName)
	bdb, err := bolt.Open(path, dbFilePermission, nil)
	if err != nil {
		return nil, err
	}

	err = bdb.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(attemptsBucket)
		return err
	})
	if err != nil {
		bdb.Close()
		return nil, err
	}

	log.Infof("Opened attempt journal at %v", path)

	return &Journal{db: bdb}, nil
}

// Close releases the underlying database file.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record appends a, keyed by the bucket's next monotonic sequence number so
// that a later scan returns attempts in recording order.
func (j *Journal) Record(a Attempt) error {
	err := j.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(attemptsBucket)

		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}

		var key [8]byte
		byteOrder.PutUint64(key[:], seq)

		return bucket.Put(key[:], encodeAttempt(a))
	})
	if err == nil {
		log.Debugf("recorded attempt: purpose=%v outcome=%v txid=%v",
			a.Purpose, a.Outcome, a.Txid)
	}
	return err
}

// Recent returns up to limit of the most recently recorded attempts, newest
// first. A limit of 0 returns every recorded attempt.
func (j *Journal) Recent(limit int) ([]Attempt, error) {
	var attempts []Attempt

	err := j.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(attemptsBucket)
		c := bucket.Cursor()

		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			a, err := decodeAttempt(v)
			if err != nil {
				return err
			}
			attempts = append(attempts, a)

			if limit > 0 && len(attempts) >= limit {
				break
			}
		}

		return nil
	})

	return attempts, err
}

func encodeAttempt(a Attempt) []byte {
	var buf bytes.Buffer

	purpose := []byte(a.Purpose)
	detail := []byte(a.Detail)

	var lenBuf [2]byte
	byteOrder.PutUint16(lenBuf[:], uint16(len(purpose)))
	buf.Write(lenBuf[:])
	buf.Write(purpose)

	buf.Write(a.Txid[:])

	var u64Buf [8]byte
	byteOrder.PutUint64(u64Buf[:], a.Feerate)
	buf.Write(u64Buf[:])

	byteOrder.PutUint64(u64Buf[:], uint64(a.Fee))
	buf.Write(u64Buf[:])

	buf.WriteByte(byte(a.Outcome))

	byteOrder.PutUint16(lenBuf[:], uint16(len(detail)))
	buf.Write(lenBuf[:])
	buf.Write(detail)

	return buf.Bytes()
}

func decodeAttempt(raw []byte) (Attempt, error) {
	var a Attempt
	r := bytes.NewReader(raw)

	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return a, fmt.Errorf("reading purpose length: %w", err)
	}
	purpose := make([]byte, byteOrder.Uint16(lenBuf[:]))
	if _, err := io.ReadFull(r, purpose); err != nil {
		return a, fmt.Errorf("reading purpose: %w", err)
	}
	a.Purpose = string(purpose)

	if _, err := io.ReadFull(r, a.Txid[:]); err != nil {
		return a, fmt.Errorf("reading txid: %w", err)
	}

	var u64Buf [8]byte
	if _, err := io.ReadFull(r, u64Buf[:]); err != nil {
		return a, fmt.Errorf("reading feerate: %w", err)
	}
	a.Feerate = byteOrder.Uint64(u64Buf[:])

	if _, err := io.ReadFull(r, u64Buf[:]); err != nil {
		return a, fmt.Errorf("reading fee: %w", err)
	}
	a.Fee = int64(byteOrder.Uint64(u64Buf[:]))

	outcome, err := r.ReadByte()
	if err != nil {
		return a, fmt.Errorf("reading outcome: %w", err)
	}
	a.Outcome = Outcome(outcome)

	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return a, fmt.Errorf("reading detail length: %w", err)
	}
	detail := make([]byte, byteOrder.Uint16(lenBuf[:]))
	if _, err := io.ReadFull(r, detail); err != nil {
		return a, fmt.Errorf("reading detail: %w", err)
	}
	a.Detail = string(detail)

	return a, nil
}

func fileExists(path string) bool {
	if _, err := os.Stat(path); err != nil {
		return !os.IsNotExist(err)
	}
	return true
}
