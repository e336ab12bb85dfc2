package fixmsg

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// Framer splits an incoming byte stream into complete, validated raw FIX
// message strings (spec.md §4.1).
//
// A FIX message on the wire is:
//
//	8=<BeginString><SOH>9=<BodyLength><SOH>...<SOH>10=<CheckSum><SOH>
//
// Framer is incremental: it operates over an io.Reader and may be called
// repeatedly as more bytes arrive on the connection. On a malformed message
// it reports a recoverable *FrameError and resynchronizes by discarding
// bytes up to the next "8=" field start, so the caller can keep calling
// Next in a loop without restarting the stream.
type Framer struct {
	r                *bufio.Reader
	atFieldStart     bool
	validateChecksum bool
}

// NewFramer returns a Framer reading from r, with CheckSum verification
// enabled.
func NewFramer(r io.Reader) *Framer {
	return &Framer{r: bufio.NewReaderSize(r, 4096), atFieldStart: true, validateChecksum: true}
}

// SetValidateChecksum toggles CheckSum verification for frames read after
// this call (spec.md §6 ValidateLengthAndChecksum). BodyLength is always
// relied on to locate the message boundary regardless of this setting;
// disabling it only stops rejecting a message whose CheckSum(10) disagrees
// with the computed sum, for interop with counterparties known to send bad
// checksums.
func (f *Framer) SetValidateChecksum(validate bool) {
	f.validateChecksum = validate
}

// FrameError wraps a recoverable framing failure (bad BodyLength or
// CheckSum). The caller should log it and call Next again; Framer has
// already resynchronized internally.
type FrameError struct {
	Err error
}

func (e *FrameError) Error() string { return e.Err.Error() }
func (e *FrameError) Unwrap() error { return e.Err }

// Next blocks until it can return one complete, validated raw message, a
// *FrameError for a malformed message (after which the caller should call
// Next again), or a terminal error (io.EOF or an underlying I/O error).
func (f *Framer) Next() ([]byte, error) {
	if err := f.skipToBeginString(); err != nil {
		return nil, err
	}
	raw, err := f.readOneMessage()
	if err != nil {
		var fe *FrameError
		if errors.As(err, &fe) {
			return nil, fe
		}
		return nil, err
	}
	return raw, nil
}

// skipToBeginString discards bytes until the reader is positioned at a
// field-start "8=" (i.e. a BeginString field), or returns a terminal error.
func (f *Framer) skipToBeginString() error {
	for {
		if f.atFieldStart {
			b, err := f.r.Peek(2)
			if err == nil && b[0] == '8' && b[1] == '=' {
				return nil
			}
		}
		b, err := f.r.ReadByte()
		if err != nil {
			return err
		}
		f.atFieldStart = b == SOH
	}
}

// readField reads one SOH-terminated tag=value field from f.r, appending
// its raw bytes (including the trailing SOH) to out.
func (f *Framer) readField(out *bytes.Buffer) (rawField, error) {
	line, err := f.r.ReadBytes(SOH)
	if err != nil {
		return rawField{}, err
	}
	out.Write(line)

	field := line[:len(line)-1]
	eq := bytes.IndexByte(field, '=')
	if eq <= 0 {
		return rawField{}, fmt.Errorf("%w: malformed field %q", ErrParse, field)
	}
	tagNum, err := strconv.Atoi(string(field[:eq]))
	if err != nil {
		return rawField{}, fmt.Errorf("%w: non-numeric tag in %q", ErrParse, field)
	}
	return rawField{Tag: Tag(tagNum), Value: string(field[eq+1:])}, nil
}

// readOneMessage reads one message assuming the reader is positioned at its
// leading "8=". On any structural problem it returns a *FrameError and
// leaves the reader positioned past the malformed attempt, so the next
// skipToBeginString call makes forward progress.
func (f *Framer) readOneMessage() ([]byte, error) {
	var out bytes.Buffer

	beginField, err := f.readField(&out)
	if err != nil {
		f.atFieldStart = false
		return nil, terminalOrFrame(err, "BeginString")
	}
	if beginField.Tag != TagBeginString {
		f.atFieldStart = false
		return nil, &FrameError{Err: fmt.Errorf("%w: expected BeginString(8), got tag %d", ErrParse, beginField.Tag)}
	}

	bodyLenField, err := f.readField(&out)
	if err != nil {
		f.atFieldStart = false
		return nil, terminalOrFrame(err, "BodyLength")
	}
	if bodyLenField.Tag != TagBodyLength {
		f.atFieldStart = false
		return nil, &FrameError{Err: fmt.Errorf("%w: expected BodyLength(9), got tag %d", ErrParse, bodyLenField.Tag)}
	}
	n, err := strconv.Atoi(bodyLenField.Value)
	if err != nil || n < 0 {
		f.atFieldStart = false
		return nil, &FrameError{Err: fmt.Errorf("%w: non-numeric BodyLength %q", ErrBodyLength, bodyLenField.Value)}
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(f.r, body); err != nil {
		f.atFieldStart = false
		return nil, terminalOrFrame(err, "body")
	}
	out.Write(body)
	f.atFieldStart = true

	checksumField, err := f.readField(&out)
	if err != nil {
		f.atFieldStart = false
		return nil, terminalOrFrame(err, "CheckSum")
	}
	if checksumField.Tag != TagCheckSum {
		f.atFieldStart = false
		return nil, &FrameError{Err: fmt.Errorf("%w: BodyLength did not land on CheckSum(10), got tag %d", ErrBodyLength, checksumField.Tag)}
	}

	raw := out.Bytes()
	if f.validateChecksum {
		sumRegion := raw[:len(raw)-len(fmt.Sprintf("10=%s\x01", checksumField.Value))]
		computed := checksum(sumRegion)
		given, err := strconv.Atoi(checksumField.Value)
		if err != nil {
			f.atFieldStart = true
			return nil, &FrameError{Err: fmt.Errorf("%w: non-numeric CheckSum %q", ErrChecksum, checksumField.Value)}
		}
		if computed != given {
			f.atFieldStart = true
			return nil, &FrameError{Err: fmt.Errorf("%w: computed %d, message says %d", ErrChecksum, computed, given)}
		}
	}

	f.atFieldStart = true
	return raw, nil
}

// terminalOrFrame classifies a read error: io.EOF / io.ErrUnexpectedEOF
// propagate as terminal (the connection ended mid-message), anything else
// becomes a recoverable FrameError tagged with the field being read.
func terminalOrFrame(err error, field string) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return err
	}
	return &FrameError{Err: fmt.Errorf("%w: reading %s: %s", ErrParse, field, err)}
}

// boundaryPattern is the byte sequence Detect looks for: SOH followed by
// the CheckSum tag prefix "10=".
var boundaryPattern = []byte{SOH, '1', '0', '='}

// DetectMessageBoundary scans buf for the first complete CheckSum trailer
// ("<SOH>10=XXX<SOH>") and reports the offset one past its end, for use
// when a fixed buffer (rather than a stream) is being scanned for a message
// boundary to hand off to a session (spec.md §4.1: "a separate detector ...
// locates <SOH>10= and consumes four bytes (XXX<SOH>) of checksum").
func DetectMessageBoundary(buf []byte) (end int, ok bool) {
	idx := bytes.Index(buf, boundaryPattern)
	if idx < 0 {
		return 0, false
	}
	end = idx + len(boundaryPattern) + 4 // "XXX" + trailing SOH
	if end > len(buf) {
		return 0, false
	}
	return end, true
}
