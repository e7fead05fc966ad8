package protocol

import (
	"encoding/binary"
	"errors"
)

var (
	ErrBadRecord    = errors.New("malformed message record")
	ErrFieldTooLong = errors.New("record field exceeds length prefix")
)

// Message record flags
const (
	recordFlagIsRelay              uint8 = 0x01
	recordFlagIsPrivate            uint8 = 0x02
	recordFlagHasOriginalSender    uint8 = 0x04
	recordFlagHasRecipientNickname uint8 = 0x08
	recordFlagHasSenderPeerID      uint8 = 0x10
	recordFlagHasMentions          uint8 = 0x20
	recordFlagHasChannel           uint8 = 0x40
	recordFlagIsEncrypted          uint8 = 0x80
)

// MessageRecord is the inner bit-packed record carried in the payload of a
// MESSAGE packet. String fields are u8 length-prefixed UTF-8; content is
// u16 length-prefixed and holds ciphertext when IsEncrypted is set.
type MessageRecord struct {
	IsRelay     bool
	IsPrivate   bool
	IsEncrypted bool

	Timestamp      uint64 // unix millis
	ID             string
	SenderNickname string
	Content        []byte

	OriginalSender    string // set when relayed on behalf of another sender
	RecipientNickname string
	SenderPeerID      string
	Mentions          []string
	Channel           string
}

// Encode serializes the record.
func (r *MessageRecord) Encode() ([]byte, error) {
	if len(r.ID) > 255 || len(r.SenderNickname) > 255 ||
		len(r.OriginalSender) > 255 || len(r.RecipientNickname) > 255 ||
		len(r.SenderPeerID) > 255 || len(r.Channel) > 255 || len(r.Mentions) > 255 {
		return nil, ErrFieldTooLong
	}
	if len(r.Content) > MaxPayloadSize {
		return nil, ErrFieldTooLong
	}
	for _, m := range r.Mentions {
		if len(m) > 255 {
			return nil, ErrFieldTooLong
		}
	}

	var flags uint8
	if r.IsRelay {
		flags |= recordFlagIsRelay
	}
	if r.IsPrivate {
		flags |= recordFlagIsPrivate
	}
	if r.OriginalSender != "" {
		flags |= recordFlagHasOriginalSender
	}
	if r.RecipientNickname != "" {
		flags |= recordFlagHasRecipientNickname
	}
	if r.SenderPeerID != "" {
		flags |= recordFlagHasSenderPeerID
	}
	if len(r.Mentions) > 0 {
		flags |= recordFlagHasMentions
	}
	if r.Channel != "" {
		flags |= recordFlagHasChannel
	}
	if r.IsEncrypted {
		flags |= recordFlagIsEncrypted
	}

	buf := make([]byte, 0, 1+8+1+len(r.ID)+1+len(r.SenderNickname)+2+len(r.Content)+64)
	buf = append(buf, flags)

	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], r.Timestamp)
	buf = append(buf, ts[:]...)

	buf = appendString8(buf, r.ID)
	buf = appendString8(buf, r.SenderNickname)

	var cl [2]byte
	binary.BigEndian.PutUint16(cl[:], uint16(len(r.Content)))
	buf = append(buf, cl[:]...)
	buf = append(buf, r.Content...)

	if r.OriginalSender != "" {
		buf = appendString8(buf, r.OriginalSender)
	}
	if r.RecipientNickname != "" {
		buf = appendString8(buf, r.RecipientNickname)
	}
	if r.SenderPeerID != "" {
		buf = appendString8(buf, r.SenderPeerID)
	}
	if len(r.Mentions) > 0 {
		buf = append(buf, byte(len(r.Mentions)))
		for _, m := range r.Mentions {
			buf = appendString8(buf, m)
		}
	}
	if r.Channel != "" {
		buf = appendString8(buf, r.Channel)
	}

	return buf, nil
}

// DecodeRecord walks the byte stream validating every length against the
// remaining bytes. Any under-run fails and the caller drops the packet.
func DecodeRecord(data []byte) (*MessageRecord, error) {
	d := recordReader{data: data}

	flags, err := d.byte()
	if err != nil {
		return nil, err
	}

	r := &MessageRecord{
		IsRelay:     flags&recordFlagIsRelay != 0,
		IsPrivate:   flags&recordFlagIsPrivate != 0,
		IsEncrypted: flags&recordFlagIsEncrypted != 0,
	}

	if r.Timestamp, err = d.uint64(); err != nil {
		return nil, err
	}
	if r.ID, err = d.string8(); err != nil {
		return nil, err
	}
	if r.SenderNickname, err = d.string8(); err != nil {
		return nil, err
	}
	if r.Content, err = d.bytes16(); err != nil {
		return nil, err
	}

	if flags&recordFlagHasOriginalSender != 0 {
		if r.OriginalSender, err = d.string8(); err != nil {
			return nil, err
		}
	}
	if flags&recordFlagHasRecipientNickname != 0 {
		if r.RecipientNickname, err = d.string8(); err != nil {
			return nil, err
		}
	}
	if flags&recordFlagHasSenderPeerID != 0 {
		if r.SenderPeerID, err = d.string8(); err != nil {
			return nil, err
		}
	}
	if flags&recordFlagHasMentions != 0 {
		count, err := d.byte()
		if err != nil {
			return nil, err
		}
		r.Mentions = make([]string, 0, count)
		for i := 0; i < int(count); i++ {
			m, err := d.string8()
			if err != nil {
				return nil, err
			}
			r.Mentions = append(r.Mentions, m)
		}
	}
	if flags&recordFlagHasChannel != 0 {
		if r.Channel, err = d.string8(); err != nil {
			return nil, err
		}
	}

	return r, nil
}

func appendString8(buf []byte, s string) []byte {
	buf = append(buf, byte(len(s)))
	return append(buf, s...)
}

// recordReader is a bounds-checked cursor over record bytes.
type recordReader struct {
	data   []byte
	offset int
}

func (d *recordReader) byte() (uint8, error) {
	if d.offset+1 > len(d.data) {
		return 0, ErrBadRecord
	}
	b := d.data[d.offset]
	d.offset++
	return b, nil
}

func (d *recordReader) uint64() (uint64, error) {
	if d.offset+8 > len(d.data) {
		return 0, ErrBadRecord
	}
	v := binary.BigEndian.Uint64(d.data[d.offset:])
	d.offset += 8
	return v, nil
}

func (d *recordReader) string8() (string, error) {
	n, err := d.byte()
	if err != nil {
		return "", err
	}
	if d.offset+int(n) > len(d.data) {
		return "", ErrBadRecord
	}
	s := string(d.data[d.offset : d.offset+int(n)])
	d.offset += int(n)
	return s, nil
}

func (d *recordReader) bytes16() ([]byte, error) {
	if d.offset+2 > len(d.data) {
		return nil, ErrBadRecord
	}
	n := int(binary.BigEndian.Uint16(d.data[d.offset:]))
	d.offset += 2
	if d.offset+n > len(d.data) {
		return nil, ErrBadRecord
	}
	b := make([]byte, n)
	copy(b, d.data[d.offset:d.offset+n])
	d.offset += n
	return b, nil
}
