package speech

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
)

// 火山引擎流式语音的二进制帧：4 字节头，可选序号与事件字段，随后是
// 4 字节大端长度和负载。

const protocolVersion = 0b0001

type messageType uint8

const (
	msgFullClientRequest  messageType = 0b0001
	msgFullServerResponse messageType = 0b1001
	msgAudioOnlyResponse  messageType = 0b1011
	msgError              messageType = 0b1111
)

type messageFlags uint8

const (
	flagNoSequence       messageFlags = 0b0000
	flagPositiveSequence messageFlags = 0b0001
	flagLastNoSequence   messageFlags = 0b0010
	flagNegativeSequence messageFlags = 0b0011
	flagWithEvent        messageFlags = 0b0100
)

type serialization uint8

const (
	serializationNone serialization = 0b0000
	serializationJSON serialization = 0b0001
)

type compression uint8

const (
	compressionNone compression = 0b0000
	compressionGzip compression = 0b0001
)

type eventType int32

const (
	eventConnectionStarted  eventType = 50
	eventConnectionFailed   eventType = 51
	eventConnectionFinished eventType = 52
	eventSessionFinished    eventType = 152
	eventSessionFailed      eventType = 153
)

// frame 是一条解码后的消息。
type frame struct {
	Type          messageType
	Flags         messageFlags
	Serialization serialization
	Compression   compression
	Sequence      int32
	Event         eventType
	SessionID     string
	ConnectID     string
	ErrorCode     uint32
	Payload       []byte
}

func (f frame) hasSequence() bool {
	switch f.Flags & 0b0011 {
	case flagPositiveSequence, flagNegativeSequence:
		return true
	}
	return false
}

func (f frame) hasEvent() bool {
	return f.Flags&flagWithEvent == flagWithEvent
}

// isLast 表示服务端已发送最后一包。
func (f frame) isLast() bool {
	switch f.Flags & 0b0011 {
	case flagLastNoSequence, flagNegativeSequence:
		return true
	}
	return f.hasEvent() && f.Event == eventSessionFinished
}

func eventCarriesSessionID(e eventType) bool {
	return e >= 100
}

func eventCarriesConnectID(e eventType) bool {
	switch e {
	case eventConnectionStarted, eventConnectionFailed, eventConnectionFinished:
		return true
	}
	return false
}

// encodeFrame 按协议布局写出一帧。
func encodeFrame(f frame) []byte {
	var buf bytes.Buffer
	buf.Write([]byte{
		protocolVersion<<4 | 0b0001,
		uint8(f.Type)<<4 | uint8(f.Flags),
		uint8(f.Serialization)<<4 | uint8(f.Compression),
		0x00,
	})

	putUint32 := func(v uint32) {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], v)
		buf.Write(b[:])
	}
	putString := func(s string) {
		putUint32(uint32(len(s)))
		buf.WriteString(s)
	}

	if f.hasSequence() {
		putUint32(uint32(f.Sequence))
	}
	if f.hasEvent() {
		putUint32(uint32(f.Event))
		if eventCarriesSessionID(f.Event) {
			putString(f.SessionID)
		}
		if eventCarriesConnectID(f.Event) {
			putString(f.ConnectID)
		}
	}
	if f.Type == msgError {
		putUint32(f.ErrorCode)
	}
	putUint32(uint32(len(f.Payload)))
	buf.Write(f.Payload)

	return buf.Bytes()
}

// decodeFrame 解析一帧。
func decodeFrame(data []byte) (frame, error) {
	var f frame
	if len(data) < 4 {
		return f, fmt.Errorf("frame too short: %d bytes", len(data))
	}
	if version := data[0] >> 4; version != protocolVersion {
		return f, fmt.Errorf("unsupported protocol version: %d", version)
	}

	headerSize := int(data[0]&0x0F) * 4
	if headerSize < 4 || len(data) < headerSize {
		return f, fmt.Errorf("invalid header size: %d", headerSize)
	}

	f.Type = messageType(data[1] >> 4)
	f.Flags = messageFlags(data[1] & 0x0F)
	f.Serialization = serialization(data[2] >> 4)
	f.Compression = compression(data[2] & 0x0F)

	r := bytes.NewReader(data[headerSize:])
	readUint32 := func(field string) (uint32, error) {
		var v uint32
		if err := binary.Read(r, binary.BigEndian, &v); err != nil {
			return 0, fmt.Errorf("failed to read %s: %w", field, err)
		}
		return v, nil
	}
	readString := func(field string) (string, error) {
		size, err := readUint32(field + " size")
		if err != nil {
			return "", err
		}
		if int64(size) > int64(r.Len()) {
			return "", fmt.Errorf("%s size %d exceeds frame", field, size)
		}
		b := make([]byte, size)
		if _, err := io.ReadFull(r, b); err != nil {
			return "", fmt.Errorf("failed to read %s: %w", field, err)
		}
		return string(b), nil
	}

	if f.hasSequence() {
		seq, err := readUint32("sequence")
		if err != nil {
			return f, err
		}
		f.Sequence = int32(seq)
	}

	if f.hasEvent() {
		event, err := readUint32("event")
		if err != nil {
			return f, err
		}
		f.Event = eventType(int32(event))
		if eventCarriesSessionID(f.Event) {
			if f.SessionID, err = readString("session id"); err != nil {
				return f, err
			}
		}
		if eventCarriesConnectID(f.Event) {
			if f.ConnectID, err = readString("connect id"); err != nil {
				return f, err
			}
		}
	}

	if f.Type == msgError {
		code, err := readUint32("error code")
		if err != nil {
			return f, err
		}
		f.ErrorCode = code
	}

	size, err := readUint32("payload size")
	if err != nil {
		return f, err
	}
	if int64(size) > int64(r.Len()) {
		return f, fmt.Errorf("payload size %d exceeds frame", size)
	}
	f.Payload = make([]byte, size)
	if _, err := io.ReadFull(r, f.Payload); err != nil {
		return f, fmt.Errorf("failed to read payload: %w", err)
	}

	if f.Compression == compressionGzip && len(f.Payload) > 0 {
		if f.Payload, err = gunzip(f.Payload); err != nil {
			return f, err
		}
	}
	return f, nil
}

func gunzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip reader creation failed: %w", err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gzip read failed: %w", err)
	}
	return out, nil
}
