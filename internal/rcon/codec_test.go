package rcon

import (
	"bytes"
	"testing"
)

func TestCodecRoundTrip(t *testing.T) {
	cases := []struct {
		typ   int32
		id    int16
		count uint16
		body  string
	}{
		{FrameTypeAuth, IDEnd, 1, "hunter2"},
		{FrameTypeExecCommand, IDMid, 42, "ListPlayers"},
		{FrameTypeExecCommand, IDEnd, 42, ""},
		{FrameTypeAuthResponse, IDAuthFailed, 1, ""},
		{FrameTypeChatValue, 0, 0, "[Online IDs:EOS:deadbeef steam:123] Name : hi"},
	}

	for _, c := range cases {
		encoded := Encode(c.typ, c.id, c.count, c.body)
		result := Decode(encoded)
		if result.Kind != DecodeOK {
			t.Fatalf("decode(encode(%v)) kind = %v, want OK", c, result.Kind)
		}
		if result.BytesConsumed != len(encoded) {
			t.Fatalf("bytes_consumed = %d, want %d", result.BytesConsumed, len(encoded))
		}
		if result.Frame.Type != c.typ || result.Frame.ID != c.id || result.Frame.Count != c.count || result.Frame.Body != c.body {
			t.Fatalf("decoded frame = %+v, want %+v", result.Frame, c)
		}
	}
}

func TestDecoderFraming(t *testing.T) {
	var buf bytes.Buffer
	frames := []Frame{
		{Type: FrameTypeAuth, ID: IDEnd, Count: 1, Body: "pw"},
		{Type: FrameTypeExecCommand, ID: IDMid, Count: 2, Body: "ListSquads"},
		{Type: FrameTypeExecCommand, ID: IDEnd, Count: 2, Body: ""},
	}
	for _, f := range frames {
		buf.Write(Encode(f.Type, f.ID, f.Count, f.Body))
	}

	remaining := buf.Bytes()
	for i, want := range frames {
		result := Decode(remaining)
		if result.Kind != DecodeOK {
			t.Fatalf("frame %d: kind = %v, want OK", i, result.Kind)
		}
		if result.Frame != want {
			t.Fatalf("frame %d = %+v, want %+v", i, result.Frame, want)
		}
		remaining = remaining[result.BytesConsumed:]
	}
	if len(remaining) != 0 {
		t.Fatalf("remaining = %d bytes, want 0", len(remaining))
	}
}

func TestIncompleteDetection(t *testing.T) {
	full := Encode(FrameTypeExecCommand, IDMid, 7, "ListPlayers")
	for n := 1; n < len(full); n++ {
		result := Decode(full[:n])
		if result.Kind != DecodeIncomplete {
			t.Fatalf("prefix len %d: kind = %v, want Incomplete", n, result.Kind)
		}
		if result.Need < 1 {
			t.Fatalf("prefix len %d: need = %d, want >= 1", n, result.Need)
		}
	}
}

func TestBrokenStubSkippedExactly21Bytes(t *testing.T) {
	stub := make([]byte, 21)
	// size field = 10
	stub[0], stub[1], stub[2], stub[3] = 10, 0, 0, 0
	// body-relative offset 0..7 (absolute 12..19): 00 00 00 01 00 00 00 00
	stub[12], stub[13], stub[14], stub[15] = 0, 0, 0, 1
	stub[16], stub[17], stub[18], stub[19] = 0, 0, 0, 0

	real := Encode(FrameTypeResponseValue, IDEnd, 5, "ok")
	buf := append(stub, real...)

	result := Decode(buf)
	if result.Kind != DecodeBrokenStub {
		t.Fatalf("kind = %v, want BrokenStub", result.Kind)
	}
	if result.BytesConsumed != 21 {
		t.Fatalf("consumed = %d, want 21", result.BytesConsumed)
	}

	next := Decode(buf[result.BytesConsumed:])
	if next.Kind != DecodeOK || next.Frame.Body != "ok" {
		t.Fatalf("next frame = %+v, want body 'ok'", next)
	}
}

func TestSizeExceededMalformed(t *testing.T) {
	buf := make([]byte, 4)
	// declare an absurd body size
	buf[0], buf[1], buf[2], buf[3] = 0, 0, 0, 1 // size = 0x01000000
	result := Decode(buf)
	if result.Kind != DecodeMalformed || result.Code != MalformedSizeExceeded {
		t.Fatalf("result = %+v, want Malformed/SizeExceeded", result)
	}
}

func TestEncodeCommandProducesMidThenEnd(t *testing.T) {
	buf := EncodeCommand(9, "ShowCurrentMap")

	first := Decode(buf)
	if first.Kind != DecodeOK || first.Frame.ID != IDMid || first.Frame.Body != "ShowCurrentMap" {
		t.Fatalf("first frame = %+v", first)
	}
	second := Decode(buf[first.BytesConsumed:])
	if second.Kind != DecodeOK || second.Frame.ID != IDEnd || second.Frame.Body != "" {
		t.Fatalf("second frame = %+v", second)
	}
}
