package websocket

import (
	"bytes"
	"testing"
)

func TestDecodeInboundSttAudio(t *testing.T) {
	// "AAEC" is base64 for 0x00 0x01 0x02.
	event, err := DecodeInbound([]byte(`{"type":"stt-audio","payload":{"audio":"AAEC"}}`))
	if err != nil {
		t.Fatalf("DecodeInbound failed: %v", err)
	}
	audio, ok := event.(SttAudioEvent)
	if !ok {
		t.Fatalf("expected SttAudioEvent, got %T", event)
	}
	if !bytes.Equal(audio.Audio, []byte{0x00, 0x01, 0x02}) {
		t.Errorf("expected decoded audio bytes 00 01 02, got %v", audio.Audio)
	}
}

func TestDecodeInboundSendFriendRequest(t *testing.T) {
	event, err := DecodeInbound([]byte(`{"type":"sendFriendRequest","payload":{"toUserId":"bob"}}`))
	if err != nil {
		t.Fatalf("DecodeInbound failed: %v", err)
	}
	req, ok := event.(SendFriendRequestEvent)
	if !ok {
		t.Fatalf("expected SendFriendRequestEvent, got %T", event)
	}
	if req.ToUserID != "bob" {
		t.Errorf("expected toUserId bob, got %q", req.ToUserID)
	}
}

func TestDecodeInboundLegacyTopLevelFields(t *testing.T) {
	event, err := DecodeInbound([]byte(`{"type":"sendMessage","toUserId":"bob","content":"hi"}`))
	if err != nil {
		t.Fatalf("DecodeInbound failed: %v", err)
	}
	msg, ok := event.(SendMessageEvent)
	if !ok {
		t.Fatalf("expected SendMessageEvent, got %T", event)
	}
	if msg.ToUserID != "bob" || msg.Content != "hi" {
		t.Errorf("legacy top-level fields must decode, got %+v", msg)
	}
}

func TestDecodeInboundUnknownTypeRejected(t *testing.T) {
	if _, err := DecodeInbound([]byte(`{"type":"teleport"}`)); err == nil {
		t.Error("expected error for unknown event type")
	}
}
