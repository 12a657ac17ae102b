package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/projectpartnersllc/ScriptBuilder.AI/pkg/provider/llm"
)

func dialChat(t *testing.T, env *testEnv, session string) (*websocket.Conn, context.Context) {
	t.Helper()
	srv := httptest.NewServer(env.server.Handler())
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat/" + session
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn, ctx
}

func readFrames(t *testing.T, ctx context.Context, conn *websocket.Conn) []wsFrame {
	t.Helper()
	var frames []wsFrame
	for {
		var f wsFrame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			t.Fatalf("read: %v (frames so far %+v)", err, frames)
		}
		frames = append(frames, f)
		if f.Type == frameDone || f.Type == frameError {
			return frames
		}
	}
}

func TestChatWS_StreamsReply(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.llm.StreamChunks = []llm.Chunk{{Text: "Hello"}, {Text: " there"}, {FinishReason: "stop"}}
	conn, ctx := dialChat(t, env, "expert3")

	if err := wsjson.Write(ctx, conn, map[string]string{"user_message": "Draft the requirements."}); err != nil {
		t.Fatalf("write: %v", err)
	}
	frames := readFrames(t, ctx, conn)

	want := []wsFrame{
		{Type: frameChunk, Text: "Hello"},
		{Type: frameChunk, Text: " there"},
		{Type: frameDone, Message: "Hello there"},
	}
	if len(frames) != len(want) {
		t.Fatalf("frames = %+v, want %+v", frames, want)
	}
	for i := range want {
		if frames[i] != want[i] {
			t.Errorf("frame[%d] = %+v, want %+v", i, frames[i], want[i])
		}
	}
	if n := env.sessions.Len("expert3"); n != 2 {
		t.Errorf("log length = %d, want 2", n)
	}
}

func TestChatWS_ErrorKeepsConnectionOpen(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.llm.StreamChunks = []llm.Chunk{{Text: "ok"}}
	conn, ctx := dialChat(t, env, "expert1")

	if err := wsjson.Write(ctx, conn, map[string]string{"user_message": "  "}); err != nil {
		t.Fatalf("write: %v", err)
	}
	frames := readFrames(t, ctx, conn)
	if last := frames[len(frames)-1]; last.Type != frameError || last.Detail != "user_message must not be empty" {
		t.Fatalf("frame = %+v", last)
	}

	if err := wsjson.Write(ctx, conn, map[string]string{"user_message": "Now a real question."}); err != nil {
		t.Fatalf("write: %v", err)
	}
	frames = readFrames(t, ctx, conn)
	if last := frames[len(frames)-1]; last.Type != frameDone || last.Message != "ok" {
		t.Errorf("frame = %+v", last)
	}
}

func TestChatWS_StreamFailure(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.llm.StreamChunks = []llm.Chunk{{Text: "partial"}, {Text: "upstream reset", FinishReason: llm.FinishReasonError}}
	conn, ctx := dialChat(t, env, "expert1")

	if err := wsjson.Write(ctx, conn, map[string]string{"user_message": "hi"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	frames := readFrames(t, ctx, conn)
	last := frames[len(frames)-1]
	if last.Type != frameError || !strings.HasPrefix(last.Detail, "Chat processing error: ") {
		t.Errorf("frame = %+v", last)
	}
	if n := env.sessions.Len("expert1"); n != 0 {
		t.Errorf("log length = %d, want 0", n)
	}
}

func TestChatWS_UnknownSession(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/ws/chat/expert0", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 before upgrade", rec.Code)
	}
}
