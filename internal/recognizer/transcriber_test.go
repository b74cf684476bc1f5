package recognizer

import (
	"bytes"
	"context"
	"encoding/binary"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWhisperTranscriberPostsWAV(t *testing.T) {
	var (
		gotModel    string
		gotLanguage string
		gotHeader   []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotModel = r.FormValue("model")
		gotLanguage = r.FormValue("language")

		file, _, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		gotHeader = make([]byte, 12)
		_, err = file.Read(gotHeader)
		require.NoError(t, err)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":" nebula what time is it\n"}`))
	}))
	defer srv.Close()

	cfg := DefaultWhisperConfig()
	cfg.Endpoint = srv.URL
	cfg.ModelSize = "small"
	tr := NewWhisperTranscriber(cfg)

	text, err := tr.Transcribe(context.Background(), make([]byte, 320))
	require.NoError(t, err)
	assert.Equal(t, " nebula what time is it\n", text)
	assert.Equal(t, "small", gotModel)
	assert.Equal(t, "en", gotLanguage)
	assert.Equal(t, "RIFF", string(gotHeader[:4]))
	assert.Equal(t, "WAVE", string(gotHeader[8:12]))
}

func TestWhisperTranscriberServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := DefaultWhisperConfig()
	cfg.Endpoint = srv.URL
	tr := NewWhisperTranscriber(cfg)

	_, err := tr.Transcribe(context.Background(), make([]byte, 320))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestEncodeWAVHeader(t *testing.T) {
	pcm := make([]byte, 1000)
	wav := encodeWAV(pcm, 16000)

	require.Len(t, wav, 44+len(pcm))
	assert.Equal(t, "RIFF", string(wav[:4]))
	assert.Equal(t, "WAVE", string(wav[8:12]))
	assert.Equal(t, uint32(16000), binary.LittleEndian.Uint32(wav[24:28]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(wav[22:24]), "mono")
	assert.Equal(t, uint16(16), binary.LittleEndian.Uint16(wav[34:36]), "bit depth")
	assert.Equal(t, uint32(len(pcm)), binary.LittleEndian.Uint32(wav[40:44]))
}

var upgrader = websocket.Upgrader{}

// streamServer implements the streaming STT protocol: expects a start
// message, accumulates binary audio until flush, then replies.
func streamServer(t *testing.T, reply streamMessage, partialsFirst bool) (*httptest.Server, *atomic.Int64) {
	audioBytes := new(atomic.Int64)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if kind == websocket.BinaryMessage {
				audioBytes.Add(int64(len(data)))
				continue
			}
			if bytes.Contains(data, []byte("flush")) {
				break
			}
		}

		if partialsFirst {
			conn.WriteJSON(streamMessage{Type: "partial", Text: "neb"})
		}
		conn.WriteJSON(reply)
	}))
	return srv, audioBytes
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestStreamTranscriberReturnsFinalTranscript(t *testing.T) {
	srv, audioBytes := streamServer(t, streamMessage{Type: "transcript", Text: "nebula stop"}, true)
	defer srv.Close()

	cfg := DefaultStreamConfig()
	cfg.Endpoint = wsURL(srv)
	cfg.ChunkBytes = 256
	tr := NewStreamTranscriber(cfg)

	pcm := make([]byte, 1000)
	text, err := tr.Transcribe(context.Background(), pcm)
	require.NoError(t, err)
	assert.Equal(t, "nebula stop", text)
	assert.Equal(t, int64(len(pcm)), audioBytes.Load(), "all audio chunks must arrive")
}

func TestStreamTranscriberServerError(t *testing.T) {
	srv, _ := streamServer(t, streamMessage{Type: "error", Error: "decoder overloaded"}, false)
	defer srv.Close()

	cfg := DefaultStreamConfig()
	cfg.Endpoint = wsURL(srv)
	tr := NewStreamTranscriber(cfg)

	_, err := tr.Transcribe(context.Background(), make([]byte, 64))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoder overloaded")
}

func TestStreamTranscriberHonorsContext(t *testing.T) {
	// A server that never replies after flush.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	cfg := DefaultStreamConfig()
	cfg.Endpoint = wsURL(srv)
	tr := NewStreamTranscriber(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := tr.Transcribe(ctx, make([]byte, 64))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
