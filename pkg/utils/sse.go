package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

// SSEDone is the payload of the terminal frame.
const SSEDone = "[DONE]"

// SetupSSEHeaders 设置Server-Sent Events响应头
func SetupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// WriteSSEData 以 "data: <json>\n\n" 帧写出 payload 并立即 flush
func WriteSSEData(w http.ResponseWriter, flusher http.Flusher, payload interface{}) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return fmt.Errorf("marshal sse payload: %w", err)
	}
	return writeFrame(w, flusher, bytes.TrimRight(buf.Bytes(), "\n"))
}

// WriteSSEDone 写出终止帧 "data: [DONE]\n\n"
func WriteSSEDone(w http.ResponseWriter, flusher http.Flusher) error {
	return writeFrame(w, flusher, []byte(SSEDone))
}

func writeFrame(w http.ResponseWriter, flusher http.Flusher, data []byte) error {
	frame := make([]byte, 0, len(data)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, data...)
	frame = append(frame, "\n\n"...)
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("write sse frame: %w", err)
	}
	flusher.Flush()
	return nil
}
