// Command encounterclient streams a WAV recording into a running encounter
// service and prints the transcript and evaluation report it gets back.
package main

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"flag"
	"io"
	"log"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

// WAV header is 44 bytes for standard PCM files
const wavHeaderSize = 44

// Stream audio in chunks to simulate real-time capture.
// At 16kHz 16-bit mono = 32000 bytes/second; 100ms chunks = 3200 bytes.
const chunkSize = 3200
const chunkIntervalMs = 100

type clientMessage struct {
	Type   string `json:"type"`
	CaseID int    `json:"caseId,omitempty"`
	Data   string `json:"data,omitempty"`
}

type transcriptEntry struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

type serverMessage struct {
	Type        string            `json:"type"`
	EncounterID string            `json:"encounterId,omitempty"`
	State       string            `json:"state,omitempty"`
	Remaining   int               `json:"remaining,omitempty"`
	Entries     []transcriptEntry `json:"entries,omitempty"`
	Report      json.RawMessage   `json:"report,omitempty"`
	Error       string            `json:"error,omitempty"`
}

func main() {
	audioFile := flag.String("audio", "testdata/sample-16khz.wav", "Path to WAV file (16kHz 16-bit mono)")
	serverURL := flag.String("server", "ws://localhost:8080/v1/encounter", "Encounter websocket URL")
	caseID := flag.Int("case", 1, "Patient case ID")
	flag.Parse()

	f, err := os.Open(*audioFile)
	if err != nil {
		log.Fatalf("Failed to open audio file: %v", err)
	}
	defer f.Close()

	header := make([]byte, wavHeaderSize)
	if _, err := io.ReadFull(f, header); err != nil {
		log.Fatalf("Failed to read WAV header: %v", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		log.Fatal("Not a valid WAV file")
	}

	audioFormat := binary.LittleEndian.Uint16(header[20:22])
	numChannels := binary.LittleEndian.Uint16(header[22:24])
	sampleRate := binary.LittleEndian.Uint32(header[24:28])
	bitsPerSample := binary.LittleEndian.Uint16(header[34:36])

	log.Printf("WAV file: format=%d channels=%d sampleRate=%d bitsPerSample=%d",
		audioFormat, numChannels, sampleRate, bitsPerSample)

	if audioFormat != 1 { // PCM
		log.Fatal("Only PCM format supported")
	}
	if sampleRate != 16000 {
		log.Printf("Warning: Sample rate is %d Hz, expected 16000 Hz", sampleRate)
	}

	ws, _, err := websocket.DefaultDialer.Dial(*serverURL, nil)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer ws.Close()

	log.Printf("Connected to %s", *serverURL)

	if err := ws.WriteJSON(clientMessage{Type: "start", CaseID: *caseID}); err != nil {
		log.Fatalf("Failed to send start: %v", err)
	}

	done := make(chan struct{})
	go readMessages(ws, done)

	chunk := make([]byte, chunkSize)
	var totalBytes int64
	var chunkNum int
	startTime := time.Now()

	for {
		n, err := f.Read(chunk)
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("Failed to read audio: %v", err)
		}

		chunkNum++
		totalBytes += int64(n)

		msg := clientMessage{
			Type: "audio",
			Data: base64.StdEncoding.EncodeToString(chunk[:n]),
		}
		if err := ws.WriteJSON(msg); err != nil {
			log.Fatalf("Failed to send frame: %v", err)
		}

		if chunkNum%10 == 0 {
			log.Printf("Sent chunk %d (%d bytes total)", chunkNum, totalBytes)
		}

		// Simulate real-time capture
		time.Sleep(chunkIntervalMs * time.Millisecond)
	}

	elapsed := time.Since(startTime)
	log.Printf("Finished streaming: %d chunks, %d bytes in %v", chunkNum, totalBytes, elapsed)

	log.Println("Ending encounter, waiting for evaluation report...")
	if err := ws.WriteJSON(clientMessage{Type: "end"}); err != nil {
		log.Fatalf("Failed to send end: %v", err)
	}

	<-done
}

func readMessages(ws *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		var msg serverMessage
		if err := ws.ReadJSON(&msg); err != nil {
			log.Printf("Connection closed: %v", err)
			return
		}
		switch msg.Type {
		case "session":
			log.Printf("Session %s: state=%s remaining=%ds", msg.EncounterID, msg.State, msg.Remaining)
		case "turn":
			for _, e := range msg.Entries {
				log.Printf("  [%s] %s", e.Speaker, e.Text)
			}
		case "audio":
			// Patient audio; nothing to play in a terminal client.
		case "report":
			log.Printf("Evaluation report:\n%s", msg.Report)
			return
		case "error":
			log.Printf("Server error: %s", msg.Error)
		}
	}
}
