package audio

import (
	"encoding/binary"
	"fmt"
	"os"
)

const (
	wavPCMFormat     = 1
	wavBytesPerSample = 2 // PCM16
	wavHeaderSize     = 44
)

// WAVWriter streams little-endian PCM16 mono audio straight to a RIFF/WAV
// file, patching the RIFF and data chunk sizes on Close rather than
// buffering the whole session in memory first.
type WAVWriter struct {
	f          *os.File
	sampleRate int
	dataBytes  uint32
}

// NewWAVWriter creates path and writes a placeholder 44-byte PCM16 mono
// header, to be patched in on Close.
func NewWAVWriter(path string, sampleRate int) (*WAVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create wav file: %w", err)
	}

	w := &WAVWriter{f: f, sampleRate: sampleRate}
	if err := w.writeHeader(0); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

func (w *WAVWriter) writeHeader(dataBytes uint32) error {
	byteRate := uint32(w.sampleRate * 1 * wavBytesPerSample)

	if _, err := w.f.WriteAt([]byte("RIFF"), 0); err != nil {
		return err
	}
	if err := writeUint32At(w.f, 4, 36+dataBytes); err != nil {
		return err
	}
	if _, err := w.f.WriteAt([]byte("WAVE"), 8); err != nil {
		return err
	}
	if _, err := w.f.WriteAt([]byte("fmt "), 12); err != nil {
		return err
	}
	if err := writeUint32At(w.f, 16, 16); err != nil {
		return err
	}
	if err := writeUint16At(w.f, 20, wavPCMFormat); err != nil {
		return err
	}
	if err := writeUint16At(w.f, 22, 1); err != nil { // mono
		return err
	}
	if err := writeUint32At(w.f, 24, uint32(w.sampleRate)); err != nil {
		return err
	}
	if err := writeUint32At(w.f, 28, byteRate); err != nil {
		return err
	}
	if err := writeUint16At(w.f, 32, uint16(wavBytesPerSample)); err != nil {
		return err
	}
	if err := writeUint16At(w.f, 34, 16); err != nil { // bits per sample
		return err
	}
	if _, err := w.f.WriteAt([]byte("data"), 36); err != nil {
		return err
	}
	return writeUint32At(w.f, 40, dataBytes)
}

// WriteFrames appends raw PCM16 bytes to the stream.
func (w *WAVWriter) WriteFrames(pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}
	if _, err := w.f.WriteAt(pcm, int64(wavHeaderSize+w.dataBytes)); err != nil {
		return fmt.Errorf("write wav frames: %w", err)
	}
	w.dataBytes += uint32(len(pcm))
	return nil
}

// Close patches the RIFF and data chunk sizes with the final byte count and
// closes the underlying file.
func (w *WAVWriter) Close() error {
	if err := w.writeHeader(w.dataBytes); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}

func writeUint32At(f *os.File, offset int64, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	_, err := f.WriteAt(b[:], offset)
	return err
}

func writeUint16At(f *os.File, offset int64, v uint16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	_, err := f.WriteAt(b[:], offset)
	return err
}
