package video

import "sort"

const maxBufferedTimestamps = 10

// assembler reassembles VP8 RTP payloads into complete frames, keyed by RTP
// timestamp, de-duplicating by sequence number and evicting the oldest
// incomplete frame once more than maxBufferedTimestamps are in flight.
type assembler struct {
	order   []uint32
	packets map[uint32]map[uint16][]byte
}

func newAssembler() *assembler {
	return &assembler{packets: make(map[uint32]map[uint16][]byte)}
}

// add buffers one packet's descriptor-stripped VP8 payload. When marker is
// set, the frame is complete: add returns the reassembled bytes and drops
// the buffer for that timestamp.
func (a *assembler) add(timestamp uint32, seq uint16, payload []byte, marker bool) []byte {
	bucket, ok := a.packets[timestamp]
	if !ok {
		bucket = make(map[uint16][]byte)
		a.packets[timestamp] = bucket
		a.order = append(a.order, timestamp)
	}
	if _, dup := bucket[seq]; !dup {
		bucket[seq] = payload
	}

	if marker {
		frame := a.assemble(timestamp)
		a.evict(timestamp)
		return frame
	}

	a.trim()
	return nil
}

func (a *assembler) assemble(timestamp uint32) []byte {
	bucket := a.packets[timestamp]
	if len(bucket) == 0 {
		return nil
	}

	seqs := make([]uint16, 0, len(bucket))
	for s := range bucket {
		seqs = append(seqs, s)
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })

	var frame []byte
	for _, s := range seqs {
		frame = append(frame, bucket[s]...)
	}
	return frame
}

func (a *assembler) evict(timestamp uint32) {
	delete(a.packets, timestamp)
	for i, ts := range a.order {
		if ts == timestamp {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
}

func (a *assembler) trim() {
	for len(a.order) > maxBufferedTimestamps {
		oldest := a.order[0]
		a.order = a.order[1:]
		delete(a.packets, oldest)
	}
}
