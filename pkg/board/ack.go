package board

import "github.com/robotalks/aura.go/pkg/packet"

// AckRecord is the last acknowledgment received from the board.
type AckRecord struct {
	ID    packet.ID `json:"id"`
	SubID byte      `json:"subId"`
}

// Clear resets the record so a stale ACK can't satisfy the next wait.
func (a *AckRecord) Clear() {
	*a = AckRecord{}
}

// DecodeAck decodes an ACK payload of (id, sub id).
func DecodeAck(payload []byte) (AckRecord, error) {
	if err := checkSize(packet.Ack, payload, 2); err != nil {
		return AckRecord{}, err
	}
	return AckRecord{ID: packet.ID(payload[0]), SubID: payload[1]}, nil
}
