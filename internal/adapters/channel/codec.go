package channel

import (
	"encoding/json"
	"fmt"

	"github.com/dkeye/Rendezvous/internal/domain"
)

func Encode(m domain.Message) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

// Decode parses one frame. Frames that are not offer, answer or candidate
// fail with domain.ErrUnknownMessage.
func Decode(data []byte) (domain.Message, error) {
	var m domain.Message
	if err := json.Unmarshal(data, &m); err != nil {
		return domain.Message{}, fmt.Errorf("decode message: %w", err)
	}
	if err := m.Validate(); err != nil {
		return domain.Message{}, err
	}
	return m, nil
}
