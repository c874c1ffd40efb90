package models

// -----------------------------------------------------------------------------
// WebSocket messages
// -----------------------------------------------------------------------------

const MessageTypeStockUpdate = "stock-update"

type MStockUpdateMessage struct {
	Type string  `json:"type"`
	Data *MQuote `json:"data"`
}

func NewStockUpdate(q *MQuote) MStockUpdateMessage {
	return MStockUpdateMessage{Type: MessageTypeStockUpdate, Data: q}
}

// MClientCommand is sent by clients; only "subscribe" is understood.
type MClientCommand struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
}
