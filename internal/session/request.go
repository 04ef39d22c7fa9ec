package session

import (
	"encoding/json"
	"fmt"
)

type subscribeSymbol struct {
	Symbol string `json:"symbol"`
}

type subscribeRequest struct {
	Request struct {
		StreamingType string `json:"streaming_type"`
		RequestType   string `json:"request_type"`
		Data          struct {
			Symbols []subscribeSymbol `json:"symbols"`
		} `json:"data"`
	} `json:"request"`
}

// SubscribeMessage renders the subscription request; the feed expects a
// trailing newline.
func SubscribeMessage(streamingType string, symbols []string) ([]byte, error) {
	var req subscribeRequest
	req.Request.StreamingType = streamingType
	req.Request.RequestType = "subscribe"
	req.Request.Data.Symbols = make([]subscribeSymbol, len(symbols))
	for i, s := range symbols {
		req.Request.Data.Symbols[i] = subscribeSymbol{Symbol: s}
	}
	b, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("session: marshal subscribe: %w", err)
	}
	return append(b, '\n'), nil
}
