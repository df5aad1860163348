package session

import "encoding/json"

// pingMatchSubstring is the literal keepalive marker. Detection is a raw
// substring match, not a JSON parse: whitespace and other fields around the
// marker do not matter, but the marker itself must appear byte for byte,
// with no space after the colon.
const pingMatchSubstring = `"operation":"ping"`

type outboundFrame struct {
	ReceiverID string      `json:"receiver_id"`
	Data       interface{} `json:"data"`
}

func buildFrame(receiverID string, data interface{}) ([]byte, error) {
	return json.Marshal(outboundFrame{ReceiverID: receiverID, Data: data})
}

func buildPongFrame(hostIdentifier string) ([]byte, error) {
	return buildFrame(hostIdentifier, map[string]string{"operation": "pong"})
}

type monitorConfig struct {
	TipoOperacao string `json:"tipo_operacao"`
	GpaCode      string `json:"gpa_code"`
}

func buildMonitorFrame(monitorIdentifier, clientIdentifier string, status Status) ([]byte, error) {
	return buildFrame(monitorIdentifier, map[string]interface{}{
		"status": status,
		"config": monitorConfig{TipoOperacao: "monitor", GpaCode: clientIdentifier},
	})
}
