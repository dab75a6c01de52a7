package logging

import (
	"encoding/json"
	"log"
	"time"
)

type Fields struct {
	Service      string `json:"service"`
	UserID       int64  `json:"user_id,omitempty"`
	OrderID      int64  `json:"order_id,omitempty"`
	RequestToken string `json:"request_token,omitempty"`
	TraceID      string `json:"trace_id,omitempty"`
	Step         string `json:"step,omitempty"`
	Status       string `json:"status,omitempty"`
	DurationMS   int64  `json:"duration_ms,omitempty"`
	Message      string `json:"message,omitempty"`
}

type entry struct {
	Fields
	Timestamp string `json:"timestamp"`
}

// Log writes fields as one JSON line through the standard logger.
func Log(fields Fields) {
	data, err := json.Marshal(entry{Fields: fields, Timestamp: time.Now().UTC().Format(time.RFC3339Nano)})
	if err != nil {
		log.Printf("{\"service\":%q,\"status\":\"log_error\",\"error\":%q}", fields.Service, err.Error())
		return
	}
	log.Print(string(data))
}
