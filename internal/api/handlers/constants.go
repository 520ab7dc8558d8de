package handlers

import "time"

const (
	// Websocket keepalive
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeTimeout = 10 * time.Second

	maxDescriptionLength = 500
)
