// ABOUTME: chanmix play protocol message type definitions
// ABOUTME: Defines structs for every message exchanged with the play server
package protocol

import (
	"encoding/json"
	"fmt"
)

// Protocol version spoken by this build
const Version = 1

// Message types
const (
	TypeClientHello = "client/hello"
	TypeServerHello = "server/hello"
	TypePlay        = "mixer/play"
	TypeAck         = "mixer/ack"
	TypeError       = "mixer/error"
	TypeDone        = "mixer/done"
	TypeStatus      = "mixer/status"
)

// Error codes carried by mixer/error
const (
	CodeInvalidArgument   = "invalid_argument"
	CodeResourceExhausted = "resource_exhausted"
	CodeClosed            = "closed"
	CodeDuplicateClient   = "duplicate_client_id"
	CodeBadRequest        = "bad_request"
	CodeInternal          = "internal"
)

// Message is the top-level wrapper for all protocol messages
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// DecodePayload converts a generic payload into v
func DecodePayload(payload interface{}, v interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	return nil
}

// ClientHello is sent by clients to initiate the handshake
type ClientHello struct {
	ClientID   string      `json:"client_id"`
	Name       string      `json:"name"`
	Version    int         `json:"version"`
	DeviceInfo *DeviceInfo `json:"device_info,omitempty"`
}

// DeviceInfo contains device identification
type DeviceInfo struct {
	ProductName     string `json:"product_name"`
	Manufacturer    string `json:"manufacturer"`
	SoftwareVersion string `json:"software_version"`
}

// MixerSpec describes the opened output device
type MixerSpec struct {
	AudioRate             int    `json:"audio_rate"`
	AudioFormat           int    `json:"audio_format"`
	AudioChannels         string `json:"audio_channels"`
	NumberOfAudioChannels int    `json:"number_of_audio_channels"`
}

// ServerHello is the server's response to client/hello
type ServerHello struct {
	ServerID   string     `json:"server_id"`
	Name       string     `json:"name"`
	Version    int        `json:"version"`
	DeviceInfo DeviceInfo `json:"device_info"`
	Spec       MixerSpec  `json:"spec"`
}

// Play asks the server to play a file on a free channel
type Play struct {
	RequestID string `json:"request_id"`
	File      string `json:"file"`
}

// Ack confirms a play request was accepted
type Ack struct {
	RequestID string `json:"request_id"`
	File      string `json:"file"`
}

// Error rejects a request
type Error struct {
	RequestID string `json:"request_id,omitempty"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// Done reports that an accepted request finished
type Done struct {
	RequestID string `json:"request_id"`
	File      string `json:"file"`
	Channel   int    `json:"channel"`
	Error     string `json:"error,omitempty"`
}

// ChannelInfo describes one busy channel
type ChannelInfo struct {
	Channel int    `json:"channel"`
	File    string `json:"file"`
	Since   int64  `json:"since_ms"`
}

// Status reports mixer occupancy
type Status struct {
	Size       int           `json:"size"`
	Free       int           `json:"free"`
	Busy       int           `json:"busy"`
	Dispatcher string        `json:"dispatcher"`
	Policy     string        `json:"policy"`
	Playing    []ChannelInfo `json:"playing"`
}
