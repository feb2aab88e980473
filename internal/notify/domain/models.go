package domain

import "time"

// Recipient is a user record from the directory. Only the token pruner
// changes Tokens.
type Recipient struct {
	UID       string   `json:"uid"`
	Role      string   `json:"role"`
	VehicleID string   `json:"vehicleId,omitempty"`
	Tokens    []string `json:"tokens"`
}

// Event asks the relay to announce that a vehicle went live.
type Event struct {
	VehicleID    string    `json:"vehicleId" validate:"notblank"`
	DriverLabel  string    `json:"driverLabel"`
	InitiatedBy  string    `json:"initiatedBy,omitempty"`
	ExcludeToken string    `json:"excludeToken,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// DirectRequest sends one message to every token of a single user.
type DirectRequest struct {
	RecipientUID string            `json:"recipientUid" validate:"notblank"`
	Title        string            `json:"title"`
	Body         string            `json:"body"`
	Data         map[string]string `json:"data,omitempty"`
}

// Message is the payload handed to the gateway.
type Message struct {
	Title   string
	Body    string
	Data    map[string]string
	Channel string
}

type DeliveryStatus string

const (
	StatusDelivered DeliveryStatus = "delivered"
	StatusTransient DeliveryStatus = "transient"
	StatusInvalid   DeliveryStatus = "invalid"
)

// DeliveryResult is the gateway's verdict for one token.
type DeliveryResult struct {
	Token  string
	Status DeliveryStatus
	Err    error
}

// Report summarizes one relay call.
type Report struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Pruned    int `json:"prunedCount"`
}

const (
	MessageTypeBusStart = "BUS_START"
	MessageTypeDirect   = "DIRECT"
)
