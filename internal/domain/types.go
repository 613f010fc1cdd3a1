package domain

import "time"

// LocationPoint is the latest known position for a user. A new update for the
// same user supersedes the old point; the index never holds more than one.
type LocationPoint struct {
	UserID    string    `json:"user_id" bson:"user_id"`
	Latitude  float64   `json:"latitude" bson:"latitude"`
	Longitude float64   `json:"longitude" bson:"longitude"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// OutboundMessage is a message as handed to the fan-out layer. It is immutable
// once dispatched; durable storage is the external store's concern.
type OutboundMessage struct {
	ID           string    `json:"id" bson:"id"`
	SenderID     string    `json:"sender_id" bson:"sender_id"`
	RecipientIDs []string  `json:"recipient_ids" bson:"recipient_ids"`
	Content      string    `json:"content" bson:"content"`
	ImageData    string    `json:"image_data,omitempty" bson:"image_data,omitempty"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
}

// NearbyUser is a single proximity query result.
type NearbyUser struct {
	UserID        string    `json:"id"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	DistanceMiles float64   `json:"distance_miles"`
	LastActive    time.Time `json:"last_active"`
}
