package handlers

import "github.com/go-playground/validator/v10"

// UpdateLocationRequest is the body of POST /api/location.
type UpdateLocationRequest struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

// NearbyRequest is the body of POST /api/users/nearby. RadiusMiles defaults
// to 1.0 when omitted.
type NearbyRequest struct {
	Latitude    float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude   float64 `json:"longitude" validate:"gte=-180,lte=180"`
	RadiusMiles float64 `json:"radius_miles"`
}

// SendMessageRequest is the body of POST /api/messages.
type SendMessageRequest struct {
	Content      string   `json:"content"`
	RecipientIDs []string `json:"recipient_ids" validate:"required,min=1,dive,required"`
	ImageData    string   `json:"image_data,omitempty"`
}

// Validator adapts go-playground/validator to echo's Validator interface.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates the request validator.
func NewValidator() *Validator {
	return &Validator{validate: validator.New()}
}

// Validate implements echo.Validator.
func (v *Validator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}
