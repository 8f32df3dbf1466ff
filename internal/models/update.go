package models

import (
	"github.com/go-playground/validator/v10"
)

// UpdateEntry is one applied point change. Teacher is nil for
// administrator actions. Timestamp is epoch millis at apply time.
type UpdateEntry struct {
	House     string  `json:"house" validate:"required"`
	Delta     int     `json:"delta" validate:"required"`
	Reason    string  `json:"reason" validate:"required"`
	Teacher   *string `json:"teacher"`
	Timestamp int64   `json:"timestamp"`
}

// AdjustmentRequest is the wire shape of a proposed point change.
type AdjustmentRequest struct {
	House  string `json:"house" validate:"required"`
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

func (e *UpdateEntry) Validate() error {
	validate := validator.New()
	return validate.Struct(e)
}
