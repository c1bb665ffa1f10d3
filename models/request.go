package models

// TriggerRequest is the payload for POST /automate.
type TriggerRequest struct {
	// Run must be true for a worker to be spawned. Absent means false.
	Run bool `json:"run"`

	// Item overrides the product name the worker looks up.
	Item string `json:"item,omitempty" binding:"omitempty,max=200"`

	// Timeout is the worker deadline in seconds. Clamped to the configured max.
	Timeout int `json:"timeout,omitempty" binding:"omitempty,min=1"`
}
