package wled

import "context"

// RGB is a color triple as the firmware expects it in a segment's col array.
type RGB [3]int

// Black is the unused third color slot.
var Black = RGB{0, 0, 0}

// Segment is one independently configurable region of the strip.
type Segment struct {
	FX  int    `json:"fx"`
	SX  int    `json:"sx"`
	IX  int    `json:"ix"`
	Col [3]RGB `json:"col"`
}

// State is the body POSTed to /json/state.
type State struct {
	On  bool      `json:"on"`
	Bri int       `json:"bri"`
	Seg []Segment `json:"seg"`
}

// Sender delivers a State to a device.
type Sender interface {
	Send(ctx context.Context, st State) error
}
