package utils

import "manobal/src-server/model"

// Samples for the metric package. Sends never block; a sample is dropped when
// the buffer is full.
type Metric struct {
	DatabaseRead       chan float64
	DatabaseWrite      chan float64
	DiscordSendMessage chan float64
	TwilioSendMessage  chan float64

	CheckInTransition chan model.CheckInState
	SweepWarnings     chan int
	SweepExpirations  chan int
	MessageRoute      chan string
}

func NewMetric() *Metric {
	return &Metric{
		DatabaseRead:       make(chan float64, 64),
		DatabaseWrite:      make(chan float64, 64),
		DiscordSendMessage: make(chan float64, 64),
		TwilioSendMessage:  make(chan float64, 64),

		CheckInTransition: make(chan model.CheckInState, 64),
		SweepWarnings:     make(chan int, 8),
		SweepExpirations:  make(chan int, 8),
		MessageRoute:      make(chan string, 64),
	}
}

func Observe[T any](ch chan T, v T) {
	if ch == nil {
		return
	}
	select {
	case ch <- v:
	default:
	}
}
