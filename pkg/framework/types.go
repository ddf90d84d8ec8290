package framework

import (
	"context"
	"time"
)

// Named is implemented by components with a name for logs.
type Named interface {
	Name() string
}

// Runnable is a background component run until its context is done.
type Runnable interface {
	Run(context.Context) error
}

// Message is exchanged between components through the loop, e.g.
// commands from the ground station or actuator outputs.
type Message interface {
	// NewMessage creates an empty message of the same type.
	NewMessage() Message
}

// Controller runs once per tick at its priority level.
type Controller interface {
	Control(ControlContext) error
}

// ControlFunc is the func form of Controller.
type ControlFunc func(ControlContext) error

// Control implements Controller.
func (f ControlFunc) Control(ctx ControlContext) error {
	return f(ctx)
}

// ControlContext is the view of the current tick given to controllers.
type ControlContext interface {
	// Context is canceled when the loop stops.
	Context() context.Context
	// Time is when the tick started.
	Time() time.Time
	// Tick counts iterations from 1.
	Tick() uint64
	// PriorityLevel is the level currently running.
	PriorityLevel() int
	// Messages holds messages posted before this tick started.
	Messages() MessageStore

	LoopControl
}

// LoopControl is usable from any goroutine.
type LoopControl interface {
	// PostMessage queues a message for the next tick.
	PostMessage(Message)
	// PostRunAt installs one-shot controllers run after the regular
	// controllers of a level.
	PostRunAt(priorityLevel int, ctls ...Controller)
	// TriggerNext starts the next tick without waiting for the interval.
	TriggerNext()
}

// PriorityLevels is the number of priority levels.
const PriorityLevels int = 16

// Priority levels, lower runs first.
const (
	PrLvTop    int = 0
	PrLvHigh   int = 4
	PrLvNormal int = 8
	PrLvLow    int = 12
	PrLvIdle   int = PriorityLevels - 1

	// PrLvSense reads links and sensors.
	PrLvSense = PrLvHigh
	// PrLvControl executes commands and control laws.
	PrLvControl = PrLvNormal
	// PrLvAcuate writes actuator outputs.
	PrLvAcuate = PrLvLow
	// PrLvPostProc flushes queued output.
	PrLvPostProc = PrLvIdle - 1
)

// MessageStore gives controllers access to the messages of a tick.
type MessageStore interface {
	// ProcessMessages visits messages in posting order.
	ProcessMessages(MessageProcessor)
	// AddMessages makes messages visible to later levels of this tick.
	AddMessages(msgs ...Message)
}

// MessageProcessor visits messages.
type MessageProcessor interface {
	ProcessMessage(MessageProcessingContext)
}

// ProcessMessageFunc is the func form of MessageProcessor.
type ProcessMessageFunc func(MessageProcessingContext)

// ProcessMessage implements MessageProcessor.
func (f ProcessMessageFunc) ProcessMessage(mc MessageProcessingContext) {
	f(mc)
}

// MessageProcessingContext is the view of one message being visited.
type MessageProcessingContext interface {
	CurrentMessage() Message
	// MessageTaken removes the message from the store.
	MessageTaken()
	// StopProcessing skips the remaining messages.
	StopProcessing()
}
