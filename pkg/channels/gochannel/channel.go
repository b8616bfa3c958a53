// Package gochannel wires the event bus to an in-process pub/sub. It is the
// default transport for local development and for tests, where workflow
// events never need to leave the process.
package gochannel

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// CreateChannel returns a publisher/subscriber pair backed by a single
// in-memory GoChannel. Messages are fire-and-forget: publishing never blocks
// the engine, and nothing survives a restart.
func CreateChannel(logger watermill.LoggerAdapter) (*gochannel.GoChannel, *gochannel.GoChannel, error) {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            1000,
			Persistent:                     false,
			BlockPublishUntilSubscriberAck: false,
		},
		logger,
	)

	// The same GoChannel serves both roles.
	return pubSub, pubSub, nil
}

// CreateTestChannel returns a pair tuned for tests: a small buffer, messages
// retained for late subscribers, and publish blocking until the subscriber
// acks, so a test can publish and immediately assert on the delivery.
func CreateTestChannel(logger watermill.LoggerAdapter) (*gochannel.GoChannel, *gochannel.GoChannel, error) {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            10,
			Persistent:                     true,
			BlockPublishUntilSubscriberAck: true,
		},
		logger,
	)

	return pubSub, pubSub, nil
}
