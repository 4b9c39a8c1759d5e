// Package siwe builds Sign-In with Ethereum (EIP-4361) messages on top of
// github.com/spruceid/siwe-go.
package siwe

import (
	"fmt"

	"github.com/layer-3/sessionkit/core"
	spruce "github.com/spruceid/siwe-go"
)

// Message is a composed SIWE message. String returns the text the wallet signs.
type Message = spruce.Message

// ParseMessage reads canonical SIWE text back into a Message
func ParseMessage(text string) (*Message, error) {
	msg, err := spruce.ParseMessage(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMalformedMessage, err)
	}
	return msg, nil
}
