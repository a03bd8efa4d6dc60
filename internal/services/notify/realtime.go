package notify

import (
	"fmt"

	pubnub "github.com/pubnub/go"
)

// Realtime pushes events to a user's own channel so an open browser session
// sees payment progress without polling.
type Realtime interface {
	PushToUser(userID int64, message map[string]any)
}

type PubNubRealtime struct {
	pn *pubnub.PubNub
}

func NewPubNubRealtime(pn *pubnub.PubNub) *PubNubRealtime {
	return &PubNubRealtime{pn: pn}
}

func (r *PubNubRealtime) PushToUser(userID int64, message map[string]any) {
	channel := fmt.Sprintf("user-%d", userID)
	r.pn.Publish().
		Channel(channel).
		Message(message).
		Execute()
}

// NopRealtime is used when PubNub keys are not configured.
type NopRealtime struct{}

func (NopRealtime) PushToUser(int64, map[string]any) {}
