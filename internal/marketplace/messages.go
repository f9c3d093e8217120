package marketplace

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const sendMessageMutation = `
mutation SendMessage($roomId: ID!, $message: String!) {
  sendMessage(input: {
    roomId: $roomId
    message: $message
  }) {
    message {
      id
      createdDateTime
    }
  }
}`

// SendMessage posts text into the conversation room. It reports false when
// the API accepted the request but did not confirm the message.
func (c *Client) SendMessage(ctx context.Context, roomID, text string) (bool, error) {
	if strings.TrimSpace(roomID) == "" {
		return false, fmt.Errorf("room id is required")
	}
	if strings.TrimSpace(text) == "" {
		return false, fmt.Errorf("message text is required")
	}

	c.logger.Info("sending message", zap.String("room_id", roomID))

	data, err := c.ExecuteQuery(ctx, sendMessageMutation, map[string]any{"roomId": roomID, "message": text})
	if err != nil {
		return false, fmt.Errorf("send message to room %s: %w", roomID, err)
	}

	_, ok := lookup(data, "sendMessage")
	if !ok {
		c.logger.Error("message was not confirmed", zap.String("room_id", roomID))
	}

	return ok, nil
}
