package backend

import (
	"context"

	"github.com/serenissima/contracts-gateway/internal/model"
)

type SendMessageRequest struct {
	Sender   string                `json:"sender"`
	Receiver string                `json:"receiver"`
	Content  string                `json:"content"`
	Type     model.MessageType     `json:"type"`
	Context  *model.MessageContext `json:"context,omitempty"`
}

type threadRequest struct {
	CurrentCitizen string `json:"currentCitizen"`
	OtherCitizen   string `json:"otherCitizen"`
}

type messagesResponse struct {
	Messages []model.Message `json:"messages"`
}

type messageResponse struct {
	Message model.Message `json:"message"`
}

// ListMessages returns the thread between two citizens, oldest first.
func (c *Client) ListMessages(ctx context.Context, current, other string) ([]model.Message, error) {
	var resp messagesResponse
	err := c.post(ctx, "/api/messages", threadRequest{CurrentCitizen: current, OtherCitizen: other}, c.schemas.messages, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) (*model.Message, error) {
	var resp messageResponse
	if err := c.post(ctx, "/api/messages/send", req, c.schemas.message, &resp); err != nil {
		return nil, err
	}
	return &resp.Message, nil
}
