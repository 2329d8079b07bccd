package infra

import (
	"context"
	"io"

	"github.com/slack-go/slack"
)

//go:generate mockgen -source=slack.go -destination=../../handler/mock_slack_test.go -package=handler
type SlackAPI interface {
	AuthTest() (*slack.AuthTestResponse, error)
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	UpdateMessageContext(ctx context.Context, channelID, timestamp string, options ...slack.MsgOption) (string, string, string, error)
	PostEphemeralContext(ctx context.Context, channelID, userID string, options ...slack.MsgOption) (string, error)
	GetUserInfoContext(ctx context.Context, user string) (*slack.User, error)
	GetConversationInfoContext(ctx context.Context, input *slack.GetConversationInfoInput) (*slack.Channel, error)
	GetFileContext(ctx context.Context, downloadURL string, writer io.Writer) error
}
