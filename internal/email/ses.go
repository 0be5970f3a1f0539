package email

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender sends template emails through Amazon SES v2.
type SESSender struct {
	client    sesAPI
	fromEmail string
}

// NewSESSender loads the default AWS credential chain for region.
func NewSESSender(ctx context.Context, region, fromEmail string) (*SESSender, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return &SESSender{client: sesv2.NewFromConfig(cfg), fromEmail: fromEmail}, nil
}

// SendTemplate sends msg using the SES template named msg.Template.
func (s *SESSender) SendTemplate(ctx context.Context, msg TemplateMessage) error {
	data, err := json.Marshal(msg.Variables)
	if err != nil {
		return fmt.Errorf("marshal template data: %w", err)
	}

	in := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.fromEmail),
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Content: &types.EmailContent{
			Template: &types.Template{
				TemplateName: aws.String(msg.Template),
				TemplateData: aws.String(string(data)),
			},
		},
	}
	if msg.Tag != "" {
		in.EmailTags = []types.MessageTag{{Name: aws.String("category"), Value: aws.String(msg.Tag)}}
	}

	if _, err := s.client.SendEmail(ctx, in); err != nil {
		return fmt.Errorf("ses send email: %w", err)
	}
	return nil
}
