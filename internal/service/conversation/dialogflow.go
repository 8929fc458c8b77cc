package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	dialogflow "cloud.google.com/go/dialogflow/apiv2"
	"cloud.google.com/go/dialogflow/apiv2/dialogflowpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"

	"github.com/zhouzirui/supportpro/backend/internal/config"
)

const providerDialogflow = "dialogflow"

// intentDetector is the subset of *dialogflow.SessionsClient used here.
type intentDetector interface {
	DetectIntent(ctx context.Context, req *dialogflowpb.DetectIntentRequest, opts ...gax.CallOption) (*dialogflowpb.DetectIntentResponse, error)
	Close() error
}

// DialogflowClient sends text queries to a Dialogflow ES agent.
type DialogflowClient struct {
	detector  intentDetector
	projectID string
	opts      Options
}

// NewDialogflowClient dials the Dialogflow Sessions API using the configured
// project and credentials file.
func NewDialogflowClient(ctx context.Context, cfg config.DialogflowConfig, opts Options) (*DialogflowClient, error) {
	if !cfg.Enabled() {
		return nil, errors.New("conversation: DIALOGFLOW_PROJECT_ID is required for the dialogflow provider")
	}

	var clientOpts []option.ClientOption
	if cfg.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(cfg.Endpoint))
	}

	sessions, err := dialogflow.NewSessionsClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("conversation: create dialogflow sessions client: %w", err)
	}

	return newDialogflowClient(sessions, cfg.ProjectID, opts)
}

func newDialogflowClient(detector intentDetector, projectID string, opts Options) (*DialogflowClient, error) {
	if detector == nil {
		return nil, errors.New("conversation: intent detector must not be nil")
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, errors.New("conversation: project id must not be empty")
	}
	return &DialogflowClient{detector: detector, projectID: projectID, opts: opts}, nil
}

// SessionPath builds the Dialogflow session resource name.
func SessionPath(projectID, sessionID string) string {
	return fmt.Sprintf("projects/%s/agent/sessions/%s", projectID, sessionID)
}

// Send detects the intent of text in the given session and returns the
// agent's fulfillment text.
func (c *DialogflowClient) Send(ctx context.Context, text, sessionID, languageCode string) (string, error) {
	if sessionID == "" {
		return "", ErrSessionRequired
	}

	ctx, cancel := c.opts.withTimeout(ctx)
	defer cancel()

	req := &dialogflowpb.DetectIntentRequest{
		Session: SessionPath(c.projectID, sessionID),
		QueryInput: &dialogflowpb.QueryInput{
			Input: &dialogflowpb.QueryInput_Text{
				Text: &dialogflowpb.TextInput{
					Text:         text,
					LanguageCode: c.opts.language(languageCode),
				},
			},
		},
	}

	resp, err := c.detector.DetectIntent(ctx, req)
	if err != nil {
		extErr := newExternalError(providerDialogflow, err)
		log.Warn().Err(err).Str("session", sessionID).Str("kind", string(extErr.Kind)).Msg("dialogflow detect intent failed")
		return "", extErr
	}

	result := resp.GetQueryResult()
	if result == nil {
		return "", malformed(providerDialogflow, errors.New("response has no query result"))
	}

	log.Debug().
		Str("session", sessionID).
		Str("intent", result.GetIntent().GetDisplayName()).
		Float32("confidence", result.GetIntentDetectionConfidence()).
		Msg("dialogflow intent detected")

	return result.GetFulfillmentText(), nil
}

// Close releases the underlying gRPC connection.
func (c *DialogflowClient) Close() error {
	return c.detector.Close()
}
