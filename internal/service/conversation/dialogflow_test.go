package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/dialogflow/apiv2/dialogflowpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeDetector struct {
	resp        *dialogflowpb.DetectIntentResponse
	err         error
	got         *dialogflowpb.DetectIntentRequest
	hadDeadline bool
	calls       int
	closed      bool
}

func (f *fakeDetector) DetectIntent(ctx context.Context, req *dialogflowpb.DetectIntentRequest, _ ...gax.CallOption) (*dialogflowpb.DetectIntentResponse, error) {
	f.calls++
	f.got = req
	_, f.hadDeadline = ctx.Deadline()
	return f.resp, f.err
}

func (f *fakeDetector) Close() error {
	f.closed = true
	return nil
}

func fulfillment(text string) *dialogflowpb.DetectIntentResponse {
	return &dialogflowpb.DetectIntentResponse{
		QueryResult: &dialogflowpb.QueryResult{
			FulfillmentText: text,
			Intent:          &dialogflowpb.Intent{DisplayName: "order.track"},
		},
	}
}

func TestDialogflowSendBuildsRequest(t *testing.T) {
	detector := &fakeDetector{resp: fulfillment("Your order #123 ships tomorrow.")}
	client, err := newDialogflowClient(detector, "customersupportbot", Options{})
	require.NoError(t, err)

	reply, err := client.Send(context.Background(), "Track my order", "sess-1", "")
	require.NoError(t, err)
	require.Equal(t, "Your order #123 ships tomorrow.", reply)

	require.Equal(t, "projects/customersupportbot/agent/sessions/sess-1", detector.got.GetSession())
	text := detector.got.GetQueryInput().GetText()
	require.Equal(t, "Track my order", text.GetText())
	require.Equal(t, "en", text.GetLanguageCode())
	require.False(t, detector.hadDeadline)
}

func TestDialogflowSendLanguageAndTimeout(t *testing.T) {
	detector := &fakeDetector{resp: fulfillment("Hallo")}
	client, err := newDialogflowClient(detector, "p", Options{LanguageCode: "de", Timeout: time.Second})
	require.NoError(t, err)

	_, err = client.Send(context.Background(), "Hi", "s", "")
	require.NoError(t, err)
	require.Equal(t, "de", detector.got.GetQueryInput().GetText().GetLanguageCode())
	require.True(t, detector.hadDeadline)

	_, err = client.Send(context.Background(), "Hi", "s", "fr")
	require.NoError(t, err)
	require.Equal(t, "fr", detector.got.GetQueryInput().GetText().GetLanguageCode())
}

func TestDialogflowSendErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind Kind
	}{
		{"quota", status.Error(codes.ResourceExhausted, "quota exceeded"), KindQuota},
		{"auth", status.Error(codes.Unauthenticated, "bad credentials"), KindAuth},
		{"permission", status.Error(codes.PermissionDenied, "denied"), KindAuth},
		{"network", status.Error(codes.Unavailable, "connection refused"), KindNetwork},
		{"deadline", context.DeadlineExceeded, KindNetwork},
		{"other", errors.New("boom"), KindUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, err := newDialogflowClient(&fakeDetector{err: tc.err}, "p", Options{})
			require.NoError(t, err)

			_, err = client.Send(context.Background(), "Hi", "s", "")
			var extErr *ExternalServiceError
			require.ErrorAs(t, err, &extErr)
			require.Equal(t, tc.kind, extErr.Kind)
			require.Equal(t, "dialogflow", extErr.Provider)
			require.ErrorIs(t, err, tc.err)
		})
	}
}

func TestDialogflowSendMalformedResponse(t *testing.T) {
	client, err := newDialogflowClient(&fakeDetector{resp: &dialogflowpb.DetectIntentResponse{}}, "p", Options{})
	require.NoError(t, err)

	_, err = client.Send(context.Background(), "Hi", "s", "")
	var extErr *ExternalServiceError
	require.ErrorAs(t, err, &extErr)
	require.Equal(t, KindMalformed, extErr.Kind)
}

func TestDialogflowSendRequiresSession(t *testing.T) {
	detector := &fakeDetector{resp: fulfillment("x")}
	client, err := newDialogflowClient(detector, "p", Options{})
	require.NoError(t, err)

	_, err = client.Send(context.Background(), "Hi", "", "")
	require.ErrorIs(t, err, ErrSessionRequired)
	require.Zero(t, detector.calls)
}

func TestNewDialogflowClientValidates(t *testing.T) {
	_, err := newDialogflowClient(nil, "p", Options{})
	require.Error(t, err)

	_, err = newDialogflowClient(&fakeDetector{}, "  ", Options{})
	require.Error(t, err)
}

func TestDialogflowClose(t *testing.T) {
	detector := &fakeDetector{}
	client, err := newDialogflowClient(detector, "p", Options{})
	require.NoError(t, err)
	require.NoError(t, client.Close())
	require.True(t, detector.closed)
}
