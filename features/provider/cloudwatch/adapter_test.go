package cloudwatch

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/stretchr/testify/require"

	"github.com/akshatgg/vibe-monitor-back/internal/rca/provider"
)

type fakeLogsClient struct {
	lastInput *cloudwatchlogs.FilterLogEventsInput
	out       *cloudwatchlogs.FilterLogEventsOutput
	err       error
}

func (f *fakeLogsClient) FilterLogEvents(ctx context.Context, params *cloudwatchlogs.FilterLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.FilterLogEventsOutput, error) {
	f.lastInput = params
	if f.err != nil {
		return nil, f.err
	}
	return f.out, nil
}

func TestAdapter_Call_LogsSearchAppliesCustomFilter(t *testing.T) {
	client := &fakeLogsClient{out: &cloudwatchlogs.FilterLogEventsOutput{Events: []types.FilteredLogEvent{
		{Timestamp: aws.Int64(1000), Message: aws.String("request completed"), LogStreamName: aws.String("stream-a")},
	}}}
	a := &Adapter{logs: client, capability: provider.CapLogsSearch}

	out, err := a.Call(context.Background(), []byte(`{"log_group":"/svc/api","query":"status=500"}`))
	require.NoError(t, err)
	require.Equal(t, "status=500", *client.lastInput.FilterPattern)

	var events []logEvent
	require.NoError(t, json.Unmarshal(out, &events))
	require.Len(t, events, 1)
	require.Equal(t, "request completed", events[0].Message)
}

func TestAdapter_Call_LogsErrorsForcesErrorFilterPattern(t *testing.T) {
	client := &fakeLogsClient{out: &cloudwatchlogs.FilterLogEventsOutput{}}
	a := &Adapter{logs: client, capability: provider.CapLogsErrors}

	_, err := a.Call(context.Background(), []byte(`{"log_group":"/svc/api"}`))
	require.NoError(t, err)
	require.Equal(t, `?ERROR ?Error ?error ?FATAL ?Exception`, *client.lastInput.FilterPattern)
}

func TestAdapter_Call_RequiresLogGroup(t *testing.T) {
	a := &Adapter{logs: &fakeLogsClient{}, capability: provider.CapLogsSearch}

	_, err := a.Call(context.Background(), []byte(`{}`))
	require.Error(t, err)
}

func TestAdapter_Call_PropagatesClientError(t *testing.T) {
	a := &Adapter{logs: &fakeLogsClient{err: errors.New("throttled")}, capability: provider.CapLogsSearch}

	_, err := a.Call(context.Background(), []byte(`{"log_group":"/svc/api"}`))
	require.Error(t, err)
}

func TestAdapter_Call_RejectsUnsupportedCapability(t *testing.T) {
	a := &Adapter{logs: &fakeLogsClient{}, capability: provider.CapMetricsQuery}

	_, err := a.Call(context.Background(), []byte(`{"log_group":"/svc/api"}`))
	require.Error(t, err)
}

func TestAdapter_CapabilityAndProvider(t *testing.T) {
	a := &Adapter{capability: provider.CapLogsSearch}
	require.Equal(t, provider.CapLogsSearch, a.Capability())
	require.Equal(t, providerName, a.Provider())
}
