package provider

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandle_ToolNameIsCapabilityDotProvider(t *testing.T) {
	h := Handle{Provider: "cloudwatch", Capability: CapLogsSearch}
	require.Equal(t, "logs.search.cloudwatch", h.ToolName())
}
