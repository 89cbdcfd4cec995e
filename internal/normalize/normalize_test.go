package normalize

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// export mirrors the relevant slice of a real conversations.json: a root
// placeholder, a system prompt, a user/assistant exchange plus an abandoned
// sibling branch that current_node does not point at.
const export = `[
  {
    "id": "conv-1",
    "title": "lindblad question",
    "create_time": 1714000000.25,
    "current_node": "n4",
    "mapping": {
      "root": {"id": "root", "message": null, "parent": "", "children": ["n1"]},
      "n1": {
        "id": "n1",
        "message": {"author": {"role": "system"}, "content": {"content_type": "text", "parts": [""]}},
        "parent": "root", "children": ["n2", "n2b"]
      },
      "n2": {
        "id": "n2",
        "message": {"author": {"role": "user"}, "create_time": 1714000001,
          "content": {"content_type": "text", "parts": ["what is a dephasing channel?"]}},
        "parent": "n1", "children": ["n3"]
      },
      "n2b": {
        "id": "n2b",
        "message": {"author": {"role": "user"}, "content": {"content_type": "text", "parts": ["abandoned edit"]}},
        "parent": "n1", "children": []
      },
      "n3": {
        "id": "n3",
        "message": {"author": {"role": "assistant"}, "create_time": 1714000002,
          "content": {"content_type": "text", "parts": ["it destroys off-diagonal terms", "of the density matrix"]}},
        "parent": "n2", "children": ["n4"]
      },
      "n4": {
        "id": "n4",
        "message": {"author": {"role": "user"}, "create_time": 1714000003,
          "content": {"content_type": "multimodal_text", "parts": [{"asset_pointer": "file-xyz"}, "thanks"]}},
        "parent": "n3", "children": []
      }
    }
  },
  {
    "id": "conv-2",
    "title": "broken",
    "current_node": "missing",
    "mapping": {}
  }
]`

func TestReaderLinearizesCanonicalBranch(t *testing.T) {
	convs, _, err := Reader(strings.NewReader(export))
	require.NoError(t, err)

	require.Len(t, convs, 1)
	conv := convs[0]
	assert.Equal(t, "conv-1", conv.ID)
	assert.Equal(t, "lindblad question", conv.Title)
	assert.False(t, conv.CreatedAt.IsZero())

	require.Len(t, conv.Messages, 3)
	assert.Equal(t, "user", conv.Messages[0].Role)
	assert.Equal(t, "what is a dephasing channel?", conv.Messages[0].Text)
	assert.Equal(t, "assistant", conv.Messages[1].Role)
	assert.Equal(t, "it destroys off-diagonal terms\nof the density matrix", conv.Messages[1].Text)
	assert.Equal(t, "thanks", conv.Messages[2].Text, "non-text parts skipped, text kept")
	assert.Equal(t, 1, conv.Messages[2].Attachments)

	// The abandoned sibling branch never appears.
	for _, m := range conv.Messages {
		assert.NotContains(t, m.Text, "abandoned")
	}
}

func TestReaderStats(t *testing.T) {
	_, stats, err := Reader(strings.NewReader(export))
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Conversations)
	assert.Equal(t, 3, stats.Messages)
	assert.Equal(t, 1, stats.SkippedConversations, "unresolvable current_node dropped")
	assert.Equal(t, 1, stats.SkippedMessages, "empty system prompt dropped")
}

func TestReaderRejectsMalformedStream(t *testing.T) {
	_, _, err := Reader(strings.NewReader(`{"not": "an array"`))
	assert.Error(t, err)
}

func TestReaderHandlesMappingCycle(t *testing.T) {
	cyclic := `[{
		"id": "c", "title": "cycle", "current_node": "a",
		"mapping": {
			"a": {"id": "a", "parent": "b",
				"message": {"author": {"role": "user"}, "content": {"content_type": "text", "parts": ["hi"]}}},
			"b": {"id": "b", "parent": "a",
				"message": {"author": {"role": "assistant"}, "content": {"content_type": "text", "parts": ["hello"]}}}
		}
	}]`
	convs, _, err := Reader(strings.NewReader(cyclic))
	require.NoError(t, err, "cycle must terminate, not hang")
	require.Len(t, convs, 1)
	assert.Len(t, convs[0].Messages, 2)
}

func TestWriteJSONL(t *testing.T) {
	convs, _, err := Reader(strings.NewReader(export))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteJSONL(&buf, convs))

	scanner := bufio.NewScanner(&buf)
	lines := 0
	for scanner.Scan() {
		var conv Conversation
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &conv))
		lines++
	}
	assert.Equal(t, 1, lines)
}
