package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, INFO, ParseLevel("INFO"))
	assert.Equal(t, WARN, ParseLevel("warn"))
	assert.Equal(t, ERROR, ParseLevel("Error"))
	assert.Equal(t, INFO, ParseLevel("nonsense"))
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(WARN, false)
	log.SetOutput(&buf)

	log.Debug("not shown")
	log.Info("not shown either")
	log.Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "not shown")
	assert.Contains(t, out, "shown")
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(INFO, true).WithComponent("store")
	log.SetOutput(&buf)

	log.Info("document stored", map[string]interface{}{"db": "app", "op_time": int64(7)})

	var entry struct {
		Level     string                 `json:"level"`
		Message   string                 `json:"message"`
		Component string                 `json:"component"`
		Fields    map[string]interface{} `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry.Level)
	assert.Equal(t, "document stored", entry.Message)
	assert.Equal(t, "store", entry.Component)
	assert.Equal(t, "app", entry.Fields["db"])
	assert.EqualValues(t, 7, entry.Fields["op_time"])
}

func TestWithFieldsMerge(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(INFO, true).WithFields(map[string]interface{}{"node": "a"})
	log.SetOutput(&buf)

	log.Info("msg", map[string]interface{}{"db": "app"})

	var entry struct {
		Fields map[string]interface{} `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "a", entry.Fields["node"])
	assert.Equal(t, "app", entry.Fields["db"])
}

type stringerField struct{}

func (stringerField) String() string { return "rendered" }

func TestStringerFieldsNormalized(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(INFO, true)
	log.SetOutput(&buf)

	log.Info("msg", map[string]interface{}{"obj": stringerField{}})

	var entry struct {
		Fields map[string]interface{} `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "rendered", entry.Fields["obj"])
}
