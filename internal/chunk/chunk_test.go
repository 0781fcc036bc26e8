package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTextStream(t *testing.T) {
	c, err := Decode([]byte(`{"type": "text_stream", "content": "hello", "step": "streaming_answer"}`))
	require.NoError(t, err)

	ts, ok := c.(*TextStream)
	require.True(t, ok)
	assert.Equal(t, "hello", ts.Content)
	assert.Equal(t, "streaming_answer", ts.Step)
}

func TestDecodeCodeCompleteDisplay(t *testing.T) {
	c, err := Decode([]byte(`{"type": "code_complete_display", "content": "running", "code": "import pandas as pd\nprint(df.head())"}`))
	require.NoError(t, err)

	cc, ok := c.(*CodeCompleteDisplay)
	require.True(t, ok)
	assert.Equal(t, "import pandas as pd\nprint(df.head())", cc.Code)
}

func TestDecodeChartGenerated(t *testing.T) {
	c, err := Decode([]byte(`{"type": "chart_generated", "content": "chart ready", "chartData": {"data": [1, 2, 3], "layout": {"title": "t"}}}`))
	require.NoError(t, err)

	cg, ok := c.(*ChartGenerated)
	require.True(t, ok)
	assert.JSONEq(t, `{"data": [1, 2, 3], "layout": {"title": "t"}}`, string(cg.ChartData))
}

func TestDecodeAnalysisComplete(t *testing.T) {
	record := `{
		"type": "analysis_complete",
		"answer": "",
		"codeExecution": {"codeChunks": ["print(1)"], "isExecuting": false, "result": "1", "output": "1"},
		"followUpQuestions": ["What about Q2?"],
		"chartData": [{"x": 1}],
		"step": "complete"
	}`
	c, err := Decode([]byte(record))
	require.NoError(t, err)

	ac, ok := c.(*AnalysisComplete)
	require.True(t, ok)
	require.NotNil(t, ac.CodeExecution)
	assert.Equal(t, []string{"print(1)"}, ac.CodeExecution.CodeChunks)
	assert.False(t, ac.CodeExecution.IsExecuting)
	assert.Equal(t, []string{"What about Q2?"}, ac.FollowUpQuestions)
	assert.JSONEq(t, `[{"x": 1}]`, string(ac.ChartData))
}

func TestDecodeError(t *testing.T) {
	c, err := Decode([]byte(`{"type": "error", "content": "analysis failed"}`))
	require.NoError(t, err)

	se, ok := c.(*StreamError)
	require.True(t, ok)
	assert.Equal(t, "analysis failed", se.Content)
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"type": "not_a_chunk", "content": "x"}`))
	assert.Error(t, err)
}

func TestDecodeMalformed(t *testing.T) {
	_, err := Decode([]byte(`{"type": "text_stream", "content":`))
	assert.Error(t, err)
}
