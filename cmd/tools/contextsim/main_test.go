package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-counsel/backend/internal/analysis/keywords"
	"github.com/zhouzirui/z-counsel/backend/internal/contextwindow"
)

func TestParseLine(t *testing.T) {
	extractor := keywords.New(0, keywords.Lexicon)

	turn, err := parseLine("最近工作压力很大\t听起来你很累\t0.8\t工作, 压力", extractor)
	require.NoError(t, err)
	assert.Equal(t, 0.8, turn.intensity)
	assert.Equal(t, []string{"工作", "压力"}, turn.keywords)

	turn, err = parseLine("最近工作压力很大\t听起来你很累", extractor)
	require.NoError(t, err)
	assert.Equal(t, []string{"工作", "压力"}, turn.keywords)

	_, err = parseLine("只有一列", extractor)
	assert.Error(t, err)

	_, err = parseLine("a\tb\tnot-a-number", extractor)
	assert.Error(t, err)
}

func TestSimulate(t *testing.T) {
	cfg := contextwindow.DefaultConfig()
	window, err := contextwindow.New(cfg)
	require.NoError(t, err)

	input := strings.Join([]string{
		"# 注释行会被跳过",
		"你好\t你好，今天想聊点什么？\t0.1",
		"",
		"我睡不着\t失眠多久了？\t0.5\t失眠",
	}, "\n")

	var out bytes.Buffer
	require.NoError(t, simulate(strings.NewReader(input), &out, window, keywords.New(0, keywords.Lexicon)))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "1\t"))
	assert.True(t, strings.HasSuffix(lines[2], "\t失眠"))
	assert.Equal(t, 2, window.Statistics().TotalTurnsSeen)
}
