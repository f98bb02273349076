package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(viper.New(), strings.NewReader(stdin), &out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestClassifyCommand(t *testing.T) {
	cases := []struct {
		url, text, want string
	}{
		{"https://cart.taobao.com/cart.htm", "", "state=selection next=select_all"},
		{"https://buy.taobao.com/auction/confirm_order.htm", "", "state=review next=submit_order"},
		{"https://cashier.alipay.com/standard/lightpay.htm", "", "state=payment next=done"},
		{"https://www.taobao.com/", "网络异常", "state=error next=reload"},
		{"about:blank", "", "state=unknown next=navigate"},
	}
	for _, tc := range cases {
		out, err := execute(t, "", "classify", "--url", tc.url, "--text", tc.text)
		require.NoError(t, err)
		assert.Equal(t, tc.want+"\n", out, tc.url)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "seckill dev\n", out)
}

func TestRunRejectsInvalidConfigBeforeBrowser(t *testing.T) {
	_, err := execute(t, "", "run", "--budget", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retry_budget must be a positive integer")

	_, err = execute(t, "", "run", "--target", "someday")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `target "someday"`)
}

func TestRunAskCancelled(t *testing.T) {
	out, err := execute(t, "\n", "run", "--ask")
	require.NoError(t, err)
	assert.Contains(t, out, "Отменено.")
}

func TestMissingConfigFile(t *testing.T) {
	_, err := execute(t, "", "--config", "/nonexistent/seckill.yaml", "version")
	assert.ErrorContains(t, err, "read config")
}

func TestPromptTarget(t *testing.T) {
	var out bytes.Buffer
	got, cancelled, err := promptTarget(strings.NewReader("20:00:00\n"), &out)
	require.NoError(t, err)
	assert.False(t, cancelled)
	assert.Equal(t, "20:00:00", got)
	assert.Contains(t, out.String(), "Введите время старта")

	_, cancelled, err = promptTarget(strings.NewReader(""), &out)
	require.NoError(t, err)
	assert.True(t, cancelled)
}
