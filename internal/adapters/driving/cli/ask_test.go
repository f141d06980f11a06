package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAskCmd_Use(t *testing.T) {
	assert.Equal(t, "ask [question]", askCmd.Use)
}

func TestAskCmd_HasSessionFlag(t *testing.T) {
	flag := askCmd.Flags().Lookup("session")
	require.NotNil(t, flag, "session flag should exist")
	assert.Equal(t, "s", flag.Shorthand)
}

func TestAskCmd_PrintsAnswerAndSources(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	mock := chatService.(*mockChatService)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"ask", "What is the storage range?"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Equal(t, "What is the storage range?", mock.lastQuestion)
	assert.Contains(t, buf.String(), "Store vaccines between 2C and 8C.")
	assert.Contains(t, buf.String(), "Sources:")
	assert.Contains(t, buf.String(), "Cold Chain Handling")
	assert.Contains(t, buf.String(), "Session: session-1")
}

func TestAskCmd_SessionFlagContinuesSession(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	mock := chatService.(*mockChatService)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"ask", "--session", "session-7", "And the hold time?"})
	defer func() {
		rootCmd.SetArgs(nil)
		askSession = ""
	}()

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Equal(t, "session-7", mock.lastSession)
}

func TestAskCmd_ServiceNotConfigured(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	chatService = nil

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"ask", "anything"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "chat service not configured")
}
