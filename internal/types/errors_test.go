package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ErrorTestSuite struct {
	suite.Suite
}

func TestErrorSuite(t *testing.T) {
	suite.Run(t, new(ErrorTestSuite))
}

func (s *ErrorTestSuite) TestNewBotError() {
	// Setup
	code := ErrInvalidPlugin
	message := "plugin has no name"

	// Execute
	err := NewBotError(code, message)

	// Assert
	s.Equal(code, err.Code, "Error code should match")
	s.Equal(message, err.Message, "Error message should match")
	s.Nil(err.Err, "Underlying error should be nil")
}

func (s *ErrorTestSuite) TestWrapError() {
	// Setup
	underlying := errors.New("connection failed")

	// Execute
	err := WrapError(ErrDatabaseError, "load user", underlying)

	// Assert
	s.Equal(ErrDatabaseError, err.Code)
	s.Equal("load user", err.Message)
	s.ErrorIs(err, underlying, "Underlying error should be reachable with errors.Is")
}

func (s *ErrorTestSuite) TestErrorString() {
	testCases := []struct {
		name     string
		err      *BotError
		expected string
	}{
		{
			name:     "Simple error",
			err:      NewBotError(ErrPermissionDenied, "admin only"),
			expected: "PERMISSION_DENIED: admin only",
		},
		{
			name:     "Wrapped error",
			err:      WrapError(ErrHandlerFault, "command ping", errors.New("boom")),
			expected: "HANDLER_FAULT: command ping (boom)",
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			s.Equal(tc.expected, tc.err.Error())
		})
	}
}

func (s *ErrorTestSuite) TestIsBotError() {
	botErr := NewBotError(ErrUntrustedAuthor, "author mismatch")

	testCases := []struct {
		name     string
		err      error
		code     ErrorCode
		expected bool
	}{
		{name: "matching code", err: botErr, code: ErrUntrustedAuthor, expected: true},
		{name: "other code", err: botErr, code: ErrInvalidPlugin, expected: false},
		{name: "wrapped with fmt", err: fmt.Errorf("register: %w", botErr), code: ErrUntrustedAuthor, expected: true},
		{name: "plain error", err: errors.New("regular error"), code: ErrUntrustedAuthor, expected: false},
		{name: "nil error", err: nil, code: ErrUntrustedAuthor, expected: false},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			s.Equal(tc.expected, IsBotError(tc.err, tc.code))
		})
	}
}

func (s *ErrorTestSuite) TestAsNilTarget() {
	s.False(As(NewBotError(ErrInternalError, "x"), nil))
}
