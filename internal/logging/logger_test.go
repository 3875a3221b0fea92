package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/fadedpez/pagebot/internal/types"
	"github.com/stretchr/testify/suite"
)

type LoggerTestSuite struct {
	suite.Suite
	buf    *bytes.Buffer
	logger *Logger
}

func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerTestSuite))
}

func (s *LoggerTestSuite) SetupTest() {
	s.buf = &bytes.Buffer{}
	s.logger = NewLogger(INFO, s.buf)
}

func (s *LoggerTestSuite) lines() []map[string]interface{} {
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(s.buf.String()), "\n") {
		if line == "" {
			continue
		}
		entry := map[string]interface{}{}
		s.Require().NoError(json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

func (s *LoggerTestSuite) TestLevelFiltering() {
	// Execute
	s.logger.Debug("hidden %d", 1)
	s.logger.Info("shown %d", 2)

	// Assert
	lines := s.lines()
	s.Require().Len(lines, 1)
	s.Equal("shown 2", lines[0]["message"])
	s.Equal("info", lines[0]["level"])
}

func (s *LoggerTestSuite) TestWithAddsField() {
	// Execute
	s.logger.With("user", "42").Warn("careful")

	// Assert
	lines := s.lines()
	s.Require().Len(lines, 1)
	s.Equal("42", lines[0]["user"])
	s.Equal("warn", lines[0]["level"])
}

func (s *LoggerTestSuite) TestLogErrorBotError() {
	// Setup
	err := types.WrapError(types.ErrHandlerFault, "command ping", errors.New("boom"))

	// Execute
	s.logger.LogError(err)

	// Assert
	lines := s.lines()
	s.Require().Len(lines, 1)
	s.Equal("HANDLER_FAULT", lines[0]["code"])
	s.Equal("command ping", lines[0]["detail"])
	s.Equal("boom", lines[0]["cause"])
}

func (s *LoggerTestSuite) TestLogErrorPlain() {
	s.logger.LogError(errors.New("plain"))

	lines := s.lines()
	s.Require().Len(lines, 1)
	s.Equal("plain", lines[0]["error"])
}

func (s *LoggerTestSuite) TestParseLevel() {
	s.Equal(DEBUG, ParseLevel("debug"))
	s.Equal(WARN, ParseLevel("WARN"))
	s.Equal(INFO, ParseLevel("verbose"))
	s.Equal("ERROR", ERROR.String())
}
