package plugin

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/fadedpez/pagebot/internal/logging"
	"github.com/fadedpez/pagebot/internal/types"
	"github.com/stretchr/testify/suite"
)

const trusted = "IRFAN"

type RegistryTestSuite struct {
	suite.Suite
	registry *Registry
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistryTestSuite))
}

func (s *RegistryTestSuite) SetupTest() {
	s.registry = NewRegistry(Options{TrustedAuthor: trusted, AllowAliases: true})
}

func noop(context.Context, Context) error { return nil }

func command(name string, aliases ...string) *Func {
	return New(Descriptor{Name: name, Aliases: aliases, Author: trusted}, noop, nil)
}

func (s *RegistryTestSuite) TestResolveByNameAndAlias() {
	// Setup
	balance := command("Balance", "bal", "money")

	// Execute
	err := s.registry.Register(balance)

	// Assert
	s.Require().NoError(err)
	for _, name := range []string{"balance", "bal", "money"} {
		cmd, ok := s.registry.ResolveCommand(name)
		s.True(ok, name)
		s.Same(balance, cmd, name)
	}
	_, ok := s.registry.ResolveCommand("cash")
	s.False(ok)
	_, ok = s.registry.ResolveCommand("BALANCE")
	s.False(ok, "lookup is exact against the lowercased index")
}

func (s *RegistryTestSuite) TestAliasesDisabled() {
	// Setup
	registry := NewRegistry(Options{TrustedAuthor: trusted, AllowAliases: false})

	// Execute
	s.Require().NoError(registry.Register(command("balance", "bal")))

	// Assert
	_, ok := registry.ResolveCommand("bal")
	s.False(ok)
	s.Equal(Stats{Commands: 1}, registry.Stats())
}

func (s *RegistryTestSuite) TestAliasFirstWriterWins() {
	// Setup
	first := command("dice", "roll")
	second := command("reroll", "roll")

	// Execute
	s.Require().NoError(s.registry.Register(first))
	s.Require().NoError(s.registry.Register(second))

	// Assert
	cmd, ok := s.registry.ResolveCommand("roll")
	s.True(ok)
	s.Same(first, cmd)
	s.Equal(Stats{Commands: 2, Aliases: 1}, s.registry.Stats())
}

func (s *RegistryTestSuite) TestRejections() {
	testCases := []struct {
		name string
		cmd  Command
		code types.ErrorCode
	}{
		{name: "nil command", cmd: nil, code: types.ErrInvalidPlugin},
		{name: "nil entry point", cmd: New(Descriptor{Name: "x", Author: trusted}, nil, nil), code: types.ErrInvalidPlugin},
		{name: "untrusted author", cmd: New(Descriptor{Name: "x", Author: "someone"}, noop, nil), code: types.ErrUntrustedAuthor},
		{name: "empty name", cmd: New(Descriptor{Name: " ", Author: trusted}, noop, nil), code: types.ErrInvalidPlugin},
		{name: "bad prefix mode", cmd: New(Descriptor{Name: "x", Author: trusted, Prefix: PrefixMode(7)}, noop, nil), code: types.ErrInvalidPlugin},
		{name: "negative cooldown", cmd: New(Descriptor{Name: "x", Author: trusted, Cooldown: -1}, noop, nil), code: types.ErrInvalidPlugin},
		{name: "negative role", cmd: New(Descriptor{Name: "x", Author: trusted, Role: -1}, noop, nil), code: types.ErrInvalidPlugin},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			err := s.registry.Register(tc.cmd)
			s.True(types.IsBotError(err, tc.code), "got %v", err)
		})
	}
	s.Equal(Stats{}, s.registry.Stats())
}

func (s *RegistryTestSuite) TestDuplicateNameRejected() {
	s.Require().NoError(s.registry.Register(command("ping", "p")))

	err := s.registry.Register(command("PING"))
	s.True(types.IsBotError(err, types.ErrDuplicateName))

	err = s.registry.Register(command("p"))
	s.True(types.IsBotError(err, types.ErrDuplicateName), "names claimed as aliases are taken")
}

func (s *RegistryTestSuite) TestPostbacks() {
	// Setup
	roll := func(context.Context, Context) error { return Stop }
	dice := New(Descriptor{Name: "dice", Author: trusted}, noop, map[string]HandlerFunc{
		"dice_roll":  roll,
		"dice_stats": nil,
	})
	other := New(Descriptor{Name: "other", Author: trusted}, noop, map[string]HandlerFunc{
		"dice_roll": noop,
	})

	// Execute
	s.Require().NoError(s.registry.Register(dice))
	s.Require().NoError(s.registry.Register(other))

	// Assert
	handler, ok := s.registry.ResolvePostback("dice_roll")
	s.Require().True(ok)
	s.ErrorIs(handler(context.Background(), nil), Stop, "first writer keeps the type")
	_, ok = s.registry.ResolvePostback("dice_stats")
	s.False(ok)
	s.Equal(1, s.registry.Stats().Postbacks)
}

func (s *RegistryTestSuite) TestLoadSkipsInvalid() {
	// Execute
	loaded := s.registry.Load([]Command{
		command("ping"),
		New(Descriptor{Name: "evil", Author: "mallory"}, noop, nil),
		command("dice"),
		nil,
	})

	// Assert
	s.Equal(2, loaded)
	cmds := s.registry.Commands()
	s.Require().Len(cmds, 2)
	s.Equal("dice", cmds[0].Descriptor().Name)
	s.Equal("ping", cmds[1].Descriptor().Name)
}

func (s *RegistryTestSuite) TestLoadLogsOneSummary() {
	// Setup
	var buf bytes.Buffer
	registry := NewRegistry(Options{
		TrustedAuthor: trusted,
		AllowAliases:  true,
		Logger:        logging.NewLogger(logging.INFO, &buf),
	})

	// Execute
	registry.Load([]Command{command("ping", "p"), command("dice")})

	// Assert
	s.Equal(1, strings.Count(buf.String(), "Loaded 2 of 2 commands (1 aliases, 0 postback types)"))
}
