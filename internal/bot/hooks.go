package bot

import (
	"context"
	"fmt"

	"github.com/fadedpez/pagebot/internal/messenger"
	"github.com/fadedpez/pagebot/internal/plugin"
	"github.com/fadedpez/pagebot/pkg/entities"
)

// experiencePerLevel scales the experience needed for the next level
const experiencePerLevel = 100

// ExperienceHook awards perUse experience to the sender after each handled
// event and levels them up when they cross the threshold.
func ExperienceHook(perUse int) Hook {
	return func(ctx context.Context, c plugin.Context) error {
		if perUse <= 0 {
			return nil
		}

		var previous, level int
		_, err := c.Ledger().Modify(ctx, c.SenderID(), func(account *entities.Account) entities.AccountPatch {
			previous = account.Level
			var exp int
			level, exp = LevelUp(account.Level, account.Experience+perUse)
			return entities.AccountPatch{
				Level:      entities.Int(level),
				Experience: entities.Int(exp),
			}
		})
		if err != nil {
			return fmt.Errorf("error saving experience: %w", err)
		}

		if level > previous {
			c.Reply(ctx, messenger.Text(fmt.Sprintf("🎉 Level up! You are now level %d.", level)))
		}
		return nil
	}
}

// LevelUp carries experience over into levels. Level n needs n*100 experience.
func LevelUp(level, exp int) (int, int) {
	if level < entities.DefaultLevel {
		level = entities.DefaultLevel
	}
	for exp >= level*experiencePerLevel {
		exp -= level * experiencePerLevel
		level++
	}
	return level, exp
}
