package entities

import (
	"errors"
	"time"
)

// Default values for freshly created accounts
const (
	DefaultLevel    = 1
	DefaultTheme    = "dark"
	DefaultLanguage = "en"
)

// ErrNegativeBalance is returned when a patch would persist a negative balance
var ErrNegativeBalance = errors.New("balance must not be negative")

// Account represents a user's persistent state
type Account struct {
	UserID          string              `json:"userId" bson:"userId"`
	Name            string              `json:"name" bson:"name"`
	Balance         int64               `json:"money" bson:"money"`
	Level           int                 `json:"level" bson:"level"`
	Experience      int                 `json:"experience" bson:"experience"`
	Settings        Settings            `json:"settings" bson:"settings"`
	Inventory       []Item              `json:"inventory" bson:"inventory"`
	GameStats       map[string]GameStat `json:"gameStats" bson:"gameStats"`
	LastTransaction *TransactionSummary `json:"lastTransaction,omitempty" bson:"lastTransaction,omitempty"`
	CreatedAt       time.Time           `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt" bson:"updatedAt"`
}

// Settings are per-user presentation preferences
type Settings struct {
	Theme         string `json:"theme" bson:"theme"`
	Notifications bool   `json:"notifications" bson:"notifications"`
	Language      string `json:"language" bson:"language"`
}

// Item is an inventory entry
type Item struct {
	ID       string `json:"id" bson:"id"`
	Name     string `json:"name" bson:"name"`
	Equipped bool   `json:"equipped" bson:"equipped"`
}

// TransactionSummary is the denormalised copy of the most recent balance change
type TransactionSummary struct {
	Type      TransactionType `json:"type" bson:"type"`
	Amount    int64           `json:"amount" bson:"amount"`
	Timestamp time.Time       `json:"timestamp" bson:"timestamp"`
}

// NewAccount builds an account with the default profile for a new user
func NewAccount(userID string, startBalance int64, now time.Time) *Account {
	return &Account{
		UserID:     userID,
		Name:       DefaultName(userID),
		Balance:    startBalance,
		Level:      DefaultLevel,
		Experience: 0,
		Settings: Settings{
			Theme:         DefaultTheme,
			Notifications: true,
			Language:      DefaultLanguage,
		},
		Inventory: []Item{},
		GameStats: map[string]GameStat{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// DefaultName returns "User_" followed by the last four characters of the ID
func DefaultName(userID string) string {
	runes := []rune(userID)
	if len(runes) > 4 {
		runes = runes[len(runes)-4:]
	}
	return "User_" + string(runes)
}

// EquippedItems returns the items currently equipped
func (a *Account) EquippedItems() []Item {
	var equipped []Item
	for _, item := range a.Inventory {
		if item.Equipped {
			equipped = append(equipped, item)
		}
	}
	return equipped
}

// Clone returns a deep copy so callers cannot mutate cached state
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	c.Inventory = append([]Item(nil), a.Inventory...)
	c.GameStats = make(map[string]GameStat, len(a.GameStats))
	for k, v := range a.GameStats {
		c.GameStats[k] = v
	}
	if a.LastTransaction != nil {
		lt := *a.LastTransaction
		c.LastTransaction = &lt
	}
	return &c
}

// AccountPatch is a partial update. Nil fields are left untouched.
type AccountPatch struct {
	Name            *string
	Balance         *int64
	Level           *int
	Experience      *int
	Settings        *Settings
	Inventory       []Item
	GameStats       map[string]GameStat // merged per game key
	LastTransaction *TransactionSummary
}

// Validate rejects patches that would break account invariants
func (p AccountPatch) Validate() error {
	if p.Balance != nil && *p.Balance < 0 {
		return ErrNegativeBalance
	}
	return nil
}

// IsEmpty reports whether the patch changes nothing
func (p AccountPatch) IsEmpty() bool {
	return p.Name == nil && p.Balance == nil && p.Level == nil &&
		p.Experience == nil && p.Settings == nil && p.Inventory == nil &&
		p.GameStats == nil && p.LastTransaction == nil
}

// Apply mutates the account with the patch and stamps UpdatedAt
func (p AccountPatch) Apply(a *Account, now time.Time) {
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.Balance != nil {
		a.Balance = *p.Balance
	}
	if p.Level != nil {
		a.Level = *p.Level
	}
	if p.Experience != nil {
		a.Experience = *p.Experience
	}
	if p.Settings != nil {
		a.Settings = *p.Settings
	}
	if p.Inventory != nil {
		a.Inventory = append([]Item(nil), p.Inventory...)
	}
	if len(p.GameStats) > 0 {
		if a.GameStats == nil {
			a.GameStats = map[string]GameStat{}
		}
		for game, stat := range p.GameStats {
			a.GameStats[game] = stat
		}
	}
	if p.LastTransaction != nil {
		lt := *p.LastTransaction
		a.LastTransaction = &lt
	}
	a.UpdatedAt = now
}

// Int64 returns a pointer to v, for building patches
func Int64(v int64) *int64 { return &v }

// Int returns a pointer to v, for building patches
func Int(v int) *int { return &v }

// String returns a pointer to v, for building patches
func String(v string) *string { return &v }
