package user

import (
	"context"
	"errors"
	"net/mail"
	"strings"
)

// Directory is the read side the scheduling core depends on, plus account
// provisioning for the command line.
type Directory struct {
	Repo Repository
}

func NewDirectory(repo Repository) *Directory {
	return &Directory{Repo: repo}
}

func (d *Directory) GetByID(ctx context.Context, id uint) (*User, error) {
	return d.Repo.GetByID(ctx, id)
}

// DefaultReminderMinutes is the owner's preferred reminder lead time.
func (d *Directory) DefaultReminderMinutes(ctx context.Context, ownerID uint) (int, error) {
	u, err := d.Repo.GetByID(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	if u.Preferences.ReminderTime < 0 {
		return DefaultPreferences().ReminderTime, nil
	}
	return u.Preferences.ReminderTime, nil
}

// Register creates a user with default preferences.
func (d *Directory) Register(ctx context.Context, fullName, email, timezone string) (*User, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return nil, errors.New("invalid email address")
	}
	u := &User{
		FullName:    strings.TrimSpace(fullName),
		Email:       strings.ToLower(addr.Address),
		Preferences: DefaultPreferences(),
	}
	if u.FullName == "" {
		return nil, errors.New("full name is required")
	}
	if timezone != "" {
		u.Preferences.Timezone = timezone
		if u.Preferences.Location().String() != timezone {
			return nil, errors.New("unknown timezone " + timezone)
		}
	}
	if err := d.Repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}
