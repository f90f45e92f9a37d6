package user

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRegister(t *testing.T) {
	if _, err := time.LoadLocation("Europe/Lisbon"); err != nil {
		t.Skip("tzdata unavailable")
	}
	ctx := context.Background()
	d := NewDirectory(NewMemoryRepository())

	u, err := d.Register(ctx, " Ann Example ", "Ann@Example.com", "Europe/Lisbon")
	if err != nil {
		t.Fatal(err)
	}
	if u.ID == 0 || u.Email != "ann@example.com" || u.FullName != "Ann Example" {
		t.Fatalf("user = %+v", u)
	}
	if u.Preferences.Timezone != "Europe/Lisbon" || !u.Preferences.EmailNotifications || u.Preferences.ReminderTime != 15 {
		t.Errorf("preferences = %+v", u.Preferences)
	}

	if _, err := d.Register(ctx, "Someone", "ann@example.com", ""); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("duplicate email: %v", err)
	}
	if _, err := d.Register(ctx, "Bob", "not an email", ""); err == nil {
		t.Error("invalid email accepted")
	}
	if _, err := d.Register(ctx, "  ", "bob@example.com", ""); err == nil {
		t.Error("blank name accepted")
	}
	if _, err := d.Register(ctx, "Bob", "bob@example.com", "Mars/Olympus"); err == nil {
		t.Error("unknown timezone accepted")
	}

	got, err := d.Repo.GetByEmail(ctx, "ANN@example.com")
	if err != nil || got.ID != u.ID {
		t.Errorf("GetByEmail = %+v, %v", got, err)
	}
}

func TestDefaultReminderMinutes(t *testing.T) {
	ctx := context.Background()
	d := NewDirectory(NewMemoryRepository())
	u, err := d.Register(ctx, "Ann", "ann@example.com", "")
	if err != nil {
		t.Fatal(err)
	}

	if m, err := d.DefaultReminderMinutes(ctx, u.ID); err != nil || m != 15 {
		t.Fatalf("DefaultReminderMinutes = %d, %v", m, err)
	}
	if _, err := d.DefaultReminderMinutes(ctx, 404); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown user: %v", err)
	}
}

func TestChannelEnabled(t *testing.T) {
	p := DefaultPreferences()
	if !p.ChannelEnabled("email") || p.ChannelEnabled("push") || p.ChannelEnabled("sms") || p.ChannelEnabled("fax") {
		t.Fatalf("default channels wrong: %+v", p)
	}
	if p.Location().String() != "UTC" {
		t.Errorf("location = %s", p.Location())
	}
	p.Timezone = "Not/AZone"
	if p.Location().String() != "UTC" {
		t.Errorf("bad timezone did not fall back to UTC")
	}
}
