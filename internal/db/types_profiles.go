package db

import (
	"time"

	"github.com/jonathan/story-manager/internal/types"
)

// Profile is a person tracked by the app together with hobbies and notes
type Profile struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Age         int         `json:"age"`
	Source      string      `json:"source"`
	TelegramTag *string     `json:"telegram_tag"`
	BirthDate   *types.Date `json:"birth_date"`
	AvatarPath  *string     `json:"avatar_path"`
	Hobbies     []Hobby     `json:"hobbies"`
	Notes       []Note      `json:"notes"`
}

// Hobby belongs to one profile
type Hobby struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	ProfileID int64  `json:"profile_id"`
}

// Note is a key/value annotation on a profile
type Note struct {
	ID        int64  `json:"id"`
	Key       string `json:"key"`
	Value     string `json:"value"`
	ProfileID int64  `json:"profile_id"`
}

// Progress is a checkpoint a profile has reached in a story or opener.
// Exactly one of StoryID and OpenerID is set.
type Progress struct {
	ID         int64     `json:"id"`
	ProfileID  int64     `json:"profile_id"`
	StoryID    *int64    `json:"story_id"`
	OpenerID   *int64    `json:"opener_id"`
	Checkpoint string    `json:"checkpoint"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// applyProfileUpdate copies the non-nil fields of u onto p. An empty
// telegram tag or birth date clears it.
func applyProfileUpdate(p *Profile, u *types.UpdateProfileRequest) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Age != nil {
		p.Age = *u.Age
	}
	if u.Source != nil {
		p.Source = *u.Source
	}
	if u.TelegramTag != nil {
		if *u.TelegramTag == "" {
			p.TelegramTag = nil
		} else {
			tag := *u.TelegramTag
			p.TelegramTag = &tag
		}
	}
	if u.BirthDate != nil {
		if u.BirthDate.IsZero() {
			p.BirthDate = nil
		} else {
			p.BirthDate = types.NewDate(u.BirthDate.Time)
		}
	}
}

func dateFromTime(t *time.Time) *types.Date {
	if t == nil {
		return nil
	}
	return types.NewDate(*t)
}
