package model

import (
	"encoding/json"
	"fmt"
)

// ReminderTime is a wall-clock time of day, serialized as "HH:MM".
type ReminderTime struct {
	Hour   int
	Minute int
}

func ParseReminderTime(s string) (ReminderTime, error) {
	if len(s) != 5 || s[2] != ':' {
		return ReminderTime{}, fmt.Errorf("%w: reminder time %q is not HH:MM", ErrInvalidHabit, s)
	}
	for _, i := range []int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return ReminderTime{}, fmt.Errorf("%w: reminder time %q is not HH:MM", ErrInvalidHabit, s)
		}
	}
	rt := ReminderTime{
		Hour:   int(s[0]-'0')*10 + int(s[1]-'0'),
		Minute: int(s[3]-'0')*10 + int(s[4]-'0'),
	}
	if rt.Hour > 23 || rt.Minute > 59 {
		return ReminderTime{}, fmt.Errorf("%w: reminder time %q is out of range", ErrInvalidHabit, s)
	}
	return rt, nil
}

func (rt ReminderTime) String() string {
	return fmt.Sprintf("%02d:%02d", rt.Hour, rt.Minute)
}

func (rt ReminderTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(rt.String())
}

func (rt *ReminderTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseReminderTime(s)
	if err != nil {
		return err
	}
	*rt = parsed
	return nil
}
