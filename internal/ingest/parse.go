package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"loginguard/internal/engine"
	"loginguard/internal/model"
)

// LoginPayload is the wire shape of a submitted login event. Either user_id
// or email identifies the user; failed_count_window is optional and derived
// from recent history when absent.
type LoginPayload struct {
	UserID            string `json:"user_id"`
	Email             string `json:"email"`
	Timestamp         string `json:"timestamp"`
	IP                string `json:"ip"`
	City              string `json:"city"`
	Device            string `json:"device"`
	Status            string `json:"status"`
	FailedCountWindow *int   `json:"failed_count_window"`
}

func ParseLogin(data []byte) (model.Login, error) {
	var p LoginPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return model.Login{}, err
	}
	return p.ToLogin()
}

func (p LoginPayload) ToLogin() (model.Login, error) {
	userID := strings.TrimSpace(p.UserID)
	if userID == "" {
		userID = strings.TrimSpace(p.Email)
	}
	if userID == "" {
		return model.Login{}, errors.New("user_id or email is required")
	}

	ts := time.Now().UTC()
	if strings.TrimSpace(p.Timestamp) != "" {
		parsed, err := ParseTimestamp(p.Timestamp)
		if err != nil {
			return model.Login{}, fmt.Errorf("parse timestamp: %w", err)
		}
		ts = parsed.UTC()
	}

	login := model.Login{
		UserID:            userID,
		Timestamp:         ts,
		IP:                strings.TrimSpace(p.IP),
		City:              strings.TrimSpace(p.City),
		Device:            strings.TrimSpace(p.Device),
		Status:            ParseStatus(p.Status),
		FailedCountWindow: engine.FailedCountUnset,
	}
	if p.FailedCountWindow != nil {
		login.FailedCountWindow = *p.FailedCountWindow
	}
	return login, nil
}

// ParseStatus normalizes a reported status. Anything not recognized as a
// success counts as a failure.
func ParseStatus(status string) model.Status {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "ok", "success", "succeeded", "pass", "allowed":
		return model.StatusSuccess
	default:
		return model.StatusFailure
	}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	if isNumeric(value) {
		return parseUnix(value)
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp format: %q", value)
}

func isNumeric(value string) bool {
	for _, ch := range value {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return len(value) > 0
}

func parseUnix(value string) (time.Time, error) {
	if len(value) >= 13 {
		ms, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return time.Time{}, err
		}
		return time.Unix(0, ms*int64(time.Millisecond)).UTC(), nil
	}
	sec, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(sec, 0).UTC(), nil
}
